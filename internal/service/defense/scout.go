package defense

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"github.com/kapu/campaign-ops-go/internal/prompt"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	"github.com/kapu/campaign-ops-go/internal/service/cache"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

// Demo hosts (and their subdomains) and whole path segments that trigger
// the offline demo path.
var (
	simulationHosts        = []string{"example.com", "demo.local"}
	simulationPathSegments = []string{"simulacion", "simulation-post"}
)

// protectedPlatforms block scraping; keyed by registrable domain.
var protectedPlatforms = map[string]string{
	"facebook.com":  "Facebook",
	"fb.com":        "Facebook",
	"instagram.com": "Instagram",
	"tiktok.com":    "TikTok",
	"x.com":         "X (Twitter)",
	"twitter.com":   "X (Twitter)",
	"linkedin.com":  "LinkedIn",
	"threads.net":   "Threads",
}

// SimulatedScout is returned for every simulation-marker URL.
var SimulatedScout = domain.ScoutResult{
	Author:           "@CiudadanoCritico",
	Content:          "¿Dónde están los recursos prometidos para la vía del barrio? Tres meses y el hueco sigue igual. Mucha foto y poca obra.",
	MediaDescription: "Foto de un hueco con agua estancada en una vía principal, con conos de tránsito improvisados.",
	Platform:         "X (Twitter)",
}

var simulationScript = []string{
	"Modo simulación: conectando con el objetivo...",
	"Evadiendo protecciones anti-bot...",
	"Extrayendo contenido del DOM...",
	"Contenido extraído correctamente.",
}

const (
	genericAuthor       = "Usuario detectado (búsqueda web)"
	searchDerivedMedia  = "Descripción derivada del contexto de búsqueda."
	unknownPlatformName = "Desconocida"
)

// Coordinator resolves a URL into a best-effort ScoutResult. It never
// returns an error: every failure ends in an empty result that asks the
// operator for manual input.
type Coordinator struct {
	invoker         ai.ModelInvoker
	prober          PageProber
	cache           *cache.ScoutCache
	clock           clockwork.Clock
	simulationDelay time.Duration
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

type CoordinatorConfig struct {
	SimulationDelay time.Duration
}

// NewCoordinator builds the coordinator. prober and scoutCache may be nil.
func NewCoordinator(invoker ai.ModelInvoker, prober PageProber, scoutCache *cache.ScoutCache, clock clockwork.Clock, cfg CoordinatorConfig, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		invoker:         invoker,
		prober:          prober,
		cache:           scoutCache,
		clock:           clock,
		simulationDelay: cfg.SimulationDelay,
		metrics:         m,
		logger:          logger,
	}
}

func (c *Coordinator) Scout(ctx context.Context, rawURL string, sink domain.LogSink) domain.ScoutResult {
	if sink == nil {
		sink = domain.NopSink
	}
	rawURL = strings.TrimSpace(rawURL)

	if IsSimulationURL(rawURL) {
		return c.simulate(ctx, sink)
	}

	target, err := parseTarget(rawURL)
	if err != nil {
		c.logger.Warn("Scout rejected URL", zap.String("url", rawURL), zap.Error(err))
		sink("URL inválida; ingresa el contenido manualmente.")
		c.metrics.ScoutOutcome("failed")
		return domain.ScoutResult{Platform: unknownPlatformName}
	}

	if cached, ok := c.cache.Get(ctx, target.String()); ok {
		sink("Resultado recuperado de la caché de reconocimiento.")
		c.metrics.ScoutOutcome("cached")
		return cached
	}

	host := normalizeHost(target.Hostname())
	platform, protected := ClassifyHost(host)

	vars := prompt.ScoutPromptVars{
		URL:      target.String(),
		Platform: platform,
		Sentinel: constants.AcquisitionConfig.NotFoundSentinel,
	}
	if protected {
		sink(fmt.Sprintf("Plataforma protegida detectada (%s); se usará búsqueda indirecta.", platform))
		vars.Hint = ExtractHint(target.Path)
		if vars.Hint != "" {
			sink(fmt.Sprintf("Pista extraída de la URL: \"%s\".", vars.Hint))
		}
	} else if c.prober != nil {
		sink("Leyendo metadatos públicos de la página...")
		meta, probeErr := c.prober.Probe(ctx, target.String())
		if probeErr != nil {
			c.logger.Debug("Page probe failed", zap.String("url", target.String()), zap.Error(probeErr))
		} else {
			vars.PageTitle, vars.PageDescription, vars.PageAuthor = meta.Title, meta.Description, meta.Author
			if meta.SiteName != "" {
				vars.Platform = meta.SiteName
				platform = meta.SiteName
			}
		}
	}

	sink("Buscando la publicación con búsqueda web...")
	text, _, err := c.invoker.Generate(ctx, &ai.Request{
		Operation: "scout",
		Parts:     []ai.Part{ai.TextPart(prompt.BuildScoutPrompt(vars))},
		Search:    true,
		Preset:    ai.PresetPrecise,
	})
	if err != nil {
		acqErr := apperrors.NewAcquisitionError("acquisition request failed", target.String(), err)
		c.logger.Warn("Scout failed", zap.String("host", host), zap.Error(acqErr))
		sink("No se pudo acceder al contenido; ingrésalo manualmente.")
		c.metrics.ScoutOutcome("failed")
		return domain.ScoutResult{Platform: platform}
	}

	text = strings.TrimSpace(text)
	if strings.Contains(text, constants.AcquisitionConfig.NotFoundSentinel) ||
		utf8.RuneCountInString(text) < constants.AcquisitionConfig.MinContentLength {
		c.logger.Info("Scout blocked", zap.String("host", host), zap.Int("length", len(text)))
		sink(fmt.Sprintf("Acceso denegado: %s bloquea la lectura automática y la búsqueda no encontró el contenido. Usa la entrada manual o sube una captura.", platform))
		c.metrics.ScoutOutcome("blocked")
		return domain.ScoutResult{Platform: platform}
	}

	author := genericAuthor
	if vars.PageAuthor != "" {
		author = vars.PageAuthor
	}
	result := domain.ScoutResult{
		Author:           author,
		Content:          text,
		MediaDescription: searchDerivedMedia,
		Platform:         platform,
	}
	sink("Contenido localizado mediante búsqueda web.")
	c.metrics.ScoutOutcome("found")
	c.cache.Put(ctx, target.String(), result)
	return result
}

func (c *Coordinator) simulate(ctx context.Context, sink domain.LogSink) domain.ScoutResult {
	for _, line := range simulationScript {
		if c.simulationDelay > 0 {
			select {
			case <-ctx.Done():
				c.metrics.ScoutOutcome("simulated")
				return SimulatedScout
			case <-c.clock.After(c.simulationDelay):
			}
		}
		sink(line)
	}
	c.metrics.ScoutOutcome("simulated")
	return SimulatedScout
}

// IsSimulationURL reports whether rawURL points at a demo host or has a demo
// marker as a whole path segment.
func IsSimulationURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := normalizeHost(u.Hostname())
	for _, demo := range simulationHosts {
		if host == demo || strings.HasSuffix(host, "."+demo) {
			return true
		}
	}
	for _, segment := range strings.Split(strings.ToLower(u.Path), "/") {
		for _, marker := range simulationPathSegments {
			if segment == marker {
				return true
			}
		}
	}
	return false
}

// ClassifyHost returns the platform label for host and whether it is known to
// block scraping. Unknown hosts are labelled with the host itself.
func ClassifyHost(host string) (string, bool) {
	host = normalizeHost(host)
	for domainName, label := range protectedPlatforms {
		if host == domainName || strings.HasSuffix(host, "."+domainName) {
			return label, true
		}
	}
	if host == "" {
		return unknownPlatformName, false
	}
	return host, false
}

// ExtractHint finds the first path segment longer than the threshold that
// contains hyphens and turns it into words.
func ExtractHint(path string) string {
	for _, segment := range strings.Split(path, "/") {
		if utf8.RuneCountInString(segment) > constants.AcquisitionConfig.HintMinSegmentLen && strings.Contains(segment, "-") {
			if decoded, err := url.PathUnescape(segment); err == nil {
				segment = decoded
			}
			return strings.Join(strings.Fields(strings.ReplaceAll(segment, "-", " ")), " ")
		}
	}
	return ""
}

func parseTarget(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty url")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}
	if target.Hostname() == "" {
		return nil, fmt.Errorf("missing host")
	}
	return target, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, prefix := range []string{"www.", "m.", "mobile.", "web."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}
