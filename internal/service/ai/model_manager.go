package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"github.com/kapu/campaign-ops-go/internal/util"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	statusCodeRegex = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRegex = regexp.MustCompile(`"code":(\d{3})`)
	openaiCodeRegex = regexp.MustCompile(`^(\d{3})\s`)
)

// ModelManager is the single entry point to the generative service. It gates
// calls with a circuit breaker, optionally falls back to OpenAI for plain
// text requests, and never retries on its own.
type ModelManager struct {
	primary        Provider
	fallback       Provider
	media          MediaProvider
	logger         *zap.Logger
	metrics        *metrics.Metrics
	clock          clockwork.Clock
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	GeminiAPIKey   string
	OpenAIAPIKey   string
	TextModel      string
	ImageModel     string
	SpeechModel    string
	Voice          string
	OpenAIModel    string
	EnableFallback bool
	Metrics        *metrics.Metrics
}

func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	gemini := NewGeminiProvider(geminiClient, GeminiModels{
		Text:   defaultString(cfg.TextModel, "gemini-2.5-flash"),
		Image:  defaultString(cfg.ImageModel, "imagen-4.0-generate-001"),
		Speech: defaultString(cfg.SpeechModel, "gemini-2.5-flash-preview-tts"),
		Voice:  defaultString(cfg.Voice, "Kore"),
	}, logger)

	var fallback Provider
	if cfg.EnableFallback {
		openaiModel := defaultString(cfg.OpenAIModel, "gpt-5-mini")
		if provider := NewOpenAIProvider(cfg.OpenAIAPIKey, openaiModel, logger); provider != nil {
			fallback = provider
			logger.Info("OpenAI fallback enabled", zap.String("model", openaiModel))
		}
	}
	if fallback == nil {
		logger.Info("OpenAI fallback disabled")
	}

	return newModelManager(gemini, fallback, gemini, cfg.Metrics, clockwork.NewRealClock(), logger), nil
}

func newModelManager(primary, fallback Provider, media MediaProvider, m *metrics.Metrics, clock clockwork.Clock, logger *zap.Logger) *ModelManager {
	mm := &ModelManager{
		primary:  primary,
		fallback: fallback,
		media:    media,
		logger:   logger,
		metrics:  m,
		clock:    clock,
	}
	mm.circuitBreaker = util.NewCircuitBreaker(util.CircuitBreakerConfig{
		FailureThreshold:    constants.CircuitBreakerConfig.FailureThreshold,
		ResetTimeout:        constants.CircuitBreakerConfig.ResetTimeout,
		HealthCheckInterval: constants.CircuitBreakerConfig.HealthCheckInterval,
		HealthCheck:         mm.healthCheckPing,
		Clock:               clock,
	}, logger)
	return mm
}

// Generate returns the raw text of the response.
func (mm *ModelManager) Generate(ctx context.Context, req *Request) (string, *GenerateMetadata, error) {
	if err := mm.checkCircuit(req.Operation); err != nil {
		return "", nil, err
	}

	start := mm.clock.Now()
	result, metadata, err := mm.invoke(ctx, req)
	if err != nil {
		mm.observe(req.Operation, "", outcomeOf(err), start)
		return "", nil, err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		mm.observe(req.Operation, metadata.Provider, "malformed", start)
		return "", nil, apperrors.NewGenerationError("el servicio generativo devolvió una respuesta vacía", req.Operation,
			fmt.Errorf("%s returned empty response: %w", metadata.Provider, ErrMalformedOutput))
	}

	mm.observe(req.Operation, metadata.Provider, "success", start)
	return text, metadata, nil
}

// GenerateJSON strips code fences and unmarshals into dest. Pass a
// *json.RawMessage to validate field by field afterwards.
func (mm *ModelManager) GenerateJSON(ctx context.Context, req *Request, dest any) (*GenerateMetadata, error) {
	text, metadata, err := mm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	cleaned := StripCodeFence(text)
	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		mm.logger.Error("Failed to unmarshal JSON response",
			zap.String("operation", req.Operation),
			zap.String("provider", metadata.Provider),
			zap.Error(err),
			zap.String("response_preview", util.TruncateString(cleaned, 200)),
		)
		return nil, apperrors.NewGenerationError("la respuesta del servicio generativo no tiene el formato esperado", req.Operation,
			fmt.Errorf("invalid JSON from %s: %v: %w", metadata.Provider, err, ErrMalformedOutput))
	}

	return metadata, nil
}

func (mm *ModelManager) invoke(ctx context.Context, req *Request) (ProviderResult, *GenerateMetadata, error) {
	primaryResult, primaryErr := mm.primary.Generate(ctx, req)
	if primaryErr == nil {
		mm.recordSuccess()
		return primaryResult, &GenerateMetadata{
			Provider: mm.primary.Name(),
			Model:    primaryResult.Model,
			Grounded: primaryResult.Grounded,
		}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ProviderResult{}, nil, apperrors.NewCanceledError(req.Operation, ctxErr)
	}

	if mm.fallback != nil && mm.fallback.Supports(req) {
		fallbackResult, fallbackErr := mm.fallback.Generate(ctx, req)
		if fallbackErr == nil {
			mm.recordSuccess()
			mm.logger.Warn("Primary provider failed, served by fallback",
				zap.String("operation", req.Operation),
				zap.Error(primaryErr),
			)
			return fallbackResult, &GenerateMetadata{
				Provider:     mm.fallback.Name(),
				Model:        fallbackResult.Model,
				UsedFallback: true,
			}, nil
		}
		mm.recordFailure(fallbackErr)
	}

	mm.recordFailure(primaryErr)
	return ProviderResult{}, nil, apperrors.NewGenerationError(
		"el servicio generativo no respondió; intenta de nuevo", req.Operation, primaryErr)
}

// GenerateImage renders the visual prompt of a campaign.
func (mm *ModelManager) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*MediaAsset, error) {
	return mm.generateMedia(ctx, "image", func() (*MediaAsset, error) {
		return mm.media.GenerateImage(ctx, prompt, aspectRatio)
	})
}

// GenerateSpeech voices an audio script.
func (mm *ModelManager) GenerateSpeech(ctx context.Context, script string) (*MediaAsset, error) {
	return mm.generateMedia(ctx, "speech", func() (*MediaAsset, error) {
		return mm.media.GenerateSpeech(ctx, script)
	})
}

func (mm *ModelManager) generateMedia(ctx context.Context, operation string, call func() (*MediaAsset, error)) (*MediaAsset, error) {
	if mm.media == nil {
		return nil, apperrors.NewGenerationError("la generación de medios no está configurada", operation, nil)
	}
	if err := mm.checkCircuit(operation); err != nil {
		return nil, err
	}

	start := mm.clock.Now()
	asset, err := call()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			mm.observe(operation, "Gemini", "canceled", start)
			return nil, apperrors.NewCanceledError(operation, ctxErr)
		}
		if !errors.Is(err, ErrMalformedOutput) {
			mm.recordFailure(err)
		}
		mm.observe(operation, "Gemini", "error", start)
		mm.logger.Error("Media generation failed", zap.String("operation", operation), zap.Error(err))
		return nil, apperrors.NewGenerationError("no se pudo generar el recurso; intenta de nuevo", operation, err)
	}

	mm.recordSuccess()
	mm.observe(operation, "Gemini", "success", start)
	return asset, nil
}

func (mm *ModelManager) checkCircuit(operation string) error {
	if mm.circuitBreaker.CanExecute() {
		return nil
	}

	status := mm.circuitBreaker.GetStatus()
	nextRetry := "desconocida"
	if status.NextRetryTime != nil {
		nextRetry = util.ConsoleStamp(*status.NextRetryTime)
	}

	mm.logger.Error("AI service unavailable (Circuit OPEN)",
		zap.String("operation", operation),
		zap.String("state", status.State.String()),
		zap.Int("failure_count", status.FailureCount),
		zap.String("next_retry", nextRetry),
	)
	mm.metrics.ObserveGeneration(operation, "", "circuit_open", 0)

	return apperrors.NewGenerationError(
		fmt.Sprintf("servicio generativo temporalmente no disponible; nuevo intento posible a las %s", nextRetry),
		operation, nil)
}

func (mm *ModelManager) recordSuccess() {
	mm.circuitBreaker.RecordSuccess()
	mm.metrics.SetCircuitOpen(false)
}

func (mm *ModelManager) recordFailure(err error) {
	if !mm.isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if mm.isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
	mm.metrics.SetCircuitOpen(mm.circuitBreaker.GetStatus().State == util.CircuitStateOpen)
}

func (mm *ModelManager) observe(operation, provider, outcome string, start time.Time) {
	mm.metrics.ObserveGeneration(operation, provider, outcome, mm.clock.Since(start))
}

func outcomeOf(err error) string {
	if apperrors.CodeOf(err) == apperrors.CodeCanceled {
		return "canceled"
	}
	return "error"
}

func (mm *ModelManager) healthCheckPing() bool {
	mm.logger.Info("Health Check: Testing AI services...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	primaryOK := mm.primary != nil && mm.primary.Ping(ctx)
	fallbackOK := mm.fallback != nil && mm.fallback.Ping(ctx)
	isHealthy := primaryOK || fallbackOK

	mm.logger.Info("Health Check: Result",
		zap.Bool("primary", primaryOK),
		zap.Bool("fallback", fallbackOK),
		zap.Bool("healthy", isHealthy),
	)

	return isHealthy
}

func (mm *ModelManager) isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return true
	}

	if mm.isRateLimitError(err) {
		return true
	}

	if statusCodeRegex.MatchString(msg) {
		return true
	}

	if code, ok := embeddedStatusCode(msg); ok {
		return code >= 500 && code < 600
	}

	return false
}

func (mm *ModelManager) isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return true
	}

	code, ok := embeddedStatusCode(msg)
	return ok && code == 429
}

func embeddedStatusCode(msg string) (int, bool) {
	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, err := strconv.Atoi(matches[1]); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

func (mm *ModelManager) GetCircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.GetStatus()
}

func (mm *ModelManager) ResetCircuit() {
	mm.circuitBreaker.Reset()
	mm.metrics.SetCircuitOpen(false)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
