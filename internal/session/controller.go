package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"github.com/kapu/campaign-ops-go/internal/service/defense"
	"github.com/kapu/campaign-ops-go/internal/service/network"
	"github.com/kapu/campaign-ops-go/internal/service/targeting"
	"github.com/kapu/campaign-ops-go/internal/service/translate"
	"github.com/kapu/campaign-ops-go/internal/simulator"
	"github.com/kapu/campaign-ops-go/internal/util"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

// Operation kinds, used as in-flight registry kinds.
const (
	KindScout         = "scout"
	KindVision        = "vision"
	KindAnalysis      = "analysis"
	KindSegmentation  = "segmentation"
	KindCampaign      = "campaign"
	KindCampaignBatch = "campaigns"
	KindImage         = "image"
	KindAudio         = "audio"
	KindChronoposting = "chronoposting"
	KindNetwork       = "network"
	KindTranslate     = "translate"
)

type Scouter interface {
	Scout(ctx context.Context, rawURL string, sink domain.LogSink) domain.ScoutResult
}

type VisionExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) domain.ScoutResult
}

type Analyzer interface {
	Analyze(ctx context.Context, in defense.AnalysisInput) (domain.AnalysisResult, error)
}

type TargetingPipeline interface {
	Segment(ctx context.Context, req targeting.SegmentRequest) ([]domain.TargetSegment, error)
	Campaign(ctx context.Context, segment domain.TargetSegment, profile *domain.CandidateProfile) (*domain.AdCampaign, error)
	Image(ctx context.Context, campaign *domain.AdCampaign) (string, error)
	Audio(ctx context.Context, campaign *domain.AdCampaign) (string, error)
	Chronoposting(ctx context.Context, req targeting.ScheduleRequest) ([]domain.ContentScheduleItem, error)
	GenerateAllCampaigns(ctx context.Context, segments []domain.TargetSegment, profile *domain.CandidateProfile, concurrency int,
		admit func(segmentID string) (func(), bool), onResult func(targeting.CampaignResult)) int
}

type NetworkAnalyzer interface {
	AnalyzeUpload(ctx context.Context, r io.Reader, profile *domain.CandidateProfile) (network.Report, error)
}

type Translator interface {
	Translate(ctx context.Context, req translate.Request) (string, error)
}

type ProfileStore interface {
	List() []domain.CandidateProfile
	Get(id string) (domain.CandidateProfile, bool)
	Create(p domain.CandidateProfile) (domain.CandidateProfile, error)
	Default() (domain.CandidateProfile, bool)
}

// Services are the engines a controller drives.
type Services struct {
	Scout      Scouter
	Vision     VisionExtractor
	Analysis   Analyzer
	Targeting  TargetingPipeline
	Network    NetworkAnalyzer
	Translator Translator
	Profiles   ProfileStore
}

type Config struct {
	CancelOnModeSwitch  bool
	ImageConcurrency    int
	AudioConcurrency    int
	CampaignConcurrency int
	SimulatorSeed       int64
}

// Controller is the Mode Controller of one operator session. Every pipeline
// run is owned by the mode it was started in and runs on a context detached
// from the caller; only a mode switch (when configured), Close or the
// parent context cancel it. Results of a cancelled run are dropped.
type Controller struct {
	mu       sync.Mutex
	store    *Store
	services Services
	registry *util.InFlightRegistry
	runner   *simulator.Runner
	clock    clockwork.Clock
	cfg      Config
	metrics  *metrics.Metrics
	logger   *zap.Logger

	base   context.Context
	cancel context.CancelFunc
	active int
}

func NewController(parent context.Context, services Services, cfg Config, clock clockwork.Clock, rng simulator.Rand, m *metrics.Metrics, logger *zap.Logger) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.CampaignConcurrency < 1 {
		cfg.CampaignConcurrency = 1
	}
	base, cancel := context.WithCancel(parent)
	store := NewStore()

	c := &Controller{
		store:    store,
		services: services,
		registry: util.NewInFlightRegistry(map[string]int{
			KindImage: util.MaxInt(cfg.ImageConcurrency, 1),
			KindAudio: util.MaxInt(cfg.AudioConcurrency, 1),
		}),
		clock:   clock,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		base:    base,
		cancel:  cancel,
	}
	c.runner = simulator.NewRunner(simulator.New(rng), clock, storeSink{store: store})
	c.registry.OnChange(func(kind string, delta int) {
		m.AddInFlight(kind, delta)
		store.Dispatch(PendingChanged{Keys: c.registry.Keys()})
	})
	return c
}

// storeSink feeds simulator output into the session state.
type storeSink struct {
	store *Store
}

func (s storeSink) SetProgress(progress float64) {
	s.store.Dispatch(ProgressSet{Value: progress})
}

func (s storeSink) AppendLog(line domain.LogLine) {
	s.store.Dispatch(LogAppended{Line: line})
}

func (c *Controller) Store() *Store {
	return c.store
}

func (c *Controller) Snapshot() State {
	return c.store.Snapshot()
}

// Open authenticates the session for operator.
func (c *Controller) Open(operator string) State {
	profileID := ""
	if c.services.Profiles != nil {
		if p, ok := c.services.Profiles.Default(); ok {
			profileID = p.ID
		}
	}
	return c.store.Dispatch(LoggedIn{Operator: operator, ProfileID: profileID})
}

// Close cancels every run, stops the simulator and logs the session out.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := len(c.registry.Keys())
	c.cancel()
	c.registry.CancelAll()
	c.metrics.RunsCanceled("logout", pending)
	c.runner.Close()
	c.store.Dispatch(LoggedOut{})
	c.store.CloseSubscribers()
}

// SelectMode switches the workspace. With CancelOnModeSwitch the runs owned
// by the previous mode are cancelled before the switch is visible.
func (c *Controller) SelectMode(mode domain.Mode) (State, error) {
	if !mode.IsValid() {
		return State{}, apperrors.NewValidationError("modo desconocido", "mode", string(mode))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.store.Snapshot()
	if !state.Authenticated {
		return State{}, apperrors.NewAuthError("sesión no iniciada")
	}
	if state.Mode == mode {
		return state, nil
	}

	actions := []Action{ModeSelected{Mode: mode}}
	if c.cfg.CancelOnModeSwitch {
		if n := c.registry.CancelOwner(string(state.Mode)); n > 0 {
			c.metrics.RunsCanceled("mode_switch", n)
			c.logger.Info("Runs cancelled on mode switch",
				zap.String("from", string(state.Mode)),
				zap.String("to", string(mode)),
				zap.Int("runs", n),
			)
			actions = append(actions, c.logAction(domain.LogLevelWarn,
				fmt.Sprintf("Se cancelaron %d operaciones del modo %s.", n, state.Mode)))
		}
	}
	c.runner.Stop()
	c.metrics.ModeSwitched(string(mode))
	return c.store.Dispatch(actions...), nil
}

func (c *Controller) DismissBanner() State {
	return c.store.Dispatch(BannerDismissed{})
}

type runSpec struct {
	mode      domain.Mode
	kind      string
	id        string
	deep      bool
	startLine string
}

// begin admits a run: the session must be authenticated and in run.mode,
// and the run's key must be free.
func (c *Controller) begin(run runSpec) (*util.Lease, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.store.Snapshot()
	if !state.Authenticated {
		return nil, apperrors.NewAuthError("sesión no iniciada")
	}
	if state.Mode != run.mode {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("esta operación requiere el modo %s", run.mode), "mode", string(state.Mode))
	}

	lease, err := c.registry.Acquire(c.base, string(run.mode), run.kind, run.id)
	if err != nil {
		c.logger.Debug("Run rejected", zap.String("kind", run.kind), zap.String("id", run.id), zap.Error(err))
		return nil, err
	}

	c.active++
	c.store.Dispatch(PipelineStarted{}, c.logAction(domain.LogLevelInfo, run.startLine))
	if !c.runner.Active() {
		c.runner.Start(run.mode, run.deep)
	}
	return lease, nil
}

// finish settles a run. A cancelled run returns a canceled error and applies
// nothing; a failed run raises the banner; a successful run applies actions.
func (c *Controller) finish(lease *util.Lease, runErr error, actions ...Action) error {
	return c.settle(lease, runErr, nil, actions...)
}

// settle is finish with a commit hook. commit runs under the controller lock
// right before a successful run's actions are applied; an error from it drops
// the actions and is returned without raising the banner.
func (c *Controller) settle(lease *util.Lease, runErr error, commit func(State) error, actions ...Action) error {
	defer lease.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.active--
	if c.active == 0 {
		c.runner.Stop()
	}

	if ctxErr := lease.Context().Err(); ctxErr != nil {
		c.logger.Info("Run cancelled, result dropped", zap.String("key", lease.Key))
		return apperrors.NewCanceledError(lease.Key, ctxErr)
	}
	if runErr != nil {
		c.logger.Warn("Run failed", zap.String("key", lease.Key), zap.Error(runErr))
		if raisesBanner(runErr) {
			c.store.Dispatch(
				BannerRaised{Message: apperrors.MessageOf(runErr), Code: apperrors.CodeOf(runErr)},
				c.logAction(domain.LogLevelError, apperrors.MessageOf(runErr)),
			)
		}
		return runErr
	}
	if commit != nil {
		if err := commit(c.store.Snapshot()); err != nil {
			c.logger.Info("Run result superseded, dropped", zap.String("key", lease.Key), zap.Error(err))
			return err
		}
	}
	c.store.Dispatch(actions...)
	return nil
}

// merge applies actions from a still-running run unless it was cancelled.
func (c *Controller) merge(lease *util.Lease, actions ...Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lease.Context().Err() != nil {
		return false
	}
	c.store.Dispatch(actions...)
	return true
}

// errSuperseded marks a result whose segment or campaign was replaced while
// it was being generated.
var errSuperseded = errors.New("target replaced during generation")

func superseded(lease *util.Lease) error {
	return apperrors.NewCanceledError(lease.Key, errSuperseded)
}

func raisesBanner(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInFlight, apperrors.CodeCanceled:
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Controller) logAction(level domain.LogLevel, text string) Action {
	return LogAppended{Line: domain.LogLine{Time: util.ToCampaignTime(c.clock.Now()), Level: level, Text: text}}
}

// sinkFor forwards service console lines while the run is live.
func (c *Controller) sinkFor(lease *util.Lease) domain.LogSink {
	return func(line string) {
		if lease.Context().Err() != nil {
			return
		}
		c.store.Dispatch(c.logAction(domain.LogLevelInfo, line))
	}
}

func (c *Controller) activeProfile() *domain.CandidateProfile {
	if c.services.Profiles == nil {
		return nil
	}
	id := c.store.Snapshot().ActiveProfileID
	if id == "" {
		return nil
	}
	p, ok := c.services.Profiles.Get(id)
	if !ok {
		return nil
	}
	return &p
}
