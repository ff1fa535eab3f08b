package session

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/service/defense"
	"github.com/kapu/campaign-ops-go/internal/service/network"
	"github.com/kapu/campaign-ops-go/internal/service/targeting"
	"github.com/kapu/campaign-ops-go/internal/service/translate"
	"go.uber.org/zap"
)

// fakeTargeting returns canned values. A non-nil gate makes the matching
// call block until the gate is closed or the context ends.
type fakeTargeting struct {
	mu           sync.Mutex
	segments     []domain.TargetSegment
	segmentErr   error
	segmentGate  chan struct{}
	campaignGate chan struct{}
	imageGate    chan struct{}
	campaignCall int
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTargeting) Segment(ctx context.Context, req targeting.SegmentRequest) ([]domain.TargetSegment, error) {
	if err := wait(ctx, f.segmentGate); err != nil {
		return nil, err
	}
	if f.segmentErr != nil {
		return nil, f.segmentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TargetSegment, len(f.segments))
	copy(out, f.segments)
	return out, nil
}

func (f *fakeTargeting) setSegments(segments []domain.TargetSegment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = segments
}

// Campaign numbers its visual prompts so a regenerated campaign differs from
// the previous one.
func (f *fakeTargeting) Campaign(ctx context.Context, segment domain.TargetSegment, _ *domain.CandidateProfile) (*domain.AdCampaign, error) {
	if err := wait(ctx, f.campaignGate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.campaignCall++
	call := f.campaignCall
	f.mu.Unlock()
	return &domain.AdCampaign{
		CopyText:         "Campaña para " + segment.Name,
		VisualPrompt:     fmt.Sprintf("poster for %s #%d", segment.ID, call),
		ImageAspectRatio: "1:1",
		AudioScript:      "Hola " + segment.Name,
	}, nil
}

func (f *fakeTargeting) Image(ctx context.Context, campaign *domain.AdCampaign) (string, error) {
	if err := wait(ctx, f.imageGate); err != nil {
		return "", err
	}
	return "data:image/png;base64," + campaign.VisualPrompt, nil
}

func (f *fakeTargeting) Audio(_ context.Context, campaign *domain.AdCampaign) (string, error) {
	return "data:audio/wav;base64," + campaign.AudioScript, nil
}

func (f *fakeTargeting) Chronoposting(context.Context, targeting.ScheduleRequest) ([]domain.ContentScheduleItem, error) {
	return []domain.ContentScheduleItem{{Day: "Lunes", Time: "08:00", ContentIdea: "Recorrido"}}, nil
}

func (f *fakeTargeting) GenerateAllCampaigns(ctx context.Context, segments []domain.TargetSegment, profile *domain.CandidateProfile, _ int,
	admit func(string) (func(), bool), onResult func(targeting.CampaignResult)) int {
	n := 0
	for _, seg := range segments {
		if seg.AdCampaign != nil {
			continue
		}
		release, ok := admit(seg.ID)
		if !ok {
			continue
		}
		n++
		campaign, err := f.Campaign(ctx, seg, profile)
		release()
		onResult(targeting.CampaignResult{SegmentID: seg.ID, Campaign: campaign, Err: err})
	}
	return n
}

type fakeScouter struct{ result domain.ScoutResult }

func (f fakeScouter) Scout(_ context.Context, _ string, sink domain.LogSink) domain.ScoutResult {
	sink("buscando...")
	return f.result
}

type fakeVision struct{}

func (fakeVision) Extract(context.Context, []byte, string) domain.ScoutResult {
	return domain.ScoutResult{MediaDescription: "Extracción fallida: prueba."}
}

type fakeAnalyzer struct {
	result domain.AnalysisResult
	err    error
	last   defense.AnalysisInput
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in defense.AnalysisInput) (domain.AnalysisResult, error) {
	f.last = in
	return f.result, f.err
}

type fakeNetwork struct{}

func (fakeNetwork) AnalyzeUpload(_ context.Context, r io.Reader, _ *domain.CandidateProfile) (network.Report, error) {
	_, _ = io.ReadAll(r)
	return network.Report{
		Stats:    []domain.NetworkStat{{Platform: "X", Impressions: 10}},
		Analysis: domain.NetworkAgentAnalysis{Summary: "ok", BestPlatform: "X"},
	}, nil
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, req translate.Request) (string, error) {
	return "EN: " + req.Text, nil
}

type fakeProfiles struct {
	profiles []domain.CandidateProfile
}

func (f *fakeProfiles) List() []domain.CandidateProfile { return f.profiles }

func (f *fakeProfiles) Get(id string) (domain.CandidateProfile, bool) {
	for _, p := range f.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return domain.CandidateProfile{}, false
}

func (f *fakeProfiles) Create(p domain.CandidateProfile) (domain.CandidateProfile, error) {
	p.ID = "nuevo"
	f.profiles = append(f.profiles, p)
	return p, nil
}

func (f *fakeProfiles) Default() (domain.CandidateProfile, bool) {
	if len(f.profiles) == 0 {
		return domain.CandidateProfile{}, false
	}
	return f.profiles[0], true
}

var comuna13Segments = []domain.TargetSegment{
	{ID: "jovenes", Name: "Jóvenes del hip hop", AffinityScore: 80, EstimatedSize: 12000},
	{ID: "comerciantes", Name: "Comerciantes del graffiti tour", AffinityScore: 65, EstimatedSize: 3000},
	{ID: "madres", Name: "Madres comunitarias", AffinityScore: 70, EstimatedSize: 5000},
}

func newTestServices() (Services, *fakeTargeting, *fakeAnalyzer) {
	tg := &fakeTargeting{segments: comuna13Segments}
	an := &fakeAnalyzer{result: domain.AnalysisResult{Sentiment: domain.SentimentNegative, RiskLevel: domain.RiskLow, Responses: []domain.GeneratedResponse{}}}
	return Services{
		Scout:      fakeScouter{result: domain.ScoutResult{Author: "@a", Content: "texto de prueba", Platform: "X (Twitter)"}},
		Vision:     fakeVision{},
		Analysis:   an,
		Targeting:  tg,
		Network:    fakeNetwork{},
		Translator: fakeTranslator{},
		Profiles: &fakeProfiles{profiles: []domain.CandidateProfile{
			{ID: "p1", Name: "Laura", Role: "Alcaldía", StyleDescription: "Cercana"},
			{ID: "p2", Name: "Andrés", Role: "Concejo", StyleDescription: "Técnico"},
		}},
	}, tg, an
}

func newTestController(t *testing.T, services Services, cancelOnSwitch bool) *Controller {
	t.Helper()
	c := NewController(context.Background(), services, Config{
		CancelOnModeSwitch:  cancelOnSwitch,
		ImageConcurrency:    1,
		AudioConcurrency:    1,
		CampaignConcurrency: 2,
	}, clockwork.NewFakeClock(), rand.New(rand.NewPCG(1, 1)), nil, zap.NewNop())
	c.Open("operador")
	t.Cleanup(c.Close)
	return c
}
