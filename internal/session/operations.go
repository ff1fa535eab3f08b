package session

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/service/defense"
	"github.com/kapu/campaign-ops-go/internal/service/network"
	"github.com/kapu/campaign-ops-go/internal/service/targeting"
	"github.com/kapu/campaign-ops-go/internal/service/translate"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

// Scout resolves a post URL. It never fails for acquisition reasons; an
// empty result asks the operator for manual input.
func (c *Controller) Scout(rawURL string) (domain.ScoutResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.ScoutResult{}, apperrors.NewValidationError("ingresa la URL de la publicación", "url", rawURL)
	}
	lease, err := c.begin(runSpec{
		mode:      domain.ModeDefenseResponse,
		kind:      KindScout,
		startLine: "Iniciando reconocimiento de la publicación...",
	})
	if err != nil {
		return domain.ScoutResult{}, err
	}

	result := c.services.Scout.Scout(lease.Context(), rawURL, c.sinkFor(lease))
	actions := []Action{ScoutCompleted{URL: rawURL, Result: result}}
	if result.IsEmpty() {
		actions = append(actions, c.logAction(domain.LogLevelWarn, "No se pudo extraer el contenido; complétalo manualmente."))
	} else {
		actions = append(actions, c.logAction(domain.LogLevelSuccess, "Publicación cargada en el formulario."))
	}
	return result, c.finish(lease, nil, actions...)
}

// ExtractScreenshot reads a screenshot into the scout form.
func (c *Controller) ExtractScreenshot(image []byte, mimeType string) (domain.ScoutResult, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeDefenseResponse,
		kind:      KindVision,
		startLine: "Leyendo la captura de pantalla...",
	})
	if err != nil {
		return domain.ScoutResult{}, err
	}

	result := c.services.Vision.Extract(lease.Context(), image, mimeType)
	level, line := domain.LogLevelSuccess, "Captura procesada."
	if result.IsEmpty() {
		level, line = domain.LogLevelWarn, result.MediaDescription
	}
	return result, c.finish(lease, nil, ScoutCompleted{Result: result}, c.logAction(level, line))
}

type AnalyzeRequest struct {
	Author            string
	Content           string
	VisualDescription string
	Image             []byte
	ImageMIMEType     string
	DeepResearch      bool
}

func (c *Controller) Analyze(req AnalyzeRequest) (domain.AnalysisResult, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeDefenseResponse,
		kind:      KindAnalysis,
		deep:      req.DeepResearch,
		startLine: "Analizando la publicación...",
	})
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	result, err := c.services.Analysis.Analyze(lease.Context(), defense.AnalysisInput{
		Author:            req.Author,
		Content:           req.Content,
		Image:             req.Image,
		ImageMIMEType:     req.ImageMIMEType,
		VisualDescription: req.VisualDescription,
		Profile:           c.activeProfile(),
		DeepResearch:      req.DeepResearch,
	})
	if err != nil {
		return domain.AnalysisResult{}, c.finish(lease, err)
	}

	actions := []Action{AnalysisCompleted{Result: result}}
	if result.RiskLevel == domain.RiskHigh {
		actions = append(actions, c.logAction(domain.LogLevelWarn, result.WarningMessage))
	}
	actions = append(actions, c.logAction(domain.LogLevelSuccess,
		fmt.Sprintf("Análisis completado: %d respuestas sugeridas.", len(result.Responses))))
	return result, c.finish(lease, nil, actions...)
}

// Segment replaces the segment list with a fresh segmentation of region.
func (c *Controller) Segment(region string, deepResearch bool) ([]domain.TargetSegment, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeTargeting,
		kind:      KindSegmentation,
		deep:      deepResearch,
		startLine: fmt.Sprintf("Segmentando votantes en %s...", strings.TrimSpace(region)),
	})
	if err != nil {
		return nil, err
	}

	segments, err := c.services.Targeting.Segment(lease.Context(), targeting.SegmentRequest{
		Region:       region,
		Profile:      c.activeProfile(),
		DeepResearch: deepResearch,
	})
	if err != nil {
		return nil, c.finish(lease, err)
	}
	return segments, c.settle(lease, nil, c.cancelSegmentWork,
		SegmentsReplaced{Region: strings.TrimSpace(region), Segments: segments},
		c.logAction(domain.LogLevelSuccess, fmt.Sprintf("%d segmentos identificados.", len(segments))),
	)
}

// cancelSegmentWork cancels campaign and asset runs built on the segments a
// new segmentation is about to replace.
func (c *Controller) cancelSegmentWork(State) error {
	n := c.registry.CancelKinds(KindCampaign, KindCampaignBatch, KindImage, KindAudio)
	if n == 0 {
		return nil
	}
	c.metrics.RunsCanceled("resegmented", n)
	c.logger.Info("Runs cancelled by new segmentation", zap.Int("runs", n))
	c.store.Dispatch(c.logAction(domain.LogLevelWarn,
		fmt.Sprintf("Se cancelaron %d generaciones de la segmentación anterior.", n)))
	return nil
}

// segment returns a copy of segment id and the segmentation generation it
// belongs to.
func (c *Controller) segment(id string) (domain.TargetSegment, uint64, error) {
	current := c.store.Snapshot().Targeting
	idx := domain.FindSegment(current.Segments, id)
	if idx < 0 {
		return domain.TargetSegment{}, 0, apperrors.NewValidationError("segmento no encontrado", "segmentId", id)
	}
	return current.Segments[idx].Clone(), current.Generation, nil
}

// GenerateCampaign drafts the campaign of one segment and merges it by id.
func (c *Controller) GenerateCampaign(segmentID string) (*domain.AdCampaign, error) {
	seg, generation, err := c.segment(segmentID)
	if err != nil {
		return nil, err
	}
	lease, err := c.begin(runSpec{
		mode:      domain.ModeTargeting,
		kind:      KindCampaign,
		id:        segmentID,
		startLine: fmt.Sprintf("Diseñando campaña para \"%s\"...", seg.Name),
	})
	if err != nil {
		return nil, err
	}

	campaign, err := c.services.Targeting.Campaign(lease.Context(), seg, c.activeProfile())
	if err != nil {
		return nil, c.finish(lease, err)
	}
	return campaign, c.settle(lease, nil,
		func(s State) error {
			if s.Targeting.Generation != generation {
				return superseded(lease)
			}
			return nil
		},
		CampaignMerged{SegmentID: segmentID, Generation: generation, Campaign: campaign},
		c.logAction(domain.LogLevelSuccess, fmt.Sprintf("Campaña lista para \"%s\".", seg.Name)),
	)
}

// GenerateAllCampaigns drafts campaigns for every segment still lacking one.
// Segments with a campaign already being generated are skipped. Each
// campaign is merged as soon as it is ready.
func (c *Controller) GenerateAllCampaigns() (int, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeTargeting,
		kind:      KindCampaignBatch,
		startLine: "Generando campañas para todos los segmentos...",
	})
	if err != nil {
		return 0, err
	}

	targetingState := c.store.Snapshot().Targeting
	segments, generation := targetingState.Segments, targetingState.Generation
	profile := c.activeProfile()
	ctx := lease.Context()

	var mu sync.Mutex
	generated, failed := 0, 0
	attempted := c.services.Targeting.GenerateAllCampaigns(ctx, segments, profile, c.cfg.CampaignConcurrency,
		func(segmentID string) (func(), bool) {
			child, err := c.registry.Acquire(ctx, string(domain.ModeTargeting), KindCampaign, segmentID)
			if err != nil {
				return nil, false
			}
			return child.Release, true
		},
		func(r targeting.CampaignResult) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				failed++
				return
			}
			if c.merge(lease, CampaignMerged{SegmentID: r.SegmentID, Generation: generation, Campaign: r.Campaign}) {
				generated++
			}
		})

	if failed > 0 {
		err = apperrors.NewGenerationError(
			fmt.Sprintf("no se pudieron generar %d de %d campañas; intenta de nuevo", failed, attempted),
			KindCampaignBatch, nil)
		return generated, c.finish(lease, err)
	}
	return generated, c.finish(lease, nil,
		c.logAction(domain.LogLevelSuccess, fmt.Sprintf("%d campañas generadas.", generated)))
}

// GenerateImage renders the image of a segment's campaign. Only one image
// is generated at a time across all segments.
func (c *Controller) GenerateImage(segmentID string) (string, error) {
	return c.generateAsset(segmentID, KindImage)
}

// GenerateAudio synthesises the radio spot of a segment's campaign. Only one
// audio clip is generated at a time across all segments.
func (c *Controller) GenerateAudio(segmentID string) (string, error) {
	return c.generateAsset(segmentID, KindAudio)
}

func (c *Controller) generateAsset(segmentID, kind string) (string, error) {
	seg, generation, err := c.segment(segmentID)
	if err != nil {
		return "", err
	}
	if seg.AdCampaign == nil {
		return "", apperrors.NewValidationError("genera primero la campaña de este segmento", "adCampaign", segmentID)
	}

	label, done := "imagen", "Imagen lista"
	if kind == KindAudio {
		label, done = "audio", "Audio listo"
	}
	lease, err := c.begin(runSpec{
		mode:      domain.ModeTargeting,
		kind:      kind,
		id:        segmentID,
		startLine: fmt.Sprintf("Generando %s para \"%s\"...", label, seg.Name),
	})
	if err != nil {
		return "", err
	}

	var (
		url     string
		merge   Action
		current func(*domain.AdCampaign) bool
	)
	campaign := seg.AdCampaign
	if kind == KindImage {
		url, err = c.services.Targeting.Image(lease.Context(), campaign)
		merge = ImageMerged{SegmentID: segmentID, Generation: generation, VisualPrompt: campaign.VisualPrompt, URL: url}
		current = func(a *domain.AdCampaign) bool { return a.VisualPrompt == campaign.VisualPrompt }
	} else {
		url, err = c.services.Targeting.Audio(lease.Context(), campaign)
		merge = AudioMerged{SegmentID: segmentID, Generation: generation, AudioScript: campaign.AudioScript, URL: url}
		current = func(a *domain.AdCampaign) bool { return a.AudioScript == campaign.AudioScript }
	}
	if err != nil {
		return "", c.finish(lease, err)
	}
	commit := func(s State) error {
		if !s.Targeting.hasCampaign(generation, segmentID, current) {
			return superseded(lease)
		}
		return nil
	}
	return url, c.settle(lease, nil, commit, merge,
		c.logAction(domain.LogLevelSuccess, fmt.Sprintf("%s para \"%s\".", done, seg.Name)))
}

func (c *Controller) Chronoposting(topic, region string) ([]domain.ContentScheduleItem, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeTargeting,
		kind:      KindChronoposting,
		startLine: "Planificando calendario de publicaciones...",
	})
	if err != nil {
		return nil, err
	}

	items, err := c.services.Targeting.Chronoposting(lease.Context(), targeting.ScheduleRequest{
		Topic:   topic,
		Region:  region,
		Profile: c.activeProfile(),
	})
	if err != nil {
		return nil, c.finish(lease, err)
	}
	return items, c.finish(lease, nil,
		ScheduleReplaced{Items: items},
		c.logAction(domain.LogLevelSuccess, fmt.Sprintf("Calendario con %d publicaciones.", len(items))),
	)
}

// AnalyzeNetwork parses an uploaded stats table and analyses it. data is
// read in full before the run starts.
func (c *Controller) AnalyzeNetwork(data []byte) (network.Report, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeNetworkAnalysis,
		kind:      KindNetwork,
		startLine: "Analizando métricas de redes...",
	})
	if err != nil {
		return network.Report{}, err
	}

	report, err := c.services.Network.AnalyzeUpload(lease.Context(), bytes.NewReader(data), c.activeProfile())
	if err != nil {
		return network.Report{}, c.finish(lease, err)
	}
	return report, c.finish(lease, nil,
		NetworkReported{Stats: report.Stats, Analysis: report.Analysis},
		c.logAction(domain.LogLevelSuccess, fmt.Sprintf("%d filas analizadas.", len(report.Stats))),
	)
}

func (c *Controller) Translate(text, targetLanguage string) (string, error) {
	lease, err := c.begin(runSpec{
		mode:      domain.ModeTranslator,
		kind:      KindTranslate,
		startLine: "Traduciendo con la voz del candidato...",
	})
	if err != nil {
		return "", err
	}

	out, err := c.services.Translator.Translate(lease.Context(), translate.Request{
		Text:           text,
		TargetLanguage: targetLanguage,
		Profile:        c.activeProfile(),
	})
	if err != nil {
		return "", c.finish(lease, err)
	}
	return out, c.finish(lease, nil,
		TranslationCompleted{Source: text, TargetLanguage: targetLanguage, Result: out},
		c.logAction(domain.LogLevelSuccess, "Traducción lista."),
	)
}

// Profiles lists the candidate profiles and the active one.
func (c *Controller) Profiles() ([]domain.CandidateProfile, string, error) {
	state := c.store.Snapshot()
	if !state.Authenticated {
		return nil, "", apperrors.NewAuthError("sesión no iniciada")
	}
	if c.services.Profiles == nil {
		return []domain.CandidateProfile{}, "", nil
	}
	return c.services.Profiles.List(), state.ActiveProfileID, nil
}

func (c *Controller) CreateProfile(p domain.CandidateProfile) (domain.CandidateProfile, error) {
	if err := c.requireMode(domain.ModeProfileManager); err != nil {
		return domain.CandidateProfile{}, err
	}
	created, err := c.services.Profiles.Create(p)
	if err != nil {
		return domain.CandidateProfile{}, err
	}
	c.store.Dispatch(c.logAction(domain.LogLevelSuccess, fmt.Sprintf("Perfil \"%s\" creado.", created.Name)))
	return created, nil
}

// SelectProfile makes id the persona of every later generation.
func (c *Controller) SelectProfile(id string) (State, error) {
	if err := c.requireMode(domain.ModeProfileManager); err != nil {
		return State{}, err
	}
	p, ok := c.services.Profiles.Get(id)
	if !ok {
		return State{}, apperrors.NewValidationError("perfil no encontrado", "id", id)
	}
	return c.store.Dispatch(
		ProfileSelected{ID: p.ID},
		c.logAction(domain.LogLevelInfo, fmt.Sprintf("Perfil activo: %s.", p.Name)),
	), nil
}

func (c *Controller) requireMode(mode domain.Mode) error {
	state := c.store.Snapshot()
	if !state.Authenticated {
		return apperrors.NewAuthError("sesión no iniciada")
	}
	if state.Mode != mode {
		return apperrors.NewValidationError(fmt.Sprintf("esta operación requiere el modo %s", mode), "mode", string(state.Mode))
	}
	if c.services.Profiles == nil {
		return apperrors.NewServiceError("profile store not configured", "session", "profiles", nil)
	}
	return nil
}
