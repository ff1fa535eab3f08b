package targeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/prompt"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

const (
	msgNoSegments       = "no se generaron segmentos; ajusta los parámetros"
	msgCampaignFailed   = "no se pudo generar la campaña para este segmento; intenta de nuevo"
	msgScheduleFailed   = "no se pudo generar el calendario de publicaciones; intenta de nuevo"
	msgImageFailed      = "no se pudo generar la imagen de la campaña"
	msgAudioFailed      = "no se pudo generar el audio de la campaña"
	msgCampaignRequired = "genera primero la campaña de este segmento"
)

// Pipeline turns a region into voter segments and each segment into a
// campaign with its assets. It holds no session state; callers merge the
// returned values into their own segment list by id.
type Pipeline struct {
	invoker ai.ModelInvoker
	media   ai.MediaGenerator
	logger  *zap.Logger
}

func NewPipeline(invoker ai.ModelInvoker, media ai.MediaGenerator, logger *zap.Logger) *Pipeline {
	return &Pipeline{invoker: invoker, media: media, logger: logger}
}

type SegmentRequest struct {
	Region       string
	Profile      *domain.CandidateProfile
	DeepResearch bool
}

// Segment returns the segments for a region in priority order. Every
// returned segment has a unique non-empty id. An empty result is a
// ValidationError so the operator sees a banner instead of an empty table.
func (p *Pipeline) Segment(ctx context.Context, req SegmentRequest) ([]domain.TargetSegment, error) {
	region := strings.TrimSpace(req.Region)
	if region == "" {
		return nil, apperrors.NewValidationError("indica la región o comunidad objetivo", "region", req.Region)
	}

	system, err := prompt.BuildPersonaInstruction(req.Profile)
	if err != nil {
		return nil, apperrors.NewServiceError("prompt build failed", "targeting", "persona", err)
	}
	text, err := prompt.BuildSegmentationPrompt(prompt.SegmentationVars{
		Region:       region,
		DeepResearch: req.DeepResearch,
	})
	if err != nil {
		return nil, apperrors.NewServiceError("prompt build failed", "targeting", "segmentation", err)
	}

	var raw json.RawMessage
	_, err = p.invoker.GenerateJSON(ctx, &ai.Request{
		Operation:         "segmentation",
		SystemInstruction: system,
		Parts:             []ai.Part{ai.TextPart(text)},
		Search:            req.DeepResearch,
		Schema:            ai.SegmentsSchema(),
		Preset:            ai.PresetBalanced,
	}, &raw)
	if err != nil && !errors.Is(err, ai.ErrMalformedOutput) {
		return nil, err
	}

	var segments []domain.TargetSegment
	if err == nil {
		segments, err = domain.DecodeSegments(raw)
	}
	if err != nil {
		p.logger.Warn("Segmentation output unusable", zap.String("region", region), zap.Error(err))
		return nil, apperrors.NewValidationError(msgNoSegments, "segments", region)
	}
	if len(segments) == 0 {
		p.logger.Info("Segmentation returned no segments", zap.String("region", region))
		return nil, apperrors.NewValidationError(msgNoSegments, "segments", region)
	}

	assignSegmentIDs(segments)
	p.logger.Info("Segmentation completed",
		zap.String("region", region),
		zap.Int("segments", len(segments)),
		zap.Bool("deep_research", req.DeepResearch),
	)
	return segments, nil
}

// assignSegmentIDs replaces missing or repeated ids with fresh uuids.
func assignSegmentIDs(segments []domain.TargetSegment) {
	seen := make(map[string]bool, len(segments))
	for i := range segments {
		id := strings.TrimSpace(segments[i].ID)
		if id == "" || seen[id] {
			id = uuid.NewString()
		}
		seen[id] = true
		segments[i].ID = id
	}
}

// Campaign drafts the ad campaign for one segment.
func (p *Pipeline) Campaign(ctx context.Context, segment domain.TargetSegment, profile *domain.CandidateProfile) (*domain.AdCampaign, error) {
	system, err := prompt.BuildPersonaInstruction(profile)
	if err != nil {
		return nil, apperrors.NewServiceError("prompt build failed", "targeting", "persona", err)
	}
	text, err := prompt.BuildCampaignPrompt(segment)
	if err != nil {
		return nil, apperrors.NewServiceError("prompt build failed", "targeting", "campaign", err)
	}

	var raw json.RawMessage
	_, err = p.invoker.GenerateJSON(ctx, &ai.Request{
		Operation:         "campaign",
		SystemInstruction: system,
		Parts:             []ai.Part{ai.TextPart(text)},
		Schema:            ai.CampaignSchema(),
		Preset:            ai.PresetCreative,
	}, &raw)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedOutput) {
			return nil, apperrors.NewGenerationError(msgCampaignFailed, "campaign", err)
		}
		return nil, err
	}

	campaign, err := domain.DecodeAdCampaign(raw)
	if err != nil {
		p.logger.Warn("Campaign output rejected", zap.String("segment_id", segment.ID), zap.Error(err))
		return nil, apperrors.NewGenerationError(msgCampaignFailed, "campaign", err)
	}

	p.logger.Info("Campaign generated",
		zap.String("segment_id", segment.ID),
		zap.String("aspect_ratio", campaign.ImageAspectRatio),
	)
	return campaign, nil
}

// Image renders the campaign's visual prompt and returns it as a data URL.
func (p *Pipeline) Image(ctx context.Context, campaign *domain.AdCampaign) (string, error) {
	if campaign == nil || strings.TrimSpace(campaign.VisualPrompt) == "" {
		return "", apperrors.NewValidationError(msgCampaignRequired, "adCampaign", nil)
	}
	asset, err := p.media.GenerateImage(ctx, campaign.VisualPrompt, domain.NormalizeAspectRatio(campaign.ImageAspectRatio))
	if err != nil {
		return "", wrapAssetError(err, msgImageFailed, "image")
	}
	return asset.DataURL(), nil
}

// Audio synthesises the campaign's radio script and returns it as a data URL.
func (p *Pipeline) Audio(ctx context.Context, campaign *domain.AdCampaign) (string, error) {
	if campaign == nil || strings.TrimSpace(campaign.AudioScript) == "" {
		return "", apperrors.NewValidationError(msgCampaignRequired, "adCampaign", nil)
	}
	asset, err := p.media.GenerateSpeech(ctx, campaign.AudioScript)
	if err != nil {
		return "", wrapAssetError(err, msgAudioFailed, "audio")
	}
	return asset.DataURL(), nil
}

func wrapAssetError(err error, message, operation string) error {
	var gen *apperrors.GenerationError
	if errors.As(err, &gen) || apperrors.CodeOf(err) == apperrors.CodeCanceled {
		return err
	}
	return apperrors.NewGenerationError(message, operation, err)
}

type ScheduleRequest struct {
	Topic   string
	Region  string
	Profile *domain.CandidateProfile
}

// Chronoposting plans a week of posts. It is all or nothing: any failure
// returns a GenerationError and no items.
func (p *Pipeline) Chronoposting(ctx context.Context, req ScheduleRequest) ([]domain.ContentScheduleItem, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, apperrors.NewValidationError("indica el tema del calendario", "topic", req.Topic)
	}
	region := strings.TrimSpace(req.Region)
	if region == "" {
		return nil, apperrors.NewValidationError("indica la región o comunidad objetivo", "region", req.Region)
	}

	system, err := prompt.BuildPersonaInstruction(req.Profile)
	if err != nil {
		return nil, apperrors.NewServiceError("prompt build failed", "targeting", "persona", err)
	}
	text, err := prompt.BuildChronopostingPrompt(prompt.ChronopostingVars{Topic: topic, Region: region})
	if err != nil {
		return nil, apperrors.NewServiceError("prompt build failed", "targeting", "chronoposting", err)
	}

	var raw json.RawMessage
	if _, err := p.invoker.GenerateJSON(ctx, &ai.Request{
		Operation:         "chronoposting",
		SystemInstruction: system,
		Parts:             []ai.Part{ai.TextPart(text)},
		Schema:            ai.ScheduleSchema(),
		Preset:            ai.PresetCreative,
	}, &raw); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeCanceled {
			return nil, err
		}
		return nil, apperrors.NewGenerationError(msgScheduleFailed, "chronoposting", err)
	}

	items, err := domain.DecodeSchedule(raw)
	if err != nil || len(items) == 0 {
		if err == nil {
			err = fmt.Errorf("empty schedule")
		}
		p.logger.Warn("Chronoposting output rejected", zap.String("topic", topic), zap.Error(err))
		return nil, apperrors.NewGenerationError(msgScheduleFailed, "chronoposting", err)
	}

	p.logger.Info("Chronoposting generated", zap.String("topic", topic), zap.Int("items", len(items)))
	return items, nil
}
