package prompt

import "github.com/kapu/campaign-ops-go/internal/domain"

type SegmentationVars struct {
	Region       string
	DeepResearch bool
	MinSegments  int
	MaxSegments  int
}

func BuildSegmentationPrompt(vars SegmentationVars) (string, error) {
	if vars.MinSegments <= 0 {
		vars.MinSegments = 3
	}
	if vars.MaxSegments < vars.MinSegments {
		vars.MaxSegments = vars.MinSegments + 3
	}
	return render(TemplateSegmentation, vars)
}

type CampaignVars struct {
	Segment      domain.TargetSegment
	AspectRatios []string
}

func BuildCampaignPrompt(segment domain.TargetSegment) (string, error) {
	return render(TemplateCampaign, CampaignVars{
		Segment:      segment,
		AspectRatios: domain.SupportedAspectRatios,
	})
}

type ChronopostingVars struct {
	Topic    string
	Region   string
	MinItems int
	MaxItems int
}

func BuildChronopostingPrompt(vars ChronopostingVars) (string, error) {
	if vars.MinItems <= 0 {
		vars.MinItems = 5
	}
	if vars.MaxItems < vars.MinItems {
		vars.MaxItems = vars.MinItems + 5
	}
	return render(TemplateChronoposting, vars)
}
