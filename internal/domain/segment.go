package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/kapu/campaign-ops-go/internal/util"
)

type Demographics struct {
	AgeRange string `json:"ageRange"`
	Gender   string `json:"gender"`
	Location string `json:"location"`
}

// TargetSegment is one audience cluster. AdCampaign stays nil until the
// operator generates one and is never cleared afterwards.
type TargetSegment struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Demographics        Demographics `json:"demographics"`
	AffinityScore       float64      `json:"affinityScore"`
	EstimatedSize       int64        `json:"estimatedSize"`
	RecommendedStrategy string       `json:"recommendedStrategy"`
	AdCampaign          *AdCampaign  `json:"adCampaign,omitempty"`
}

type Chronoposting struct {
	BestDay  string `json:"bestDay"`
	BestTime string `json:"bestTime"`
}

type AdCampaign struct {
	CopyText          string        `json:"copyText"`
	VisualPrompt      string        `json:"visualPrompt"`
	ImageAspectRatio  string        `json:"imageAspectRatio"`
	Chronoposting     Chronoposting `json:"chronoposting"`
	CallToAction      string        `json:"callToAction"`
	AudioScript       string        `json:"audioScript"`
	GeneratedImageURL string        `json:"generatedImageUrl,omitempty"`
	GeneratedAudioURL string        `json:"generatedAudioUrl,omitempty"`
}

// SupportedAspectRatios are the ratios the image model accepts.
var SupportedAspectRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}

const DefaultAspectRatio = "1:1"

// NormalizeAspectRatio maps free-form input ("16x9", " 9:16 ") onto a
// supported ratio, falling back to DefaultAspectRatio.
func NormalizeAspectRatio(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "x", ":")
	s = strings.ReplaceAll(s, " ", "")
	for _, r := range SupportedAspectRatios {
		if s == r {
			return r
		}
	}
	return DefaultAspectRatio
}

// Clone returns a deep copy so callers can edit without touching shared state.
func (c *AdCampaign) Clone() *AdCampaign {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

// Clone returns a copy of the segment whose campaign is not shared.
func (s TargetSegment) Clone() TargetSegment {
	s.AdCampaign = s.AdCampaign.Clone()
	return s
}

// FindSegment returns the index of id in segments, or -1.
func FindSegment(segments []TargetSegment, id string) int {
	for i := range segments {
		if segments[i].ID == id {
			return i
		}
	}
	return -1
}

// DecodeSegments parses the segmentation output. Entries without a name are
// dropped; ids are kept as given (possibly empty or duplicated, callers
// assign their own). Scores are clamped to [0,100] and sizes to >= 0.
func DecodeSegments(payload []byte) ([]TargetSegment, error) {
	items, err := decodeList(payload, "segments", "targetSegments")
	if err != nil {
		return nil, err
	}
	out := make([]TargetSegment, 0, len(items))
	for _, item := range items {
		fields, err := decodeObject(item)
		if err != nil {
			continue
		}
		name := stringField(fields, "name")
		if name == "" {
			continue
		}
		seg := TargetSegment{
			ID:                  stringField(fields, "id"),
			Name:                name,
			RecommendedStrategy: stringField(fields, "recommendedStrategy"),
		}
		if demo, err := decodeObject(fields["demographics"]); err == nil {
			seg.Demographics = Demographics{
				AgeRange: stringField(demo, "ageRange"),
				Gender:   stringField(demo, "gender"),
				Location: stringField(demo, "location"),
			}
		}
		if score, ok := numberField(fields, "affinityScore"); ok {
			seg.AffinityScore = util.ClampFloat(score, 0, 100)
		}
		if size, ok := numberField(fields, "estimatedSize"); ok && size > 0 {
			seg.EstimatedSize = int64(math.Round(size))
		}
		out = append(out, seg)
	}
	return out, nil
}

// DecodeAdCampaign parses a campaign. Copy text, visual prompt and audio
// script are required; the aspect ratio is normalised.
func DecodeAdCampaign(payload []byte) (*AdCampaign, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}
	campaign := &AdCampaign{
		CopyText:         stringField(fields, "copyText"),
		VisualPrompt:     stringField(fields, "visualPrompt"),
		ImageAspectRatio: NormalizeAspectRatio(stringField(fields, "imageAspectRatio")),
		CallToAction:     stringField(fields, "callToAction"),
		AudioScript:      stringField(fields, "audioScript"),
	}
	if chrono, err := decodeObject(fields["chronoposting"]); err == nil {
		campaign.Chronoposting = Chronoposting{
			BestDay:  stringField(chrono, "bestDay"),
			BestTime: stringField(chrono, "bestTime"),
		}
	}

	var missing []string
	if campaign.CopyText == "" {
		missing = append(missing, "copyText")
	}
	if campaign.VisualPrompt == "" {
		missing = append(missing, "visualPrompt")
	}
	if campaign.AudioScript == "" {
		missing = append(missing, "audioScript")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("campaign missing fields: %s", strings.Join(missing, ", "))
	}
	return campaign, nil
}
