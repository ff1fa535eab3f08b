package ai

import (
	"github.com/kapu/campaign-ops-go/internal/domain"
	"google.golang.org/genai"
)

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func enumSchema[T ~string](values []T) *genai.Schema {
	enum := make([]string, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return &genai.Schema{Type: genai.TypeString, Enum: enum}
}

// ScoutSchema describes a post read from a screenshot.
func ScoutSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"author":           stringSchema("Username or display name of the author"),
			"content":          stringSchema("Full text of the post"),
			"mediaDescription": stringSchema("Short description of attached media"),
			"platform":         stringSchema("Social network name"),
		},
		Required: []string{"author", "content", "platform"},
	}
}

// AnalysisSchema describes the sentiment/risk analysis with exactly three
// tone-labelled replies.
func AnalysisSchema() *genai.Schema {
	three := int64(len(domain.AllTones))
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"sentiment":      enumSchema(domain.AllSentiments),
			"intent":         stringSchema("Probable intent of the author"),
			"riskLevel":      enumSchema(domain.AllRiskLevels),
			"warningMessage": stringSchema("Mandatory when riskLevel is High"),
			"responses": {
				Type:     genai.TypeArray,
				MinItems: genai.Ptr(three),
				MaxItems: genai.Ptr(three),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"tone":      enumSchema(domain.AllTones),
						"content":   stringSchema("Reply text, at most 280 characters"),
						"reasoning": stringSchema("Why this reply works"),
					},
					Required: []string{"tone", "content", "reasoning"},
				},
			},
		},
		Required: []string{"sentiment", "intent", "riskLevel", "responses"},
	}
}

// SegmentsSchema describes the segmentation output.
func SegmentsSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeArray,
		MinItems: genai.Ptr[int64](1),
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id":   stringSchema("Short lowercase identifier"),
				"name": stringSchema("Segment name"),
				"demographics": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"ageRange": stringSchema(""),
						"gender":   stringSchema(""),
						"location": stringSchema(""),
					},
					Required: []string{"ageRange", "gender", "location"},
				},
				"affinityScore":       {Type: genai.TypeNumber, Minimum: genai.Ptr(0.0), Maximum: genai.Ptr(100.0)},
				"estimatedSize":       {Type: genai.TypeInteger},
				"recommendedStrategy": stringSchema(""),
			},
			Required: []string{"id", "name", "demographics", "affinityScore", "estimatedSize", "recommendedStrategy"},
		},
	}
}

// CampaignSchema describes one ad campaign.
func CampaignSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"copyText":         stringSchema("Ad copy, at most 280 characters"),
			"visualPrompt":     stringSchema("Image generation prompt in English"),
			"imageAspectRatio": {Type: genai.TypeString, Enum: domain.SupportedAspectRatios},
			"chronoposting": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"bestDay":  stringSchema(""),
					"bestTime": stringSchema("HH:MM"),
				},
				Required: []string{"bestDay", "bestTime"},
			},
			"callToAction": stringSchema(""),
			"audioScript":  stringSchema("Radio spot script, 30 seconds max"),
		},
		Required: []string{"copyText", "visualPrompt", "imageAspectRatio", "chronoposting", "callToAction", "audioScript"},
	}
}

// ScheduleSchema describes a chronoposting plan.
func ScheduleSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"day":         stringSchema(""),
				"time":        stringSchema("HH:MM"),
				"platform":    stringSchema(""),
				"format":      stringSchema(""),
				"contentIdea": stringSchema(""),
				"objective":   stringSchema(""),
			},
			Required: []string{"day", "time", "platform", "format", "contentIdea", "objective"},
		},
	}
}

// NetworkAnalysisSchema describes the network agent summary.
func NetworkAnalysisSchema() *genai.Schema {
	list := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":         stringSchema("Executive summary"),
			"trends":          list,
			"recommendations": list,
			"best_platform":   stringSchema(""),
		},
		Required: []string{"summary", "trends", "recommendations", "best_platform"},
	}
}
