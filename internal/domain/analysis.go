package domain

import (
	"encoding/json"
	"strings"

	"github.com/kapu/campaign-ops-go/internal/util"
)

type Sentiment string

const (
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentPositive Sentiment = "Positive"
	SentimentTroll    Sentiment = "Troll"
)

var AllSentiments = []Sentiment{SentimentNegative, SentimentNeutral, SentimentPositive, SentimentTroll}

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

var AllRiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

type Tone string

const (
	ToneTechnical  Tone = "Technical"
	ToneUnfiltered Tone = "Unfiltered"
	ToneEmpathetic Tone = "Empathetic"
)

// AllTones is the fixed order of the three suggested replies.
var AllTones = []Tone{ToneTechnical, ToneUnfiltered, ToneEmpathetic}

// MaxResponseRunes bounds every suggested reply.
const MaxResponseRunes = 280

// HighRiskWarning is shown whenever a post is classified High.
const HighRiskWarning = "ALERTA: tema sensible (investigación judicial, corrupción o violencia). No responder sin validación del equipo jurídico."

type GeneratedResponse struct {
	Tone      Tone   `json:"tone"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

type AnalysisResult struct {
	Sentiment      Sentiment           `json:"sentiment"`
	Intent         string              `json:"intent"`
	RiskLevel      RiskLevel           `json:"riskLevel"`
	WarningMessage string              `json:"warningMessage,omitempty"`
	Responses      []GeneratedResponse `json:"responses"`
}

func ParseSentiment(s string) (Sentiment, bool) {
	for _, v := range AllSentiments {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

func ParseRiskLevel(s string) (RiskLevel, bool) {
	for _, v := range AllRiskLevels {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

func ParseTone(s string) (Tone, bool) {
	for _, v := range AllTones {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

// DefaultAnalysisResult is returned when the model output cannot be parsed.
func DefaultAnalysisResult(note string) AnalysisResult {
	return AnalysisResult{
		Sentiment:      SentimentNeutral,
		Intent:         "No determinado",
		RiskLevel:      RiskMedium,
		WarningMessage: note,
		Responses:      []GeneratedResponse{},
	}
}

// DecodeAnalysisResult validates model output field by field. Only a payload
// that is not a JSON object is an error; bad enum values fall back to
// Neutral/Medium, and a missing or non-array "responses" becomes empty.
func DecodeAnalysisResult(payload []byte) (AnalysisResult, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return AnalysisResult{}, err
	}

	result := AnalysisResult{
		Sentiment:      SentimentNeutral,
		Intent:         stringField(fields, "intent"),
		RiskLevel:      RiskMedium,
		WarningMessage: stringField(fields, "warningMessage"),
		Responses:      []GeneratedResponse{},
	}
	if s, ok := ParseSentiment(stringField(fields, "sentiment")); ok {
		result.Sentiment = s
	}
	if r, ok := ParseRiskLevel(stringField(fields, "riskLevel")); ok {
		result.RiskLevel = r
	}

	if items, ok := rawArray(fields["responses"]); ok {
		result.Responses = decodeResponses(items)
	}

	result.Normalize()
	return result, nil
}

func decodeResponses(items []json.RawMessage) []GeneratedResponse {
	seen := make(map[Tone]bool, len(AllTones))
	out := make([]GeneratedResponse, 0, len(AllTones))
	for _, item := range items {
		fields, err := decodeObject(item)
		if err != nil {
			continue
		}
		tone, ok := ParseTone(stringField(fields, "tone"))
		if !ok || seen[tone] {
			continue
		}
		content := stringField(fields, "content")
		if content == "" {
			continue
		}
		seen[tone] = true
		out = append(out, GeneratedResponse{
			Tone:      tone,
			Content:   content,
			Reasoning: stringField(fields, "reasoning"),
		})
	}
	return out
}

// Normalize enforces the result invariants in place: High risk always
// carries a warning, replies are capped at MaxResponseRunes and Responses is
// never nil.
func (a *AnalysisResult) Normalize() {
	if a.Responses == nil {
		a.Responses = []GeneratedResponse{}
	}
	for i := range a.Responses {
		a.Responses[i].Content = util.TruncateAtWord(a.Responses[i].Content, MaxResponseRunes)
	}
	if a.RiskLevel == RiskHigh && strings.TrimSpace(a.WarningMessage) == "" {
		a.WarningMessage = HighRiskWarning
	}
}

// ForceHighRisk escalates the result and pins the fixed warning.
func (a *AnalysisResult) ForceHighRisk() {
	a.RiskLevel = RiskHigh
	a.WarningMessage = HighRiskWarning
}
