package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDecodeAnalysisResultFixtures(t *testing.T) {
	cases := []struct {
		name          string
		payload       string
		wantRisk      RiskLevel
		wantSentiment Sentiment
		wantResponses int
	}{
		{
			name: "complete",
			payload: `{"sentiment":"Troll","intent":"Provocar","riskLevel":"Medium","responses":[
				{"tone":"Technical","content":"Los datos oficiales muestran lo contrario.","reasoning":"r1"},
				{"tone":"Unfiltered","content":"Otra vez con el mismo cuento.","reasoning":"r2"},
				{"tone":"Empathetic","content":"Entendemos la preocupación.","reasoning":"r3"}]}`,
			wantRisk:      RiskMedium,
			wantSentiment: SentimentTroll,
			wantResponses: 3,
		},
		{
			name:          "responses not a collection",
			payload:       `{"sentiment":"Negative","intent":"x","riskLevel":"Low","responses":"none"}`,
			wantRisk:      RiskLow,
			wantSentiment: SentimentNegative,
			wantResponses: 0,
		},
		{
			name:          "responses missing",
			payload:       `{"sentiment":"positive","intent":"x","riskLevel":"low"}`,
			wantRisk:      RiskLow,
			wantSentiment: SentimentPositive,
			wantResponses: 0,
		},
		{
			name:          "high without warning",
			payload:       `{"sentiment":"Negative","intent":"x","riskLevel":"High","responses":[]}`,
			wantRisk:      RiskHigh,
			wantSentiment: SentimentNegative,
			wantResponses: 0,
		},
		{
			name:          "unknown enums",
			payload:       `{"sentiment":"Angry","riskLevel":"Extreme","responses":[{"tone":"Sarcastic","content":"x"}]}`,
			wantRisk:      RiskMedium,
			wantSentiment: SentimentNeutral,
			wantResponses: 0,
		},
		{
			name: "duplicate tones keep first",
			payload: `{"sentiment":"Neutral","riskLevel":"Low","responses":[
				{"tone":"Technical","content":"uno"},{"tone":"technical","content":"dos"}]}`,
			wantRisk:      RiskLow,
			wantSentiment: SentimentNeutral,
			wantResponses: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeAnalysisResult([]byte(tc.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Responses == nil {
				t.Fatal("responses must never be nil")
			}
			if len(got.Responses) != tc.wantResponses {
				t.Fatalf("expected %d responses, got %d", tc.wantResponses, len(got.Responses))
			}
			if got.RiskLevel != tc.wantRisk {
				t.Fatalf("expected risk %s, got %s", tc.wantRisk, got.RiskLevel)
			}
			if got.Sentiment != tc.wantSentiment {
				t.Fatalf("expected sentiment %s, got %s", tc.wantSentiment, got.Sentiment)
			}
			if got.RiskLevel == RiskHigh && got.WarningMessage == "" {
				t.Fatal("high risk must carry a warning")
			}
		})
	}
}

func TestDecodeAnalysisResultRejectsNonObject(t *testing.T) {
	for _, payload := range []string{`not json`, `[]`, `null`, `"text"`} {
		if _, err := DecodeAnalysisResult([]byte(payload)); err == nil {
			t.Fatalf("expected error for %q", payload)
		}
	}
}

func TestNormalizeTruncatesReplies(t *testing.T) {
	result := AnalysisResult{
		RiskLevel: RiskLow,
		Responses: []GeneratedResponse{{Tone: ToneTechnical, Content: strings.Repeat("dato ", 100)}},
	}
	result.Normalize()
	if n := utf8.RuneCountInString(result.Responses[0].Content); n > MaxResponseRunes {
		t.Fatalf("reply has %d runes", n)
	}
}

func TestDefaultAnalysisResult(t *testing.T) {
	result := DefaultAnalysisResult("respuesta ilegible")
	if result.Responses == nil || len(result.Responses) != 0 {
		t.Fatal("default result must carry an empty response collection")
	}
	if result.Sentiment != SentimentNeutral || result.RiskLevel != RiskMedium {
		t.Fatalf("unexpected defaults %+v", result)
	}
}
