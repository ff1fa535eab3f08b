package prompt

import (
	"strings"
	"testing"

	"github.com/kapu/campaign-ops-go/internal/domain"
)

func TestAllTemplatesRender(t *testing.T) {
	segment := domain.TargetSegment{Name: "Jóvenes", AffinityScore: 72, EstimatedSize: 5000}

	renders := map[string]func() (string, error){
		"persona": func() (string, error) { return BuildPersonaInstruction(nil) },
		"analysis": func() (string, error) {
			return BuildAnalysisPrompt(AnalysisVars{Content: "hola", SensitiveTerms: []string{"corrupción", "fiscalía"}})
		},
		"segmentation":  func() (string, error) { return BuildSegmentationPrompt(SegmentationVars{Region: "Comuna 13"}) },
		"campaign":      func() (string, error) { return BuildCampaignPrompt(segment) },
		"chronoposting": func() (string, error) { return BuildChronopostingPrompt(ChronopostingVars{Topic: "movilidad", Region: "Medellín"}) },
		"network": func() (string, error) {
			return BuildNetworkPrompt([]domain.NetworkStat{{Date: "2024-05-01", Platform: "X", Impressions: 10, Estimated: []string{"engagement"}}})
		},
		"translate": func() (string, error) { return BuildTranslatePrompt(TranslateVars{Text: "Hola", TargetLanguage: "English"}) },
	}

	for name, render := range renders {
		out, err := render()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if strings.TrimSpace(out) == "" {
			t.Fatalf("%s rendered empty", name)
		}
	}
}

func TestAnalysisPromptCarriesRules(t *testing.T) {
	out, err := BuildAnalysisPrompt(AnalysisVars{
		Author:         "@vecino",
		Content:        "¿Y la plata del puente?",
		DeepResearch:   true,
		SensitiveTerms: []string{"corrupción", "lavado de activos"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"corrupción, lavado de activos", domain.HighRiskWarning, "INVESTIGACIÓN PROFUNDA", "280"} {
		if !strings.Contains(out, want) {
			t.Fatalf("analysis prompt missing %q", want)
		}
	}
}

func TestPersonaIncludesKnowledgeBase(t *testing.T) {
	out, err := BuildPersonaInstruction(&domain.CandidateProfile{
		Name: "Laura Gómez", Role: "candidata a la Alcaldía", StyleDescription: "Técnica", KnowledgeBase: "Plan de movilidad 2030",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Laura Gómez") || !strings.Contains(out, "Plan de movilidad 2030") {
		t.Fatalf("persona instruction incomplete: %s", out)
	}
}

func TestScoutPromptMentionsSentinel(t *testing.T) {
	out := BuildScoutPrompt(ScoutPromptVars{URL: "https://x.com/a/status/1", Platform: "X (Twitter)", Hint: "alcalde miente", Sentinel: "CONTENIDO_NO_ENCONTRADO"})
	if !strings.Contains(out, "CONTENIDO_NO_ENCONTRADO") || !strings.Contains(out, "alcalde miente") {
		t.Fatalf("unexpected scout prompt: %s", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := render("missing.tmpl", nil); err == nil {
		t.Fatal("expected an error for an unknown template")
	}
}

func TestRenderMissingFieldFails(t *testing.T) {
	_, err := render(TemplateTranslate, map[string]string{"Text": "Hola"})
	if err == nil {
		t.Fatal("expected an error when a template field is missing")
	}
}
