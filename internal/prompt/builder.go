package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateName is the file name of an embedded prompt template.
type TemplateName string

const (
	TemplatePersona       TemplateName = "persona.tmpl"
	TemplateAnalysis      TemplateName = "analysis.tmpl"
	TemplateSegmentation  TemplateName = "segmentation.tmpl"
	TemplateCampaign      TemplateName = "campaign.tmpl"
	TemplateChronoposting TemplateName = "chronoposting.tmpl"
	TemplateNetwork       TemplateName = "network.tmpl"
	TemplateTranslate     TemplateName = "translate.tmpl"
)

// prompts holds every template, parsed once at start-up. A template that
// references a field its vars lack fails to render instead of printing
// "<no value>" into the prompt.
var prompts = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		Option("missingkey=error").
		ParseFS(templateFS, "templates/*.tmpl"),
)

func render(name TemplateName, vars any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, string(name), vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
