package prompt

import (
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
)

type AnalysisVars struct {
	Author            string
	Content           string
	VisualDescription string
	HasImage          bool
	DeepResearch      bool
	SensitiveTerms    []string
	HighRiskWarning   string
	MaxResponseLength int
}

func BuildAnalysisPrompt(vars AnalysisVars) (string, error) {
	if vars.HighRiskWarning == "" {
		vars.HighRiskWarning = domain.HighRiskWarning
	}
	if vars.MaxResponseLength <= 0 {
		vars.MaxResponseLength = constants.AIInputLimits.MaxResponseLength
	}
	return render(TemplateAnalysis, vars)
}
