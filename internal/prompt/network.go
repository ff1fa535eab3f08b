package prompt

import "github.com/kapu/campaign-ops-go/internal/domain"

type NetworkVars struct {
	Stats []domain.NetworkStat
}

func BuildNetworkPrompt(stats []domain.NetworkStat) (string, error) {
	return render(TemplateNetwork, NetworkVars{Stats: stats})
}

type TranslateVars struct {
	Text           string
	TargetLanguage string
}

func BuildTranslatePrompt(vars TranslateVars) (string, error) {
	return render(TemplateTranslate, vars)
}
