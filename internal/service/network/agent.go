package network

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/prompt"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

const msgAnalysisFailed = "no se pudo analizar el desempeño en redes; intenta de nuevo"

// Report pairs the parsed rows with the agent's reading of them.
type Report struct {
	Stats    []domain.NetworkStat        `json:"stats"`
	Analysis domain.NetworkAgentAnalysis `json:"analysis"`
}

// Agent reads uploaded stats and asks the model for a performance summary.
type Agent struct {
	parser  *Parser
	invoker ai.ModelInvoker
	logger  *zap.Logger
}

func NewAgent(parser *Parser, invoker ai.ModelInvoker, logger *zap.Logger) *Agent {
	return &Agent{parser: parser, invoker: invoker, logger: logger}
}

// AnalyzeUpload parses r and analyses the result.
func (a *Agent) AnalyzeUpload(ctx context.Context, r io.Reader, profile *domain.CandidateProfile) (Report, error) {
	stats, err := a.parser.Parse(r)
	if err != nil {
		return Report{}, err
	}
	analysis, err := a.Analyze(ctx, stats, profile)
	if err != nil {
		return Report{}, err
	}
	return Report{Stats: stats, Analysis: analysis}, nil
}

func (a *Agent) Analyze(ctx context.Context, stats []domain.NetworkStat, profile *domain.CandidateProfile) (domain.NetworkAgentAnalysis, error) {
	if len(stats) == 0 {
		return domain.NetworkAgentAnalysis{}, apperrors.NewValidationError("no hay métricas para analizar", "stats", nil)
	}

	system, err := prompt.BuildPersonaInstruction(profile)
	if err != nil {
		return domain.NetworkAgentAnalysis{}, apperrors.NewServiceError("prompt build failed", "network", "persona", err)
	}
	text, err := prompt.BuildNetworkPrompt(stats)
	if err != nil {
		return domain.NetworkAgentAnalysis{}, apperrors.NewServiceError("prompt build failed", "network", "analysis", err)
	}

	var raw json.RawMessage
	if _, err := a.invoker.GenerateJSON(ctx, &ai.Request{
		Operation:         "network",
		SystemInstruction: system,
		Parts:             []ai.Part{ai.TextPart(text)},
		Schema:            ai.NetworkAnalysisSchema(),
		Preset:            ai.PresetPrecise,
	}, &raw); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeCanceled {
			return domain.NetworkAgentAnalysis{}, err
		}
		return domain.NetworkAgentAnalysis{}, apperrors.NewGenerationError(msgAnalysisFailed, "network", err)
	}

	analysis, err := domain.DecodeNetworkAnalysis(raw)
	if err != nil {
		a.logger.Warn("Network analysis output rejected", zap.Error(err))
		return domain.NetworkAgentAnalysis{}, apperrors.NewGenerationError(msgAnalysisFailed, "network", err)
	}

	estimated := 0
	for _, s := range stats {
		if len(s.Estimated) > 0 {
			estimated++
		}
	}
	a.logger.Info("Network analysis completed",
		zap.Int("rows", len(stats)),
		zap.Int("estimated_rows", estimated),
		zap.String("best_platform", analysis.BestPlatform),
	)
	return analysis, nil
}
