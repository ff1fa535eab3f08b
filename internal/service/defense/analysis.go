package defense

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/prompt"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	"github.com/kapu/campaign-ops-go/internal/util"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

// SensitiveTerms force a High risk classification wherever they appear.
var SensitiveTerms = []string{
	"investigación judicial",
	"fiscalía",
	"imputación",
	"corrupción",
	"soborno",
	"peculado",
	"violencia",
	"amenaza",
	"lavado de activos",
	"paramilitar",
	"paraco",
}

const malformedAnalysisNote = "El análisis automático no devolvió un resultado utilizable. Revisa la publicación manualmente."

type AnalysisInput struct {
	Author            string
	Content           string
	Image             []byte
	ImageMIMEType     string
	VisualDescription string
	Profile           *domain.CandidateProfile
	DeepResearch      bool
}

// AnalysisEngine classifies a post and drafts three replies.
type AnalysisEngine struct {
	invoker ai.ModelInvoker
	logger  *zap.Logger
}

func NewAnalysisEngine(invoker ai.ModelInvoker, logger *zap.Logger) *AnalysisEngine {
	return &AnalysisEngine{invoker: invoker, logger: logger}
}

// Analyze returns the analysis. Transport failures are returned as errors;
// output that arrives but cannot be parsed yields a default Neutral/Medium
// result with no replies.
func (e *AnalysisEngine) Analyze(ctx context.Context, in AnalysisInput) (domain.AnalysisResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Image) == 0 {
		return domain.AnalysisResult{}, apperrors.NewValidationError("ingresa el contenido de la publicación o adjunta una imagen", "content", "")
	}
	content = util.TruncateString(content, constants.AIInputLimits.MaxContentLength)

	system, err := prompt.BuildPersonaInstruction(in.Profile)
	if err != nil {
		return domain.AnalysisResult{}, apperrors.NewServiceError("prompt build failed", "analysis", "persona", err)
	}
	text, err := prompt.BuildAnalysisPrompt(prompt.AnalysisVars{
		Author:            strings.TrimSpace(in.Author),
		Content:           content,
		VisualDescription: strings.TrimSpace(in.VisualDescription),
		HasImage:          len(in.Image) > 0,
		DeepResearch:      in.DeepResearch,
		SensitiveTerms:    SensitiveTerms,
	})
	if err != nil {
		return domain.AnalysisResult{}, apperrors.NewServiceError("prompt build failed", "analysis", "analysis", err)
	}

	parts := []ai.Part{ai.TextPart(text)}
	if len(in.Image) > 0 {
		parts = append(parts, ai.BlobPart(in.Image, in.ImageMIMEType))
	}

	var raw json.RawMessage
	_, err = e.invoker.GenerateJSON(ctx, &ai.Request{
		Operation:         "analysis",
		SystemInstruction: system,
		Parts:             parts,
		Search:            in.DeepResearch,
		Schema:            ai.AnalysisSchema(),
		Preset:            ai.PresetBalanced,
	}, &raw)

	var result domain.AnalysisResult
	switch {
	case err == nil:
		decoded, decodeErr := domain.DecodeAnalysisResult(raw)
		if decodeErr != nil {
			e.logger.Warn("Analysis output rejected", zap.Error(decodeErr))
			decoded = domain.DefaultAnalysisResult(malformedAnalysisNote)
		}
		result = decoded
	case errors.Is(err, ai.ErrMalformedOutput):
		e.logger.Warn("Analysis output malformed, using default result", zap.Error(err))
		result = domain.DefaultAnalysisResult(malformedAnalysisNote)
	default:
		return domain.AnalysisResult{}, err
	}

	if term, ok := MatchSensitiveTerm(in.Author, content, in.VisualDescription); ok {
		e.logger.Info("Sensitive term forces high risk", zap.String("term", term))
		result.ForceHighRisk()
	}
	result.Normalize()

	e.logger.Info("Analysis completed",
		zap.String("sentiment", string(result.Sentiment)),
		zap.String("risk", string(result.RiskLevel)),
		zap.Int("responses", len(result.Responses)),
	)
	return result, nil
}

// MatchSensitiveTerm returns the first sensitive term found in any of texts,
// ignoring case and accents.
func MatchSensitiveTerm(texts ...string) (string, bool) {
	haystack := util.FoldAccents(strings.Join(texts, " "))
	for _, term := range SensitiveTerms {
		if strings.Contains(haystack, util.FoldAccents(term)) {
			return term, true
		}
	}
	return "", false
}
