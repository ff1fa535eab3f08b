package translate

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/prompt"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

const msgTranslateFailed = "no se pudo traducir el mensaje; intenta de nuevo"

// Translator rewrites a message into another language in the candidate's voice.
type Translator struct {
	invoker ai.ModelInvoker
	logger  *zap.Logger
}

func NewTranslator(invoker ai.ModelInvoker, logger *zap.Logger) *Translator {
	return &Translator{invoker: invoker, logger: logger}
}

type Request struct {
	Text           string
	TargetLanguage string
	Profile        *domain.CandidateProfile
}

func (t *Translator) Translate(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", apperrors.NewValidationError("escribe el mensaje a traducir", "text", req.Text)
	}
	if utf8.RuneCountInString(text) > constants.AIInputLimits.MaxTranslateLength {
		return "", apperrors.NewValidationError("el mensaje es demasiado largo para traducir", "text", utf8.RuneCountInString(text))
	}
	language := strings.TrimSpace(req.TargetLanguage)
	if language == "" {
		language = "English"
	}

	system, err := prompt.BuildPersonaInstruction(req.Profile)
	if err != nil {
		return "", apperrors.NewServiceError("prompt build failed", "translate", "persona", err)
	}
	body, err := prompt.BuildTranslatePrompt(prompt.TranslateVars{Text: text, TargetLanguage: language})
	if err != nil {
		return "", apperrors.NewServiceError("prompt build failed", "translate", "translate", err)
	}

	out, _, err := t.invoker.Generate(ctx, &ai.Request{
		Operation:         "translate",
		SystemInstruction: system,
		Parts:             []ai.Part{ai.TextPart(body)},
		Preset:            ai.PresetBalanced,
	})
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeCanceled || apperrors.CodeOf(err) == apperrors.CodeGeneration {
			return "", err
		}
		return "", apperrors.NewGenerationError(msgTranslateFailed, "translate", err)
	}

	out = strings.Trim(strings.TrimSpace(out), `"`)
	t.logger.Info("Translation completed",
		zap.String("language", language),
		zap.Int("input_runes", utf8.RuneCountInString(text)),
		zap.Int("output_runes", utf8.RuneCountInString(out)),
	)
	return out, nil
}
