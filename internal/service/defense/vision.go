package defense

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/prompt"
	"github.com/kapu/campaign-ops-go/internal/service/ai"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

// VisionAdapter reads a screenshot of a post into a ScoutResult. Like the
// coordinator it never fails; problems are reported in MediaDescription.
type VisionAdapter struct {
	invoker ai.ModelInvoker
	logger  *zap.Logger
}

func NewVisionAdapter(invoker ai.ModelInvoker, logger *zap.Logger) *VisionAdapter {
	return &VisionAdapter{invoker: invoker, logger: logger}
}

func (v *VisionAdapter) Extract(ctx context.Context, image []byte, mimeType string) domain.ScoutResult {
	if len(image) == 0 {
		return extractionFailure("la imagen está vacía")
	}
	if len(image) > constants.AIInputLimits.MaxImageBytes {
		return extractionFailure(fmt.Sprintf("la imagen supera el límite de %d MB", constants.AIInputLimits.MaxImageBytes>>20))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}

	var raw json.RawMessage
	_, err := v.invoker.GenerateJSON(ctx, &ai.Request{
		Operation: "vision",
		Parts: []ai.Part{
			ai.BlobPart(image, mimeType),
			ai.TextPart(prompt.VisionPrompt),
		},
		Schema: ai.ScoutSchema(),
		Preset: ai.PresetPrecise,
	}, &raw)
	if err != nil {
		v.logger.Warn("Vision extraction failed",
			zap.Error(apperrors.NewExtractionError("vision request failed", mimeType, err)))
		return extractionFailure("el servicio no pudo leer la captura")
	}

	result, err := domain.DecodeScoutResult(raw)
	if err != nil {
		v.logger.Warn("Vision output rejected",
			zap.Error(apperrors.NewExtractionError("vision output rejected", mimeType, err)))
		return extractionFailure("la lectura de la captura no tiene el formato esperado")
	}
	if result.IsEmpty() && result.MediaDescription == "" {
		return extractionFailure("no se encontró texto legible en la captura")
	}
	return result
}

func extractionFailure(reason string) domain.ScoutResult {
	return domain.ScoutResult{
		MediaDescription: fmt.Sprintf("Extracción fallida: %s. Ingresa el autor y el contenido manualmente.", reason),
	}
}
