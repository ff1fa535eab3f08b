package ai

import (
	"context"
	"encoding/base64"
	"errors"

	"google.golang.org/genai"
)

// ModelPreset represents the model usage preset
type ModelPreset string

const (
	PresetCreative ModelPreset = "creative" // ad copy, replies
	PresetPrecise  ModelPreset = "precise"  // extraction, classification
	PresetBalanced ModelPreset = "balanced"
)

// ModelConfig holds model configuration
type ModelConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
}

// GetPresetConfig returns the configuration for a preset
func GetPresetConfig(preset ModelPreset) ModelConfig {
	switch preset {
	case PresetCreative:
		return ModelConfig{
			Temperature:     0.8,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 4096,
		}
	case PresetPrecise:
		return ModelConfig{
			Temperature:     0.1,
			TopP:            0.9,
			TopK:            20,
			MaxOutputTokens: 2048,
		}
	case PresetBalanced:
		return ModelConfig{
			Temperature:     0.4,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 4096,
		}
	default:
		return GetPresetConfig(PresetBalanced)
	}
}

// GetOpenAIPresetConfig returns OpenAI configuration for a preset
func GetOpenAIPresetConfig(preset ModelPreset) OpenAIConfig {
	cfg := GetPresetConfig(preset)
	return OpenAIConfig{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
		TopP:        cfg.TopP,
	}
}

// Part is one ordered piece of request content: text or inline binary data.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func BlobPart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

func (p Part) IsBinary() bool {
	return len(p.Data) > 0
}

// Request is the provider-neutral generation contract.
type Request struct {
	// Operation labels the call in logs and metrics.
	Operation         string
	SystemInstruction string
	Parts             []Part
	// Search enables web-search grounding.
	Search bool
	// Schema requests structured output. Ignored when Search is set; the
	// prompt then has to ask for JSON itself.
	Schema          *genai.Schema
	Preset          ModelPreset
	MaxOutputTokens int
}

func (r *Request) HasBinary() bool {
	for _, p := range r.Parts {
		if p.IsBinary() {
			return true
		}
	}
	return false
}

// GenerateMetadata contains metadata about the generation
type GenerateMetadata struct {
	Provider     string
	Model        string
	UsedFallback bool
	Grounded     bool
}

// MediaAsset is a generated image or audio clip.
type MediaAsset struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the asset so it can be shown without a storage layer.
func (a *MediaAsset) DataURL() string {
	if a == nil {
		return ""
	}
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// ModelInvoker runs text and structured generation.
type ModelInvoker interface {
	Generate(ctx context.Context, req *Request) (string, *GenerateMetadata, error)
	GenerateJSON(ctx context.Context, req *Request, dest any) (*GenerateMetadata, error)
}

// MediaGenerator produces campaign assets.
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*MediaAsset, error)
	GenerateSpeech(ctx context.Context, script string) (*MediaAsset, error)
}

// ErrMalformedOutput marks a response that arrived but could not be used
// (empty, or not the JSON that was asked for). Transport failures never wrap it.
var ErrMalformedOutput = errors.New("malformed model output")
