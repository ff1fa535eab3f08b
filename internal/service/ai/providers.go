package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Provider is one generative backend.
type Provider interface {
	Name() string
	// Supports reports whether the backend can serve req at all.
	Supports(req *Request) bool
	Generate(ctx context.Context, req *Request) (ProviderResult, error)
	Ping(ctx context.Context) bool
}

// MediaProvider generates images and speech.
type MediaProvider interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*MediaAsset, error)
	GenerateSpeech(ctx context.Context, script string) (*MediaAsset, error)
}

type ProviderResult struct {
	Text     string
	Model    string
	Grounded bool
}

// GeminiProvider wraps the Gemini client: text, multimodal input, search
// grounding, structured output, Imagen and TTS.
type GeminiProvider struct {
	client      *genai.Client
	textModel   string
	imageModel  string
	speechModel string
	voice       string
	logger      *zap.Logger
}

type GeminiModels struct {
	Text   string
	Image  string
	Speech string
	Voice  string
}

func NewGeminiProvider(client *genai.Client, models GeminiModels, logger *zap.Logger) *GeminiProvider {
	return &GeminiProvider{
		client:      client,
		textModel:   models.Text,
		imageModel:  models.Image,
		speechModel: models.Speech,
		voice:       models.Voice,
		logger:      logger,
	}
}

func (g *GeminiProvider) Name() string {
	return "Gemini"
}

func (g *GeminiProvider) Supports(*Request) bool {
	return g.client != nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req *Request) (ProviderResult, error) {
	if g.client == nil {
		return ProviderResult{}, fmt.Errorf("gemini client not initialized")
	}

	genConfig := buildGeminiConfig(req)

	g.logger.Debug("Generating with Gemini",
		zap.String("operation", req.Operation),
		zap.String("model", g.textModel),
		zap.String("preset", string(req.Preset)),
		zap.Bool("search", req.Search),
		zap.Bool("schema", genConfig.ResponseSchema != nil),
		zap.Int("parts", len(req.Parts)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.textModel, []*genai.Content{
		{Role: genai.RoleUser, Parts: toGeminiParts(req.Parts)},
	}, genConfig)
	if err != nil {
		g.logger.Error("Gemini generation failed", zap.String("operation", req.Operation), zap.Error(err))
		return ProviderResult{}, err
	}

	text := extractTextFromGeminiResponse(resp)
	g.logger.Debug("Gemini response received", zap.String("operation", req.Operation), zap.Int("length", len(text)))
	return ProviderResult{Text: text, Model: g.textModel, Grounded: isGrounded(resp)}, nil
}

// buildGeminiConfig maps a Request onto the Gemini config. Search grounding
// and controlled JSON output cannot be combined, so the schema is dropped
// when Search is set.
func buildGeminiConfig(req *Request) *genai.GenerateContentConfig {
	preset := GetPresetConfig(req.Preset)
	if req.MaxOutputTokens > 0 {
		preset.MaxOutputTokens = req.MaxOutputTokens
	}

	topK := float32(preset.TopK)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &preset.Temperature,
		TopP:            &preset.TopP,
		TopK:            &topK,
		MaxOutputTokens: int32(preset.MaxOutputTokens),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if req.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		return cfg
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	return cfg
}

func toGeminiParts(parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsBinary() {
			out = append(out, &genai.Part{InlineData: &genai.Blob{Data: p.Data, MIMEType: p.MIMEType}})
			continue
		}
		if p.Text != "" {
			out = append(out, &genai.Part{Text: p.Text})
		}
	}
	return out
}

func (g *GeminiProvider) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*MediaAsset, error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	g.logger.Debug("Generating image", zap.String("model", g.imageModel), zap.String("aspect_ratio", aspectRatio))

	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("no image returned: %w", ErrMalformedOutput)
	}

	img := resp.GeneratedImages[0].Image
	if len(img.ImageBytes) == 0 {
		return nil, fmt.Errorf("empty image returned: %w", ErrMalformedOutput)
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &MediaAsset{MIMEType: mimeType, Data: img.ImageBytes}, nil
}

func (g *GeminiProvider) GenerateSpeech(ctx context.Context, script string) (*MediaAsset, error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	g.logger.Debug("Generating speech", zap.String("model", g.speechModel), zap.String("voice", g.voice))

	resp, err := g.client.Models.GenerateContent(ctx, g.speechModel, []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: script}}},
	}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	blob := extractInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, fmt.Errorf("no audio returned: %w", ErrMalformedOutput)
	}
	return pcmToWAV(blob.Data, blob.MIMEType), nil
}

func (g *GeminiProvider) Ping(ctx context.Context) bool {
	if g.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	g.logger.Debug("Pinging Gemini API...")

	temp := float32(0)
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel, []*genai.Content{
		{Parts: []*genai.Part{{Text: "ping"}}},
	}, &genai.GenerateContentConfig{Temperature: &temp, MaxOutputTokens: 10})
	if err != nil {
		g.logger.Debug("Gemini ping failed", zap.Error(err))
		return false
	}

	return extractTextFromGeminiResponse(resp) != ""
}

// OpenAIProvider is the optional text-only fallback. It cannot see images
// and has no search grounding, so those requests stay on Gemini.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewOpenAIProvider(apiKey string, defaultModel string, logger *zap.Logger) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client:       &client,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

func (o *OpenAIProvider) Name() string {
	return "OpenAI"
}

func (o *OpenAIProvider) Supports(req *Request) bool {
	return o != nil && o.client != nil && !req.Search && !req.HasBinary()
}

func (o *OpenAIProvider) Generate(ctx context.Context, req *Request) (ProviderResult, error) {
	if o.client == nil {
		return ProviderResult{}, fmt.Errorf("OpenAI client not initialized")
	}

	config := GetOpenAIPresetConfig(req.Preset)
	if req.MaxOutputTokens > 0 {
		config.MaxTokens = req.MaxOutputTokens
	}

	o.logger.Info("Fallback: Generating with OpenAI",
		zap.String("operation", req.Operation),
		zap.String("model", o.defaultModel),
		zap.String("preset", string(req.Preset)),
	)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	if req.Schema != nil {
		messages = append(messages, openai.SystemMessage("You must respond with valid JSON only. Do not include any text outside the JSON value."))
	}
	var prompt strings.Builder
	for _, p := range req.Parts {
		if p.Text != "" {
			if prompt.Len() > 0 {
				prompt.WriteString("\n\n")
			}
			prompt.WriteString(p.Text)
		}
	}
	messages = append(messages, openai.UserMessage(prompt.String()))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.defaultModel),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(config.MaxTokens)),
	}
	if !strings.HasPrefix(o.defaultModel, "gpt-5") {
		params.Temperature = openai.Float(float64(config.Temperature))
		params.TopP = openai.Float(float64(config.TopP))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Error("OpenAI generation failed", zap.Error(err))
		return ProviderResult{}, err
	}
	if len(resp.Choices) == 0 {
		return ProviderResult{}, fmt.Errorf("no choices in OpenAI response")
	}

	text := resp.Choices[0].Message.Content
	o.logger.Info("OpenAI response received",
		zap.Int("length", len(text)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	return ProviderResult{Text: text, Model: o.defaultModel}, nil
}

func (o *OpenAIProvider) Ping(ctx context.Context) bool {
	if o.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.defaultModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxCompletionTokens: openai.Int(16),
	})
	if err != nil {
		o.logger.Debug("OpenAI ping failed", zap.Error(err))
		return false
	}

	return len(resp.Choices) > 0
}

func extractTextFromGeminiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}

	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	return strings.Join(texts, "")
}

func extractInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

func isGrounded(resp *genai.GenerateContentResponse) bool {
	if resp == nil || len(resp.Candidates) == 0 {
		return false
	}
	meta := resp.Candidates[0].GroundingMetadata
	return meta != nil && len(meta.GroundingChunks) > 0
}
