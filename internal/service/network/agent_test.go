package network

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kapu/campaign-ops-go/internal/service/ai"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoker struct {
	text string
	err  error
	last *ai.Request
}

func (f *fakeInvoker) Generate(_ context.Context, req *ai.Request) (string, *ai.GenerateMetadata, error) {
	f.last = req
	if f.err != nil {
		return "", nil, f.err
	}
	return f.text, &ai.GenerateMetadata{}, nil
}

func (f *fakeInvoker) GenerateJSON(ctx context.Context, req *ai.Request, dest any) (*ai.GenerateMetadata, error) {
	text, meta, err := f.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(text), dest); err != nil {
		return nil, ai.ErrMalformedOutput
	}
	return meta, nil
}

const statsCSV = "date,platform,impressions,engagement,sentiment_score,top_topic\n" +
	"2024-05-01,Instagram,12000,4.2,0.7,Seguridad\n" +
	"2024-05-01,X,sin dato,1.1,0.3,Impuestos\n"

func TestAnalyzeUpload(t *testing.T) {
	invoker := &fakeInvoker{text: `{"summary":"Instagram lidera el alcance.","trends":["Seguridad domina"],"recommendations":["Más reels"],"best_platform":"Instagram"}`}
	agent := NewAgent(newTestParser(), invoker, zap.NewNop())

	report, err := agent.AnalyzeUpload(context.Background(), strings.NewReader(statsCSV), nil)
	require.NoError(t, err)

	require.Len(t, report.Stats, 2)
	assert.Equal(t, "Instagram", report.Analysis.BestPlatform)
	assert.Equal(t, []string{"Seguridad domina"}, report.Analysis.Trends)
	assert.Contains(t, invoker.last.Parts[0].Text, "estimado: impressions")
	assert.NotNil(t, invoker.last.Schema)
}

func TestAnalyzeFailuresAreGenerationErrors(t *testing.T) {
	for _, invoker := range []*fakeInvoker{
		{text: "no es json"},
		{text: `{"trends":["x"]}`},
		{err: errors.New("connection reset")},
	} {
		_, err := NewAgent(newTestParser(), invoker, zap.NewNop()).AnalyzeUpload(context.Background(), strings.NewReader(statsCSV), nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeGeneration, apperrors.CodeOf(err))
	}
}

func TestAnalyzeUploadRejectsBadFileWithoutCallingModel(t *testing.T) {
	invoker := &fakeInvoker{}
	_, err := NewAgent(newTestParser(), invoker, zap.NewNop()).AnalyzeUpload(context.Background(), strings.NewReader(""), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	assert.Nil(t, invoker.last)
}
