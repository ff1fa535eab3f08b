package defense

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kapu/campaign-ops-go/internal/service/ai"
)

type fakeInvoker struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []*ai.Request
}

func (f *fakeInvoker) Generate(_ context.Context, req *ai.Request) (string, *ai.GenerateMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", nil, f.err
	}
	return f.text, &ai.GenerateMetadata{Provider: "fake"}, nil
}

func (f *fakeInvoker) GenerateJSON(ctx context.Context, req *ai.Request, dest any) (*ai.GenerateMetadata, error) {
	text, meta, err := f.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ai.StripCodeFence(text)), dest); err != nil {
		return nil, ai.ErrMalformedOutput
	}
	return meta, nil
}

func (f *fakeInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeInvoker) lastRequest() *ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeProber struct {
	meta  PageMeta
	err   error
	calls int
}

func (f *fakeProber) Probe(context.Context, string) (PageMeta, error) {
	f.calls++
	return f.meta, f.err
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) sink(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}
