package defense

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/service/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCoordinator(invoker *fakeInvoker, prober PageProber) *Coordinator {
	scoutCache := cache.NewScoutCache(cache.NewMemoryCache(clockwork.NewFakeClock()), 30*time.Minute, nil, zap.NewNop())
	return NewCoordinator(invoker, prober, scoutCache, clockwork.NewFakeClock(), CoordinatorConfig{}, nil, zap.NewNop())
}

func TestScoutSimulationIsDeterministicAndOffline(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("network down")}
	coord := newTestCoordinator(invoker, nil)

	for _, u := range []string{
		"https://example.com/post/1",
		"http://demo.local/anything",
		"https://x.com/user/status/simulation-post",
		"https://facebook.com/SIMULACION/123",
	} {
		rec := &lineRecorder{}
		got := coord.Scout(context.Background(), u, rec.sink)
		assert.Equal(t, SimulatedScout, got, u)
		assert.Equal(t, "@CiudadanoCritico", got.Author)
		assert.Len(t, rec.lines, len(simulationScript))
	}
	assert.Equal(t, 0, invoker.calls(), "simulation must not reach the generative service")
}

func TestIsSimulationURLMatchesHostsAndWholeSegments(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/post/1":                             true,
		"https://news.example.com/a":                             true,
		"https://www.demo.local/x":                               true,
		"https://x.com/user/status/simulation-post":              true,
		"https://notexample.com/post/1":                          false,
		"https://example.com.co/post/1":                          false,
		"https://eltiempo.com/politica/simulacion-de-votos-2023": false,
		"https://x.com/user/status/simulation-posts":             false,
		"https://x.com/search?q=simulacion":                      false,
	}
	for u, want := range cases {
		assert.Equal(t, want, IsSimulationURL(u), u)
	}
}

func TestScoutSimulationHonoursDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(&fakeInvoker{}, nil, nil, clock, CoordinatorConfig{SimulationDelay: 800 * time.Millisecond}, nil, zap.NewNop())

	done := make(chan struct{})
	rec := &lineRecorder{}
	go func() {
		coord.Scout(context.Background(), "https://example.com/p", rec.sink)
		close(done)
	}()

	for i := 0; i < len(simulationScript); i++ {
		require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
		clock.Advance(800 * time.Millisecond)
	}
	<-done
	assert.Equal(t, simulationScript, rec.lines)
}

func TestScoutSentinelOrShortResponseIsBlocked(t *testing.T) {
	for _, text := range []string{"CONTENIDO_NO_ENCONTRADO", "Lo siento: CONTENIDO_NO_ENCONTRADO.", "corto", ""} {
		invoker := &fakeInvoker{text: text}
		coord := newTestCoordinator(invoker, nil)

		got := coord.Scout(context.Background(), "https://www.instagram.com/p/el-alcalde-no-cumple-con-la-via/", nil)
		assert.Empty(t, got.Author, text)
		assert.Empty(t, got.Content, text)
		assert.Equal(t, "Instagram", got.Platform)
		assert.Equal(t, 1, invoker.calls())
	}
}

func TestScoutProtectedPlatformUsesHintAndSearch(t *testing.T) {
	invoker := &fakeInvoker{text: "@vecino_molesto: La obra del puente lleva dos años parada y nadie responde."}
	prober := &fakeProber{}
	coord := newTestCoordinator(invoker, prober)

	rec := &lineRecorder{}
	got := coord.Scout(context.Background(), "https://m.facebook.com/groups/123/posts/obra-del-puente-abandonada", rec.sink)

	assert.Equal(t, "Facebook", got.Platform)
	assert.Equal(t, genericAuthor, got.Author)
	assert.Contains(t, got.Content, "puente")
	assert.Equal(t, searchDerivedMedia, got.MediaDescription)
	assert.Equal(t, 0, prober.calls, "protected hosts are never probed")

	req := invoker.lastRequest()
	require.NotNil(t, req)
	assert.True(t, req.Search)
	assert.Contains(t, req.Parts[0].Text, "obra del puente abandonada")
	assert.Contains(t, req.Parts[0].Text, "CONTENIDO_NO_ENCONTRADO")
}

func TestScoutTransportErrorKeepsPlatform(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("503 unavailable")}
	coord := newTestCoordinator(invoker, nil)

	got := coord.Scout(context.Background(), "https://twitter.com/a/status/1", nil)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, "X (Twitter)", got.Platform)
}

func TestScoutOpenSiteUsesProbeAndCache(t *testing.T) {
	invoker := &fakeInvoker{text: "El concejal afirmó que el presupuesto de seguridad se redujo a la mitad."}
	prober := &fakeProber{meta: PageMeta{Title: "Concejal denuncia recorte", Author: "Redacción Local", SiteName: "Diario del Valle"}}
	coord := newTestCoordinator(invoker, prober)

	first := coord.Scout(context.Background(), "https://noticias.example.org/politica/concejal-denuncia-recorte", nil)
	assert.Equal(t, "Redacción Local", first.Author)
	assert.Equal(t, "Diario del Valle", first.Platform)
	assert.True(t, strings.Contains(invoker.lastRequest().Parts[0].Text, "Concejal denuncia recorte"))

	second := coord.Scout(context.Background(), "https://noticias.example.org/politica/concejal-denuncia-recorte", nil)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, invoker.calls(), "second scout must come from cache")
}

func TestScoutInvalidURL(t *testing.T) {
	invoker := &fakeInvoker{}
	coord := newTestCoordinator(invoker, nil)

	got := coord.Scout(context.Background(), "ftp://server/file", nil)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, 0, invoker.calls())
}

func TestClassifyHostAndHint(t *testing.T) {
	label, protected := ClassifyHost("www.tiktok.com")
	assert.True(t, protected)
	assert.Equal(t, "TikTok", label)

	label, protected = ClassifyHost("vm.tiktok.com")
	assert.True(t, protected)
	assert.Equal(t, "TikTok", label)

	label, protected = ClassifyHost("notx.com")
	assert.False(t, protected)
	assert.Equal(t, "notx.com", label)

	assert.Equal(t, "gobernador promete vias", ExtractHint("/status/123/gobernador-promete-vias"))
	assert.Equal(t, "", ExtractHint("/a-b/short-one/1234567890"))
}
