package defense

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="  Alcalde anuncia nueva troncal ">
<meta name="description" content="Obras arrancan en enero">
<meta name="author" content="María Pérez">
<meta property="og:site_name" content="El Diario Regional">
</head><body><p>texto</p></body></html>`

func TestHTTPPageProbe(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	probe := NewHTTPPageProbeWithClient(server.Client(), zap.NewNop())
	meta, err := probe.Probe(context.Background(), server.URL+"/nota")
	require.NoError(t, err)

	assert.Equal(t, "Alcalde anuncia nueva troncal", meta.Title)
	assert.Equal(t, "Obras arrancan en enero", meta.Description)
	assert.Equal(t, "María Pérez", meta.Author)
	assert.Equal(t, "El Diario Regional", meta.SiteName)
	assert.Equal(t, constants.AcquisitionConfig.UserAgent, userAgent)
}

func TestHTTPPageProbeFallsBackToTitleTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title> Solo título </title></head></html>`))
	}))
	defer server.Close()

	meta, err := NewHTTPPageProbeWithClient(server.Client(), zap.NewNop()).Probe(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Solo título", meta.Title)
	assert.Empty(t, meta.Author)
}

func TestHTTPPageProbeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewHTTPPageProbeWithClient(server.Client(), zap.NewNop()).Probe(context.Background(), server.URL)
	assert.Error(t, err)
}
