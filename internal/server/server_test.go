package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"github.com/kapu/campaign-ops-go/internal/service/network"
	"github.com/kapu/campaign-ops-go/internal/service/profile"
	"github.com/kapu/campaign-ops-go/internal/service/translate"
	"github.com/kapu/campaign-ops-go/internal/session"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubScouter struct{}

func (stubScouter) Scout(_ context.Context, rawURL string, sink domain.LogSink) domain.ScoutResult {
	sink("consultando " + rawURL)
	return domain.ScoutResult{Author: "@vecino", Content: "¿Y las vías de la comuna?", Platform: "X (Twitter)"}
}

type stubTranslator struct{}

func (stubTranslator) Translate(_ context.Context, req translate.Request) (string, error) {
	if req.Text == "" {
		return "", apperrors.NewValidationError("ingresa el texto a traducir", "text", "")
	}
	return "Hello neighbours", nil
}

type stubNetwork struct{ received []byte }

func (s *stubNetwork) AnalyzeUpload(_ context.Context, r io.Reader, _ *domain.CandidateProfile) (network.Report, error) {
	s.received, _ = io.ReadAll(r)
	return network.Report{
		Stats:    []domain.NetworkStat{{Platform: "TikTok", Impressions: 1200}},
		Analysis: domain.NetworkAgentAnalysis{Summary: "bien", BestPlatform: "TikTok"},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *stubNetwork) {
	t.Helper()
	profiles, err := profile.NewStore("", zap.NewNop())
	require.NoError(t, err)

	net := &stubNetwork{}
	m := metrics.New()
	manager := session.NewManager(context.Background(), session.Services{
		Scout:      stubScouter{},
		Translator: stubTranslator{},
		Network:    net,
		Profiles:   profiles,
	}, session.ManagerConfig{
		Operator:   session.Credentials{Username: "operador", Password: "secreto"},
		IdleTTL:    time.Hour,
		Controller: session.Config{CancelOnModeSwitch: true, ImageConcurrency: 1, AudioConcurrency: 1, SimulatorSeed: 3},
	}, clockwork.NewFakeClock(), m, zap.NewNop())
	t.Cleanup(manager.Shutdown)

	return New(Config{Addr: ":0"}, manager, m, zap.NewNop()), net
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/login", "", loginRequest{Username: "operador", Password: "secreto"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string        `json:"token"`
		State session.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.State.Authenticated)
	return resp.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"], body["code"]
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campaign_ops_http_requests_total")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodPost, "/api/login", "", loginRequest{Username: "operador", Password: "no"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	msg, code := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeAuth, code)
	assert.Equal(t, "credenciales inválidas", msg)
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/session", "desconocido", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := login(t, h)
	rec = do(t, h, http.MethodGet, "/api/session?token="+token, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDefenseScoutAndModeErrors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	token := login(t, h)

	rec := do(t, h, http.MethodPost, "/api/defense/scout", token, scoutRequest{URL: "https://x.com/vecino/status/9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scout domain.ScoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scout))
	assert.Equal(t, "@vecino", scout.Author)

	// Segmentation belongs to Targeting; the session is in DefenseResponse.
	rec = do(t, h, http.MethodPost, "/api/targeting/segments", token, segmentsRequest{Region: "Comuna 13"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, code := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeValidation, code)

	rec = do(t, h, http.MethodPost, "/api/mode", token, modeRequest{Mode: "Nada"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/defense/scout", token, "no es un objeto")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranslatorFlow(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	token := login(t, h)

	rec := do(t, h, http.MethodPost, "/api/mode", token, modeRequest{Mode: "translator"})
	require.Equal(t, http.StatusOK, rec.Code)
	var state session.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, domain.ModeTranslator, state.Mode)

	rec = do(t, h, http.MethodPost, "/api/translate", token, translateRequest{Text: "Hola vecinos", TargetLanguage: "English"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":"Hello neighbours"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/translate", token, translateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/session", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.NotNil(t, state.Banner)
	assert.Equal(t, "ingresa el texto a traducir", state.Banner.Message)

	rec = do(t, h, http.MethodPost, "/api/banner/dismiss", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Nil(t, state.Banner)
}

func TestNetworkUpload(t *testing.T) {
	s, net := newTestServer(t)
	h := s.Handler()
	token := login(t, h)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/mode", token, modeRequest{Mode: "NetworkAnalysis"}).Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "metricas.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("platform,impressions\nTikTok,1200\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/network/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "platform,impressions\nTikTok,1200\n", string(net.received))
	assert.Contains(t, rec.Body.String(), "TikTok")

	// Missing file field.
	rec = do(t, h, http.MethodPost, "/api/network/analyze", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfiles(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	token := login(t, h)

	rec := do(t, h, http.MethodGet, "/api/profiles", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Profiles []domain.CandidateProfile `json:"profiles"`
		Active   string                    `json:"activeProfileId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.NotEmpty(t, list.Profiles)
	assert.Equal(t, list.Profiles[0].ID, list.Active)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/mode", token, modeRequest{Mode: "ProfileManager"}).Code)

	rec = do(t, h, http.MethodPost, "/api/profiles", token, domain.CandidateProfile{
		Name: "Camila Ortiz", Role: "Candidata a la JAL", StyleDescription: "Directa y cercana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.CandidateProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = do(t, h, http.MethodPut, "/api/profiles/active", token, selectProfileRequest{ID: created.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var state session.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, created.ID, state.ActiveProfileID)
}

func TestLogout(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	token := login(t, h)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/session", token, nil).Code)
}

func TestWebSocketStreamsSnapshots(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	token := login(t, s.Handler())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first session.State
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, domain.ModeDefenseResponse, first.Mode)

	require.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodPost, "/api/mode", token, modeRequest{Mode: "Targeting"}).Code)

	var next session.State
	for next.Mode != domain.ModeTargeting {
		require.NoError(t, conn.ReadJSON(&next))
	}
	assert.Greater(t, next.Version, first.Version)
}
