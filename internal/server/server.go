package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	"github.com/kapu/campaign-ops-go/internal/session"
	"github.com/kapu/campaign-ops-go/internal/util"
	"go.uber.org/zap"
)

type Config struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	// Circuit, when set, is reported by /healthz.
	Circuit CircuitReporter
}

type CircuitReporter interface {
	GetCircuitStatus() util.CircuitBreakerStatus
}

// Server exposes the operator sessions over HTTP and a websocket stream.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	http     *http.Server
	sessions *session.Manager
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func New(cfg Config, sessions *session.Manager, m *metrics.Metrics, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}

	engine.Use(s.recovery(), s.requestLogger())
	s.routes()

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api")
	api.POST("/login", s.handleLogin)

	authed := api.Group("", s.authRequired())
	authed.POST("/logout", s.handleLogout)
	authed.GET("/session", s.handleSession)
	authed.POST("/mode", s.handleMode)
	authed.POST("/banner/dismiss", s.handleDismissBanner)
	authed.GET("/ws", s.handleWebSocket)

	defense := authed.Group("/defense")
	defense.POST("/scout", s.handleScout)
	defense.POST("/vision", s.handleVision)
	defense.POST("/analyze", s.handleAnalyze)

	targeting := authed.Group("/targeting")
	targeting.POST("/segments", s.handleSegments)
	targeting.POST("/segments/:id/campaign", s.handleCampaign)
	targeting.POST("/segments/:id/image", s.handleImage)
	targeting.POST("/segments/:id/audio", s.handleAudio)
	targeting.POST("/campaigns", s.handleAllCampaigns)
	targeting.POST("/chronoposting", s.handleChronoposting)

	authed.POST("/network/analyze", s.handleNetwork)
	authed.POST("/translate", s.handleTranslate)

	authed.GET("/profiles", s.handleListProfiles)
	authed.POST("/profiles", s.handleCreateProfile)
	authed.PUT("/profiles/active", s.handleSelectProfile)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.cfg.Circuit != nil {
		status := s.cfg.Circuit.GetCircuitStatus()
		body["circuit"] = status
		if status.State == util.CircuitStateOpen {
			body["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
