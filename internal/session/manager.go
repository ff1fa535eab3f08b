package session

import (
	"context"
	"crypto/subtle"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
)

type Credentials struct {
	Username string
	Password string
}

type ManagerConfig struct {
	Operator   Credentials
	IdleTTL    time.Duration
	Controller Config
}

// Session is one authenticated operator.
type Session struct {
	Token      string
	Controller *Controller
	lastSeen   time.Time
}

// Manager authenticates operators and owns their sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	created  uint64

	parent   context.Context
	services Services
	cfg      ManagerConfig
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewManager(parent context.Context, services Services, cfg ManagerConfig, clock clockwork.Clock, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		parent:   parent,
		services: services,
		cfg:      cfg,
		clock:    clock,
		metrics:  m,
		logger:   logger,
	}
}

// Login checks the operator credentials and opens a new session.
func (m *Manager) Login(username, password string) (*Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.cfg.Operator.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.cfg.Operator.Password)) == 1
	if !userOK || !passOK {
		m.logger.Warn("Login rejected", zap.String("username", username))
		return nil, apperrors.NewAuthError("credenciales inválidas")
	}

	m.mu.Lock()
	m.created++
	rng := m.newRand(m.created)
	m.mu.Unlock()

	controller := NewController(m.parent, m.services, m.cfg.Controller, m.clock, rng, m.metrics, m.logger.With(zap.String("operator", username)))
	controller.Open(username)
	sess := &Session{
		Token:      uuid.NewString(),
		Controller: controller,
		lastSeen:   m.clock.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.Token] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(count)
	m.logger.Info("Operator logged in", zap.String("username", username), zap.Int("sessions", count))
	return sess, nil
}

func (m *Manager) newRand(n uint64) *rand.Rand {
	seed := uint64(m.cfg.Controller.SimulatorSeed)
	if seed == 0 {
		seed = uint64(m.clock.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, n))
}

// Get returns the session for token and marks it as used.
func (m *Manager) Get(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok || token == "" {
		return nil, apperrors.NewAuthError("sesión no válida o expirada")
	}
	sess.lastSeen = m.clock.Now()
	return sess, nil
}

func (m *Manager) Logout(token string) error {
	m.mu.Lock()
	sess, ok := m.sessions[token]
	delete(m.sessions, token)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return apperrors.NewAuthError("sesión no válida o expirada")
	}
	sess.Controller.Close()
	m.metrics.SetSessions(count)
	m.logger.Info("Operator logged out", zap.Int("sessions", count))
	return nil
}

// Sweep closes sessions idle for longer than IdleTTL.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	now := m.clock.Now()

	m.mu.Lock()
	var expired []*Session
	for token, sess := range m.sessions {
		if now.Sub(sess.lastSeen) > m.cfg.IdleTTL {
			expired = append(expired, sess)
			delete(m.sessions, token)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Close()
	}
	if len(expired) > 0 {
		m.metrics.SetSessions(count)
		m.logger.Info("Idle sessions closed", zap.Int("closed", len(expired)), zap.Int("remaining", count))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(constants.SessionLimits.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for token, sess := range m.sessions {
		sessions = append(sessions, sess)
		delete(m.sessions, token)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close()
	}
	m.metrics.SetSessions(0)
}
