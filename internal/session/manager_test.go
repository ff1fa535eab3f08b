package session

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kapu/campaign-ops-go/internal/metrics"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, clock clockwork.Clock) *Manager {
	t.Helper()
	services, _, _ := newTestServices()
	m := NewManager(context.Background(), services, ManagerConfig{
		Operator: Credentials{Username: "operador", Password: "secreto"},
		IdleTTL:  time.Hour,
		Controller: Config{
			CancelOnModeSwitch: true,
			ImageConcurrency:   1,
			AudioConcurrency:   1,
			SimulatorSeed:      7,
		},
	}, clock, metrics.New(), zap.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}

func TestManagerLogin(t *testing.T) {
	m := newTestManager(t, clockwork.NewFakeClock())

	_, err := m.Login("operador", "otra")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAuth, apperrors.CodeOf(err))

	sess, err := m.Login("operador", "secreto")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	assert.True(t, sess.Controller.Snapshot().Authenticated)
	assert.Equal(t, "p1", sess.Controller.Snapshot().ActiveProfileID)

	got, err := m.Get(sess.Token)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	_, err = m.Get("desconocido")
	assert.Equal(t, apperrors.CodeAuth, apperrors.CodeOf(err))
}

func TestManagerSessionsAreIndependent(t *testing.T) {
	m := newTestManager(t, clockwork.NewFakeClock())
	a, err := m.Login("operador", "secreto")
	require.NoError(t, err)
	b, err := m.Login("operador", "secreto")
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	a.Controller.DismissBanner()
	assert.NotEqual(t, a.Controller.Snapshot().Version, b.Controller.Snapshot().Version)
}

func TestManagerLogout(t *testing.T) {
	m := newTestManager(t, clockwork.NewFakeClock())
	sess, err := m.Login("operador", "secreto")
	require.NoError(t, err)

	require.NoError(t, m.Logout(sess.Token))
	assert.False(t, sess.Controller.Snapshot().Authenticated)

	_, err = m.Get(sess.Token)
	assert.Error(t, err)
	assert.Error(t, m.Logout(sess.Token))
}

func TestManagerSweepClosesIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestManager(t, clock)

	idle, err := m.Login("operador", "secreto")
	require.NoError(t, err)
	busy, err := m.Login("operador", "secreto")
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	_, err = m.Get(busy.Token)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	_, err = m.Get(idle.Token)
	assert.Error(t, err)
	_, err = m.Get(busy.Token)
	assert.NoError(t, err)
	assert.False(t, idle.Controller.Snapshot().Authenticated)
}
