package session

import (
	"testing"

	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSubscribeReceivesCurrentAndLater(t *testing.T) {
	store := NewStore()
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()

	first := <-ch
	assert.False(t, first.Authenticated)

	store.Dispatch(LoggedIn{Operator: "operador"}, ModeSelected{Mode: domain.ModeTargeting})
	next := <-ch
	assert.True(t, next.Authenticated)
	assert.Equal(t, domain.ModeTargeting, next.Mode)

	select {
	case s := <-ch:
		t.Fatalf("one dispatch must publish once, got extra version %d", s.Version)
	default:
	}
}

func TestStoreSlowSubscriberKeepsLatest(t *testing.T) {
	store := NewStore()
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()

	total := constants.SessionLimits.SnapshotBuffer * 3
	for i := 0; i < total; i++ {
		store.Dispatch(ProgressSet{Value: float64(i)})
	}

	var last State
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, float64(total-1), last.Progress)
	assert.Equal(t, store.Snapshot().Version, last.Version)
}

func TestStoreUnsubscribeAndClose(t *testing.T) {
	store := NewStore()
	ch1, unsub1 := store.Subscribe()
	ch2, unsub2 := store.Subscribe()

	unsub1()
	unsub1()
	for range ch1 {
	}

	store.CloseSubscribers()
	unsub2()
	for range ch2 {
	}

	require.NotPanics(t, func() { store.Dispatch(BannerDismissed{}) })
}
