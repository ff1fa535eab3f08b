package util

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightRejectsDuplicateKey(t *testing.T) {
	reg := NewInFlightRegistry(nil)

	lease, err := reg.Acquire(context.Background(), "Targeting", "campaign", "seg-1")
	require.NoError(t, err)

	_, err = reg.Acquire(context.Background(), "Targeting", "campaign", "seg-1")
	var flight *apperrors.InFlightError
	require.ErrorAs(t, err, &flight)
	assert.Equal(t, "campaign:seg-1", flight.Key)

	_, err = reg.Acquire(context.Background(), "Targeting", "campaign", "seg-2")
	require.NoError(t, err)

	lease.Release()
	lease.Release()

	again, err := reg.Acquire(context.Background(), "Targeting", "campaign", "seg-1")
	require.NoError(t, err)
	again.Release()
}

func TestInFlightKindLimit(t *testing.T) {
	reg := NewInFlightRegistry(map[string]int{"image": 1})

	first, err := reg.Acquire(context.Background(), "Targeting", "image", "a")
	require.NoError(t, err)

	_, err = reg.Acquire(context.Background(), "Targeting", "image", "b")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInFlight, apperrors.CodeOf(err))

	audio, err := reg.Acquire(context.Background(), "Targeting", "audio", "b")
	require.NoError(t, err, "other kinds are not capped by the image limit")
	audio.Release()

	first.Release()
	second, err := reg.Acquire(context.Background(), "Targeting", "image", "b")
	require.NoError(t, err)
	second.Release()
}

func TestInFlightConcurrentAcquireAdmitsOne(t *testing.T) {
	reg := NewInFlightRegistry(map[string]int{"image": 1})

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if _, err := reg.Acquire(context.Background(), "Targeting", "image", string(rune('a'+i))); err == nil {
				granted.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}

func TestInFlightCancelOwner(t *testing.T) {
	reg := NewInFlightRegistry(nil)

	defense, err := reg.Acquire(context.Background(), "DefenseResponse", "analysis", "")
	require.NoError(t, err)
	targeting, err := reg.Acquire(context.Background(), "Targeting", "segmentation", "")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.CancelOwner("DefenseResponse"))
	assert.ErrorIs(t, defense.Context().Err(), context.Canceled)
	assert.NoError(t, targeting.Context().Err())

	assert.Equal(t, []string{"analysis", "segmentation"}, reg.Keys())
	defense.Release()
	assert.False(t, reg.IsPending("analysis", ""))
	targeting.Release()
}

func TestInFlightCancelKinds(t *testing.T) {
	reg := NewInFlightRegistry(nil)

	campaign, err := reg.Acquire(context.Background(), "Targeting", "campaign", "seg-1")
	require.NoError(t, err)
	image, err := reg.Acquire(context.Background(), "Targeting", "image", "seg-2")
	require.NoError(t, err)
	schedule, err := reg.Acquire(context.Background(), "Targeting", "chronoposting", "")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.CancelKinds("campaign", "image", "audio"))
	assert.ErrorIs(t, campaign.Context().Err(), context.Canceled)
	assert.ErrorIs(t, image.Context().Err(), context.Canceled)
	assert.NoError(t, schedule.Context().Err())

	campaign.Release()
	image.Release()
	schedule.Release()
	assert.Empty(t, reg.Keys())
}

func TestInFlightOnChange(t *testing.T) {
	reg := NewInFlightRegistry(nil)
	var seen []int
	reg.OnChange(func(kind string, delta int) {
		if kind == "audio" {
			seen = append(seen, delta)
		}
	})

	a, _ := reg.Acquire(context.Background(), "Targeting", "audio", "x")
	b, _ := reg.Acquire(context.Background(), "Targeting", "audio", "y")
	a.Release()
	b.Release()

	assert.Equal(t, []int{1, 1, -1, -1}, seen)
}
