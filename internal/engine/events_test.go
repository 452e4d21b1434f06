package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigscope/sigscope/pkg/spectral"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	b := NewBus()

	ch1, cancel1 := b.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(4)
	defer cancel2()

	b.Publish(statusEvent("hello"))

	ev1 := <-ch1
	ev2 := <-ch2
	assert.Equal(t, EventStatus, ev1.Type)
	assert.Equal(t, "hello", ev1.Status.Message)
	assert.Equal(t, "hello", ev2.Status.Message)
}

func TestBusDropsOldestForSlowSubscriber(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(2)
	defer cancel()

	b.Publish(statusEvent("one"))
	b.Publish(statusEvent("two"))
	b.Publish(statusEvent("three")) // displaces "one"

	first := <-ch
	second := <-ch
	assert.Equal(t, "two", first.Status.Message)
	assert.Equal(t, "three", second.Status.Message)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)

	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	b.Publish(statusEvent("after"))
	cancel()
}

func validSettings() *Settings {
	return &Settings{
		Gain:                    3.0,
		NoiseCutoff:             60,
		FreqZoom:                1.0,
		VerticalStretch:         8,
		AmplitudeMode:           spectral.AmplitudeLog,
		DetectThreshold:         10,
		IdentificationThreshold: 0.85,
		EvalInterval:            200 * time.Millisecond,
		CaptureDuration:         15 * time.Second,
	}
}

func TestSettingsStoreRejectsInvalidUpdate(t *testing.T) {
	store, err := newSettingsStore(validSettings())
	require.NoError(t, err)

	bad := validSettings()
	bad.FreqZoom = 1.5
	assert.Error(t, store.Update(bad))
	assert.Equal(t, 1.0, store.Load().FreqZoom, "prior settings stay in effect")

	good := validSettings()
	good.DetectThreshold = 5
	require.NoError(t, store.Update(good))
	assert.Equal(t, 5.0, store.Load().DetectThreshold)
}

func TestSettingsValidate(t *testing.T) {
	cases := []func(*Settings){
		func(s *Settings) { s.Gain = 0 },
		func(s *Settings) { s.FreqZoom = 0 },
		func(s *Settings) { s.FreqZoom = 2 },
		func(s *Settings) { s.VerticalStretch = 0 },
		func(s *Settings) { s.DetectThreshold = -1 },
		func(s *Settings) { s.IdentificationThreshold = 1.1 },
		func(s *Settings) { s.EvalInterval = 0 },
		func(s *Settings) { s.CaptureDuration = time.Second },
		func(s *Settings) { s.CaptureDuration = 2 * time.Minute },
	}
	for i, mutate := range cases {
		s := validSettings()
		mutate(s)
		assert.Error(t, s.Validate(), "case %d", i)
	}
	assert.NoError(t, validSettings().Validate())
}
