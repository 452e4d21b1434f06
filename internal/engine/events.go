package engine

import (
	"sync"
	"time"

	"github.com/sigscope/sigscope/pkg/dsp"
	"github.com/sigscope/sigscope/pkg/match"
	"github.com/sigscope/sigscope/pkg/watch"
)

// EventType distinguishes the event payloads delivered on the bus.
type EventType string

const (
	EventMatch   EventType = "match"
	EventAnomaly EventType = "anomaly"
	EventStatus  EventType = "status"
)

// Event is the envelope delivered to bus subscribers. Exactly one of
// Match, Anomaly, or Status is set, according to Type.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Match     *MatchEvent     `json:"match,omitempty"`
	Anomaly   *AnomalyEvent   `json:"anomaly,omitempty"`
	Status    *StatusEvent    `json:"status,omitempty"`
}

// MatchEvent reports a profile identification.
type MatchEvent struct {
	Profile     string  `json:"profile"`
	Confidence  float64 `json:"confidence"`
	FrameOffset int     `json:"frame_offset"`
}

// AnomalyEvent reports a watchdog trigger enriched with the measured
// characteristics of the offending band.
type AnomalyEvent struct {
	ID              uint64               `json:"id"`
	BinFrom         int                  `json:"bin_from"`
	BinTo           int                  `json:"bin_to"`
	FreqFromHz      float64              `json:"freq_from_hz"`
	FreqToHz        float64              `json:"freq_to_hz"`
	PeakValue       float64              `json:"peak_value"`
	FrameIndex      uint64               `json:"frame_index"`
	Characteristics *dsp.Characteristics `json:"characteristics,omitempty"`
}

// StatusEvent reports engine lifecycle transitions (calibration begin
// and end, source start and stop).
type StatusEvent struct {
	Message string `json:"message"`
}

func matchEvent(r *match.Result) Event {
	return Event{
		Type:      EventMatch,
		Timestamp: r.Timestamp,
		Match: &MatchEvent{
			Profile:     r.Profile,
			Confidence:  r.Confidence,
			FrameOffset: r.FrameOffset,
		},
	}
}

func anomalyEvent(e watch.Event, binHz float64, ch *dsp.Characteristics) Event {
	return Event{
		Type:      EventAnomaly,
		Timestamp: e.Timestamp,
		Anomaly: &AnomalyEvent{
			ID:              e.ID,
			BinFrom:         e.BinFrom,
			BinTo:           e.BinTo,
			FreqFromHz:      float64(e.BinFrom) * binHz,
			FreqToHz:        float64(e.BinTo) * binHz,
			PeakValue:       e.PeakValue,
			FrameIndex:      e.FrameIndex,
			Characteristics: ch,
		},
	}
}

func statusEvent(msg string) Event {
	return Event{
		Type:      EventStatus,
		Timestamp: time.Now().UTC(),
		Status:    &StatusEvent{Message: msg},
	}
}

// Bus fans events out to subscribers. Publishing never blocks: a slow
// subscriber loses its oldest undelivered event, not the publisher's
// time.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBus creates an event bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a buffered subscription channel. The returned
// cancel function removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber, dropping the oldest queued
// event of any subscriber whose buffer is full.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		for {
			select {
			case ch <- ev:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
