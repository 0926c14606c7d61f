package ws

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medbook/clinic-api/internal/model"
	"github.com/medbook/clinic-api/pkg/metrics"
)

// DefaultBroadcastInterval is how often availability is republished
// while at least one observer is connected.
const DefaultBroadcastInterval = 2 * time.Second

// AvailabilitySource computes the current available-doctor snapshot.
type AvailabilitySource interface {
	AvailableDoctors(ctx context.Context) ([]*model.User, error)
}

// Broadcaster owns the hub and a single periodic timer. The timer is
// started when the first observer connects and stopped when the last
// one disconnects; it is an owned goroutine, not a process-wide
// handle, so multiple broadcaster instances never share state. Ticks
// run in one goroutine and therefore never overlap: a slow snapshot
// delays the next tick instead of stacking broadcasts.
type Broadcaster struct {
	hub      *Hub
	source   AvailabilitySource
	interval time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	observers int
	stop      chan struct{}
	done      chan struct{}
}

func NewBroadcaster(hub *Hub, source AvailabilitySource, interval time.Duration, logger zerolog.Logger, m *metrics.Metrics) *Broadcaster {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	return &Broadcaster{
		hub:      hub,
		source:   source,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// Connect registers an observer and starts the timer on the 0→1
// transition.
func (b *Broadcaster) Connect(client *Client) {
	count := b.hub.Register(client)
	b.setObserverGauge(count)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers++
	if b.observers == 1 {
		b.startLocked()
	}
}

// Disconnect unregisters an observer and stops the timer on the 1→0
// transition.
func (b *Broadcaster) Disconnect(client *Client) {
	count := b.hub.Unregister(client)
	b.setObserverGauge(count)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.observers == 0 {
		return
	}
	b.observers--
	if b.observers == 0 {
		b.stopLocked()
	}
}

// Hub exposes the owned hub for handlers.
func (b *Broadcaster) Hub() *Hub { return b.hub }

// Shutdown stops the timer regardless of observer count.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = 0
	b.stopLocked()
}

func (b *Broadcaster) startLocked() {
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.loop(b.stop, b.done)
	b.logger.Info().Msg("availability broadcaster started")
}

func (b *Broadcaster) stopLocked() {
	if b.stop == nil {
		return
	}
	close(b.stop)
	<-b.done
	b.stop = nil
	b.done = nil
	b.logger.Info().Msg("availability broadcaster stopped")
}

func (b *Broadcaster) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

// tick computes one availability snapshot and pushes it to every
// observer. A failed computation is reported and skipped; it must not
// end the timer loop.
func (b *Broadcaster) tick() {
	var timer *prometheus.Timer
	if b.metrics != nil {
		b.metrics.BroadcastTicks.Inc()
		timer = prometheus.NewTimer(b.metrics.BroadcastTickDuration)
		defer timer.ObserveDuration()
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.interval)
	defer cancel()

	doctors, err := b.source.AvailableDoctors(ctx)
	if err != nil {
		if b.metrics != nil {
			b.metrics.BroadcastTickFailures.Inc()
		}
		b.logger.Error().Err(err).Msg("availability broadcast tick failed")
		return
	}

	b.hub.BroadcastAll(Event{
		Event:     EventAvailableDoctors,
		Timestamp: time.Now(),
		Data:      doctors,
	})
}

func (b *Broadcaster) setObserverGauge(count int) {
	if b.metrics != nil {
		b.metrics.ConnectedObservers.Set(float64(count))
	}
}
