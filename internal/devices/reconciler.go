package devices

import (
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/midimon/internal/events"
	"github.com/skobkin/midimon/internal/miderr"
)

const DefaultPollInterval = 2 * time.Second

// Reconciler polls an enumeration source and notifies subscribers of
// precisely what changed between two observations. It never raises a
// spurious change and never misses a real one given a successful
// enumeration.
//
// Polls are serialized: a scheduled tick that arrives while a previous
// poll is still in flight is skipped, so no two diff computations
// against the same last-known state run concurrently.
type Reconciler struct {
	logger      *slog.Logger
	source      Source
	connectedID func() string

	Changed *events.Stream[[]Device]
	Added   *events.Stream[Device]
	Removed *events.Stream[Device]
	Errors  *events.Stream[*miderr.Error]

	pollMu sync.Mutex

	mu         sync.Mutex
	known      []Device
	monitoring bool
	stop       chan struct{}
}

// NewReconciler wires a reconciler to its enumeration source.
// connectedID optionally reports the device id currently bound by the
// connection layer so enumerated devices carry the right Connected flag;
// nil means no device is ever marked connected.
func NewReconciler(logger *slog.Logger, source Source, connectedID func() string) *Reconciler {
	return &Reconciler{
		logger:      logger,
		source:      source,
		connectedID: connectedID,
		Changed:     events.NewStream[[]Device](),
		Added:       events.NewStream[Device](),
		Removed:     events.NewStream[Device](),
		Errors:      events.NewStream[*miderr.Error](),
	}
}

// Start begins periodic polling. It is idempotent: a second Start while
// monitoring is active changes nothing. One detection pass runs before
// the first scheduled tick and completes before Start returns.
func (r *Reconciler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	r.mu.Lock()
	if r.monitoring {
		r.mu.Unlock()

		return
	}
	r.monitoring = true
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	r.logger.Info("device monitoring started", "interval", interval)
	r.poll()

	go r.run(interval, stop)
}

// Stop cancels the poll timer. Idempotent. The last-known device list
// stays queryable, and an in-flight poll runs to completion with its
// effects applied.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.monitoring {
		return
	}
	r.monitoring = false
	close(r.stop)
	r.stop = nil

	r.logger.Info("device monitoring stopped")
}

// Monitoring reports whether the poll timer is active.
func (r *Reconciler) Monitoring() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.monitoring
}

// Refresh forces an out-of-band poll with the same diffing side effects
// as a scheduled tick and returns the resulting device list. An
// enumeration failure is reported on Errors only; the previous list
// comes back unchanged.
func (r *Reconciler) Refresh() []Device {
	r.poll()

	return r.Snapshot()
}

// Snapshot returns a defensive copy of the last observed device list.
func (r *Reconciler) Snapshot() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Device, len(r.known))
	copy(out, r.known)

	return out
}

// Dispose stops monitoring and detaches every subscriber. The reconciler
// is terminal afterwards; state stays readable but nothing more is
// emitted.
func (r *Reconciler) Dispose() {
	r.Stop()
	r.Changed.Close()
	r.Added.Close()
	r.Removed.Close()
	r.Errors.Close()
}

func (r *Reconciler) run(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick skips its poll when a previous one has not completed yet. The
// ticker keeps firing on the wall-clock interval, so a slow enumeration
// drops ticks instead of queueing them.
func (r *Reconciler) tick() {
	if !r.pollMu.TryLock() {
		r.logger.Debug("previous poll still in flight, skipping tick")

		return
	}
	defer r.pollMu.Unlock()

	r.pollLocked()
}

func (r *Reconciler) poll() {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	r.pollLocked()
}

// pollLocked runs one enumerate-diff-notify cycle. Callers hold pollMu.
func (r *Reconciler) pollLocked() {
	endpoints, err := r.source.Endpoints()
	if err != nil {
		r.logger.Warn("device enumeration failed", "error", err)
		r.Errors.Emit(miderr.ClassifyEnumeration(err))

		return
	}

	next := r.devicesFrom(endpoints)

	r.mu.Lock()
	prev := r.known
	r.mu.Unlock()

	added, removed := Diff(prev, next)
	if len(added) > 0 || len(removed) > 0 {
		r.logger.Debug("device list changed", "added", len(added), "removed", len(removed), "total", len(next))

		changed := make([]Device, len(next))
		copy(changed, next)
		r.Changed.Emit(changed)
		for _, d := range added {
			r.Added.Emit(d)
		}
		for _, d := range removed {
			r.Removed.Emit(d)
		}
	}

	// The observed list replaces the previous one after notification,
	// even with zero subscribers attached.
	r.mu.Lock()
	r.known = next
	r.mu.Unlock()
}

func (r *Reconciler) devicesFrom(endpoints []Endpoint) []Device {
	connected := ""
	if r.connectedID != nil {
		connected = r.connectedID()
	}

	out := make([]Device, 0, len(endpoints))
	for _, ep := range endpoints {
		id := DeviceID(ep.Index, ep.Name)
		out = append(out, Device{
			ID:        id,
			Name:      ep.Name,
			Connected: connected != "" && id == connected,
		})
	}

	return out
}
