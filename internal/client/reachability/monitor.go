// Package reachability tracks whether the server can actually be reached.
// Two independent inputs are combined into one boolean: the device-level
// connectivity signal (edge-triggered, reported by the host) and the result
// of a periodic health probe. Components that care about the combined signal
// subscribe for edge notifications.
package reachability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/avdeyev/catchdex/internal/client/repositories/metadata"
	"github.com/avdeyev/catchdex/internal/logging"
)

// Prober is the minimal health-check surface, satisfied by the gateway
// client.
type Prober interface {
	Health(ctx context.Context) error
}

// Options configures a Monitor. Zero durations fall back to the defaults
// (30s probe interval, 5s probe timeout, 2s confirmation delay).
type Options struct {
	Prober       Prober
	Meta         metadata.Repository
	Logger       logging.Logger
	Interval     time.Duration
	ProbeTimeout time.Duration
	ConfirmDelay time.Duration
}

// Monitor owns the reachability state machine.
type Monitor struct {
	prober       Prober
	meta         metadata.Repository
	logger       logging.Logger
	interval     time.Duration
	probeTimeout time.Duration
	confirmDelay time.Duration

	mu           sync.Mutex
	deviceOnline bool
	reachable    bool
	effective    bool
	subs         map[int]func(online bool)
	nextSubID    int

	kick chan struct{}
	done chan struct{}
	stop context.CancelFunc
	once sync.Once
}

// New returns a stopped Monitor. The device starts online and the server
// starts unreachable; the first probe settles the real state.
func New(opts Options) *Monitor {
	if opts.Interval == 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.ConfirmDelay == 0 {
		opts.ConfirmDelay = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Monitor{
		prober:       opts.Prober,
		meta:         opts.Meta,
		logger:       opts.Logger,
		interval:     opts.Interval,
		probeTimeout: opts.ProbeTimeout,
		confirmDelay: opts.ConfirmDelay,
		deviceOnline: true,
		subs:         make(map[int]func(bool)),
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Start launches the probe loop. The loop runs until Stop is called or the
// context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.stop = cancel
	go m.loop(ctx)
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		if m.stop != nil {
			m.stop()
			<-m.done
		}
	})
}

// Online reports the combined signal: device online AND server reachable.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effective
}

// SetDeviceOnline feeds the host connectivity edge in. Going offline forces
// unreachable immediately, there is no point probing a dead link. Going
// online schedules an immediate probe instead of waiting for the next tick.
func (m *Monitor) SetDeviceOnline(online bool) {
	m.mu.Lock()
	was := m.deviceOnline
	m.deviceOnline = online
	if !online {
		m.reachable = false
	}
	m.recalcLocked()
	m.mu.Unlock()

	if online && !was {
		select {
		case m.kick <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers a callback fired on every change of the combined
// signal. The returned id is passed to Unsubscribe. Callbacks run on the
// monitor's goroutine and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	m.subs[m.nextSubID] = fn
	return m.nextSubID
}

// Unsubscribe removes a previously registered callback.
func (m *Monitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Settle the initial state without waiting a full interval.
	m.probeAndConfirm(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		case <-m.kick:
			// Link-layer online events are unreliable, so the edge
			// gets one immediate probe and one delayed confirmation.
			m.probeAndConfirm(ctx)
		}
	}
}

// probeAndConfirm probes immediately, retrying once after a short constant
// delay when the first probe fails, and then re-probes once more after the
// same delay no matter what the first answer was. The host's online event
// often arrives before the link is actually usable: a failed first probe
// may be premature, and a successful one may hit a dying connection.
func (m *Monitor) probeAndConfirm(ctx context.Context) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.confirmDelay), 1),
		ctx,
	)
	_ = backoff.Retry(func() error { return m.probe(ctx) }, b)

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.confirmDelay):
	}
	_ = m.probe(ctx)
}

func (m *Monitor) probe(ctx context.Context) error {
	m.mu.Lock()
	online := m.deviceOnline
	m.mu.Unlock()
	if !online {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Health(pctx)
	cancel()

	now := time.Now()
	m.persist(ctx, metadata.KeyLastProbeAt, now)

	m.mu.Lock()
	m.reachable = err == nil
	changed := m.recalcLocked()
	effective := m.effective
	m.mu.Unlock()

	if changed {
		m.logger.Info(ctx, "reachability changed", "online", effective)
		if effective {
			m.persist(ctx, metadata.KeyLastOnlineAt, now)
		}
	}
	return err
}

// recalcLocked recomputes the combined signal and notifies subscribers on an
// edge. Caller holds m.mu.
func (m *Monitor) recalcLocked() bool {
	next := m.deviceOnline && m.reachable
	if next == m.effective {
		return false
	}
	m.effective = next
	for _, fn := range m.subs {
		fn(next)
	}
	return true
}

func (m *Monitor) persist(ctx context.Context, key string, at time.Time) {
	if m.meta == nil {
		return
	}
	val := strconv.FormatInt(at.UnixMilli(), 10)
	if err := m.meta.Set(ctx, key, []byte(val)); err != nil {
		m.logger.Warn(ctx, "failed to persist reachability timestamp", "key", key, "error", err)
	}
}
