package vanity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stacklok/boostsync/internal/telemetry"
)

// DefaultInterval is the time between ticks
const DefaultInterval = 30 * time.Second

// ErrUnknownCode is returned when resetting a code that is not tracked
var ErrUnknownCode = errors.New("vanity code is not tracked")

// Poller probes tracked codes on a fixed interval and notifies once per code.
type Poller interface {
	// Start runs the tick loop. Blocks until ctx is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the loop and waits for the current tick to finish
	Stop() error

	// Tick runs one pass over all armed codes. It returns false without
	// probing if another tick is still running
	Tick(ctx context.Context) bool

	// Reset re-arms one tracked code
	Reset(code string) error

	// ResetAll re-arms every tracked code and returns how many were reset
	ResetAll() int

	// Trackers returns a copy of every tracker in configuration order
	Trackers() []Tracker
}

// Option is a function that configures the poller
type Option func(*defaultPoller)

// WithInterval sets the tick interval
func WithInterval(d time.Duration) Option {
	return func(p *defaultPoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRequiredMisses sets the debounce threshold
func WithRequiredMisses(n int) Option {
	return func(p *defaultPoller) {
		if n > 0 {
			p.requiredMisses = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *defaultPoller) {
		p.now = now
	}
}

// WithMetrics sets the vanity metrics for the poller
func WithMetrics(metrics *telemetry.VanityMetrics) Option {
	return func(p *defaultPoller) {
		p.metrics = metrics
	}
}

type defaultPoller struct {
	prober         Prober
	notifier       Notifier
	interval       time.Duration
	requiredMisses int
	now            func() time.Time
	metrics        *telemetry.VanityMetrics

	mu       sync.Mutex
	trackers map[string]*Tracker
	order    []string

	ticking atomic.Bool

	// Lifecycle management
	lifecycleMu sync.Mutex
	cancelFunc  context.CancelFunc
	done        chan struct{}
}

// New creates a poller tracking codes. Duplicate and blank codes are dropped.
func New(codes []string, prober Prober, notifier Notifier, opts ...Option) Poller {
	p := &defaultPoller{
		prober:         prober,
		notifier:       notifier,
		interval:       DefaultInterval,
		requiredMisses: DefaultRequiredMisses,
		now:            time.Now,
		trackers:       make(map[string]*Tracker, len(codes)),
	}

	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, exists := p.trackers[code]; exists {
			continue
		}
		p.trackers[code] = &Tracker{Code: code}
		p.order = append(p.order, code)
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start begins polling
func (p *defaultPoller) Start(ctx context.Context) error {
	slog.Info("Starting vanity poller",
		"codes", len(p.order),
		"interval", p.interval,
		"required_misses", p.requiredMisses)

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.lifecycleMu.Lock()
	p.cancelFunc = cancel
	p.done = done
	p.lifecycleMu.Unlock()

	defer func() {
		cancel()
		close(done)
		slog.Info("Vanity poller shutting down")
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(pollCtx)

	for {
		select {
		case <-ticker.C:
			p.Tick(pollCtx)
		case <-pollCtx.Done():
			return nil
		}
	}
}

// Stop gracefully stops the poller
func (p *defaultPoller) Stop() error {
	p.lifecycleMu.Lock()
	cancel, done := p.cancelFunc, p.done
	p.lifecycleMu.Unlock()

	if cancel != nil {
		slog.Info("Stopping vanity poller")
		cancel()
		<-done
	}
	return nil
}

// Tick probes every armed code once
func (p *defaultPoller) Tick(ctx context.Context) bool {
	if !p.ticking.CompareAndSwap(false, true) {
		slog.Warn("Previous vanity tick still running, skipping")
		return false
	}
	defer p.ticking.Store(false)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Vanity tick panicked, abandoning tick", "panic", fmt.Sprint(r))
		}
	}()

	for _, armed := range p.armedCodes() {
		if ctx.Err() != nil {
			return true
		}
		p.checkCode(ctx, armed)
	}
	return true
}

// armedCode is a code due for probing and the tracker generation it was read at
type armedCode struct {
	code       string
	generation uint64
}

// armedCodes returns the codes that still need probing
func (p *defaultPoller) armedCodes() []armedCode {
	p.mu.Lock()
	defer p.mu.Unlock()

	codes := make([]armedCode, 0, len(p.order))
	for _, code := range p.order {
		tracker := p.trackers[code]
		if tracker.State() == StateArmed {
			codes = append(codes, armedCode{code: code, generation: tracker.Generation()})
		}
	}
	return codes
}

// checkCode probes one code and applies the observation. The observation is
// dropped when the tracker was reset while the probe was in flight.
func (p *defaultPoller) checkCode(ctx context.Context, armed armedCode) {
	code := armed.code
	obs, err := p.prober.Probe(ctx, code)
	if err != nil {
		obs = ObservationError
		slog.Warn("Vanity probe failed", "code", code, "error", err)
	}
	p.metrics.RecordProbe(ctx, code, string(obs))

	at := p.now()

	p.mu.Lock()
	tracker := p.trackers[code]
	if tracker.Generation() != armed.generation {
		p.mu.Unlock()
		slog.Debug("Vanity tracker reset during probe, dropping observation",
			"code", code,
			"observation", string(obs))
		return
	}
	confirmed := tracker.Observe(obs, p.requiredMisses, at)
	misses := tracker.ConsecutiveMisses
	p.mu.Unlock()

	slog.Debug("Vanity probe observed",
		"code", code,
		"observation", string(obs),
		"consecutive_misses", misses)

	if !confirmed {
		return
	}

	slog.Info("Vanity code confirmed available", "code", code, "at", FormatTimestamp(at))

	if err := p.notifier.NotifyAvailable(ctx, code, at); err != nil {
		slog.Error("Failed to send vanity notification", "code", code, "error", err)
		p.metrics.RecordNotification(ctx, code, false)
		return
	}
	p.metrics.RecordNotification(ctx, code, true)
}

// Reset re-arms one code
func (p *defaultPoller) Reset(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, ok := p.trackers[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}
	tracker.Reset()
	slog.Info("Vanity tracker reset", "code", code)
	return nil
}

// ResetAll re-arms every code
func (p *defaultPoller) ResetAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, code := range p.order {
		p.trackers[code].Reset()
	}
	slog.Info("All vanity trackers reset", "count", len(p.order))
	return len(p.order)
}

// Trackers returns copies so callers cannot mutate poller state
func (p *defaultPoller) Trackers() []Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Tracker, 0, len(p.order))
	for _, code := range p.order {
		out = append(out, *p.trackers[code])
	}
	return out
}
