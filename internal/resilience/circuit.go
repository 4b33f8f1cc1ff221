package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Zero values select the defaults noted per field.
type BreakerConfig struct {
	// Target labels metrics and logs. Defaults to "default".
	Target string
	// MinRequests is the sample size before the ratio is evaluated. Defaults to 1.
	MinRequests int
	// FailureRatio in (0,1] that trips the breaker. Defaults to 0.5.
	FailureRatio float64
	// OpenFor is the cool-off before a probe is allowed. Defaults to 30s.
	OpenFor time.Duration
	Logger  *zerolog.Logger
}

// Breaker implements a failure-ratio circuit breaker.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	total    int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker constructs a breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 1
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.FailureRatio > 1 {
		cfg.FailureRatio = 1
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	cfg.Target = strings.TrimSpace(cfg.Target)
	if cfg.Target == "" {
		cfg.Target = "default"
	}
	b := &Breaker{cfg: cfg, state: Closed, now: time.Now}
	b.recordState()
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. Once the cool-off elapses an
// open breaker admits exactly one probe and moves to half-open.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Report records the outcome of an admitted request.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	b.total++
	if !success {
		b.failures++
	}
	if b.total < b.cfg.MinRequests {
		return
	}
	if float64(b.failures)/float64(b.total) >= b.cfg.FailureRatio {
		b.transition(ctx, Open)
		return
	}
	if b.total > b.cfg.MinRequests*2 {
		// decay so old successes do not mask a new outage
		b.total = (b.total + 1) / 2
		b.failures = (b.failures + 1) / 2
	}
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.failures, b.total = 0, 0
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.recordState()
	if prev == next {
		return
	}
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(b.cfg.Target, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(b.cfg.Target).Inc()
	}
	evt := b.logger(ctx).Info()
	if next == Open {
		evt = b.logger(ctx).Warn()
	}
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Str("target", b.cfg.Target).Str("from_state", prev.String()).Str("to_state", next.String()).Msg("breaker_transition")
}

func (b *Breaker) recordState() {
	if BreakerState != nil {
		BreakerState.WithLabelValues(b.cfg.Target).Set(float64(b.state))
	}
}

func (b *Breaker) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	if b.cfg.Logger != nil {
		return b.cfg.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Backoff returns an exponential backoff duration for the provided attempt.
// Jitter is expressed as a fraction (e.g. 0.2 == 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
