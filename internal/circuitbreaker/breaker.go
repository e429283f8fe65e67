// v0
// internal/circuitbreaker/breaker.go
// Package circuitbreaker guards calls to an unreliable dependency. After
// MaxFailures consecutive failures the breaker opens and fast-fails every
// call until ResetTimeout has elapsed; it then lets calls through in
// half-open state and closes again after SuccessesToClose successes.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
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

// ErrOpen is returned without calling the operation while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
	SuccessesToClose int           // successes required in HalfOpen before closing
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	probe  func(ctx context.Context) error
	now    func() time.Time

	// OnStateChange, when set, is called after every transition with the lock released.
	OnStateChange func(name string, from, to State)

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New returns a closed breaker. probe, when non-nil, is run before the
// first half-open call; a failing probe keeps the breaker open.
func New(name string, cfg Config, probe func(ctx context.Context) error, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With(slog.String("breaker", name)),
		probe:  probe,
		now:    time.Now,
		state:  Closed,
	}
	b.logger.Info("breaker_created",
		slog.Int("max_failures", cfg.MaxFailures),
		slog.Int("successes_to_close", cfg.SuccessesToClose),
		slog.String("reset_timeout", cfg.ResetTimeout.String()),
	)
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.before(ctx); err != nil {
		return err
	}
	err := op(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return nil
	}
	since := b.now().Sub(b.openedAt)
	if since < b.cfg.ResetTimeout {
		b.mu.Unlock()
		b.logger.Debug("breaker_fast_fail", slog.String("since_open", since.String()))
		return ErrOpen
	}
	b.successes = 0
	from := b.transition(HalfOpen)
	b.mu.Unlock()
	b.changed(from, HalfOpen)

	if b.probe == nil {
		return nil
	}
	if err := b.probe(ctx); err != nil {
		b.logger.Warn("breaker_probe_failed", slog.Any("err", err))
		b.mu.Lock()
		b.openedAt = b.now()
		from := b.transition(Open)
		b.mu.Unlock()
		b.changed(from, Open)
		return ErrOpen
	}
	b.logger.Info("breaker_probe_ok")
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	from := b.state
	to := from
	if err == nil {
		switch b.state {
		case HalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessesToClose {
				b.failures = 0
				to = b.transitionTo(Closed)
			}
		default:
			b.failures = 0
		}
	} else {
		switch b.state {
		case HalfOpen:
			b.openedAt = b.now()
			to = b.transitionTo(Open)
		case Closed:
			b.failures++
			if b.failures >= b.cfg.MaxFailures {
				b.openedAt = b.now()
				to = b.transitionTo(Open)
			}
		}
	}
	failures := b.failures
	b.mu.Unlock()

	if err != nil {
		b.logger.Warn("operation_failure", slog.Int("failures", failures), slog.Any("err", err))
	}
	if to != from {
		b.changed(from, to)
	}
}

// transition must be called with b.mu held and returns the previous state.
func (b *Breaker) transition(to State) State {
	from := b.state
	b.state = to
	return from
}

// transitionTo must be called with b.mu held and returns the new state.
func (b *Breaker) transitionTo(to State) State {
	b.state = to
	return to
}

func (b *Breaker) changed(from, to State) {
	if from == to {
		return
	}
	level := slog.LevelInfo
	if to == Open {
		level = slog.LevelError
	}
	b.logger.Log(context.Background(), level, "breaker_state_change",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
	if b.OnStateChange != nil {
		b.OnStateChange(b.name, from, to)
	}
}
