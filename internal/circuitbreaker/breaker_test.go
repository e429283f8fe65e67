// v0
// internal/circuitbreaker/breaker_test.go
package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

var errSynthetic = errors.New("synthetic failure")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBreakerLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("lifecycle", Config{MaxFailures: 2, ResetTimeout: time.Second, SuccessesToClose: 2}, nil, quietLogger())
	b.now = clock.Now

	var transitions []string
	b.OnStateChange = func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	fail := func(context.Context) error { return errSynthetic }
	ok := func(context.Context) error { return nil }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Execute(ctx, fail); !errors.Is(err, errSynthetic) {
			t.Fatalf("attempt %d: expected synthetic failure, got %v", i, err)
		}
	}
	if b.State() != Open {
		t.Fatalf("expected open, got %v", b.State())
	}

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected fast fail without call, got err=%v called=%v", err, called)
	}

	clock.Advance(2 * time.Second)
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("half-open call failed: %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open after first success, got %v", b.State())
	}
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("second half-open call failed: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected closed, got %v", b.State())
	}

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestBreakerFailedProbeStaysOpen(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	probe := func(context.Context) error { return errSynthetic }
	b := New("probe", Config{MaxFailures: 1, ResetTimeout: time.Second}, probe, quietLogger())
	b.now = clock.Now

	_ = b.Execute(context.Background(), func(context.Context) error { return errSynthetic })
	clock.Advance(2 * time.Second)
	if err := b.Execute(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after failed probe, got %v", err)
	}
	if b.State() != Open {
		t.Fatalf("expected open, got %v", b.State())
	}
}

func testSettings(threshold int) KafkaSettings {
	return KafkaSettings{
		Enabled:          true,
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
		AttemptTimeout:   50 * time.Millisecond,
		Backoff:          time.Millisecond,
	}
}

func TestKafkaSettingsValidate(t *testing.T) {
	if err := DefaultKafkaSettings().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	bad := DefaultKafkaSettings()
	bad.FailureThreshold = 0
	if _, err := NewKafkaBreaker("bad", bad, nil, quietLogger()); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestCBKafkaWriterRetriesUntilSuccess(t *testing.T) {
	kb, err := NewKafkaBreaker("retry", testSettings(3), nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stub := &stubKafkaWriter{failuresBeforeSuccess: 2}
	w := NewCBKafkaWriter(stub, kb)
	if err := w.WriteMessages(context.Background(), kafka.Message{Value: []byte("payload")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", stub.calls)
	}
	if kb.Breaker().State() != Closed {
		t.Fatalf("expected closed, got %v", kb.Breaker().State())
	}
}

func TestCBKafkaWriterOpensAndFastFails(t *testing.T) {
	kb, err := NewKafkaBreaker("open", testSettings(2), nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stub := &stubKafkaWriter{failuresBeforeSuccess: 100}
	w := NewCBKafkaWriter(stub, kb)

	if err := w.WriteMessages(context.Background(), kafka.Message{}); !errors.Is(err, errSynthetic) {
		t.Fatalf("expected synthetic failure, got %v", err)
	}
	if kb.Breaker().State() != Open {
		t.Fatalf("expected open, got %v", kb.Breaker().State())
	}
	before := stub.calls
	if err := w.WriteMessages(context.Background(), kafka.Message{}); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if stub.calls != before {
		t.Fatalf("open breaker must not call the writer")
	}
}

func TestCBKafkaWriterDisabled(t *testing.T) {
	s := testSettings(3)
	s.Enabled = false
	kb, err := NewKafkaBreaker("disabled", s, nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kb.Enabled() {
		t.Fatalf("expected breaker disabled")
	}
	stub := &stubKafkaWriter{failuresBeforeSuccess: 1}
	w := NewCBKafkaWriter(stub, kb)
	if err := w.WriteMessages(context.Background(), kafka.Message{}); err == nil {
		t.Fatalf("expected the single attempt to fail")
	}
	if stub.calls != 1 {
		t.Fatalf("expected single call when breaker disabled, got %d", stub.calls)
	}
}

type stubKafkaWriter struct {
	mu                    sync.Mutex
	calls                 int
	failuresBeforeSuccess int
}

func (s *stubKafkaWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.calls++
	if s.calls <= s.failuresBeforeSuccess {
		return errSynthetic
	}
	return nil
}
