package events

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

// unreachableBroker is a port nothing listens on, so dials fail fast.
const unreachableBroker = "127.0.0.1:1"

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestPublisherStartUnreachableStrict(t *testing.T) {
	t.Parallel()

	p := NewPublisher(PublisherConfig{
		Brokers:    []string{unreachableBroker},
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	}, testLogger())

	err := p.Start(context.Background(), 100*time.Millisecond)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Start err=%v, want ErrUnavailable", err)
	}
	if p.State() != StateDisconnected {
		t.Fatalf("state=%s want=%s", p.State(), StateDisconnected)
	}
}

func TestPublisherStartUnreachableDegraded(t *testing.T) {
	t.Parallel()

	p := NewPublisher(PublisherConfig{
		Brokers:             []string{unreachableBroker},
		MaxRetries:          2,
		BaseDelay:           time.Millisecond,
		GracefulDegradation: true,
	}, testLogger())

	if err := p.Start(context.Background(), 100*time.Millisecond); err != nil {
		t.Fatalf("Start should degrade, got %v", err)
	}
	if p.State() != StateDisconnected {
		t.Fatalf("state=%s want=%s", p.State(), StateDisconnected)
	}

	// Degraded publishes log and succeed.
	env, err := NewEnvelope(EventTypeOrderCreated, "order-service", nil, nil)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := p.Publish(context.Background(), env, ""); err != nil {
		t.Fatalf("Publish in degraded mode: %v", err)
	}
}

func TestPublisherStartBackoffSchedule(t *testing.T) {
	t.Parallel()

	base := 20 * time.Millisecond
	p := NewPublisher(PublisherConfig{
		Brokers:             []string{unreachableBroker},
		MaxRetries:          3,
		BaseDelay:           base,
		GracefulDegradation: true,
	}, testLogger())

	start := time.Now()
	if err := p.Start(context.Background(), 100*time.Millisecond); err != nil {
		t.Fatalf("Start: %v", err)
	}
	elapsed := time.Since(start)

	// Two sleeps happen between three attempts: base and 2*base.
	if want := 3 * base; elapsed < want {
		t.Fatalf("elapsed=%s, want at least %s of backoff", elapsed, want)
	}
}

func TestPublishStrictWhenDisconnected(t *testing.T) {
	t.Parallel()

	p := NewPublisher(PublisherConfig{Brokers: []string{unreachableBroker}}, testLogger())

	env, err := NewEnvelope(EventTypeOrderCreated, "order-service", nil, nil)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := p.Publish(context.Background(), env, ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Publish err=%v, want ErrUnavailable", err)
	}
}

func TestPublisherStartCancelled(t *testing.T) {
	t.Parallel()

	p := NewPublisher(PublisherConfig{
		Brokers:    []string{unreachableBroker},
		MaxRetries: 5,
		BaseDelay:  time.Hour,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if err := p.Start(ctx, 10*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start err=%v, want context.Canceled", err)
	}
}

func TestPublisherStopIdempotent(t *testing.T) {
	t.Parallel()

	p := NewPublisher(PublisherConfig{Brokers: []string{unreachableBroker}}, testLogger())
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestConnStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String()=%q want=%q", tt.state, got, tt.want)
		}
	}
}
