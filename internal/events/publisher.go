package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrUnavailable marks broker connectivity failures. Callers decide whether
// it is fatal; with graceful degradation enabled it never escapes.
var ErrUnavailable = errors.New("kafka unavailable")

const (
	defaultPublisherRetries = 10
	defaultBaseDelay        = 2 * time.Second
)

type PublisherConfig struct {
	Brokers  []string
	ClientID string

	// MaxRetries bounds connection attempts; delay before attempt n is
	// BaseDelay * 2^n.
	MaxRetries int
	BaseDelay  time.Duration

	// GracefulDegradation keeps the process alive when the broker is
	// unreachable: publishes are logged instead of sent.
	GracefulDegradation bool
}

// Publisher is the process-wide event publisher. It holds one long-lived
// writer and is safe for concurrent use.
type Publisher struct {
	cfg    PublisherConfig
	logger *log.Logger

	mu     sync.Mutex
	state  ConnState
	writer *kafka.Writer
}

func NewPublisher(cfg PublisherConfig, logger *log.Logger) *Publisher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultPublisherRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	return &Publisher{cfg: cfg, logger: logger, state: StateDisconnected}
}

// Start connects to the broker, retrying with exponential backoff. Each
// attempt is capped by timeout. When all attempts fail and graceful
// degradation is enabled the publisher stays disconnected and Start returns
// nil; the process continues without event publishing.
func (p *Publisher) Start(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateConnected {
		return nil
	}
	p.state = StateConnecting

	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		p.logger.Printf("kafka connect attempt %d/%d", attempt+1, p.cfg.MaxRetries)

		if err := pingBroker(ctx, p.cfg.Brokers, timeout); err == nil {
			p.writer = &kafka.Writer{
				Addr:                   kafka.TCP(p.cfg.Brokers...),
				Balancer:               &kafka.Hash{},
				RequiredAcks:           kafka.RequireAll,
				AllowAutoTopicCreation: true,
				BatchTimeout:           50 * time.Millisecond,
			}
			p.state = StateConnected
			p.logger.Printf("kafka publisher connected")
			return nil
		} else if attempt < p.cfg.MaxRetries-1 {
			delay := p.cfg.BaseDelay * (1 << attempt)
			p.logger.Printf("kafka connect attempt %d failed: %v; retrying in %s", attempt+1, err, delay)
			select {
			case <-ctx.Done():
				p.state = StateDisconnected
				return ctx.Err()
			case <-time.After(delay):
			}
		} else {
			p.logger.Printf("kafka connect attempt %d failed: %v", attempt+1, err)
		}
	}

	p.state = StateDisconnected
	if p.cfg.GracefulDegradation {
		p.logger.Printf("kafka unreachable after %d attempts; running in degraded mode, events will be logged instead of published", p.cfg.MaxRetries)
		return nil
	}
	return fmt.Errorf("connect after %d attempts: %w", p.cfg.MaxRetries, ErrUnavailable)
}

// Publish sends the envelope to topic, or to the routed topic when topic is
// empty. Messages are keyed by correlation id so a causal chain stays on one
// partition. In degraded mode the event is logged at warning level and the
// call succeeds.
func (p *Publisher) Publish(ctx context.Context, env Envelope, topic string) error {
	p.mu.Lock()
	state, w := p.state, p.writer
	p.mu.Unlock()

	if topic == "" {
		topic = TopicFor(env.EventType)
	}

	if state != StateConnected || w == nil {
		if p.cfg.GracefulDegradation {
			p.logger.Printf("WARN kafka not available, logging event instead: type=%s id=%s topic=%s", env.EventType, env.EventID, topic)
			return nil
		}
		return fmt.Errorf("publish %s: %w", env.EventType, ErrUnavailable)
	}

	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Printf("drop unserializable event type=%s id=%s: %v", env.EventType, env.EventID, err)
		return fmt.Errorf("marshal event %s: %w", env.EventType, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Value: body,
		Time:  env.Timestamp,
	}
	if key := env.PartitionKey(); key != "" {
		msg.Key = []byte(key)
	}

	if err := w.WriteMessages(ctx, msg); err != nil {
		if p.cfg.GracefulDegradation {
			p.logger.Printf("WARN publish %s to %s failed, logging event instead: %v payload=%s", env.EventType, topic, err, body)
			return nil
		}
		return fmt.Errorf("write %s to %s: %w", env.EventType, topic, err)
	}

	p.logger.Printf("published type=%s id=%s topic=%s correlation=%s", env.EventType, env.EventID, topic, env.PartitionKey())
	return nil
}

// Stop closes the writer. Safe to call repeatedly or before Start.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.writer
	p.writer = nil
	p.state = StateDisconnected
	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

// State reports the cached connection state.
func (p *Publisher) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HealthCheck probes the broker directly, ignoring the cached state.
func (p *Publisher) HealthCheck(ctx context.Context) bool {
	if err := pingBroker(ctx, p.cfg.Brokers, 5*time.Second); err != nil {
		p.logger.Printf("kafka health check failed: %v", err)
		return false
	}
	return true
}

func pingBroker(ctx context.Context, brokers []string, timeout time.Duration) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	live, err := conn.Brokers()
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	if len(live) == 0 {
		return fmt.Errorf("no live brokers")
	}
	return nil
}
