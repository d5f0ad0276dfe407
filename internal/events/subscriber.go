package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultSubscriberRetries = 5

// HandlerFunc processes one delivered event. Errors are logged at the
// dispatch boundary; they never stop the consumer loop.
type HandlerFunc func(ctx context.Context, env Envelope) error

type SubscriberConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string

	MaxRetries          int
	BaseDelay           time.Duration
	GracefulDegradation bool
}

// Subscriber dispatches broker messages to handlers registered per event
// type. One consumer loop runs per distinct topic; event types sharing a
// topic share its loop, so delivery within a partition stays sequential.
type Subscriber struct {
	cfg    SubscriberConfig
	logger *log.Logger

	mu       sync.Mutex
	state    ConnState
	handlers map[string][]HandlerFunc
	readers  map[string]*kafka.Reader
	runCtx   context.Context
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

func NewSubscriber(cfg SubscriberConfig, logger *log.Logger) *Subscriber {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultSubscriberRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	return &Subscriber{
		cfg:      cfg,
		logger:   logger,
		state:    StateDisconnected,
		handlers: make(map[string][]HandlerFunc),
		readers:  make(map[string]*kafka.Reader),
	}
}

// Start verifies broker reachability with the same retry/degrade semantics
// as the publisher. A subscriber that fails to connect stays non-functional
// but does not crash the owning process when degradation is enabled.
func (s *Subscriber) Start(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnected {
		return nil
	}
	s.state = StateConnecting

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		s.logger.Printf("kafka subscriber connect attempt %d/%d", attempt+1, s.cfg.MaxRetries)

		if err := pingBroker(ctx, s.cfg.Brokers, timeout); err == nil {
			// Consumer loops get their own context so they outlive the
			// startup deadline and stop only via Stop.
			s.runCtx, s.cancel = context.WithCancel(context.Background())
			s.state = StateConnected
			s.logger.Printf("kafka subscriber connected")
			return nil
		} else if attempt < s.cfg.MaxRetries-1 {
			delay := s.cfg.BaseDelay * (1 << attempt)
			s.logger.Printf("kafka subscriber connect attempt %d failed: %v; retrying in %s", attempt+1, err, delay)
			select {
			case <-ctx.Done():
				s.state = StateDisconnected
				return ctx.Err()
			case <-time.After(delay):
			}
		} else {
			s.logger.Printf("kafka subscriber connect attempt %d failed: %v", attempt+1, err)
		}
	}

	s.state = StateDisconnected
	if s.cfg.GracefulDegradation {
		s.logger.Printf("kafka unreachable after %d attempts; subscriber disabled, no events will be consumed", s.cfg.MaxRetries)
		return nil
	}
	return fmt.Errorf("subscriber connect after %d attempts: %w", s.cfg.MaxRetries, ErrUnavailable)
}

// Subscribe registers handler for eventType and lazily opens one consumer
// loop for topic. Multiple event types may share a topic.
func (s *Subscriber) Subscribe(topic, eventType string, handler HandlerFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		s.logger.Printf("cannot subscribe to %s: kafka not connected", eventType)
		if s.cfg.GracefulDegradation {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", eventType, ErrUnavailable)
	}

	s.handlers[eventType] = append(s.handlers[eventType], handler)

	if _, ok := s.readers[topic]; !ok {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     s.cfg.Brokers,
			GroupID:     s.cfg.GroupID,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.FirstOffset,
			MaxWait:     500 * time.Millisecond,
		})
		s.readers[topic] = reader

		s.wg.Add(1)
		go s.consume(topic, reader)
	}

	s.logger.Printf("subscribed to %s on topic %s", eventType, topic)
	return nil
}

// Stop signals all consumer loops to exit, closes their readers and waits
// for in-flight handlers to finish. Idempotent.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	readers := s.readers
	s.readers = make(map[string]*kafka.Reader)
	s.state = StateDisconnected
	s.mu.Unlock()

	for topic, reader := range readers {
		if err := reader.Close(); err != nil {
			s.logger.Printf("close consumer for %s: %v", topic, err)
		}
	}
	s.wg.Wait()
}

// State reports the cached connection state.
func (s *Subscriber) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscriber) consume(topic string, reader *kafka.Reader) {
	defer s.wg.Done()

	ctx := s.runCtx
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				s.logger.Printf("stopping consumer for topic %s", topic)
				return
			}
			s.logger.Printf("fetch from %s: %v", topic, err)
			continue
		}

		s.dispatch(ctx, topic, msg.Value)

		// At-least-once: the offset is committed after the delivery
		// attempt, whether or not handlers succeeded.
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.logger.Printf("commit offset on %s: %v", topic, err)
		}
	}
}

// dispatch decodes the message and invokes every handler registered for its
// event type. A failing handler is logged and must never abort the loop or
// its siblings.
func (s *Subscriber) dispatch(ctx context.Context, topic string, body []byte) {
	env, err := ParseEnvelope(body)
	if err != nil {
		s.logger.Printf("drop malformed message on %s: %v payload=%s", topic, err, body)
		return
	}

	s.mu.Lock()
	handlers := append([]HandlerFunc(nil), s.handlers[env.EventType]...)
	s.mu.Unlock()

	for _, handler := range handlers {
		s.invoke(ctx, handler, env)
	}
}

func (s *Subscriber) invoke(ctx context.Context, handler HandlerFunc, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("handler panic: event=%s type=%s correlation=%s: %v", env.EventID, env.EventType, env.PartitionKey(), r)
		}
	}()

	if err := handler(ctx, env); err != nil {
		s.logger.Printf("handler error: event=%s type=%s correlation=%s: %v", env.EventID, env.EventType, env.PartitionKey(), err)
	}
}
