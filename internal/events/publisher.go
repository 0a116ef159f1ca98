// Package events publishes a single domain event, SessionCompleted, to
// Kafka when the session engine finalizes a session. Grounded on the
// teacher's KafkaPublisher retry-then-DLQ pattern (services/event-service
// /internal/publisher/kafka_publisher.go), trimmed to the one event type
// the CAT core emits and without the multi-topic router the teacher uses
// for attempt/placement events outside this scope.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/logger"
	"catcore/internal/metrics"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// SessionCompleted is the event payload published when the session engine
// finalizes a session.
type SessionCompleted struct {
	EventID           string                   `json:"event_id"`
	SessionID         string                   `json:"session_id"`
	UserID            string                   `json:"user_id"`
	FinalTheta        float64                  `json:"final_theta"`
	FinalThetaSE      float64                  `json:"final_theta_se"`
	ItemsAdministered int                      `json:"items_administered"`
	CorrectCount      int                      `json:"correct_count"`
	StopReason        string                   `json:"stop_reason"`
	DomainCoverage    map[domain.Domain]int    `json:"domain_coverage"`
	PublishedAt       time.Time                `json:"published_at"`
}

// Publisher is the narrow interface the session-finalize path depends on,
// so callers that don't want Kafka wired (tests, the simulation harness)
// can pass nil or a no-op implementation instead.
type Publisher interface {
	PublishSessionCompleted(ctx context.Context, event SessionCompleted) error
	Close() error
}

// KafkaPublisher implements Publisher over a single kafka-go writer, with a
// bounded retry policy and a dead-letter topic for exhausted retries.
type KafkaPublisher struct {
	writer    *kafka.Writer
	dlqWriter *kafka.Writer
	log       *logger.Logger
	metrics   *metrics.Metrics

	maxRetries    int
	initialDelay  time.Duration
	maxDelay      time.Duration
	backoffFactor float64
}

// NewKafkaPublisher constructs a KafkaPublisher from Kafka configuration.
func NewKafkaPublisher(cfg config.KafkaConfig, log *logger.Logger, m *metrics.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic + ".dlq",
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &KafkaPublisher{
		writer:        writer,
		dlqWriter:     dlqWriter,
		log:           log,
		metrics:       m,
		maxRetries:    3,
		initialDelay:  100 * time.Millisecond,
		maxDelay:      2 * time.Second,
		backoffFactor: 2.0,
	}
}

var _ Publisher = (*KafkaPublisher)(nil)

// PublishSessionCompleted publishes the event with bounded retries, falling
// back to a dead-letter topic when every attempt fails.
func (p *KafkaPublisher) PublishSessionCompleted(ctx context.Context, event SessionCompleted) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.PublishedAt = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal session-completed event: %w", err)
	}
	message := kafka.Message{Key: []byte(event.SessionID), Value: payload}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(p.initialDelay) * math.Pow(p.backoffFactor, float64(attempt-1)))
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := p.writer.WriteMessages(ctx, message); err == nil {
			return nil
		} else {
			lastErr = err
			if p.log != nil {
				p.log.WithContext(ctx).WithField("session_id", event.SessionID).WithField("attempt", attempt+1).
					Warn("events: failed to publish session-completed event, will retry")
			}
		}
	}

	if dlqErr := p.dlqWriter.WriteMessages(ctx, message); dlqErr != nil {
		if p.metrics != nil {
			p.metrics.EventPublishErrors.Inc()
		}
		return fmt.Errorf("events: failed to publish session-completed event and failed to send to DLQ: %w", lastErr)
	}

	if p.metrics != nil {
		p.metrics.EventPublishErrors.Inc()
	}
	return fmt.Errorf("events: failed to publish session-completed event after %d attempts, sent to DLQ: %w", p.maxRetries+1, lastErr)
}

// Close closes both underlying writers.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return err
	}
	return p.dlqWriter.Close()
}
