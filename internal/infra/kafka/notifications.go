package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/infra/config"
	"github.com/arklim/expense-tracker-iam/internal/infra/logger"
	"github.com/arklim/expense-tracker-iam/internal/infra/mail"
)

const (
	schemaVersion = "1.0"

	EventVerificationRequested  = "iam.account.verification_requested"
	EventPasswordResetRequested = "iam.account.password_reset_requested"
)

// NotificationPublisher implements port.Notifier by publishing events for a
// downstream mailer. The payload carries the link and the raw token.
type NotificationPublisher struct {
	producer *Producer
	links    mail.Links
	appCfg   config.AppSettings
	logger   *zap.Logger
	now      func() time.Time
}

// NewNotificationPublisher constructs a Kafka-backed notifier.
func NewNotificationPublisher(producer *Producer, links mail.Links, appCfg config.AppSettings, log *zap.Logger) *NotificationPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationPublisher{producer: producer, links: links, appCfg: appCfg, logger: log, now: time.Now}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type notificationPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Link  string `json:"link"`
}

// SendVerification publishes iam.account.verification_requested.
func (p *NotificationPublisher) SendVerification(ctx context.Context, email, token string) error {
	link, err := p.links.Verification(token)
	if err != nil {
		return err
	}
	return p.publish(ctx, EventVerificationRequested, email, notificationPayload{Email: email, Token: token, Link: link})
}

// SendPasswordReset publishes iam.account.password_reset_requested.
func (p *NotificationPublisher) SendPasswordReset(ctx context.Context, email, token string) error {
	link, err := p.links.Reset(token)
	if err != nil {
		return err
	}
	return p.publish(ctx, EventPasswordResetRequested, email, notificationPayload{Email: email, Token: token, Link: link})
}

func (p *NotificationPublisher) publish(ctx context.Context, eventType, email string, payload any) error {
	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: p.now().UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(email),
		Value: sarama.ByteEncoder(bytes),
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}
	// Buffered so the send goroutine never blocks after ctx is abandoned.
	done := make(chan result, 1)
	go func() {
		partition, offset, err := p.producer.Send(message)
		done <- result{partition: partition, offset: offset, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("publish %s: %w", eventType, res.err)
		}
		logger.WithContext(ctx, p.logger).Debug("notification event delivered",
			zap.String("event_type", eventType),
			zap.String("event_id", envelope.EventID),
			zap.Int32("partition", res.partition),
			zap.Int64("offset", res.offset),
			logger.Email("email", email))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", eventType, ctx.Err())
	}
}

var _ port.Notifier = (*NotificationPublisher)(nil)
