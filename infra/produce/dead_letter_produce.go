package produce

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	HeaderDeadLetterReason   = "x-installer-reason"
	HeaderDeadLetterAttempts = "x-installer-attempts"
)

// DeadLetterService parks jobs that exhausted their delivery attempts.
type DeadLetterService struct {
	publisher Publisher
	queue     string
}

func InitDeadLetterService(publisher Publisher, queue string) *DeadLetterService {
	return &DeadLetterService{publisher: publisher, queue: queue}
}

func (s *DeadLetterService) Queue() string {
	return s.queue
}

// Park republishes the original delivery body unchanged.
func (s *DeadLetterService) Park(ctx context.Context, msg amqp.Delivery, attempts int64, reason string) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderDeadLetterReason] = reason
	headers[HeaderDeadLetterAttempts] = attempts

	if err := s.publisher.Publish(ctx, s.queue, amqp.Publishing{
		ContentType:  msg.ContentType,
		MessageId:    msg.MessageId,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to dead-letter message: %w", err)
	}
	return nil
}
