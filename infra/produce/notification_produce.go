package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

const (
	DefaultNotificationQueue = "core:manage-installation-notification"

	MessageStarted = "started"
	MessageDone    = "done"
)

// NotificationService publishes installation progress. Delivery is best
// effort: publish failures are returned for logging and never alter the job.
type NotificationService struct {
	publisher Publisher
	queue     string
}

func InitNotificationService(publisher Publisher, queue string) *NotificationService {
	if queue == "" {
		queue = DefaultNotificationQueue
	}
	return &NotificationService{publisher: publisher, queue: queue}
}

// BuildProgressEvent merges message into a copy of the correlation data.
func BuildProgressEvent(correlation map[string]interface{}, message string) map[string]interface{} {
	event := make(map[string]interface{}, len(correlation)+1)
	for k, v := range correlation {
		event[k] = v
	}
	event["message"] = message
	return event
}

func (s *NotificationService) Report(ctx context.Context, correlation map[string]interface{}, message string) error {
	body, err := json.Marshal(BuildProgressEvent(correlation, message))
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, AMQPHeaderCarrier(headers))

	if err := s.publisher.Publish(ctx, s.queue, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Headers:     headers,
		Timestamp:   time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}
