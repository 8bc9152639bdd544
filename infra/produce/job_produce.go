package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

const DefaultInstallQueue = "managePluginInstall"

// JobService enqueues install jobs, used by the CLI and tests against a
// live broker.
type JobService struct {
	publisher Publisher
	queue     string
}

func InitJobService(publisher Publisher, queue string) *JobService {
	if queue == "" {
		queue = DefaultInstallQueue
	}
	return &JobService{publisher: publisher, queue: queue}
}

// PublishJob returns the message id assigned to the job.
func (s *JobService) PublishJob(ctx context.Context, msg entity.JobMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job message: %w", err)
	}

	messageID := uuid.NewString()
	err = s.publisher.Publish(ctx, s.queue, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish job message: %w", err)
	}
	return messageID, nil
}
