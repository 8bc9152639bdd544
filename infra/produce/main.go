package produce

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the publish half of the message bus.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg amqp.Publishing) error
}

type Produce struct {
	NotificationService *NotificationService
	DeadLetterService   *DeadLetterService
	JobService          *JobService
}

func InitProduce(publisher Publisher, notificationQueue, deadLetterQueue, installQueue string) *Produce {
	return &Produce{
		NotificationService: InitNotificationService(publisher, notificationQueue),
		DeadLetterService:   InitDeadLetterService(publisher, deadLetterQueue),
		JobService:          InitJobService(publisher, installQueue),
	}
}
