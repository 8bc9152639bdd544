package produce

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

type published struct {
	queue string
	msg   amqp.Publishing
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, queue string, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{queue: queue, msg: msg})
	return nil
}

func TestBuildProgressEvent_DoesNotMutateCorrelation(t *testing.T) {
	correlation := map[string]interface{}{"type": "install", "name": "loyalties", "message": "caller value"}

	event := BuildProgressEvent(correlation, MessageStarted)

	assert.Equal(t, "started", event["message"])
	assert.Equal(t, "loyalties", event["name"])
	assert.Equal(t, "caller value", correlation["message"])
}

func TestNotificationService_Report(t *testing.T) {
	pub := &fakePublisher{}
	svc := InitNotificationService(pub, "")

	err := svc.Report(context.Background(), map[string]interface{}{"name": "loyalties", "requestId": "r-7"}, "Syncing ui ....")
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, DefaultNotificationQueue, pub.sent[0].queue)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &body))
	assert.Equal(t, map[string]interface{}{"name": "loyalties", "requestId": "r-7", "message": "Syncing ui ...."}, body)
}

func TestNotificationService_ReportPublishError(t *testing.T) {
	svc := InitNotificationService(&fakePublisher{err: errors.New("channel closed")}, "q")

	err := svc.Report(context.Background(), nil, MessageDone)
	assert.ErrorContains(t, err, "channel closed")
}

func TestDeadLetterService_Park(t *testing.T) {
	pub := &fakePublisher{}
	svc := InitDeadLetterService(pub, "managePluginInstall.dead")

	err := svc.Park(context.Background(), amqp.Delivery{
		MessageId: "m-1",
		Body:      []byte(`{"data":{}}`),
		Headers:   amqp.Table{"origin": "core"},
	}, 3, "step remove-service failed")
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	sent := pub.sent[0]
	assert.Equal(t, "managePluginInstall.dead", sent.queue)
	assert.Equal(t, "m-1", sent.msg.MessageId)
	assert.Equal(t, []byte(`{"data":{}}`), sent.msg.Body)
	assert.Equal(t, "core", sent.msg.Headers["origin"])
	assert.Equal(t, int64(3), sent.msg.Headers[HeaderDeadLetterAttempts])
	assert.Equal(t, "step remove-service failed", sent.msg.Headers[HeaderDeadLetterReason])
}

func TestJobService_PublishJob(t *testing.T) {
	pub := &fakePublisher{}
	svc := InitJobService(pub, "")

	id, err := svc.PublishJob(context.Background(), entity.NewJobMessage(entity.JobTypeInstall, "loyalties", nil))
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, DefaultInstallQueue, pub.sent[0].queue)
	assert.Equal(t, id, pub.sent[0].msg.MessageId)
	assert.JSONEq(t, `{"data":{"type":"install","name":"loyalties"}}`, string(pub.sent[0].msg.Body))
}
