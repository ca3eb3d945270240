package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeIngestNotification = "notification:ingest"
	TypeRenewSubscriptions = "subscriptions:renew"
	TypeBackfillAll        = "channels:backfill"
	TypeBackfillChannel    = "channel:backfill"
)

// QueueHigh carries notification ingestion so fresh uploads are not stuck
// behind backfill work.
const QueueHigh = "high"

// TaskEnqueuer is the part of *asynq.Client producers need. Tests substitute
// a recording fake.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type IngestNotificationPayload struct {
	Body       []byte
	RequestID  string
	ReceivedAt time.Time
}

// NewIngestNotificationTask wraps a verified hub push. The task is never
// retried; the hub redelivers if the notification matters.
func NewIngestNotificationTask(body []byte, requestID string, receivedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestNotificationPayload{
		Body:       body,
		RequestID:  requestID,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngestNotification, payload, asynq.Queue(QueueHigh), asynq.MaxRetry(0)), nil
}

func NewRenewSubscriptionsTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeRenewSubscriptions, nil, asynq.MaxRetry(1)), nil
}

func NewBackfillAllTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeBackfillAll, nil), nil
}

type BackfillChannelPayload struct {
	ChannelID string
}

func NewBackfillChannelTask(channelID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BackfillChannelPayload{ChannelID: channelID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBackfillChannel, payload), nil
}
