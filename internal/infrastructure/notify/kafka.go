package notify

import (
	"context"
	"encoding/json"
	"time"

	"bcchrates-service/internal/application"

	"github.com/segmentio/kafka-go"
)

var _ application.Notifier = (*KafkaNotifier)(nil)

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RunEvent is the JSON payload published for every scheduled run.
type RunEvent struct {
	Type       string                      `json:"type"`
	RunID      string                      `json:"runId"`
	Attempts   int                         `json:"attempts"`
	ElapsedMs  int64                       `json:"elapsedMs"`
	Stats      *application.SyncStats      `json:"stats,omitempty"`
	Monthly    *application.AggregateStats `json:"monthly,omitempty"`
	Error      string                      `json:"error,omitempty"`
	Context    string                      `json:"context,omitempty"`
	OccurredAt time.Time                   `json:"occurredAt"`
}

const (
	EventRunSucceeded = "sync.run_succeeded"
	EventRunFailed    = "sync.run_failed"
)

type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafkaNotifier(w MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w, now: time.Now}
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (k *KafkaNotifier) NotifySuccess(ctx context.Context, r application.SuccessReport) error {
	return k.publish(ctx, RunEvent{
		Type:      EventRunSucceeded,
		RunID:     r.RunID,
		Attempts:  r.Attempts,
		ElapsedMs: r.Elapsed.Milliseconds(),
		Stats:     &r.Stats,
		Monthly:   &r.Monthly,
	})
}

func (k *KafkaNotifier) NotifyFailure(ctx context.Context, r application.FailureReport) error {
	ev := RunEvent{
		Type:      EventRunFailed,
		RunID:     r.RunID,
		Attempts:  r.Attempts,
		ElapsedMs: r.Elapsed.Milliseconds(),
		Context:   r.Context,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return k.publish(ctx, ev)
}

func (k *KafkaNotifier) publish(ctx context.Context, ev RunEvent) error {
	ev.OccurredAt = k.now().UTC()
	v, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RunID),
		Value: v,
		Time:  ev.OccurredAt,
	})
}

// Fanout delivers every report to all notifiers and returns the first error.
type Fanout []application.Notifier

func (f Fanout) NotifySuccess(ctx context.Context, r application.SuccessReport) error {
	var first error
	for _, n := range f {
		if err := n.NotifySuccess(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) NotifyFailure(ctx context.Context, r application.FailureReport) error {
	var first error
	for _, n := range f {
		if err := n.NotifyFailure(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
