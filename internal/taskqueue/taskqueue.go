// Package taskqueue enqueues tasks with a schedule time on SQS and decides,
// on the worker side, whether a delivered task is due.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/sqsclient"
)

const (
	// error msgs
	ClientNilErrMsg   = "sqs client is nil"
	QueueNotSetErrMsg = "queue url is not set"

	NotBeforeAttr        = "notBefore"
	DispatchDeadlineAttr = "dispatchDeadlineSeconds"

	// MaxDelay is the longest delay SQS applies to a single message.
	MaxDelay = 15 * time.Minute
)

// Options controls when and how long a task may run.
type Options struct {
	ScheduleTime     time.Time
	DispatchDeadline time.Duration
}

// Task is the envelope written to the queue.
type Task struct {
	Data json.RawMessage `json:"data"`
}

// Enqueuer is the enqueue surface handlers depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, data any, opts Options) (string, error)
}

type Config struct {
	Client   sqsclient.SqsClient
	QueueURL string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Queue implements Enqueuer.
type Queue struct {
	client sqsclient.SqsClient
	url    string
	now    func() time.Time
}

func New(cfg Config) (*Queue, error) {
	if cfg.Client == nil {
		return nil, errors.New(ClientNilErrMsg)
	}
	if cfg.QueueURL == "" {
		return nil, errors.New(QueueNotSetErrMsg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Queue{client: cfg.Client, url: cfg.QueueURL, now: cfg.Now}, nil
}

// DelayFor returns the SQS delay for a task scheduled at t, capped at MaxDelay.
func DelayFor(now, t time.Time) time.Duration {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Enqueue writes one task. Tasks scheduled further out than MaxDelay are
// delivered early and held back by the worker until notBefore.
func (q *Queue) Enqueue(ctx context.Context, data any, opts Options) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}
	body, err := json.Marshal(Task{Data: raw})
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}
	attrs := map[string]sqstypes.MessageAttributeValue{}
	if !opts.ScheduleTime.IsZero() {
		attrs[NotBeforeAttr] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(opts.ScheduleTime.UTC().Format(time.RFC3339)),
		}
	}
	if opts.DispatchDeadline > 0 {
		attrs[DispatchDeadlineAttr] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(int(opts.DispatchDeadline.Seconds()))),
		}
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.url),
		MessageBody:       aws.String(string(body)),
		DelaySeconds:      int32(DelayFor(q.now(), opts.ScheduleTime).Seconds()),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Delivery is a task as seen by the worker.
type Delivery struct {
	MessageID        string
	Data             json.RawMessage
	NotBefore        time.Time
	DispatchDeadline time.Duration
}

// FromSQS decodes a delivered message.
func FromSQS(msg events.SQSMessage) (Delivery, error) {
	var task Task
	if err := json.Unmarshal([]byte(msg.Body), &task); err != nil {
		return Delivery{}, fmt.Errorf("decode task %s: %w", msg.MessageId, err)
	}
	d := Delivery{MessageID: msg.MessageId, Data: task.Data}
	if a, ok := msg.MessageAttributes[NotBeforeAttr]; ok && a.StringValue != nil {
		t, err := time.Parse(time.RFC3339, *a.StringValue)
		if err != nil {
			return Delivery{}, fmt.Errorf("task %s: bad %s: %w", msg.MessageId, NotBeforeAttr, err)
		}
		d.NotBefore = t
	}
	if a, ok := msg.MessageAttributes[DispatchDeadlineAttr]; ok && a.StringValue != nil {
		secs, err := strconv.Atoi(*a.StringValue)
		if err != nil {
			return Delivery{}, fmt.Errorf("task %s: bad %s: %w", msg.MessageId, DispatchDeadlineAttr, err)
		}
		d.DispatchDeadline = time.Duration(secs) * time.Second
	}
	return d, nil
}

// Due reports whether the task may run at now.
func (d Delivery) Due(now time.Time) bool {
	return d.NotBefore.IsZero() || !now.Before(d.NotBefore)
}
