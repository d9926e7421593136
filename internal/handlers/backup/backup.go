// Package backup copies NASA's astronomy picture of the day into a bucket,
// one task per date, and enqueues those tasks in hourly batches.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/outofoffice3/aws-samples/hermes/internal/blob"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/taskqueue"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
)

const (
	// error msgs
	BlobsNilErrMsg = "blob store is nil"

	// client-facing messages
	InvalidPayloadMsg = "Invalid payload. Must include date."
	UnavailableMsg    = "APOD API temporarily not available."
	BrokeMsg          = "Uh-oh. Something broke."
	NoApodMsg         = "No APOD today."

	DefaultAPIBase     = "https://api.nasa.gov/planetary/apod"
	DefaultContentType = "image/jpeg"
	DateLayout         = "2006-01-02"
	DispatchDeadline   = 5 * time.Minute
)

// StartDate is the first day APOD was published.
var StartDate = time.Date(1995, time.June, 17, 0, 0, 0, 0, time.UTC)

// Retry is the policy the backup queue is deployed with.
var Retry = &registry.RetryPolicy{
	MaxAttempts:             5,
	MinBackoff:              60 * time.Second,
	MaxConcurrentDispatches: 10,
}

type BackupHandler struct {
	Poster          *webhook.Poster
	Blobs           blob.Store
	Queue           taskqueue.Enqueuer
	APIBase         string
	APIKey          string
	Bucket          string
	Count           int
	HourlyBatchSize int
	Now             func() time.Time
	Logger          logger.Logger
}

type BackupHandlerConfig struct {
	Poster *webhook.Poster
	Blobs  blob.Store
	// Queue may be nil; enqueue requests then fail with MissingConfiguration.
	Queue taskqueue.Enqueuer
	// APIBase defaults to DefaultAPIBase.
	APIBase         string
	APIKey          string
	Bucket          string
	Count           int
	HourlyBatchSize int
	Now             func() time.Time
	Logger          logger.Logger
}

func NewBackupHandler(config BackupHandlerConfig) (*BackupHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Poster == nil {
		return nil, handlers.LogAndReturnError(errors.New(handlers.PosterNilErrMsg), config.Logger)
	}
	if config.Blobs == nil {
		return nil, handlers.LogAndReturnError(errors.New(BlobsNilErrMsg), config.Logger)
	}
	if config.APIBase == "" {
		config.APIBase = DefaultAPIBase
	}
	if config.HourlyBatchSize < 1 {
		config.HourlyBatchSize = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &BackupHandler{
		Poster:          config.Poster,
		Blobs:           config.Blobs,
		Queue:           config.Queue,
		APIBase:         config.APIBase,
		APIKey:          config.APIKey,
		Bucket:          config.Bucket,
		Count:           config.Count,
		HourlyBatchSize: config.HourlyBatchSize,
		Now:             config.Now,
		Logger:          config.Logger,
	}, nil
}

func (h *BackupHandler) Register(r *registry.Registry) error {
	if err := r.Register(registry.Registration{
		Kind:    event.BackupApodTask,
		Name:    "backupapod",
		Style:   registry.StyleCallable,
		Handler: registry.Callable(h.HandleTask),
		Retry:   Retry,
	}); err != nil {
		return err
	}
	return r.Register(registry.Registration{
		Kind:    event.EnqueueBackupTasks,
		Name:    "enqueuebackuptasks",
		Style:   registry.StyleRequest,
		Handler: registry.Request("enqueuebackuptasks", h.HandleEnqueue, h.Logger),
	})
}

// apod is the part of the APOD API answer the worker reads.
type apod struct {
	HDURL string `json:"hdurl"`
	URL   string `json:"url"`
}

// ObjectKey returns "apod/<date><ext>" where ext is taken from the picture URL path.
func ObjectKey(date, picURL string) string {
	ext := ""
	if u, err := url.Parse(picURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return "apod/" + date + ext
}

// HandleTask runs one backup task delivered as an envelope.
func (h *BackupHandler) HandleTask(ctx context.Context, env event.Envelope) (string, error) {
	task, err := event.Decode[sharedtypes.BackupTask](env)
	if err != nil {
		h.Logger.Warn("%s", InvalidPayloadMsg)
		return "", fnerr.New(fnerr.InvalidArgument, InvalidPayloadMsg)
	}
	return h.Backup(ctx, task.Date)
}

// Backup copies the picture of the day for date. A day without a picture
// is not a failure.
func (h *BackupHandler) Backup(ctx context.Context, date string) (string, error) {
	if date == "" {
		h.Logger.Warn("%s", InvalidPayloadMsg)
		return "", fnerr.New(fnerr.InvalidArgument, InvalidPayloadMsg)
	}
	if h.APIKey == "" {
		return "", fnerr.NotConfigured(params.NasaAPIKey)
	}
	if h.Bucket == "" {
		return "", fnerr.NotConfigured(params.BackupBucket)
	}

	h.Logger.Info("Requesting data from apod api for date %s", date)
	q := url.Values{"date": {date}, "api_key": {h.APIKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.APIBase+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := h.Poster.Raw(req)
	if err != nil {
		h.Logger.Warn("request to NASA APOD API failed: %v", err)
		return "", fnerr.New(fnerr.Unavailable, UnavailableMsg)
	}
	defer resp.Body.Close()
	if !fnerr.Successful(resp.StatusCode) {
		h.Logger.Warn("request to NASA APOD API failed with response %d", resp.StatusCode)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return NoApodMsg, nil
		case resp.StatusCode == http.StatusInternalServerError:
			return "", fnerr.New(fnerr.Unavailable, UnavailableMsg)
		default:
			return "", fnerr.New(fnerr.Internal, BrokeMsg)
		}
	}
	var pic apod
	if err := json.NewDecoder(resp.Body).Decode(&pic); err != nil {
		h.Logger.Error("failed to decode APOD answer for %s: %v", date, err)
		return "", fnerr.New(fnerr.Internal, BrokeMsg)
	}
	picURL := pic.HDURL
	if picURL == "" {
		picURL = pic.URL
	}
	h.Logger.Info("Fetched %s from NASA API for date %s.", picURL, date)

	data, contentType, err := h.fetch(ctx, picURL)
	if err != nil {
		h.Logger.Error("Failed to download %s: %v", picURL, err)
		return "", fnerr.New(fnerr.Internal, BrokeMsg)
	}
	key := ObjectKey(date, picURL)
	if err := h.Blobs.Upload(ctx, h.Bucket, key, data, contentType); err != nil {
		h.Logger.Error("Failed to upload %s to %s: %v", picURL, key, err)
		return "", fnerr.New(fnerr.Internal, BrokeMsg)
	}
	h.Logger.Info("Saved %s to %s", picURL, key)
	return fmt.Sprintf("Saved %s", picURL), nil
}

func (h *BackupHandler) fetch(ctx context.Context, picURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, picURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := h.Poster.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}
	return data, contentType, nil
}

// HandleSQS runs the backup tasks in an SQS batch. Tasks that are not due
// yet or that failed are reported back for redelivery.
func (h *BackupHandler) HandleSQS(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	h.Logger.Info("Received %d records from SQS event", len(sqsEvent.Records))
	var resp events.SQSEventResponse
	now := h.Now()
	for _, msg := range sqsEvent.Records {
		d, err := taskqueue.FromSQS(msg)
		if err != nil {
			h.Logger.Error("failed to decode SQS message %s: %v", msg.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
			continue
		}
		if !d.Due(now) {
			h.Logger.Debug("task %s not due until %s", d.MessageID, d.NotBefore.Format(time.RFC3339))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
			continue
		}
		if err := h.runDelivery(ctx, d); err != nil {
			h.Logger.Error("backup task %s failed: %v", d.MessageID, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}
	return resp, nil
}

func (h *BackupHandler) runDelivery(ctx context.Context, d taskqueue.Delivery) error {
	if d.DispatchDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.DispatchDeadline)
		defer cancel()
	}
	var task sharedtypes.BackupTask
	if err := json.Unmarshal(d.Data, &task); err != nil {
		return fnerr.New(fnerr.InvalidArgument, InvalidPayloadMsg)
	}
	msg, err := h.Backup(ctx, task.Date)
	if err != nil {
		return err
	}
	h.Logger.Info("backup task %s: %s", d.MessageID, msg)
	return nil
}

// Schedule returns the dates and schedule times of the backup tasks: task i
// covers StartDate+i days and runs i/batch hours from now.
func Schedule(now time.Time, count, batch int) []Planned {
	if batch < 1 {
		batch = 1
	}
	out := make([]Planned, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Planned{
			Date: StartDate.AddDate(0, 0, i).Format(DateLayout),
			At:   now.Add(time.Duration(i/batch) * time.Hour),
		})
	}
	return out
}

// Planned is one task to enqueue.
type Planned struct {
	Date string
	At   time.Time
}

// HandleEnqueue enqueues Count backup tasks.
func (h *BackupHandler) HandleEnqueue(ctx context.Context, _ sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
	if h.Queue == nil {
		return sharedtypes.HTTPResponse{}, fnerr.NotConfigured(params.BackupQueueURL)
	}
	plan := Schedule(h.Now(), h.Count, h.HourlyBatchSize)
	for _, p := range plan {
		_, err := h.Queue.Enqueue(ctx, sharedtypes.BackupTask{Date: p.Date}, taskqueue.Options{
			ScheduleTime:     p.At,
			DispatchDeadline: DispatchDeadline,
		})
		if err != nil {
			return sharedtypes.HTTPResponse{}, fmt.Errorf("enqueue backup of %s: %w", p.Date, err)
		}
	}
	h.Logger.Info("Enqueued %d backup tasks", len(plan))
	return sharedtypes.HTTPResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    fmt.Sprintf("Enqueued %d tasks", len(plan)),
	}, nil
}
