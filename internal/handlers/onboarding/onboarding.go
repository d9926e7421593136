// Package onboarding keeps the Google access token a user signed up with and,
// a minute later, books an onboarding session on that user's calendar.
package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/authblocking"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/taskqueue"
	"github.com/outofoffice3/aws-samples/hermes/internal/userdir"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
)

const (
	// error msgs
	DocumentsNilErrMsg = "document store is nil"
	DirectoryNilErrMsg = "user directory is nil"
	QueueNilErrMsg     = "onboarding queue is nil"

	// client-facing messages
	NoUserMsg  = "No user specified."
	NoEmailMsg = "No email address on record."
	NoTokenMsg = "No Google OAuth token found."

	GoogleProvider  = "google.com"
	UserInfo        = "user_info"
	TokenField      = "calendar_access_token"
	ScheduleDelay   = time.Minute
	SessionLead     = 3 * 24 * time.Hour
	SessionLength   = time.Hour
	SessionTimeZone = "America/Los_Angeles"
	OnboardingHost  = "onboarding@example.com"
)

// Retry is the policy the onboarding queue is deployed with.
var Retry = &registry.RetryPolicy{
	MaxAttempts: 3,
	MinBackoff:  30 * time.Second,
}

type OnboardingHandler struct {
	Documents   docstore.Documents
	Directory   userdir.Directory
	Queue       taskqueue.Enqueuer
	Poster      *webhook.Poster
	CalendarURL string
	Now         func() time.Time
	Logger      logger.Logger
}

type OnboardingHandlerConfig struct {
	Documents docstore.Documents
	Directory userdir.Directory
	Queue     taskqueue.Enqueuer
	Poster    *webhook.Poster
	// CalendarURL is the events endpoint of the calendar the session is
	// inserted into.
	CalendarURL string
	Now         func() time.Time
	Logger      logger.Logger
}

func NewOnboardingHandler(config OnboardingHandlerConfig) (*OnboardingHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Documents == nil {
		return nil, handlers.LogAndReturnError(errors.New(DocumentsNilErrMsg), config.Logger)
	}
	if config.Directory == nil {
		return nil, handlers.LogAndReturnError(errors.New(DirectoryNilErrMsg), config.Logger)
	}
	if config.Queue == nil {
		return nil, handlers.LogAndReturnError(errors.New(QueueNilErrMsg), config.Logger)
	}
	if config.Poster == nil {
		return nil, handlers.LogAndReturnError(errors.New(handlers.PosterNilErrMsg), config.Logger)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &OnboardingHandler{
		Documents:   config.Documents,
		Directory:   config.Directory,
		Queue:       config.Queue,
		Poster:      config.Poster,
		CalendarURL: config.CalendarURL,
		Now:         config.Now,
		Logger:      config.Logger,
	}, nil
}

func (h *OnboardingHandler) Register(r *registry.Registry) error {
	if err := r.Register(registry.Registration{
		Kind:  event.BeforeCreateSaveGoogleToken,
		Name:  "savegoogletoken",
		Style: registry.StyleCallable,
		Handler: registry.Callable(func(ctx context.Context, env event.Envelope) (*authblocking.BeforeCreateResponse, error) {
			p, err := event.Decode[sharedtypes.AuthBlockingPayload](env)
			if err != nil {
				return nil, err
			}
			return nil, h.SaveGoogleToken(ctx, p)
		}),
	}); err != nil {
		return err
	}
	return r.Register(registry.Registration{
		Kind:    event.ScheduleOnboardingTask,
		Name:    "scheduleonboarding",
		Style:   registry.StyleCallable,
		Handler: registry.Callable(h.HandleTask),
		Retry:   Retry,
	})
}

// Task names the user to book a session for.
type Task struct {
	UID string `json:"uid"`
}

// SaveGoogleToken stores the access token of a Google sign-up and queues the
// booking. Other providers are let through untouched.
func (h *OnboardingHandler) SaveGoogleToken(ctx context.Context, p sharedtypes.AuthBlockingPayload) error {
	if p.Credential == nil || p.Credential.ProviderID != GoogleProvider {
		return nil
	}
	h.Logger.Info("Signed in with %s. Saving access token.", p.Credential.ProviderID)
	if err := h.Documents.Update(ctx, UserInfo, p.Data.UID, map[string]any{TokenField: p.Credential.AccessToken}); err != nil {
		return fmt.Errorf("save token of %s: %w", p.Data.UID, err)
	}
	id, err := h.Queue.Enqueue(ctx, Task{UID: p.Data.UID}, taskqueue.Options{ScheduleTime: h.Now().Add(ScheduleDelay)})
	if err != nil {
		return fmt.Errorf("enqueue onboarding of %s: %w", p.Data.UID, err)
	}
	h.Logger.Debug("onboarding of %s queued as %s", p.Data.UID, id)
	return nil
}

// HandleTask runs one booking delivered as an envelope.
func (h *OnboardingHandler) HandleTask(ctx context.Context, env event.Envelope) (string, error) {
	task, err := event.Decode[Task](env)
	if err != nil {
		return "", fnerr.New(fnerr.InvalidArgument, NoUserMsg)
	}
	return h.Schedule(ctx, task.UID)
}

// CalendarTime is a point in time with the zone it is shown in.
type CalendarTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type Attendee struct {
	Email string `json:"email"`
}

// CalendarEvent is the event inserted into the user's calendar.
type CalendarEvent struct {
	Summary     string       `json:"summary"`
	Location    string       `json:"location"`
	Description string       `json:"description"`
	Start       CalendarTime `json:"start"`
	End         CalendarTime `json:"end"`
	Attendees   []Attendee   `json:"attendees"`
}

// Session returns the onboarding event for email, three days after now.
func Session(email string, now time.Time) CalendarEvent {
	if loc, err := time.LoadLocation(SessionTimeZone); err == nil {
		now = now.In(loc)
	}
	start := now.Add(SessionLead)
	return CalendarEvent{
		Summary:     "Onboarding with ExampleCo",
		Location:    "Video call",
		Description: "Walk through onboarding tasks with an ExampleCo engineer.",
		Start:       CalendarTime{DateTime: start.Format(time.RFC3339), TimeZone: SessionTimeZone},
		End:         CalendarTime{DateTime: start.Add(SessionLength).Format(time.RFC3339), TimeZone: SessionTimeZone},
		Attendees:   []Attendee{{Email: email}, {Email: OnboardingHost}},
	}
}

// Schedule books the session for uid with the stored token. The token is
// removed before the calendar is called so it is used at most once.
func (h *OnboardingHandler) Schedule(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", fnerr.New(fnerr.InvalidArgument, NoUserMsg)
	}
	user, err := h.Directory.Get(ctx, uid)
	if errors.Is(err, userdir.ErrUserNotFound) {
		return "", fnerr.New(fnerr.NotFound, userdir.UserNotFoundError)
	}
	if err != nil {
		return "", err
	}
	if user.Email == "" {
		return "", fnerr.New(fnerr.InvalidArgument, NoEmailMsg)
	}
	info, _, err := h.Documents.Get(ctx, UserInfo, uid)
	if err != nil {
		return "", err
	}
	token, ok := info[TokenField].(string)
	if !ok || token == "" {
		return "", fnerr.New(fnerr.PermissionDenied, NoTokenMsg)
	}
	if err := h.Documents.Update(ctx, UserInfo, uid, map[string]any{TokenField: docstore.DeleteField}); err != nil {
		return "", fmt.Errorf("remove token of %s: %w", uid, err)
	}
	if err := h.insert(ctx, token, Session(user.Email, h.Now())); err != nil {
		return "", err
	}
	return fmt.Sprintf("Scheduled onboarding for %s", user.Email), nil
}

func (h *OnboardingHandler) insert(ctx context.Context, token string, ev CalendarEvent) error {
	if h.CalendarURL == "" {
		return fnerr.NotConfigured(params.OnboardingCalendarURL)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.CalendarURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := h.Poster.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// permanent reports failures that a retry cannot fix.
func permanent(err error) bool {
	switch fnerr.CodeFor(err) {
	case fnerr.InvalidArgument, fnerr.NotFound, fnerr.PermissionDenied:
		return true
	}
	return false
}

// HandleSQS runs the bookings in an SQS batch. Tasks that are not due yet or
// that may succeed on a retry are reported back for redelivery.
func (h *OnboardingHandler) HandleSQS(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	now := h.Now()
	retry := func(id string) {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	for _, msg := range sqsEvent.Records {
		d, err := taskqueue.FromSQS(msg)
		if err != nil {
			h.Logger.Error("failed to decode SQS message %s: %v", msg.MessageId, err)
			continue
		}
		if !d.Due(now) {
			retry(msg.MessageId)
			continue
		}
		var task Task
		if err := json.Unmarshal(d.Data, &task); err != nil {
			h.Logger.Error("onboarding task %s: %v", d.MessageID, err)
			continue
		}
		out, err := h.Schedule(ctx, task.UID)
		switch {
		case err == nil:
			h.Logger.Info("onboarding task %s: %s", d.MessageID, out)
		case permanent(err):
			h.Logger.Warn("onboarding task %s dropped: %v", d.MessageID, err)
		default:
			h.Logger.Error("onboarding task %s failed: %v", d.MessageID, err)
			retry(msg.MessageId)
		}
	}
	return resp, nil
}
