// Package testlab posts completed test matrix results to Slack.
package testlab

import (
	"context"
	"errors"
	"fmt"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
)

var slackmoji = map[string]string{
	"SUCCESS":      ":tada:",
	"FAILURE":      ":broken_heart:",
	"INCONCLUSIVE": ":question:",
	"SKIPPED":      ":arrow_heading_down:",
	"VALIDATING":   ":thought_balloon:",
	"PENDING":      ":soon:",
	"FINISHED":     ":white_check_mark:",
	"ERROR":        ":red_circle:",
	"INVALID":      ":large_orange_diamond:",
}

// Slackmoji returns the emoji for a matrix state or outcome, or "" when the
// term is unknown.
func Slackmoji(term string) string {
	return slackmoji[term]
}

// Title renders "<state emoji> <outcome emoji> <matrix id>".
func Title(p sharedtypes.TestMatrixCompletedPayload) string {
	return fmt.Sprintf("%s %s %s", Slackmoji(p.State), Slackmoji(p.OutcomeSummary), p.TestMatrixID)
}

// Details renders the state and outcome lines.
func Details(p sharedtypes.TestMatrixCompletedPayload) string {
	return fmt.Sprintf("Status: *%s* %s\nOutcome: *%s* %s",
		p.State, Slackmoji(p.State), p.OutcomeSummary, Slackmoji(p.OutcomeSummary))
}

type TestLabHandler struct {
	Poster     *webhook.Poster
	WebhookURL string
	Logger     logger.Logger
}

type TestLabHandlerConfig struct {
	Poster     *webhook.Poster
	WebhookURL string
	Logger     logger.Logger
}

func NewTestLabHandler(config TestLabHandlerConfig) (*TestLabHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Poster == nil {
		return nil, handlers.LogAndReturnError(errors.New(handlers.PosterNilErrMsg), config.Logger)
	}
	return &TestLabHandler{
		Poster:     config.Poster,
		WebhookURL: config.WebhookURL,
		Logger:     config.Logger,
	}, nil
}

func (h *TestLabHandler) Register(r *registry.Registry) error {
	const name = "posttestresultstoslack"
	return r.Register(registry.Registration{
		Kind:    event.TestMatrixCompleted,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, h.HandleTestMatrixCompleted, h.Logger),
	})
}

func (h *TestLabHandler) HandleTestMatrixCompleted(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.TestMatrixCompletedPayload](env)
	if err != nil {
		return err
	}
	msg := webhook.TitledMessage(Title(p), Details(p))
	if err := h.Poster.PostJSON(ctx, params.SlackWebhookURL, h.WebhookURL, msg); err != nil {
		return fmt.Errorf("unable to post test matrix %s to Slack: %w", p.TestMatrixID, err)
	}
	h.Logger.Info("Posted test matrix %s to Slack.", p.TestMatrixID)
	return nil
}
