// Package alerts posts Crashlytics, App Distribution and Performance alerts
// to a Discord webhook.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
)

const (
	CrashlyticsBot = "Crashlytics Bot"
	AppDistroBot   = "App Distro Bot"
	PerformanceBot = "App Performance Bot"

	notApplicable = "N/A"
)

// AlertsHandler posts alert summaries to Discord.
type AlertsHandler struct {
	Poster     *webhook.Poster
	WebhookURL string
	Logger     logger.Logger
}

type AlertsHandlerConfig struct {
	Poster *webhook.Poster
	// WebhookURL may be empty; each invocation then fails with MissingConfiguration.
	WebhookURL string
	Logger     logger.Logger
}

func NewAlertsHandler(config AlertsHandlerConfig) (*AlertsHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Poster == nil {
		return nil, handlers.LogAndReturnError(errors.New(handlers.PosterNilErrMsg), config.Logger)
	}
	return &AlertsHandler{
		Poster:     config.Poster,
		WebhookURL: config.WebhookURL,
		Logger:     config.Logger,
	}, nil
}

// Register binds the alert kinds.
func (h *AlertsHandler) Register(r *registry.Registry) error {
	for _, b := range []struct {
		kind event.Kind
		name string
		fn   registry.TriggerFunc
	}{
		{event.CrashlyticsNewFatalIssue, "postfatalissuetodiscord", h.HandleNewFatalIssue},
		{event.NewTesterIosDevice, "postnewudidtodiscord", h.HandleNewTesterDevice},
		{event.PerformanceThreshold, "postperformancealerttodiscord", h.HandlePerformanceAlert},
		{event.CrashlyticsRegression, "apphasregression", h.HandleRegression},
	} {
		err := r.Register(registry.Registration{
			Kind:    b.kind,
			Name:    b.name,
			Style:   registry.StyleTrigger,
			Handler: registry.Trigger(b.name, b.fn, h.Logger),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FatalIssueMessage renders the Discord Markdown for a new fatal issue.
func FatalIssueMessage(appID string, issue sharedtypes.CrashlyticsIssue) string {
	return fmt.Sprintf("🚨 New fatal issue for %s in version %s 🚨\n\n# %s\n\n%s\n\nID: `%s`",
		appID, issue.AppVersion, issue.Title, issue.Subtitle, issue.ID)
}

// NewDeviceMessage renders the Discord Markdown for a new tester device.
func NewDeviceMessage(appID string, p sharedtypes.NewTesterDevicePayload) string {
	return fmt.Sprintf("📱 New iOS device registered by %s <%s> for %s\n\nUDID **%s** for %s",
		p.TesterName, p.TesterEmail, appID, p.DeviceID, p.DeviceModel)
}

// PerformanceMessage renders the Discord Markdown for a threshold alert.
// Optional fields that are absent render as N/A.
func PerformanceMessage(appID string, p sharedtypes.PerformanceThresholdPayload) string {
	percentile := notApplicable
	if p.ConditionPercentile != nil {
		percentile = formatNumber(*p.ConditionPercentile)
	}
	version := notApplicable
	if p.AppVersion != nil {
		version = *p.AppVersion
	}
	return fmt.Sprintf("⚠️ Performance Alert for %s of %s: **%s** ⚠️\n\n"+
		"App ID: %s\n"+
		"Alert condition: %s %s\n"+
		"Percentile (if applicable): %s\n"+
		"App version (if applicable): %s\n\n"+
		"Violation: %s %s\n"+
		"Number of samples checked: %d\n\n"+
		"**Investigate more:** %s",
		p.MetricType, p.EventType, p.EventName,
		appID,
		formatNumber(p.ThresholdValue), p.ThresholdUnit,
		percentile,
		version,
		formatNumber(p.ViolationValue), p.ViolationUnit,
		p.NumSamples,
		p.InvestigateURI)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (h *AlertsHandler) post(ctx context.Context, bot, content string) error {
	return h.Poster.PostJSON(ctx, params.DiscordWebhookURL, h.WebhookURL, webhook.DiscordMessage{
		Username: bot,
		Content:  content,
	})
}

// HandleNewFatalIssue posts a new fatal Crashlytics issue.
func (h *AlertsHandler) HandleNewFatalIssue(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.NewFatalIssuePayload](env)
	if err != nil {
		return err
	}
	if err := h.post(ctx, CrashlyticsBot, FatalIssueMessage(p.AppID, p.Issue)); err != nil {
		return fmt.Errorf("unable to post fatal Crashlytics alert %s for %s to Discord: %w", p.Issue.ID, p.AppID, err)
	}
	h.Logger.Info("Posted fatal Crashlytics alert %s for %s to Discord.", p.Issue.ID, p.AppID)
	h.Logger.Debug("payload: %+v", p)
	return nil
}

// HandleNewTesterDevice posts a newly registered iOS tester device.
func (h *AlertsHandler) HandleNewTesterDevice(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.NewTesterDevicePayload](env)
	if err != nil {
		return err
	}
	if err := h.post(ctx, AppDistroBot, NewDeviceMessage(p.AppID, p)); err != nil {
		return fmt.Errorf("unable to post iOS device registration alert for %s to Discord: %w", p.TesterEmail, err)
	}
	h.Logger.Info("Posted iOS device registration alert for %s to Discord.", p.TesterEmail)
	h.Logger.Debug("payload: %+v", p)
	return nil
}

// HandlePerformanceAlert posts a performance threshold alert.
func (h *AlertsHandler) HandlePerformanceAlert(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.PerformanceThresholdPayload](env)
	if err != nil {
		return err
	}
	if err := h.post(ctx, PerformanceBot, PerformanceMessage(p.AppID, p)); err != nil {
		return fmt.Errorf("unable to post Firebase Performance alert %s to Discord: %w", p.EventName, err)
	}
	h.Logger.Info("Posted Firebase Performance alert %s to Discord.", p.EventName)
	h.Logger.Debug("payload: %+v", p)
	return nil
}

// HandleRegression records a regressed issue at error level. It makes no
// outbound calls.
func (h *AlertsHandler) HandleRegression(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.RegressionAlertPayload](env)
	if err != nil {
		return err
	}
	h.Logger.Error("Regression in production app %s: issue %s (%s) last resolved %s", p.AppID, p.Issue.ID, p.Issue.Title, p.ResolveTime)
	return nil
}
