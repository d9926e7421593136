// Package feedback turns App Distribution in-app feedback into Jira issues.
package feedback

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/utils"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
)

const (
	summaryPrefix    = "In-app feedback: "
	summaryMaxLength = 40

	screenshotName = "screenshot.png"
	screenshotType = "image/png"
)

// JiraConfig names the Jira instance and credentials issues are created with.
type JiraConfig struct {
	URI         string
	ProjectKey  string
	IssueTypeID int
	Label       string
	TokenOwner  string
	Token       string
}

// FeedbackHandler creates one Jira issue per feedback report.
type FeedbackHandler struct {
	Poster *webhook.Poster
	Jira   JiraConfig
	Logger logger.Logger
}

type FeedbackHandlerConfig struct {
	Poster *webhook.Poster
	Jira   JiraConfig
	Logger logger.Logger
}

func NewFeedbackHandler(config FeedbackHandlerConfig) (*FeedbackHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Poster == nil {
		return nil, handlers.LogAndReturnError(errors.New(handlers.PosterNilErrMsg), config.Logger)
	}
	return &FeedbackHandler{
		Poster: config.Poster,
		Jira:   config.Jira,
		Logger: config.Logger,
	}, nil
}

// Register binds the in-app feedback kind.
func (h *FeedbackHandler) Register(r *registry.Registry) error {
	const name = "handleinappfeedback"
	return r.Register(registry.Registration{
		Kind:    event.InAppFeedback,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, h.HandleInAppFeedback, h.Logger),
	})
}

// Summary builds the issue summary: the first line of the prefixed text,
// cut to 40 characters with a trailing ellipsis.
func Summary(text string) string {
	return utils.Truncate(utils.FirstLine(summaryPrefix+text), summaryMaxLength)
}

// HandleInAppFeedback creates the issue and attaches the screenshot when
// the report has one.
func (h *FeedbackHandler) HandleInAppFeedback(ctx context.Context, env event.Envelope) error {
	p, err := event.Decode[sharedtypes.InAppFeedbackPayload](env)
	if err != nil {
		return err
	}
	if err := h.checkConfig(); err != nil {
		return err
	}
	issueURI, err := h.createIssue(ctx, p)
	if err != nil {
		return err
	}
	h.Logger.Info("Created Jira issue %s for feedback %s", issueURI, p.FeedbackReport)
	if p.ScreenshotURI == "" {
		return nil
	}
	if err := h.uploadScreenshot(ctx, issueURI, p.ScreenshotURI); err != nil {
		return err
	}
	h.Logger.Info("Attached screenshot to %s", issueURI)
	return nil
}

func (h *FeedbackHandler) checkConfig() error {
	if h.Jira.URI == "" {
		return fnerr.NotConfigured(params.JiraURI)
	}
	if h.Jira.TokenOwner == "" {
		return fnerr.NotConfigured(params.APITokenOwner)
	}
	if h.Jira.Token == "" {
		return fnerr.NotConfigured(params.APIToken)
	}
	return nil
}

func (h *FeedbackHandler) authHeader() string {
	token := h.Jira.TokenOwner + ":" + h.Jira.Token
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token))
}

// IssueRequest is the Jira create-issue body.
type IssueRequest struct {
	Update map[string]any `json:"update"`
	Fields IssueFields    `json:"fields"`
}

type IssueFields struct {
	Summary     string            `json:"summary"`
	IssueType   map[string]string `json:"issuetype"`
	Project     map[string]string `json:"project"`
	Description adfDoc            `json:"description"`
	Labels      []string          `json:"labels"`
	Reporter    map[string]string `json:"reporter,omitempty"`
}

// BuildIssueRequest renders the create-issue body. reporterID may be empty.
func (h *FeedbackHandler) BuildIssueRequest(p sharedtypes.InAppFeedbackPayload, reporterID string) IssueRequest {
	testerName := "None"
	if p.TesterName != nil && *p.TesterName != "" {
		testerName = *p.TesterName
	}
	req := IssueRequest{
		Update: map[string]any{},
		Fields: IssueFields{
			Summary:   Summary(p.Text),
			IssueType: map[string]string{"id": strconv.Itoa(h.Jira.IssueTypeID)},
			Project:   map[string]string{"key": h.Jira.ProjectKey},
			Description: adfDoc{
				Type:    "doc",
				Version: 1,
				Content: []adfNode{
					labelled("Firebase App ID: ", p.AppID),
					labelled("App Version: ", p.AppVersion),
					labelled("Tester Email: ", p.TesterEmail),
					labelled("Tester Name: ", testerName),
					labelled("Feedback text: ", p.Text),
					link("Console link", p.FeedbackConsoleURI, "Firebase console"),
				},
			},
			Labels: []string{h.Jira.Label},
		},
	}
	if reporterID != "" {
		req.Fields.Reporter = map[string]string{"id": reporterID}
	}
	return req
}

func (h *FeedbackHandler) createIssue(ctx context.Context, p sharedtypes.InAppFeedbackPayload) (string, error) {
	body := h.BuildIssueRequest(p, h.lookupReporter(ctx, p.TesterEmail))
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal issue request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.Jira.URI, "/")+"/rest/api/3/issue", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", h.authHeader())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Poster.Do(req)
	if err != nil {
		return "", fmt.Errorf("issue creation failed: %w", err)
	}
	defer resp.Body.Close()
	var created struct {
		Self string `json:"self"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode issue creation response: %w", err)
	}
	if created.Self == "" {
		return "", errors.New("issue creation response has no self link")
	}
	return created.Self, nil
}

// lookupReporter finds the Jira account of the tester. Failures are logged
// and the issue is created without a reporter.
func (h *FeedbackHandler) lookupReporter(ctx context.Context, email string) string {
	u := strings.TrimRight(h.Jira.URI, "/") + "/rest/api/3/user/search?query=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		h.Logger.Warn("Failed to find Jira user for '%s': %v", email, err)
		return ""
	}
	req.Header.Set("Authorization", h.authHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := h.Poster.Do(req)
	if err != nil {
		h.Logger.Warn("Failed to find Jira user for '%s': %v", email, err)
		return ""
	}
	defer resp.Body.Close()
	var users []struct {
		AccountID string `json:"accountId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil || len(users) == 0 {
		return ""
	}
	return users[0].AccountID
}

func (h *FeedbackHandler) uploadScreenshot(ctx context.Context, issueURI, screenshotURI string) error {
	dl, err := http.NewRequestWithContext(ctx, http.MethodGet, screenshotURI, nil)
	if err != nil {
		return err
	}
	resp, err := h.Poster.Do(dl)
	if err != nil {
		return fmt.Errorf("screenshot download failed: %w", err)
	}
	blob, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("screenshot download failed: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, screenshotName))
	hdr.Set("Content-Type", screenshotType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := part.Write(blob); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	ul, err := http.NewRequestWithContext(ctx, http.MethodPost, issueURI+"/attachments", &buf)
	if err != nil {
		return err
	}
	ul.Header.Set("Authorization", h.authHeader())
	ul.Header.Set("Accept", "application/json")
	ul.Header.Set("X-Atlassian-Token", "no-check")
	ul.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err = h.Poster.Do(ul)
	if err != nil {
		return fmt.Errorf("screenshot upload failed: %w", err)
	}
	resp.Body.Close()
	return nil
}
