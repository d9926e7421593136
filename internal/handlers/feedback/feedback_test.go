package feedback_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/feedback"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func jiraConfig(uri string) feedback.JiraConfig {
	return feedback.JiraConfig{
		URI:         uri,
		ProjectKey:  "XY",
		IssueTypeID: 10001,
		Label:       "in-app",
		TokenOwner:  "owner@example.com",
		Token:       "secret",
	}
}

func feedbackEnvelope(t *testing.T, p sharedtypes.InAppFeedbackPayload) event.Envelope {
	t.Helper()
	env, err := event.New(event.InAppFeedback, p)
	require.NoError(t, err)
	return env
}

func TestSummary(t *testing.T) {
	sixty := strings.Repeat("x", 60)
	tests := []struct {
		name string
		text string
		want string
	}{
		{"short", "hi", "In-app feedback: hi"},
		{"sixty chars", sixty, ("In-app feedback: " + sixty)[:39] + "…"},
		{"first line only", "broken\nsecond line", "In-app feedback: broken"},
		{"exactly forty", strings.Repeat("y", 23), "In-app feedback: " + strings.Repeat("y", 23)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedback.Summary(tt.text)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 40)
		})
	}
}

type jiraStub struct {
	mu           sync.Mutex
	srv          *httptest.Server
	issueBody    feedback.IssueRequest
	issueCalls   int
	uploadCalls  int
	uploadHeader http.Header
	uploadName   string
	uploadType   string
	uploadBytes  []byte
	searchStatus int
}

func newJiraStub(t *testing.T) *jiraStub {
	s := &jiraStub{searchStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/user/search", func(w http.ResponseWriter, r *http.Request) {
		if s.searchStatus != http.StatusOK {
			w.WriteHeader(s.searchStatus)
			return
		}
		assert.Equal(t, "tester@example.com", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`[{"accountId":"acc-1"}]`))
	})
	mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.issueCalls++
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "owner@example.com", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&s.issueBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"self":"` + s.srv.URL + `/rest/api/3/issue/10001"}`))
	})
	mux.HandleFunc("/rest/api/3/issue/10001/attachments", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.uploadCalls++
		s.uploadHeader = r.Header.Clone()
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		s.uploadName = hdr.Filename
		s.uploadType = hdr.Header.Get("Content-Type")
		s.uploadBytes, _ = io.ReadAll(f)
	})
	mux.HandleFunc("/screenshots/1.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	})
	s.srv = httptest.NewServer(mux)
	return s
}

func TestHandleInAppFeedback_CreatesIssueAndUploads(t *testing.T) {
	stub := newJiraStub(t)
	defer stub.srv.Close()

	rec := &logger.Recorder{}
	h, err := feedback.NewFeedbackHandler(feedback.FeedbackHandlerConfig{
		Poster: webhook.NewPoster(stub.srv.Client()),
		Jira:   jiraConfig(stub.srv.URL),
		Logger: rec,
	})
	require.NoError(t, err)

	text := strings.Repeat("a", 60)
	err = h.HandleInAppFeedback(context.Background(), feedbackEnvelope(t, sharedtypes.InAppFeedbackPayload{
		AppID:              "1:123:ios:abc",
		FeedbackReport:     "report-1",
		FeedbackConsoleURI: "https://console.example/feedback/1",
		TesterEmail:        "tester@example.com",
		AppVersion:         "1.2.3",
		Text:               text,
		ScreenshotURI:      stub.srv.URL + "/screenshots/1.png",
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, stub.issueCalls)
	f := stub.issueBody.Fields
	assert.Equal(t, 40, utf8.RuneCountInString(f.Summary))
	assert.True(t, strings.HasSuffix(f.Summary, "…"))
	assert.Equal(t, "10001", f.IssueType["id"])
	assert.Equal(t, "XY", f.Project["key"])
	assert.Equal(t, []string{"in-app"}, f.Labels)
	assert.Equal(t, "acc-1", f.Reporter["id"])

	assert.Equal(t, 1, stub.uploadCalls)
	assert.Equal(t, "no-check", stub.uploadHeader.Get("X-Atlassian-Token"))
	assert.Equal(t, "screenshot.png", stub.uploadName)
	assert.Equal(t, "image/png", stub.uploadType)
	assert.Equal(t, []byte("png-bytes"), stub.uploadBytes)
	assert.Equal(t, 0, rec.Count(logger.ERROR))
}

func TestHandleInAppFeedback_NoScreenshotNoReporter(t *testing.T) {
	stub := newJiraStub(t)
	stub.searchStatus = http.StatusForbidden
	defer stub.srv.Close()

	rec := &logger.Recorder{}
	h, err := feedback.NewFeedbackHandler(feedback.FeedbackHandlerConfig{
		Poster: webhook.NewPoster(stub.srv.Client()),
		Jira:   jiraConfig(stub.srv.URL),
		Logger: rec,
	})
	require.NoError(t, err)

	err = h.HandleInAppFeedback(context.Background(), feedbackEnvelope(t, sharedtypes.InAppFeedbackPayload{
		AppID:       "app",
		TesterEmail: "tester@example.com",
		Text:        "short",
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, stub.issueCalls)
	assert.Nil(t, stub.issueBody.Fields.Reporter)
	assert.Equal(t, 0, stub.uploadCalls)
	assert.Equal(t, 1, rec.Count(logger.WARN))
}

func TestBuildIssueRequest_Description(t *testing.T) {
	h, err := feedback.NewFeedbackHandler(feedback.FeedbackHandlerConfig{
		Poster: webhook.NewPoster(nil),
		Jira:   jiraConfig("https://jira.example"),
		Logger: &logger.NoopLogger{},
	})
	require.NoError(t, err)

	name := "Ada"
	req := h.BuildIssueRequest(sharedtypes.InAppFeedbackPayload{
		AppID:              "app",
		AppVersion:         "1.0",
		TesterEmail:        "ada@example.com",
		TesterName:         &name,
		Text:               "great app",
		FeedbackConsoleURI: "https://console.example/f",
	}, "")
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, map[string]any{}, doc["update"])
	fields := doc["fields"].(map[string]any)
	assert.NotContains(t, fields, "reporter")
	desc := fields["description"].(map[string]any)
	assert.Equal(t, "doc", desc["type"])
	content := desc["content"].([]any)
	require.Len(t, content, 6)
	assert.Contains(t, string(raw), `"text":"Tester Name: "`)
	assert.Contains(t, string(raw), `"text":"Ada"`)
	assert.Contains(t, string(raw), `"href":"https://console.example/f"`)
}

func TestHandleInAppFeedback_MissingToken(t *testing.T) {
	defer gock.Off()
	gock.New("https://jira.example").Post("/rest/api/3/issue").Reply(201)

	cfg := jiraConfig("https://jira.example")
	cfg.Token = ""
	h, err := feedback.NewFeedbackHandler(feedback.FeedbackHandlerConfig{
		Poster: webhook.NewPoster(nil),
		Jira:   cfg,
		Logger: &logger.NoopLogger{},
	})
	require.NoError(t, err)

	err = h.HandleInAppFeedback(context.Background(), feedbackEnvelope(t, sharedtypes.InAppFeedbackPayload{
		TesterEmail: "t@example.com", Text: "hi",
	}))
	assert.True(t, fnerr.IsMissingConfiguration(err))
	assert.True(t, gock.IsPending())
}

func TestHandleInAppFeedback_CreateFails(t *testing.T) {
	defer gock.Off()
	gock.New("https://jira.example").
		Get("/rest/api/3/user/search").
		Reply(200).
		JSON([]map[string]string{})
	gock.New("https://jira.example").
		Post("/rest/api/3/issue").
		Reply(400).
		JSON(map[string]any{"errors": map[string]string{"summary": "required"}})

	h, err := feedback.NewFeedbackHandler(feedback.FeedbackHandlerConfig{
		Poster: webhook.NewPoster(nil),
		Jira:   jiraConfig("https://jira.example"),
		Logger: &logger.NoopLogger{},
	})
	require.NoError(t, err)

	err = h.HandleInAppFeedback(context.Background(), feedbackEnvelope(t, sharedtypes.InAppFeedbackPayload{
		TesterEmail: "t@example.com", Text: "hi",
	}))
	var df *fnerr.DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.Equal(t, 400, df.StatusCode)
	assert.True(t, gock.IsDone())
}
