package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func TestPostJSON_Discord(t *testing.T) {
	defer gock.Off()

	gock.New("https://discord.example").
		Post("/api/webhooks/1/abc").
		MatchType("json").
		JSON(map[string]string{"username": "Crashlytics Bot", "content": "hello"}).
		Reply(204)

	p := webhook.NewPoster(nil)
	err := p.PostJSON(context.Background(), "DISCORD_WEBHOOK_URL", "https://discord.example/api/webhooks/1/abc",
		webhook.DiscordMessage{Username: "Crashlytics Bot", Content: "hello"})
	assert.NoError(t, err)
	assert.True(t, gock.IsDone())
}

func TestPostJSON_EmptyURL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	p := webhook.NewPoster(srv.Client())
	err := p.PostJSON(context.Background(), "DISCORD_WEBHOOK_URL", "", webhook.DiscordMessage{})

	var missing *fnerr.MissingConfiguration
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "DISCORD_WEBHOOK_URL", missing.Name)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestPostJSON_Non2xx(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad request", http.StatusBadRequest},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := webhook.NewPoster(srv.Client()).PostJSON(context.Background(), "SLACK_WEBHOOK_URL", srv.URL, webhook.TitledMessage("a", "b"))
			var df *fnerr.DeliveryFailure
			require.ErrorAs(t, err, &df)
			assert.Equal(t, tt.status, df.StatusCode)
		})
	}
}

func TestTitledMessage_Shape(t *testing.T) {
	raw, err := json.Marshal(webhook.TitledMessage("title", "details"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[
		{"type":"section","text":{"type":"mrkdwn","text":"title"}},
		{"type":"divider"},
		{"type":"section","text":{"type":"mrkdwn","text":"details"}}
	]}`, string(raw))
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "hooks.slack.com", webhook.Target("https://hooks.slack.com/services/T/B/secret"))
	assert.Equal(t, "webhook", webhook.Target("::"))
}
