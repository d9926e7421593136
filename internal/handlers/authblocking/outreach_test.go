package authblocking_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/dynamoclient"
	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers/authblocking"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func interceptedPoster(t *testing.T) *webhook.Poster {
	t.Helper()
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})
	return webhook.NewPoster(client)
}

type fixedScorer struct {
	score float64
	err   error
	seen  []string
}

func (s *fixedScorer) Score(ctx context.Context, photoURL string) (float64, error) {
	s.seen = append(s.seen, photoURL)
	return s.score, s.err
}

type recordingSender struct {
	err  error
	sent []string
}

func (s *recordingSender) SendVerification(ctx context.Context, email string) error {
	s.sent = append(s.sent, email)
	return s.err
}

func outreachHandler(t *testing.T, scorer authblocking.PhotoScorer, sender authblocking.VerificationSender, log logger.Logger) *authblocking.AuthBlockingHandler {
	t.Helper()
	store, err := docstore.New(docstore.Config{Client: &dynamoclient.FakeDynamoClient{}, Table: "documents"})
	require.NoError(t, err)
	h, err := authblocking.NewAuthBlockingHandler(authblocking.AuthBlockingHandlerConfig{
		Documents:      store,
		Scorer:         scorer,
		PlaceholderURL: "https://cdn.example/placeholder.png",
		Verifications:  sender,
		Logger:         log,
	})
	require.NoError(t, err)
	return h
}

func TestSanitizeProfilePhoto(t *testing.T) {
	ctx := context.Background()
	photo := strPtr("https://img.example/me.png")
	tests := []struct {
		name    string
		scorer  *fixedScorer
		photo   *string
		replace bool
	}{
		{"no photo", &fixedScorer{score: 0.99}, nil, false},
		{"harmless", &fixedScorer{score: 0.42}, photo, false},
		{"at threshold", &fixedScorer{score: authblocking.DefaultPhotoThreshold}, photo, false},
		{"above threshold", &fixedScorer{score: 0.71}, photo, true},
		{"scorer down", &fixedScorer{err: errors.New("timeout")}, photo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := outreachHandler(t, tt.scorer, nil, &logger.NoopLogger{})
			resp, err := h.SanitizeProfilePhoto(ctx, sharedtypes.AuthBlockingPayload{Data: sharedtypes.AuthUserRecord{UID: "u", PhotoURL: tt.photo}})
			require.NoError(t, err)
			if !tt.replace {
				assert.Nil(t, resp)
				return
			}
			require.NotNil(t, resp)
			assert.Equal(t, "https://cdn.example/placeholder.png", *resp.PhotoURL)
		})
	}
}

func TestSendVerification(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	rec := &logger.Recorder{}
	h := outreachHandler(t, nil, sender, rec)

	for _, data := range []sharedtypes.AuthUserRecord{
		{UID: "a", Email: strPtr("new@acme.com")},
		{UID: "b", Email: strPtr("done@acme.com"), EmailVerified: true},
		{UID: "c"},
	} {
		resp, err := h.SendVerification(ctx, sharedtypes.AuthBlockingPayload{Data: data})
		require.NoError(t, err)
		assert.Nil(t, resp)
	}
	assert.Equal(t, []string{"new@acme.com"}, sender.sent)

	sender.err = errors.New("relay down")
	_, err := h.SendVerification(ctx, sharedtypes.AuthBlockingPayload{Data: sharedtypes.AuthUserRecord{UID: "d", Email: strPtr("x@acme.com")}})
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.Count(logger.WARN))
}

func TestRegister_OptionalGates(t *testing.T) {
	r := registry.New(&logger.NoopLogger{})
	require.NoError(t, outreachHandler(t, nil, nil, &logger.NoopLogger{}).Register(r))
	assert.Len(t, r.Kinds(), 10)

	r = registry.New(&logger.NoopLogger{})
	h := outreachHandler(t, &fixedScorer{score: 0.9}, &recordingSender{}, &logger.NoopLogger{})
	require.NoError(t, h.Register(r))
	assert.Len(t, r.Kinds(), 12)

	env, err := event.New(event.BeforeCreateSanitizePhoto, sharedtypes.AuthBlockingPayload{
		Data: sharedtypes.AuthUserRecord{UID: "u", PhotoURL: strPtr("https://img.example/me.png")},
	})
	require.NoError(t, err)
	out, err := r.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/placeholder.png", *out.(*authblocking.BeforeCreateResponse).PhotoURL)
}

func TestModerationService(t *testing.T) {
	m := &authblocking.ModerationService{Poster: interceptedPoster(t), URL: "https://moderation.test/score"}
	gock.New("https://moderation.test").
		Post("/score").
		MatchType("json").
		JSON(map[string]string{"url": "https://img.example/me.png"}).
		Reply(200).
		JSON(map[string]float64{"score": 0.93})

	score, err := m.Score(context.Background(), "https://img.example/me.png")
	require.NoError(t, err)
	assert.InDelta(t, 0.93, score, 1e-9)

	gock.New("https://moderation.test").Post("/score").Reply(200).JSON(map[string]string{})
	_, err = m.Score(context.Background(), "https://img.example/me.png")
	assert.ErrorContains(t, err, "no score")

	gock.New("https://moderation.test").Post("/score").Reply(503)
	_, err = m.Score(context.Background(), "https://img.example/me.png")
	assert.Error(t, err)
	assert.True(t, gock.IsDone())
}

func TestVerificationMailer(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := authblocking.NewVerificationMailer(authblocking.VerificationMailerConfig{Poster: webhook.NewPoster(nil)})
	assert.EqualError(t, err, authblocking.SecretEmptyErrMsg)

	m, err := authblocking.NewVerificationMailer(authblocking.VerificationMailerConfig{
		Poster:   interceptedPoster(t),
		RelayURL: "https://relay.test/send",
		LinkBase: "https://app.example/verify?lang=en",
		Secret:   "shh",
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	link, err := m.Link("new@acme.com")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "app.example", u.Host)
	assert.Equal(t, "en", u.Query().Get("lang"))
	email, err := m.Redeem(u.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "new@acme.com", email)

	_, err = m.Redeem(u.Query().Get("token") + "x")
	assert.Error(t, err)

	gock.New("https://relay.test").
		Post("/send").
		MatchType("json").
		Reply(202)
	require.NoError(t, m.SendVerification(context.Background(), "new@acme.com"))
	assert.True(t, gock.IsDone())
}
