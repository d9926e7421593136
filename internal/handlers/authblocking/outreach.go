package authblocking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/webhook"
)

const (
	// error msgs
	SecretEmptyErrMsg = "verification link secret is empty"

	DefaultPhotoThreshold = 0.7
	DefaultLinkLife       = 24 * time.Hour
	VerificationIssuer    = "hermes-email-verification"
)

// PhotoScorer rates a profile photo from 0 (harmless) to 1 (inappropriate).
type PhotoScorer interface {
	Score(ctx context.Context, photoURL string) (float64, error)
}

// VerificationSender delivers an email verification link.
type VerificationSender interface {
	SendVerification(ctx context.Context, email string) error
}

// ModerationService scores photos with an HTTP endpoint that answers
// {"score": n} to {"url": photoURL}.
type ModerationService struct {
	Poster *webhook.Poster
	URL    string
}

func (m *ModerationService) Score(ctx context.Context, photoURL string) (float64, error) {
	if m.URL == "" {
		return 0, fmt.Errorf("%s is not set", params.PhotoModerationURL)
	}
	body, err := json.Marshal(map[string]string{"url": photoURL})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.Poster.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out struct {
		Score *float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode moderation answer: %w", err)
	}
	if out.Score == nil {
		return 0, errors.New("moderation answer has no score")
	}
	return *out.Score, nil
}

// VerificationMailer signs a verification link for an address and hands it
// to a mail relay as {"to": email, "link": link}.
type VerificationMailer struct {
	poster   *webhook.Poster
	relayURL string
	linkBase string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

type VerificationMailerConfig struct {
	Poster   *webhook.Poster
	RelayURL string
	// LinkBase is the page that redeems the token, e.g. https://app.example/verify.
	LinkBase string
	Secret   string
	// TTL defaults to 24 hours.
	TTL time.Duration
	Now func() time.Time
}

func NewVerificationMailer(cfg VerificationMailerConfig) (*VerificationMailer, error) {
	if cfg.Poster == nil {
		return nil, errors.New(handlers.PosterNilErrMsg)
	}
	if cfg.Secret == "" {
		return nil, errors.New(SecretEmptyErrMsg)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultLinkLife
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &VerificationMailer{
		poster:   cfg.Poster,
		relayURL: cfg.RelayURL,
		linkBase: cfg.LinkBase,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}, nil
}

// Link returns linkBase with a signed token naming email.
func (m *VerificationMailer) Link(email string) (string, error) {
	now := m.now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    VerificationIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification link: %w", err)
	}
	u, err := url.Parse(m.linkBase)
	if err != nil {
		return "", fmt.Errorf("%s: %w", params.VerificationLinkBase, err)
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Redeem returns the address a link token was issued for.
func (m *VerificationMailer) Redeem(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithIssuer(VerificationIssuer), jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *VerificationMailer) SendVerification(ctx context.Context, email string) error {
	link, err := m.Link(email)
	if err != nil {
		return err
	}
	return m.poster.PostJSON(ctx, params.VerificationRelayURL, m.relayURL, map[string]string{"to": email, "link": link})
}
