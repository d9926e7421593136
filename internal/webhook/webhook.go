// Package webhook posts JSON messages to chat webhooks and other HTTP
// endpoints, reporting non-2xx answers as delivery failures.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
)

const defaultTimeout = 10 * time.Second

// Poster sends outbound HTTP requests.
type Poster struct {
	client *http.Client
}

// NewPoster returns a Poster using client, or a client with a 10s timeout when nil.
func NewPoster(client *http.Client) *Poster {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Poster{client: client}
}

// PostJSON posts body as JSON to rawURL. An empty rawURL is a
// MissingConfiguration for name and no request is made.
func (p *Poster) PostJSON(ctx context.Context, name, rawURL string, body any) error {
	if rawURL == "" {
		return fnerr.NotConfigured(name)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s body: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return fnerr.Transport(Target(rawURL), err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.Do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Do executes req. Transport errors and non-2xx answers become a
// DeliveryFailure; on success the caller owns the response body.
func (p *Poster) Do(req *http.Request) (*http.Response, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fnerr.Transport(Target(req.URL.String()), err)
	}
	if !fnerr.Successful(resp.StatusCode) {
		drain(resp)
		return nil, fnerr.Status(Target(req.URL.String()), resp)
	}
	return resp, nil
}

// Raw executes req and returns the response whatever its status. Transport
// errors are still a DeliveryFailure.
func (p *Poster) Raw(req *http.Request) (*http.Response, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fnerr.Transport(Target(req.URL.String()), err)
	}
	return resp, nil
}

// Target is the host of rawURL, used to name the far end in failures
// without leaking webhook tokens into logs.
func Target(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "webhook"
	}
	return u.Host
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
