// Package generate produces text from a prompt with the Anthropic Messages API.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// error msgs
	APIKeyNotSetErrMsg = "anthropic api key not set"
	EmptyPromptErrMsg  = "prompt is empty"

	DefaultMaxTokens = 64
)

// Request is one generation call.
type Request struct {
	Model         string
	Prompt        string
	MaxTokens     int64
	Temperature   *float64
	TopP          *float64
	TopK          *int64
	StopSequences []string
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Anthropic implements Generator.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic builds a client for apiKey. Extra options are passed to the SDK.
func NewAnthropic(apiKey string, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New(APIKeyNotSetErrMsg)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{client: anthropic.NewClient(opts...)}, nil
}

// Params maps a Request onto the SDK's message parameters.
func Params(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		StopSequences: req.StopSequences,
	}
	if req.Temperature != nil {
		p.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		p.TopP = anthropic.Float(*req.TopP)
	}
	if req.TopK != nil {
		p.TopK = anthropic.Int(*req.TopK)
	}
	return p
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New(EmptyPromptErrMsg)
	}
	msg, err := a.client.Messages.New(ctx, Params(req))
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", req.Model, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("generate with %s: no text in response", req.Model)
	}
	return sb.String(), nil
}
