// Package remoteconfig logs the diff of every new remote config version and
// serves generation requests configured by the current template.
package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/generate"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/params"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	rc "github.com/outofoffice3/aws-samples/hermes/internal/remoteconfig"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
)

const (
	// error msgs
	TemplatesNilErrMsg = "remote config templates are nil"

	SkippedMsg = "Generation skipped. Generation is not enabled."

	defaultPrompt = "I'm a developer who wants to learn about Firebase and you are a " +
		"helpful assistant who knows everything there is to know about Firebase!"
)

// Defaults are the in-code values every template is evaluated over.
var Defaults = map[string]any{
	"model_name": "claude-haiku-4-5",
	"generation_config": []GenerationConfig{{
		StopSequences:   []string{},
		Temperature:     0.7,
		MaxOutputTokens: 64,
		TopP:            0.1,
		TopK:            20,
	}},
	"prompt":         defaultPrompt,
	"location":       "us-east-1",
	"vertex_enabled": false,
}

// GenerationConfig is the "generation_config" parameter.
type GenerationConfig struct {
	StopSequences   []string `json:"stopSequences"`
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int64    `json:"maxOutputTokens"`
	TopP            float64  `json:"topP"`
	TopK            int64    `json:"topK"`
}

// ParseGenerationConfig reads a generation config given either as an
// object or as a one-element list.
func ParseGenerationConfig(raw string) (GenerationConfig, error) {
	var list []GenerationConfig
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		if len(list) == 0 {
			return GenerationConfig{}, nil
		}
		return list[0], nil
	}
	var one GenerationConfig
	if err := json.Unmarshal([]byte(raw), &one); err != nil {
		return GenerationConfig{}, fmt.Errorf("generation_config: %w", err)
	}
	return one, nil
}

// Prompt is what a template resolves to for one request.
type Prompt struct {
	Model      string
	ChatInput  string
	Generation GenerationConfig
	Location   string
	Enabled    bool
}

// BuildPrompt evaluates t over Defaults and appends userInput to the
// configured prompt.
func BuildPrompt(t *rc.Template, userInput string) (Prompt, error) {
	cfg := rc.Evaluate(t, Defaults)
	gen, err := ParseGenerationConfig(cfg.GetString("generation_config"))
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		Model:      cfg.GetString("model_name"),
		ChatInput:  cfg.GetString("prompt") + " " + userInput,
		Generation: gen,
		Location:   cfg.GetString("location"),
		Enabled:    cfg.GetBool("vertex_enabled"),
	}, nil
}

// Request turns a prompt into a generation request.
func (p Prompt) Request() generate.Request {
	req := generate.Request{
		Model:         p.Model,
		Prompt:        p.ChatInput,
		MaxTokens:     p.Generation.MaxOutputTokens,
		StopSequences: p.Generation.StopSequences,
	}
	if p.Generation.Temperature > 0 {
		req.Temperature = &p.Generation.Temperature
	}
	if p.Generation.TopP > 0 {
		req.TopP = &p.Generation.TopP
	}
	if p.Generation.TopK > 0 {
		req.TopK = &p.Generation.TopK
	}
	return req
}

type RemoteConfigHandler struct {
	Templates rc.Templates
	Generator generate.Generator
	Logger    logger.Logger
}

type RemoteConfigHandlerConfig struct {
	Templates rc.Templates
	// Generator may be nil; enabled generation requests then fail with MissingConfiguration.
	Generator generate.Generator
	Logger    logger.Logger
}

func NewRemoteConfigHandler(config RemoteConfigHandlerConfig) (*RemoteConfigHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Templates == nil {
		return nil, handlers.LogAndReturnError(errors.New(TemplatesNilErrMsg), config.Logger)
	}
	return &RemoteConfigHandler{
		Templates: config.Templates,
		Generator: config.Generator,
		Logger:    config.Logger,
	}, nil
}

func (h *RemoteConfigHandler) Register(r *registry.Registry) error {
	const diffName = "showconfigdiff"
	if err := r.Register(registry.Registration{
		Kind:    event.RemoteConfigUpdated,
		Name:    diffName,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(diffName, h.HandleConfigUpdated, h.Logger),
	}); err != nil {
		return err
	}
	return r.Register(registry.Registration{
		Kind:    event.GenerateWithConfig,
		Name:    "generatewithconfig",
		Style:   registry.StyleRequest,
		Handler: registry.Request("generatewithconfig", h.HandleGenerate, h.Logger),
	})
}

// HandleConfigUpdated logs what changed between the published version and
// the one before it.
func (h *RemoteConfigHandler) HandleConfigUpdated(ctx context.Context, env event.Envelope) error {
	update, err := event.Decode[sharedtypes.ConfigUpdate](env)
	if err != nil {
		return err
	}
	cur, err := h.Templates.Version(ctx, update.VersionNumber)
	if err != nil {
		return fmt.Errorf("fetch version %d: %w", update.VersionNumber, err)
	}
	var prev *rc.Template
	if update.VersionNumber > 1 {
		if prev, err = h.Templates.Version(ctx, update.VersionNumber-1); err != nil {
			return fmt.Errorf("fetch version %d: %w", update.VersionNumber-1, err)
		}
	}
	diff := rc.Diff(prev, cur)
	if diff == "" {
		h.Logger.Info("Remote config version %d has no parameter changes", update.VersionNumber)
		return nil
	}
	h.Logger.Info("Remote config version %d diff:\n%s", update.VersionNumber, diff)
	return nil
}

// HandleGenerate answers ?prompt= with text generated under the current template.
func (h *RemoteConfigHandler) HandleGenerate(ctx context.Context, req sharedtypes.HTTPRequest) (sharedtypes.HTTPResponse, error) {
	tmpl, err := h.Templates.Current(ctx)
	if err != nil {
		return sharedtypes.HTTPResponse{}, fmt.Errorf("load template: %w", err)
	}
	p, err := BuildPrompt(tmpl, req.Query["prompt"])
	if err != nil {
		return sharedtypes.HTTPResponse{}, err
	}
	if !p.Enabled {
		body, _ := json.Marshal(map[string]string{"message": SkippedMsg})
		return sharedtypes.HTTPResponse{
			Status:  http.StatusOK,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    string(body),
		}, nil
	}
	if h.Generator == nil {
		return sharedtypes.HTTPResponse{}, fnerr.NotConfigured(params.AnthropicKey)
	}
	h.Logger.Info("Running with model %s, prompt: %s, generationConfig: %+v in %s", p.Model, p.ChatInput, p.Generation, p.Location)
	text, err := h.Generator.Generate(ctx, p.Request())
	if err != nil {
		return sharedtypes.HTTPResponse{}, err
	}
	return sharedtypes.HTTPResponse{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    text,
	}, nil
}
