package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyeahso/funnelbot/internal/logging"
)

// Fallbacks are the user-facing texts sent when generation does not yield
// a reply.
type Fallbacks struct {
	APIErrorPrefix  string // followed by the API's error message
	UnknownAPIError string // used when the API gives no message
	NoCandidates    string
	Failure         string
}

// DefaultFallbacks returns the Spanish texts the bot has always used.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		APIErrorPrefix:  "Error del sistema: ",
		UnknownAPIError: "Error desconocido de la API",
		NoCandidates:    "Lo siento, no pude procesar tu mensaje.",
		Failure:         "Hubo un error al procesar tu mensaje. Intenta de nuevo.",
	}
}

// withDefaults fills blank fields from DefaultFallbacks.
func (f Fallbacks) withDefaults() Fallbacks {
	d := DefaultFallbacks()
	if f.APIErrorPrefix == "" {
		f.APIErrorPrefix = d.APIErrorPrefix
	}
	if f.UnknownAPIError == "" {
		f.UnknownAPIError = d.UnknownAPIError
	}
	if f.NoCandidates == "" {
		f.NoCandidates = d.NoCandidates
	}
	if f.Failure == "" {
		f.Failure = d.Failure
	}
	return f
}

// Generator turns a question and a system prompt into reply text. It never
// fails: every error is mapped to one of the fallback texts.
type Generator struct {
	client    Client
	timeout   time.Duration
	fallbacks Fallbacks
	log       *logging.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTimeout bounds each generation call. Zero disables the bound.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.timeout = d }
}

// WithFallbacks overrides the fallback texts. Blank fields keep their
// defaults.
func WithFallbacks(f Fallbacks) GeneratorOption {
	return func(g *Generator) { g.fallbacks = f.withDefaults() }
}

// NewGenerator creates a Generator on top of client.
func NewGenerator(client Client, log *logging.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client:    client,
		timeout:   60 * time.Second,
		fallbacks: DefaultFallbacks(),
		log:       log.Sub("generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildPrompt prefixes question with the agent's system prompt.
func BuildPrompt(question, systemPrompt string) string {
	if systemPrompt == "" {
		return question
	}
	return systemPrompt + "\n\nUsuario: " + question
}

// Generate returns the reply for question. The result is never empty.
func (g *Generator) Generate(ctx context.Context, question, systemPrompt string) string {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, CompletionRequest{Prompt: BuildPrompt(question, systemPrompt)})
	if err != nil {
		return g.fallback(err)
	}

	g.log.Debug().
		Str("provider", g.client.Name()).
		Str("model", resp.Model).
		Int("chars", len(resp.Content)).
		Dur("duration", time.Since(start)).
		Msg("generation complete")

	if strings.TrimSpace(resp.Content) == "" {
		return g.fallbacks.NoCandidates
	}
	return resp.Content
}

func (g *Generator) fallback(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		g.log.Error().Int("status", apiErr.StatusCode).Str("message", apiErr.Message).Msg("generation api error")
		msg := apiErr.Message
		if msg == "" {
			msg = g.fallbacks.UnknownAPIError
		}
		return g.fallbacks.APIErrorPrefix + msg
	case errors.Is(err, ErrNoCandidates):
		g.log.Error().Msg("generation returned no candidates")
		return g.fallbacks.NoCandidates
	default:
		g.log.Error().Err(err).Msg("generation failed")
		return g.fallbacks.Failure
	}
}
