// Package routing turns inbound chat messages into agent replies.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/funnelbot/internal/agent"
	"github.com/soyeahso/funnelbot/internal/dedupe"
	"github.com/soyeahso/funnelbot/internal/domain"
	"github.com/soyeahso/funnelbot/internal/hooks"
	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/soyeahso/funnelbot/internal/store"
)

// presenceTimeout bounds the best-effort typing indicator.
const presenceTimeout = 5 * time.Second

// Dispatch outcomes recorded in the journal.
const (
	OutcomeReplied    = "replied"
	OutcomeSendFailed = "send_failed"
	OutcomeStoreError = "store_error"
)

// Sender delivers replies to a chat.
type Sender interface {
	SendText(ctx context.Context, chat, text string) error
	SendPresence(ctx context.Context, chat string, presence domain.Presence) error
}

// AgentSource returns the current agent collection.
type AgentSource interface {
	List(ctx context.Context) ([]domain.AgentConfig, error)
}

// Generator produces reply text. It never fails.
type Generator interface {
	Generate(ctx context.Context, question, systemPrompt string) string
}

// Journal records dispatch outcomes.
type Journal interface {
	RecordDispatch(ctx context.Context, d store.Dispatch) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHooks emits message events on h.
func WithHooks(h *hooks.Manager) Option {
	return func(d *Dispatcher) { d.hooks = h }
}

// WithJournal records every dispatch in j.
func WithJournal(j Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

// WithDedupe drops messages whose id c has already seen.
func WithDedupe(c *dedupe.Cache) Option {
	return func(d *Dispatcher) { d.seen = c }
}

// WithPresence toggles the composing indicator sent before generation.
func WithPresence(on bool) Option {
	return func(d *Dispatcher) { d.presence = on }
}

// WithFailureReply sets the text sent when the agents cannot be read.
func WithFailureReply(text string) Option {
	return func(d *Dispatcher) {
		if text != "" {
			d.failureReply = text
		}
	}
}

// Dispatcher handles one inbound message at a time per call; callers run
// Handle on separate goroutines for concurrent messages.
type Dispatcher struct {
	sender       Sender
	agents       AgentSource
	gen          Generator
	hooks        *hooks.Manager
	journal      Journal
	seen         *dedupe.Cache
	presence     bool
	failureReply string
	log          *logging.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender Sender, agents AgentSource, gen Generator, log *logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:       sender,
		agents:       agents,
		gen:          gen,
		presence:     true,
		failureReply: "Hubo un error al procesar tu mensaje. Intenta de nuevo.",
		log:          log.Sub("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle answers env with exactly one reply, unless env is not something
// to answer: an empty body, the bot's own message, empty text or a
// redelivered id.
func (d *Dispatcher) Handle(ctx context.Context, env domain.Envelope) {
	if env.Message == nil || env.FromMe {
		return
	}
	text := env.Text()
	if text == "" {
		return
	}
	if d.seen != nil && env.ID != "" && d.seen.Seen(env.ID) {
		d.log.Debug().Str("id", env.ID).Msg("duplicate message dropped")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("chatId", env.ChatID).Str("panic", fmt.Sprint(r)).Msg("dispatch panicked")
		}
	}()

	start := time.Now()
	d.log.Info().Str("from", env.ChatID).Str("pushName", env.PushName).Str("text", text).Msg("message received")
	d.emit(ctx, hooks.EventMessageReceived, map[string]any{
		"id":     env.ID,
		"chatId": env.ChatID,
		"from":   env.From,
		"text":   text,
	})

	if d.presence {
		d.sendPresence(ctx, env.ChatID)
	}

	rec := store.Dispatch{MessageID: env.ID, ChatID: env.ChatID}

	agents, err := d.agents.List(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("reading agents")
		rec.Outcome = OutcomeStoreError
		d.reply(ctx, env.ChatID, d.failureReply, &rec)
		d.record(ctx, rec, start)
		return
	}

	var systemPrompt string
	if a, ok := agent.Select(text, agents); ok {
		rec.AgentID, rec.AgentName = a.ID, a.Name
		systemPrompt = a.SystemPrompt
		d.log.Info().Str("agent", a.Name).Str("agentId", a.ID).Msg("agent selected")
		d.emit(ctx, hooks.EventAgentSelected, map[string]any{
			"chatId":    env.ChatID,
			"agentId":   a.ID,
			"agentName": a.Name,
		})
	} else {
		d.log.Warn().Msg("no agents configured, answering without a system prompt")
	}

	reply := d.gen.Generate(ctx, text, systemPrompt)

	rec.Outcome = OutcomeReplied
	d.reply(ctx, env.ChatID, reply, &rec)
	d.record(ctx, rec, start)
}

func (d *Dispatcher) sendPresence(ctx context.Context, chat string) {
	pctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	if err := d.sender.SendPresence(pctx, chat, domain.PresenceComposing); err != nil {
		d.log.Debug().Err(err).Str("chatId", chat).Msg("presence update failed")
	}
}

func (d *Dispatcher) reply(ctx context.Context, chat, text string, rec *store.Dispatch) {
	d.emit(ctx, hooks.EventMessageSending, map[string]any{
		"chatId":  chat,
		"agentId": rec.AgentID,
		"text":    text,
	})

	rec.ReplyChars = len([]rune(text))
	if err := d.sender.SendText(ctx, chat, text); err != nil {
		rec.Outcome = OutcomeSendFailed
		d.log.Error().Err(err).Str("chatId", chat).Msg("failed to send reply")
		return
	}
	d.log.Info().Str("to", chat).Int("chars", rec.ReplyChars).Msg("reply sent")
}

func (d *Dispatcher) record(ctx context.Context, rec store.Dispatch, start time.Time) {
	if d.journal == nil {
		return
	}
	rec.DurationMs = time.Since(start).Milliseconds()
	if err := d.journal.RecordDispatch(context.WithoutCancel(ctx), rec); err != nil {
		d.log.Warn().Err(err).Msg("recording dispatch")
	}
}

func (d *Dispatcher) emit(ctx context.Context, event string, data map[string]any) {
	if d.hooks != nil {
		d.hooks.Emit(ctx, event, data)
	}
}
