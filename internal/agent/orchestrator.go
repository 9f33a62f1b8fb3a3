package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"voicebot/internal/domain"
	"voicebot/internal/metrics"
	"voicebot/internal/tool"
)

// FallbackReply is persisted and returned when the model answers with no text.
const FallbackReply = "Désolé, je n'ai pas pu générer une réponse."

// GeolocationKey is the Result.Data key carrying the caller's position.
const GeolocationKey = "geolocation"

// Turn is one user utterance already converted to text.
type Turn struct {
	User        string
	Role        domain.Role
	Text        string
	Geolocation *domain.Geolocation
}

// AudioTurn is one recorded utterance awaiting transcription.
type AudioTurn struct {
	User        string
	Role        domain.Role
	Audio       []byte
	Filename    string
	Geolocation *domain.Geolocation
}

// Result is what a completed turn returns to the caller.
type Result struct {
	Transcriptions []domain.TranscriptEntry `json:"transcriptions"`
	BotReply       string                   `json:"botReply"`
	// Data holds every registered tool name (nil unless invoked this turn)
	// and the caller's geolocation when one was supplied.
	Data map[string]any `json:"data"`
}

// Orchestrator sequences persistence, prompt assembly, the chat model and
// tool dispatch for one conversation turn.
type Orchestrator struct {
	store       domain.TranscriptStore
	model       domain.ChatModel
	transcriber domain.Transcriber
	tools       *tool.Registry
	prompt      *PromptBuilder
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// OrchestratorConfig holds the orchestrator's collaborators.
type OrchestratorConfig struct {
	Store       domain.TranscriptStore
	Model       domain.ChatModel
	Transcriber domain.Transcriber
	Tools       *tool.Registry
	Prompt      *PromptBuilder
	Limiter     *rate.Limiter
	Logger      *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompt == nil {
		cfg.Prompt = NewPromptBuilder("")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(defaultRateBurst, defaultRatePerMinute)
	}
	if cfg.Tools == nil {
		cfg.Tools = tool.Empty(cfg.Logger)
	}
	return &Orchestrator{
		store:       cfg.Store,
		model:       cfg.Model,
		transcriber: cfg.Transcriber,
		tools:       cfg.Tools,
		prompt:      cfg.Prompt,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
	}
}

// ProcessAudio transcribes the recording and then runs Respond on the text.
func (o *Orchestrator) ProcessAudio(ctx context.Context, in AudioTurn) (*Result, error) {
	if o.transcriber == nil {
		return nil, domain.Errorf(domain.KindConfiguration, "transcribe", "no speech-to-text provider configured")
	}
	text, err := o.transcriber.Transcribe(ctx, in.Audio, in.Filename)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstream, "transcribe", err)
	}
	return o.Respond(ctx, Turn{
		User:        in.User,
		Role:        in.Role,
		Text:        text,
		Geolocation: in.Geolocation,
	})
}

// Respond runs one conversation turn. The utterance is persisted before any
// model call, so it survives a later failure. Any error aborts the turn;
// rows written before the failure stay written.
func (o *Orchestrator) Respond(ctx context.Context, in Turn) (*Result, error) {
	if in.User == "" {
		in.User = domain.DefaultUser
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	logger := o.logger.With("user", in.User)

	current, err := o.append(ctx, domain.TranscriptEntry{Text: in.Text, User: in.User, Role: in.Role})
	if err != nil {
		return nil, err
	}

	history, err := o.store.ListByUser(ctx, in.User)
	if err != nil {
		return nil, domain.Wrap(domain.KindStorage, "load history", err)
	}
	messages := o.prompt.Build(history, current)
	logger.Debug("prompt built", "messages", len(messages), "history", len(history))

	resp, err := o.chat(ctx, messages, o.tools.Definitions())
	if err != nil {
		return nil, err
	}

	data := o.emptyData(in.Geolocation)
	if resp.HasToolCalls() {
		results, err := o.runTools(ctx, resp.ToolCalls)
		if err != nil {
			return nil, err
		}

		messages = o.prompt.AddAssistantToolCalls(messages, resp.Content, resp.ToolCalls)
		for i, call := range resp.ToolCalls {
			payload, err := json.Marshal(results[i])
			if err != nil {
				return nil, domain.Errorf(domain.KindUpstream, "tool "+call.Name, "encode result: %w", err)
			}
			messages = o.prompt.AddToolResult(messages, call.ID, string(payload))
			data[call.Name] = results[i]
		}

		// Second pass without tools: one round of tool calls only.
		resp, err = o.chat(ctx, messages, nil)
		if err != nil {
			return nil, err
		}
	}

	reply := resp.Content
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	if _, err := o.append(ctx, domain.TranscriptEntry{Text: reply, User: in.User, Role: domain.RoleBot}); err != nil {
		return nil, err
	}

	transcriptions, err := o.store.ListByUser(ctx, in.User)
	if err != nil {
		return nil, domain.Wrap(domain.KindStorage, "reload history", err)
	}

	logger.Info("turn complete", "reply_len", len(reply), "entries", len(transcriptions))
	return &Result{Transcriptions: transcriptions, BotReply: reply, Data: data}, nil
}

func (o *Orchestrator) append(ctx context.Context, e domain.TranscriptEntry) (domain.TranscriptEntry, error) {
	stored, err := o.store.Append(ctx, e)
	if err != nil {
		return domain.TranscriptEntry{}, domain.Wrap(domain.KindStorage, "append transcript", err)
	}
	metrics.TranscriptsStored.Inc()
	return stored, nil
}

func (o *Orchestrator) chat(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (*domain.ChatResponse, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, domain.Errorf(domain.KindUpstream, "chat completion", "rate limit: %w", err)
	}

	start := time.Now()
	resp, err := o.model.Chat(ctx, domain.ChatRequest{Messages: messages, Tools: tools})
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstream, "chat completion", err)
	}
	o.logger.Debug("chat model replied",
		"model", o.model.Name(),
		"tools_offered", len(tools),
		"tool_calls", len(resp.ToolCalls),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// runTools executes every call concurrently. The first failure cancels the
// others and fails the turn; results are returned in call order.
func (o *Orchestrator) runTools(ctx context.Context, calls []domain.ToolCall) ([]any, error) {
	results := make([]any, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			result, err := o.tools.Invoke(gctx, call)
			if err != nil {
				o.logger.Warn("tool failed", "tool", call.Name, "call_id", call.ID, "err", err)
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) emptyData(geo *domain.Geolocation) map[string]any {
	names := o.tools.Names()
	data := make(map[string]any, len(names)+1)
	for _, name := range names {
		data[name] = nil
	}
	if geo != nil {
		data[GeolocationKey] = geo
	}
	return data
}

// ToolNames lists the registered tools in registration order.
func (o *Orchestrator) ToolNames() []string {
	return o.tools.Names()
}

// History returns a user's full transcript.
func (o *Orchestrator) History(ctx context.Context, user string) ([]domain.TranscriptEntry, error) {
	if user == "" {
		user = domain.DefaultUser
	}
	entries, err := o.store.ListByUser(ctx, user)
	if err != nil {
		return nil, domain.Wrap(domain.KindStorage, "load history", err)
	}
	return entries, nil
}
