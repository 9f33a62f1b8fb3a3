package provider

import (
	"log/slog"
	"net/http"

	"voicebot/internal/config"
	"voicebot/internal/domain"
)

// Factory builds the speech-to-text and chat model adapters from config. Both
// share one pooled HTTP client.
type Factory struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		client: SharedHTTPClient(defaultHTTPTimeout),
		logger: logger,
	}
}

// ChatModel returns the OpenAI-compatible chat completion adapter.
func (f *Factory) ChatModel() domain.ChatModel {
	return NewOpenAI(OpenAIConfig{
		APIKey:    f.cfg.OpenAI.APIKey,
		APIBase:   f.cfg.OpenAI.APIBase,
		Model:     f.cfg.Chat.Model,
		MaxTokens: f.cfg.Chat.MaxTokens,
		Client:    f.client,
		Logger:    f.logger.With("component", "chat"),
	})
}

// Transcriber returns the Whisper speech-to-text adapter.
func (f *Factory) Transcriber() domain.Transcriber {
	return NewWhisperProvider(WhisperConfig{
		APIBase:  f.cfg.OpenAI.APIBase,
		APIKey:   f.cfg.OpenAI.APIKey,
		Model:    f.cfg.OpenAI.TranscriptionModel,
		Language: f.cfg.OpenAI.Language,
		Client:   f.client,
		Logger:   f.logger.With("component", "stt"),
	})
}
