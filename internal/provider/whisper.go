package provider

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voicebot/internal/domain"
	"voicebot/internal/metrics"
)

const defaultAudioFilename = "audio.wav"

// WhisperConfig configures the Whisper speech-to-text provider.
type WhisperConfig struct {
	APIBase  string // e.g. "https://api.openai.com/v1" or "https://api.groq.com/openai/v1"
	APIKey   string
	Model    string // e.g. "whisper-1" (OpenAI) or "whisper-large-v3" (Groq)
	Language string // optional: ISO-639-1 language code
	Client   *http.Client
	Logger   *slog.Logger
}

// WhisperProvider transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint. Like the chat adapter it never retries.
type WhisperProvider struct {
	client   openai.Client
	apiKey   string
	model    string
	language string
	logger   *slog.Logger
}

var _ domain.Transcriber = (*WhisperProvider)(nil)

// NewWhisperProvider creates a new Whisper transcription provider.
func NewWhisperProvider(cfg WhisperConfig) *WhisperProvider {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultOpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(defaultHTTPTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.APIBase),
		option.WithHTTPClient(cfg.Client),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &WhisperProvider{
		client:   openai.NewClient(opts...),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		logger:   cfg.Logger,
	}
}

// Transcribe converts audio bytes to text. filename should carry the
// extension of the upload (e.g. "audio.webm"); the API uses it to detect the
// container format.
func (w *WhisperProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	const op = "transcribe"
	if w.apiKey == "" {
		return "", domain.Errorf(domain.KindConfiguration, op, "speech-to-text API key not configured")
	}
	if filename == "" {
		filename = defaultAudioFilename
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(audio), filename, audioContentType(filename)),
		Model:          openai.AudioModel(w.model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}

	start := time.Now()
	metrics.TranscriptionsTotal.Inc()
	res, err := w.client.Audio.Transcriptions.New(ctx, params)
	metrics.TranscriptionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", domain.Errorf(domain.KindUpstream, op, "whisper API error (status %d): %s",
				apiErr.StatusCode, apiErr.Message)
		}
		return "", domain.Errorf(domain.KindUpstream, op, "whisper API request: %w", err)
	}

	w.logger.Info("transcription complete",
		"model", w.model,
		"text_len", len(res.Text),
		"elapsed", time.Since(start),
	)
	return res.Text, nil
}

func audioContentType(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
