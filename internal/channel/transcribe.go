package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"voicebot/internal/agent"
	"voicebot/internal/domain"
)

// Responder runs conversation turns. *agent.Orchestrator implements it.
type Responder interface {
	ProcessAudio(ctx context.Context, in agent.AudioTurn) (*agent.Result, error)
	History(ctx context.Context, user string) ([]domain.TranscriptEntry, error)
	ToolNames() []string
}

const (
	msgInvalidUser   = "Invalid user"
	msgInvalidRole   = "Invalid role"
	msgNoAudio       = "No audio file provided"
	msgInvalidGeo    = "Invalid geolocation"
	msgProcessFailed = "Failed to process audio"
)

// TranscribeHandler serves the voice turn endpoint plus history and status.
type TranscribeHandler struct {
	responder Responder
	version   string
	logger    *slog.Logger
}

func NewTranscribeHandler(log *slog.Logger, responder Responder, version string) *TranscribeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TranscribeHandler{
		responder: responder,
		version:   version,
		logger:    log.With(slog.String("handler", "transcribe")),
	}
}

func (h *TranscribeHandler) Register(e *echo.Echo) {
	e.POST("/api/transcribe", h.Transcribe)
	e.GET("/api/transcriptions/:user", h.History)
	e.GET("/status", h.Status)
}

// Transcribe accepts a multipart form with an "audio" file, a "role" field
// and optional "user" and "geolocation" fields. Fields are checked in that
// order: user, role, audio, geolocation.
func (h *TranscribeHandler) Transcribe(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		// Errors raised by middleware while the body is read (413 from the
		// body limit) keep their status.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		// A body that is not multipart, or not readable as one, carries no
		// fields at all.
		form = &multipart.Form{}
	}

	user, ok := formUser(form)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidUser)
	}
	role, ok := domain.ParseRole(formValue(form, "role"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRole)
	}
	files := form.File["audio"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, msgNoAudio)
	}
	var geo *domain.Geolocation
	if raw := formValue(form, "geolocation"); strings.TrimSpace(raw) != "" {
		if geo, err = domain.ParseGeolocation(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, msgInvalidGeo)
		}
	}

	audio, err := readPart(files[0])
	if err != nil {
		h.logger.Error("read audio part", "err", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgNoAudio)
	}

	result, err := h.responder.ProcessAudio(c.Request().Context(), agent.AudioTurn{
		User:        user,
		Role:        role,
		Audio:       audio,
		Filename:    files[0].Filename,
		Geolocation: geo,
	})
	if err != nil {
		h.logger.Error("process audio",
			"user", user,
			"kind", string(domain.KindOf(err)),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err,
		)
		if domain.IsKind(err, domain.KindValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, msgProcessFailed)
	}
	return c.JSON(http.StatusOK, result)
}

type historyResponse struct {
	Transcriptions []domain.TranscriptEntry `json:"transcriptions"`
}

// History returns every stored entry for a user, oldest first.
func (h *TranscribeHandler) History(c echo.Context) error {
	user := strings.TrimSpace(c.Param("user"))
	entries, err := h.responder.History(c.Request().Context(), user)
	if err != nil {
		h.logger.Error("load history", "user", user, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load transcriptions")
	}
	if entries == nil {
		entries = []domain.TranscriptEntry{}
	}
	return c.JSON(http.StatusOK, historyResponse{Transcriptions: entries})
}

func (h *TranscribeHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"tools":   h.responder.ToolNames(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

// formUser returns the "user" field, defaulting when absent. A file part
// named "user" is rejected.
func formUser(form *multipart.Form) (string, bool) {
	if len(form.File["user"]) > 0 {
		return "", false
	}
	user := strings.TrimSpace(formValue(form, "user"))
	if user == "" {
		user = domain.DefaultUser
	}
	return user, true
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
