// Package channel exposes the voice assistant over HTTP.
package channel

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"voicebot/internal/metrics"
)

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string
	Port int
	// BodyLimit caps request bodies, e.g. "25M". Empty disables the cap.
	BodyLimit string

	AuthEnabled  bool
	AuthUser     string
	AuthPassHash string // hex SHA-256 of the password

	// MetricsEndpoint serves the Prometheus text output when non-empty.
	MetricsEndpoint string

	Logger *slog.Logger
}

// Server is the Echo HTTP server fronting the orchestrator.
type Server struct {
	echo   *echo.Echo
	addr   string
	cfg    ServerConfig
	logger *slog.Logger
}

// NewServer builds the Echo server with recovery, request ids, request
// logging, the body cap, optional basic auth and the given handlers.
func NewServer(cfg ServerConfig, handlers ...Handler) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log := cfg.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogRequestID: true,
		LogLatency:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	e.Use(countRequests)
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &Server{
		echo:   e,
		addr:   addr,
		cfg:    cfg,
		logger: log.With(slog.String("component", "server")),
	}

	if cfg.AuthEnabled {
		e.Use(middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
			Skipper:   s.isPublic,
			Validator: s.checkCredentials,
			Realm:     "VoiceBot",
		}))
	}

	if cfg.MetricsEndpoint != "" {
		e.GET(cfg.MetricsEndpoint, echo.WrapHandler(metrics.Handler()))
	}

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}
	return s
}

// isPublic reports whether a path bypasses basic auth.
func (s *Server) isPublic(c echo.Context) bool {
	path := c.Request().URL.Path
	return path == "/status" || (s.cfg.MetricsEndpoint != "" && path == s.cfg.MetricsEndpoint)
}

// checkCredentials verifies username and password against the stored hash,
// either a bcrypt hash or the hex SHA-256 of the password.
func (s *Server) checkCredentials(user, pass string, _ echo.Context) (bool, error) {
	if subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.AuthUser)) != 1 {
		return false, nil
	}
	if strings.HasPrefix(s.cfg.AuthPassHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.AuthPassHash), []byte(pass)) == nil, nil
	}
	hash := sha256.Sum256([]byte(pass))
	got := hex.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(s.cfg.AuthPassHash))) == 1, nil
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.addr }

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics.RequestsTotal.Inc()
		metrics.InFlightRequests.Inc()
		defer metrics.InFlightRequests.Dec()
		return next(c)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else {
			log.Error("unhandled error", "uri", c.Request().RequestURI, "err", err)
		}
		if code >= http.StatusInternalServerError {
			metrics.RequestErrors.Inc()
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorResponse{Error: msg})
		}
		if err != nil {
			log.Warn("write error response", "err", err)
		}
	}
}
