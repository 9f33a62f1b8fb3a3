package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"voicebot/internal/agent"
	"voicebot/internal/channel"
	"voicebot/internal/config"
	"voicebot/internal/memory"
	"voicebot/internal/provider"
	"voicebot/internal/tool"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "voicebot",
		Short: "VoiceBot: spoken assistant backend",
		Long:  "VoiceBot transcribes recorded speech, answers with a chat model that can call weather, search and music tools, and keeps a per-user transcript.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.voicebot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file, falling back to defaults when it is
// missing, and fills credentials from the environment.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(config.ExpandPath(cfgPath)); statErr == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.Warn("config not found, using defaults", "path", cfgPath)
		cfg = config.Defaults()
		cfg.Memory.DBPath = config.ExpandPath(cfg.Memory.DBPath)
	}
	config.ApplyEnv(cfg)
	return cfg, nil
}

// newLogger builds the process logger from the general section. The returned
// closer releases the log file, if any.
func newLogger(gen config.GeneralConfig) (*slog.Logger, func() error, error) {
	var level slog.Level
	switch gen.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var (
		out    io.Writer = os.Stderr
		closer           = func() error { return nil }
	)
	if gen.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(gen.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(gen.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	if gen.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts)), closer, nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), closer, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "db", cfg.Memory.DBPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Serves POST /api/transcribe and the history and status endpoints. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(cfg.General)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := memory.NewSQLiteStore(cfg.Memory.DBPath, logger)
	if err != nil {
		return fmt.Errorf("transcript store: %w", err)
	}
	defer store.Close()

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("openai.apiKey is empty; transcription and chat requests will fail")
	}

	toolReg, err := registerTools(cfg)
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}

	factory := provider.NewFactory(cfg, logger)
	orch := agent.NewOrchestrator(agent.OrchestratorConfig{
		Store:       store,
		Model:       factory.ChatModel(),
		Transcriber: factory.Transcriber(),
		Tools:       toolReg,
		Prompt:      agent.NewPromptBuilder(cfg.Chat.SystemPrompt),
		Limiter:     agent.NewRateLimiter(cfg.Chat.RateBurst, cfg.Chat.RateLimitPerMinute),
		Logger:      logger.With("component", "orchestrator"),
	})

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}
	srv := channel.NewServer(channel.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		BodyLimit:       fmt.Sprintf("%dM", cfg.Server.MaxUploadMB),
		AuthEnabled:     cfg.Server.Auth.Enabled,
		AuthUser:        cfg.Server.Auth.Username,
		AuthPassHash:    cfg.Server.Auth.PasswordHash,
		MetricsEndpoint: metricsEndpoint,
		Logger:          logger,
	}, channel.NewTranscribeHandler(logger, orch, version))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("voicebot started", "addr", srv.Addr(), "tools", toolReg.Names(), "version", version)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("shutdown timed out, forcing exit", "err", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// registerTools builds the weather, search and music tools. Tool HTTP calls
// share one client bounded by tools.timeoutSeconds.
func registerTools(cfg *config.Config) (*tool.Registry, error) {
	client := provider.SharedHTTPClient(time.Duration(cfg.Tools.TimeoutSeconds) * time.Second)
	tc := cfg.Tools
	return tool.NewRegistry(logger,
		tool.NewWeatherTool(tool.WeatherConfig{
			APIKey:  tc.Weather.APIKey,
			BaseURL: tc.Weather.BaseURL,
			Lang:    tc.Weather.Lang,
			Client:  client,
		}),
		tool.NewWebSearchTool(tool.SearchConfig{
			APIKey:  tc.Search.APIKey,
			BaseURL: tc.Search.BaseURL,
			Client:  client,
		}),
		tool.NewMusicTool(tool.MusicConfig{
			YouTubeAPIKey:       tc.Music.YouTubeAPIKey,
			SpotifyClientID:     tc.Music.SpotifyClientID,
			SpotifyClientSecret: tc.Music.SpotifyClientSecret,
			Client:              client,
			Logger:              logger.With("tool", "search_music"),
		}),
	)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Info("config", "path", resolveConfigPath(), "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
			logger.Info("chat", "model", cfg.Chat.Model, "maxTokens", cfg.Chat.MaxTokens, "apiKey", cfg.OpenAI.APIKey != "")

			toolReg, err := registerTools(cfg)
			if err != nil {
				return err
			}
			logger.Info("tools", "registered", toolReg.Names(),
				"weather", cfg.Tools.Weather.APIKey != "",
				"search", cfg.Tools.Search.APIKey != "",
				"music", musicProviders(toolReg),
			)

			if _, err := os.Stat(cfg.Memory.DBPath); err != nil {
				logger.Info("transcripts", "db", cfg.Memory.DBPath, "exists", false)
				return nil
			}
			schema, err := schemaVersion(cfg.Memory.DBPath)
			if err != nil {
				return err
			}
			logger.Info("transcripts", "db", cfg.Memory.DBPath, "schemaVersion", schema)
			return nil
		},
	}
}

func musicProviders(reg *tool.Registry) []string {
	t, err := reg.Lookup("search_music")
	if err != nil {
		return nil
	}
	if m, ok := t.(*tool.MusicTool); ok {
		return m.Providers()
	}
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. chat.model)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. chat.maxTokens 200)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	var flat bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			if flat {
				values := config.ListPaths(sanitized)
				for _, path := range config.SortedPaths(sanitized) {
					fmt.Printf("%s = %v\n", path, values[path])
				}
				return nil
			}
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&flat, "flat", false, "print one dotted path per line")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	var useBcrypt bool
	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the server.auth.passwordHash value for a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if useBcrypt {
				hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				fmt.Println(string(hash))
				return nil
			}
			sum := sha256.Sum256([]byte(args[0]))
			fmt.Println(hex.EncodeToString(sum[:]))
			return nil
		},
	}
	hashCmd.Flags().BoolVar(&useBcrypt, "bcrypt", false, "Emit a bcrypt hash instead of hex SHA-256")
	cmd.AddCommand(hashCmd)

	return cmd
}
