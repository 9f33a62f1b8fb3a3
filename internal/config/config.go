package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the voicebot server.
type Config struct {
	General GeneralConfig `json:"general" yaml:"general" toml:"general"`
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Memory  MemoryConfig  `json:"memory" yaml:"memory" toml:"memory"`
	OpenAI  OpenAIConfig  `json:"openai" yaml:"openai" toml:"openai"`
	Chat    ChatConfig    `json:"chat" yaml:"chat" toml:"chat"`
	Tools   ToolsConfig   `json:"tools" yaml:"tools" toml:"tools"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" toml:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel" yaml:"logLevel" toml:"logLevel"`                            // debug | info | warn | error
	LogFormat string `json:"logFormat" yaml:"logFormat" toml:"logFormat"`                         // text | json
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty" toml:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host                   string     `json:"host" yaml:"host" toml:"host"`
	Port                   int        `json:"port" yaml:"port" toml:"port"`
	MaxUploadMB            int        `json:"maxUploadMB" yaml:"maxUploadMB" toml:"maxUploadMB"`
	ShutdownTimeoutSeconds int        `json:"shutdownTimeoutSeconds" yaml:"shutdownTimeoutSeconds" toml:"shutdownTimeoutSeconds"`
	Auth                   ServerAuth `json:"auth" yaml:"auth" toml:"auth"`
}

// ServerAuth enables HTTP basic auth on the API routes. PasswordHash is a
// bcrypt hash or the hex SHA-256 of the password.
type ServerAuth struct {
	Enabled      bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Username     string `json:"username" yaml:"username" toml:"username"`
	PasswordHash string `json:"passwordHash" yaml:"passwordHash" toml:"passwordHash"`
}

type MemoryConfig struct {
	DBPath string `json:"dbPath" yaml:"dbPath" toml:"dbPath"`
}

// OpenAIConfig holds the credentials shared by speech-to-text and chat.
type OpenAIConfig struct {
	APIKey             string `json:"apiKey" yaml:"apiKey" toml:"apiKey"`
	APIBase            string `json:"apiBase" yaml:"apiBase" toml:"apiBase"`
	TranscriptionModel string `json:"transcriptionModel" yaml:"transcriptionModel" toml:"transcriptionModel"`
	Language           string `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
}

type ChatConfig struct {
	Model              string  `json:"model" yaml:"model" toml:"model"`
	MaxTokens          int     `json:"maxTokens" yaml:"maxTokens" toml:"maxTokens"`
	SystemPrompt       string  `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty" toml:"systemPrompt,omitempty"`
	RateLimitPerMinute float64 `json:"rateLimitPerMinute" yaml:"rateLimitPerMinute" toml:"rateLimitPerMinute"`
	RateBurst          int     `json:"rateBurst" yaml:"rateBurst" toml:"rateBurst"`
}

type ToolsConfig struct {
	TimeoutSeconds int               `json:"timeoutSeconds" yaml:"timeoutSeconds" toml:"timeoutSeconds"`
	Weather        WeatherToolConfig `json:"weather" yaml:"weather" toml:"weather"`
	Search         SearchToolConfig  `json:"search" yaml:"search" toml:"search"`
	Music          MusicToolConfig   `json:"music" yaml:"music" toml:"music"`
}

type WeatherToolConfig struct {
	APIKey  string `json:"apiKey" yaml:"apiKey" toml:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" toml:"baseUrl,omitempty"`
	Lang    string `json:"lang" yaml:"lang" toml:"lang"`
}

type SearchToolConfig struct {
	APIKey  string `json:"apiKey" yaml:"apiKey" toml:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" toml:"baseUrl,omitempty"`
}

// MusicToolConfig enables YouTube and/or Spotify. With neither configured
// the music tool answers with simulated results.
type MusicToolConfig struct {
	YouTubeAPIKey       string `json:"youtubeApiKey" yaml:"youtubeApiKey" toml:"youtubeApiKey"`
	SpotifyClientID     string `json:"spotifyClientId" yaml:"spotifyClientId" toml:"spotifyClientId"`
	SpotifyClientSecret string `json:"spotifyClientSecret" yaml:"spotifyClientSecret" toml:"spotifyClientSecret"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.voicebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voicebot"
	}
	return filepath.Join(home, ".voicebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// format picks the codec from the file extension; anything else is JSON.
func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return "json"
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch format(path) {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Memory.DBPath = ExpandPath(cfg.Memory.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; ${VAR:-} expands
// to the empty string.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		hasDefault := len(groups) >= 4 && groups[2] != ""
		defaultVal := ""
		if hasDefault {
			defaultVal = groups[3]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// envKeys maps well-known environment variables to the credential they fill
// when the config leaves it empty.
func envKeys(cfg *Config) map[string]*string {
	return map[string]*string{
		"OPENAI_API_KEY":        &cfg.OpenAI.APIKey,
		"OPENWEATHER_API_KEY":   &cfg.Tools.Weather.APIKey,
		"EXA_API_KEY":           &cfg.Tools.Search.APIKey,
		"YOUTUBE_API_KEY":       &cfg.Tools.Music.YouTubeAPIKey,
		"SPOTIFY_CLIENT_ID":     &cfg.Tools.Music.SpotifyClientID,
		"SPOTIFY_CLIENT_SECRET": &cfg.Tools.Music.SpotifyClientSecret,
	}
}

// ApplyEnv fills empty credentials from the environment.
func ApplyEnv(cfg *Config) {
	for name, dst := range envKeys(cfg) {
		if *dst != "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// Save writes cfg as JSON, YAML (.yaml/.yml) or TOML (.toml).
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch format(path) {
	case "yaml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
		// valid
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Server.MaxUploadMB < 1 {
		errs = append(errs, "server.maxUploadMB must be >= 1")
	}
	if cfg.Server.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, "server.shutdownTimeoutSeconds must be >= 1")
	}
	if cfg.Server.Auth.Enabled && (cfg.Server.Auth.Username == "" || cfg.Server.Auth.PasswordHash == "") {
		errs = append(errs, "server.auth requires username and passwordHash when enabled")
	}

	if cfg.Memory.DBPath == "" {
		errs = append(errs, "memory.dbPath is required")
	}

	if cfg.Chat.Model == "" {
		errs = append(errs, "chat.model is required")
	}
	if cfg.Chat.MaxTokens < 1 {
		errs = append(errs, "chat.maxTokens must be >= 1")
	}
	if cfg.Chat.RateLimitPerMinute <= 0 {
		errs = append(errs, "chat.rateLimitPerMinute must be > 0")
	}
	if cfg.Chat.RateBurst < 1 {
		errs = append(errs, "chat.rateBurst must be >= 1")
	}

	if cfg.Tools.TimeoutSeconds < 1 {
		errs = append(errs, "tools.timeoutSeconds must be >= 1")
	}
	music := cfg.Tools.Music
	if (music.SpotifyClientID == "") != (music.SpotifyClientSecret == "") {
		errs = append(errs, "tools.music: spotifyClientId and spotifyClientSecret must be set together")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
