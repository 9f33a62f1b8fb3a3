package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for logLevel=verbose")
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogFormat = "xml"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for logFormat=xml")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Server.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_AuthRequiresCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Auth.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for auth without credentials")
	}

	cfg.Server.Auth.Username = "admin"
	cfg.Server.Auth.PasswordHash = "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	if err := Validate(cfg); err != nil {
		t.Fatalf("auth with credentials should be valid: %v", err)
	}
}

func TestValidate_ChatLimits(t *testing.T) {
	cfg := Defaults()
	cfg.Chat.MaxTokens = 0
	cfg.Chat.RateLimitPerMinute = 0
	cfg.Chat.RateBurst = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero chat limits")
	}
	for _, want := range []string{"chat.maxTokens", "chat.rateLimitPerMinute", "chat.rateBurst"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got: %v", want, err)
		}
	}
}

func TestValidate_SpotifyCredentialsTogether(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.Music.SpotifyClientID = "client"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for spotify id without secret")
	}

	cfg.Tools.Music.SpotifyClientSecret = "secret"
	if err := Validate(cfg); err != nil {
		t.Fatalf("complete spotify credentials should be valid: %v", err)
	}
}

func TestValidate_MetricsEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Endpoint = "metrics"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for relative metrics endpoint")
	}

	cfg.Metrics.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled metrics should skip endpoint check: %v", err)
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Chat.Model = "gpt-4o"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Chat.Model != "gpt-4o" {
		t.Fatalf("expected 'gpt-4o', got %q", loaded.Chat.Model)
	}
}

func TestLoadSave_YAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := Defaults()
	original.Server.Port = 9090
	original.Tools.Weather.Lang = "en"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "port: 9090") {
		t.Fatalf("expected YAML output, got:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 9090 || loaded.Tools.Weather.Lang != "en" {
		t.Fatalf("unexpected values after round trip: port=%d lang=%q", loaded.Server.Port, loaded.Tools.Weather.Lang)
	}
}

func TestLoadSave_TOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	original := Defaults()
	original.Server.Port = 7070
	original.Chat.Model = "gpt-4.1"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[server]") || !strings.Contains(string(data), "port = 7070") {
		t.Fatalf("expected TOML output, got:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.Port != 7070 || loaded.Chat.Model != "gpt-4.1" {
		t.Fatalf("unexpected values after round trip: port=%d model=%q", loaded.Server.Port, loaded.Chat.Model)
	}
}

func TestLoad_TOMLPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[openai]\napiKey = \"sk-test\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Fatalf("expected api key from file, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.Server.Port != Defaults().Server.Port {
		t.Fatalf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := "chat:\n  model: gpt-4.1-mini\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chat.Model != "gpt-4.1-mini" {
		t.Fatalf("expected overridden model, got %q", cfg.Chat.Model)
	}
	if cfg.Chat.MaxTokens != 150 {
		t.Fatalf("expected default maxTokens 150, got %d", cfg.Chat.MaxTokens)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{
		"chat": {
			"maxTokens": 0
		}
	}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgFile)
	if err == nil {
		t.Fatal("expected validation error for maxTokens=0")
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_VOICEBOT_KEY", "sk-from-env")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{
		"openai": {
			"apiKey": "${TEST_VOICEBOT_KEY}"
		},
		"tools": {
			"weather": { "apiKey": "${TEST_VOICEBOT_UNSET:-}" }
		}
	}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Fatalf("expected apiKey 'sk-from-env', got %q", cfg.OpenAI.APIKey)
	}
	if cfg.Tools.Weather.APIKey != "" {
		t.Fatalf("expected empty weather key, got %q", cfg.Tools.Weather.APIKey)
	}
}

// --- ApplyEnv ---

func TestApplyEnv_FillsEmptyCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("EXA_API_KEY", "exa-env")

	cfg := Defaults()
	cfg.Tools.Search.APIKey = "exa-config"
	ApplyEnv(cfg)

	if cfg.OpenAI.APIKey != "sk-env" {
		t.Fatalf("expected OPENAI_API_KEY to fill empty key, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.Tools.Search.APIKey != "exa-config" {
		t.Fatalf("configured key should win over env, got %q", cfg.Tools.Search.APIKey)
	}
}

// --- Accessors ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()
	v, err := GetByPath(cfg, "chat.model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "gpt-4o-mini" {
		t.Fatalf("expected 'gpt-4o-mini', got %v", v)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	_, err := GetByPath(Defaults(), "chat.nonexistent")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestSetByPath_IntConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "server.port", "9000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected 9000, got %d", cfg.Server.Port)
	}
}

func TestSetByPath_BoolConversion(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "metrics.enabled", "false"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics disabled")
	}
}

func TestSetByPath_StringFieldStaysString(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "tools.weather.apiKey", "12345"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tools.Weather.APIKey != "12345" {
		t.Fatalf("expected numeric-looking key kept as string, got %q", cfg.Tools.Weather.APIKey)
	}
}

func TestSetByPath_OptionalField(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "openai.language", "fr"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAI.Language != "fr" {
		t.Fatalf("expected language 'fr', got %q", cfg.OpenAI.Language)
	}
}

func TestSetByPath_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "chat.temperature",
		"unknown root": "nope.value",
		"section":      "tools.weather",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			if err := SetByPath(Defaults(), path, "x"); err == nil {
				t.Fatalf("expected error for %s", path)
			}
		})
	}
}

func TestSetByPath_BadNumber(t *testing.T) {
	if err := SetByPath(Defaults(), "server.port", "eighty"); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.OpenAI.APIKey = "sk-1234567890abcdefghijklmnop"
	cfg.Tools.Music.SpotifyClientSecret = "short"
	cfg.Server.Auth.PasswordHash = "f52fbd32b2b3b86ff88ef6c490628285f482af15ddcb29541f94bcf526a3f6c7"

	sanitized := Sanitize(cfg)

	if sanitized.OpenAI.APIKey != "sk-1****mnop" {
		t.Fatalf("API key should be masked, got %q", sanitized.OpenAI.APIKey)
	}
	if sanitized.Tools.Music.SpotifyClientSecret != "***" {
		t.Fatalf("short secret should be '***', got %q", sanitized.Tools.Music.SpotifyClientSecret)
	}
	if sanitized.Server.Auth.PasswordHash != "***" {
		t.Fatal("password hash should be masked")
	}
	if cfg.OpenAI.APIKey != "sk-1234567890abcdefghijklmnop" {
		t.Fatal("original config should not be modified")
	}
}

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, expected := range []string{"general.logLevel", "memory.dbPath", "chat.model", "tools.weather.lang"} {
		if _, ok := paths[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
}

func TestSortedPaths_Ordered(t *testing.T) {
	keys := SortedPaths(Defaults())
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("paths not sorted: %q before %q", keys[i-1], keys[i])
		}
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	result := ExpandEnvVars("${TEST_VOICEBOT_MISSING:-fallback}")
	if result != "fallback" {
		t.Fatalf("expected 'fallback', got %q", result)
	}
}

func TestExpandEnvVars_EmptyDefault(t *testing.T) {
	result := ExpandEnvVars(`"${TEST_VOICEBOT_MISSING:-}"`)
	if result != `""` {
		t.Fatalf("expected empty expansion, got %q", result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	input := "${TEST_VOICEBOT_MISSING}"
	if result := ExpandEnvVars(input); result != input {
		t.Fatalf("expected original kept, got %q", result)
	}
}

func TestExpandEnvVars_SetVarOverridesDefault(t *testing.T) {
	t.Setenv("TEST_VOICEBOT_SET", "value")
	if result := ExpandEnvVars("${TEST_VOICEBOT_SET:-fallback}"); result != "value" {
		t.Fatalf("expected 'value', got %q", result)
	}
}

func TestDefaults_ReturnsValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Chat.MaxTokens != 150 {
		t.Fatalf("default maxTokens should be 150, got %d", cfg.Chat.MaxTokens)
	}
	if cfg.OpenAI.TranscriptionModel != "whisper-1" {
		t.Fatalf("default transcription model should be whisper-1, got %q", cfg.OpenAI.TranscriptionModel)
	}
}
