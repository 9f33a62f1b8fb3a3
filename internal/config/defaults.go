package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Server: ServerConfig{
			Host:                   "127.0.0.1",
			Port:                   8080,
			MaxUploadMB:            25,
			ShutdownTimeoutSeconds: 10,
		},
		Memory: MemoryConfig{
			DBPath: "~/.voicebot/voicebot.db",
		},
		OpenAI: OpenAIConfig{
			APIBase:            "https://api.openai.com/v1",
			TranscriptionModel: "whisper-1",
		},
		Chat: ChatConfig{
			Model:              "gpt-4o-mini",
			MaxTokens:          150,
			RateLimitPerMinute: 60,
			RateBurst:          5,
		},
		Tools: ToolsConfig{
			TimeoutSeconds: 15,
			Weather: WeatherToolConfig{
				Lang: "fr",
			},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
