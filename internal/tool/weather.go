package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"voicebot/internal/domain"
)

const defaultWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// WeatherConfig configures the OpenWeather current-weather tool.
type WeatherConfig struct {
	APIKey  string
	BaseURL string
	Lang    string // description language, e.g. "fr"
	Client  *http.Client
}

// WeatherTool reports current conditions for a city.
type WeatherTool struct {
	apiKey  string
	baseURL string
	lang    string
	client  *http.Client
}

func NewWeatherTool(cfg WeatherConfig) *WeatherTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWeatherBaseURL
	}
	if cfg.Lang == "" {
		cfg.Lang = "fr"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: searchTimeout}
	}
	return &WeatherTool{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, lang: cfg.Lang, client: cfg.Client}
}

func (t *WeatherTool) Name() string { return "get_weather" }
func (t *WeatherTool) Description() string {
	return "Obtient la météo actuelle pour une ville donnée"
}
func (t *WeatherTool) Params() []domain.Param {
	return []domain.Param{
		domain.StringParam("city", "Le nom de la ville dont on veut la météo"),
		domain.StringParam("country", "Le code pays optionnel (ex: FR, US)").WithDefault(""),
	}
}

// WeatherResult is the structured result returned to the model and caller.
type WeatherResult struct {
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

func (t *WeatherTool) Execute(ctx context.Context, args domain.Args) (any, error) {
	if t.apiKey == "" {
		return nil, domain.Errorf(domain.KindConfiguration, t.Name(), "OpenWeather API key not configured")
	}
	city := args.String("city")
	if city == "" {
		return nil, domain.Errorf(domain.KindToolArguments, t.Name(), "missing argument: city")
	}
	location := city
	if country := args.String("country"); country != "" {
		location = city + "," + country
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", t.apiKey)
	q.Set("units", "metric")
	q.Set("lang", t.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentString)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.KindUpstream, t.Name(), "weather API error (status %d): %s",
			resp.StatusCode, providerMessage(resp.Body, "unable to fetch weather"))
	}

	var owm owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&owm); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	result := WeatherResult{
		Temperature: owm.Main.Temp,
		Humidity:    owm.Main.Humidity,
		WindSpeed:   owm.Wind.Speed,
	}
	if len(owm.Weather) > 0 {
		result.Description = owm.Weather[0].Description
	}
	return result, nil
}

// providerMessage extracts a "message" or "error" field from a JSON error
// body, falling back to the raw body and then to fallback.
func providerMessage(body io.Reader, fallback string) string {
	raw, _ := io.ReadAll(io.LimitReader(body, fetchMaxBytes))
	var e struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		switch v := e.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return fallback
}

// OpenWeather response types
type owmResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}
