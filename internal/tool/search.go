package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"voicebot/internal/domain"
)

const (
	searchTimeout   = 15 * time.Second
	fetchMaxBytes   = 100 * 1024 // 100KB
	userAgentString = "VoiceBot/0.1"

	defaultExaBaseURL  = "https://api.exa.ai/search"
	defaultResultLimit = 5
	maxResultLimit     = 25
)

// SearchConfig configures the Exa.ai web search tool.
type SearchConfig struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// WebSearchTool runs keyword searches through Exa.ai.
type WebSearchTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWebSearchTool(cfg SearchConfig) *WebSearchTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultExaBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: searchTimeout}
	}
	return &WebSearchTool{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, client: cfg.Client}
}

func (t *WebSearchTool) Name() string        { return "search_google" }
func (t *WebSearchTool) Description() string { return "Effectue une recherche web via Exa.ai" }
func (t *WebSearchTool) Params() []domain.Param {
	return []domain.Param{
		domain.StringParam("query", "Les mots clés de recherche"),
		domain.NumberParam("limit", "Nombre maximum de résultats").WithDefault(defaultResultLimit),
	}
}

// SearchHit is one ranked search result.
type SearchHit struct {
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Text             string   `json:"text,omitempty"`
	Highlights       []string `json:"highlights,omitempty"`
	PublishedDate    string   `json:"publishedDate,omitempty"`
	Author           string   `json:"author,omitempty"`
	Score            *float64 `json:"score,omitempty"`
	AutopromptString string   `json:"autopromptString,omitempty"`
}

type SearchResult struct {
	Results []SearchHit `json:"results"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args domain.Args) (any, error) {
	if t.apiKey == "" {
		return nil, domain.Errorf(domain.KindConfiguration, t.Name(), "Exa API key not configured")
	}
	query := args.String("query")
	if query == "" {
		return nil, domain.Errorf(domain.KindToolArguments, t.Name(), "missing argument: query")
	}
	limit := clampLimit(args.Number("limit"), maxResultLimit)

	body, err := json.Marshal(exaRequest{Query: query, NumResults: limit, Type: "keyword"})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", t.apiKey)
	req.Header.Set("User-Agent", userAgentString)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.KindUpstream, t.Name(), "Exa.ai error (status %d): %s",
			resp.StatusCode, providerMessage(resp.Body, "search failed"))
	}

	var exa exaResponse
	if err := json.NewDecoder(resp.Body).Decode(&exa); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	out := SearchResult{Results: make([]SearchHit, 0, len(exa.Results))}
	for _, r := range exa.Results {
		out.Results = append(out.Results, SearchHit{
			Title:            r.Title,
			URL:              r.URL,
			Text:             r.Text,
			Highlights:       r.Highlights,
			PublishedDate:    r.PublishedDate,
			Author:           r.Author,
			Score:            r.Score,
			AutopromptString: exa.AutopromptString,
		})
	}
	return out, nil
}

// clampLimit maps a model-supplied count into [1, max], using the default
// for values below 1. It clamps before converting so huge numbers stay huge.
func clampLimit(n float64, max int) int {
	if math.IsNaN(n) || n < 1 {
		return defaultResultLimit
	}
	if n > float64(max) {
		return max
	}
	return int(n)
}

// Exa.ai request/response types
type exaRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
	Type       string `json:"type"`
}

type exaResponse struct {
	Results          []exaResult `json:"results"`
	AutopromptString string      `json:"autopromptString"`
}

type exaResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Text          string   `json:"text"`
	Highlights    []string `json:"highlights"`
	PublishedDate string   `json:"publishedDate"`
	Author        string   `json:"author"`
	Score         *float64 `json:"score"`
}
