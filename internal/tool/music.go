package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"voicebot/internal/domain"
)

const (
	defaultYouTubeBaseURL  = "https://www.googleapis.com/youtube/v3"
	defaultSpotifyBaseURL  = "https://api.spotify.com/v1"
	defaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
	youtubeMusicCategory   = "10"

	platformYouTube   = "youtube"
	platformSpotify   = "spotify"
	platformSimulated = "simulated"
)

// MusicConfig configures the music search providers. A provider is enabled
// when its credentials are set.
type MusicConfig struct {
	YouTubeAPIKey  string
	YouTubeBaseURL string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyBaseURL      string
	SpotifyTokenURL     string

	Client *http.Client
	Logger *slog.Logger
}

// MusicTool searches tracks on YouTube and Spotify, falling back to a
// simulated catalog when neither is configured.
type MusicTool struct {
	youtubeKey  string
	youtubeBase string
	spotifyBase string
	spotify     *clientcredentials.Config
	client      *http.Client
	logger      *slog.Logger

	tokenMu sync.Mutex
	token   *oauth2.Token
}

func NewMusicTool(cfg MusicConfig) *MusicTool {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: searchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.YouTubeBaseURL == "" {
		cfg.YouTubeBaseURL = defaultYouTubeBaseURL
	}
	if cfg.SpotifyBaseURL == "" {
		cfg.SpotifyBaseURL = defaultSpotifyBaseURL
	}
	if cfg.SpotifyTokenURL == "" {
		cfg.SpotifyTokenURL = defaultSpotifyTokenURL
	}

	t := &MusicTool{
		youtubeKey:  cfg.YouTubeAPIKey,
		youtubeBase: cfg.YouTubeBaseURL,
		spotifyBase: cfg.SpotifyBaseURL,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		t.spotify = &clientcredentials.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenURL:     cfg.SpotifyTokenURL,
		}
	}
	return t
}

func (t *MusicTool) Name() string { return "search_music" }
func (t *MusicTool) Description() string {
	return "Recherche de la musique sur différentes plateformes"
}
func (t *MusicTool) Params() []domain.Param {
	return []domain.Param{
		domain.StringParam("query", "Le titre, l'artiste ou l'album à rechercher"),
		domain.NumberParam("limit", "Nombre maximum de résultats").WithDefault(defaultResultLimit),
	}
}

// Providers lists the configured platforms in query order.
func (t *MusicTool) Providers() []string {
	var p []string
	if t.youtubeKey != "" {
		p = append(p, platformYouTube)
	}
	if t.spotify != nil {
		p = append(p, platformSpotify)
	}
	return p
}

// Track is one music search hit.
type Track struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration string `json:"duration"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

type MusicResult struct {
	Results   []Track `json:"results"`
	Simulated bool    `json:"simulated"`
}

func (t *MusicTool) Execute(ctx context.Context, args domain.Args) (any, error) {
	query := args.String("query")
	if query == "" {
		return nil, domain.Errorf(domain.KindToolArguments, t.Name(), "missing argument: query")
	}
	limit := clampLimit(args.Number("limit"), maxResultLimit)

	if len(t.Providers()) == 0 {
		return MusicResult{Results: simulatedTracks(query, limit), Simulated: true}, nil
	}

	var youtube, spotify []Track
	g, gctx := errgroup.WithContext(ctx)
	if t.youtubeKey != "" {
		g.Go(func() error {
			var err error
			youtube, err = t.searchYouTube(gctx, query, limit)
			return err
		})
	}
	if t.spotify != nil {
		g.Go(func() error {
			var err error
			spotify, err = t.searchSpotify(gctx, query, limit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := interleave(limit, youtube, spotify)
	t.logger.Debug("music search complete", "query_len", len(query), "results", len(merged))
	return MusicResult{Results: merged}, nil
}

func (t *MusicTool) searchYouTube(ctx context.Context, query string, limit int) ([]Track, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("videoCategoryId", youtubeMusicCategory)
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("q", query)
	q.Set("key", t.youtubeKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.youtubeBase+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentString)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.KindUpstream, t.Name(), "YouTube API error (status %d): %s",
			resp.StatusCode, providerMessage(resp.Body, "search failed"))
	}

	var yt youtubeResponse
	if err := json.NewDecoder(resp.Body).Decode(&yt); err != nil {
		return nil, fmt.Errorf("decode youtube response: %w", err)
	}

	tracks := make([]Track, 0, len(yt.Items))
	for _, item := range yt.Items {
		if item.ID.VideoID == "" || item.Snippet.Title == "" {
			continue
		}
		tracks = append(tracks, Track{
			Title:    item.Snippet.Title,
			Artist:   item.Snippet.ChannelTitle,
			URL:      "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Platform: platformYouTube,
		})
	}
	return tracks, nil
}

// spotifyToken returns the cached access token, fetching a new one under ctx
// once it has expired.
func (t *MusicTool) spotifyToken(ctx context.Context) (*oauth2.Token, error) {
	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()
	if t.token.Valid() {
		return t.token, nil
	}
	tok, err := t.spotify.Token(context.WithValue(ctx, oauth2.HTTPClient, t.client))
	if err != nil {
		return nil, err
	}
	t.token = tok
	return tok, nil
}

func (t *MusicTool) searchSpotify(ctx context.Context, query string, limit int) ([]Track, error) {
	tok, err := t.spotifyToken(ctx)
	if err != nil {
		return nil, domain.Errorf(domain.KindUpstream, t.Name(), "spotify token: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.spotifyBase+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("User-Agent", userAgentString)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.KindUpstream, t.Name(), "Spotify API error (status %d): %s",
			resp.StatusCode, providerMessage(resp.Body, "search failed"))
	}

	var sp spotifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		return nil, fmt.Errorf("decode spotify response: %w", err)
	}

	tracks := make([]Track, 0, len(sp.Tracks.Items))
	for _, item := range sp.Tracks.Items {
		link := item.ExternalURLs.Spotify
		if item.Name == "" || link == "" {
			continue
		}
		artist := ""
		if len(item.Artists) > 0 {
			artist = item.Artists[0].Name
		}
		tracks = append(tracks, Track{
			Title:    item.Name,
			Artist:   artist,
			Duration: formatDuration(time.Duration(item.DurationMS) * time.Millisecond),
			URL:      link,
			Platform: platformSpotify,
		})
	}
	return tracks, nil
}

// interleave merges provider lists round-robin and truncates to limit.
func interleave(limit int, lists ...[]Track) []Track {
	out := make([]Track, 0, limit)
	for i := 0; len(out) < limit; i++ {
		added := false
		for _, l := range lists {
			if i < len(l) && len(out) < limit {
				out = append(out, l[i])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return out
}

func simulatedTracks(query string, limit int) []Track {
	all := []Track{
		{Title: query + " - Titre simulé 1", Artist: "Artiste simulé 1", Duration: "3:45", URL: "https://example.com/music/1", Platform: platformSimulated},
		{Title: query + " - Titre simulé 2", Artist: "Artiste simulé 2", Duration: "4:12", URL: "https://example.com/music/2", Platform: platformSimulated},
	}
	if limit < len(all) {
		all = all[:limit]
	}
	return all
}

// formatDuration renders d as m:ss.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	sec := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

// YouTube Data API response types
type youtubeResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

// Spotify Web API response types
type spotifyResponse struct {
	Tracks struct {
		Items []struct {
			Name       string `json:"name"`
			DurationMS int64  `json:"duration_ms"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"tracks"`
}
