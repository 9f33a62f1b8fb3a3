package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot/internal/domain"
)

func TestWeatherTool_Execute(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"q": q.Get("q"), "appid": q.Get("appid"), "units": q.Get("units"), "lang": q.Get("lang"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"main":{"temp":18.5,"humidity":72},"weather":[{"description":"ciel dégagé"}],"wind":{"speed":3.1}}`))
	}))
	defer srv.Close()

	tool := NewWeatherTool(WeatherConfig{APIKey: "k", BaseURL: srv.URL, Client: srv.Client()})
	out, err := tool.Execute(context.Background(), domain.Args{"city": "Paris", "country": "FR"})
	require.NoError(t, err)

	assert.Equal(t, WeatherResult{Temperature: 18.5, Description: "ciel dégagé", Humidity: 72, WindSpeed: 3.1}, out)
	assert.Equal(t, "Paris,FR", gotQuery["q"])
	assert.Equal(t, "k", gotQuery["appid"])
	assert.Equal(t, "metric", gotQuery["units"])
	assert.Equal(t, "fr", gotQuery["lang"])
}

func TestWeatherTool_CityOnly(t *testing.T) {
	var q string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("q")
		w.Write([]byte(`{"main":{},"weather":[],"wind":{}}`))
	}))
	defer srv.Close()

	tool := NewWeatherTool(WeatherConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := tool.Execute(context.Background(), domain.Args{"city": "Lyon", "country": ""})
	require.NoError(t, err)
	assert.Equal(t, "Lyon", q)
}

func TestWeatherTool_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer srv.Close()

	tool := NewWeatherTool(WeatherConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := tool.Execute(context.Background(), domain.Args{"city": "Nowhere"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUpstream))
	assert.Contains(t, err.Error(), "city not found")
	assert.Contains(t, err.Error(), "404")
}

func TestWeatherTool_MissingKey(t *testing.T) {
	tool := NewWeatherTool(WeatherConfig{})
	_, err := tool.Execute(context.Background(), domain.Args{"city": "Paris"})
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}

func TestWeatherTool_Params(t *testing.T) {
	tool := NewWeatherTool(WeatherConfig{})
	assert.Equal(t, "get_weather", tool.Name())
	params := tool.Params()
	require.Len(t, params, 2)
	assert.True(t, params[0].Required())
	assert.False(t, params[1].Required())
}
