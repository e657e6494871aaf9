package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"relaybot/internal/domain"
)

const openWeatherMapBaseURL = "https://api.openweathermap.org/data/2.5"

// WeatherTool fetches current conditions and a 24-hour forecast from
// OpenWeatherMap and formats them for the system prompt.
type WeatherTool struct {
	apiKey    string
	location  string
	latitude  *float64
	longitude *float64
	units     string
	language  string
	baseURL   string
	client    *http.Client
	logger    *slog.Logger
}

type WeatherConfig struct {
	APIKey    string
	Location  string // e.g. "Boston,MA,US"
	Latitude  *float64
	Longitude *float64
	Units     string // imperial | metric | standard
	Language  string
	BaseURL   string // override for tests
	Logger    *slog.Logger
}

func NewWeatherTool(cfg WeatherConfig) *WeatherTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openWeatherMapBaseURL
	}
	if cfg.Units == "" {
		cfg.Units = "imperial"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &WeatherTool{
		apiKey:    cfg.APIKey,
		location:  cfg.Location,
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		units:     cfg.Units,
		language:  cfg.Language,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    cfg.Logger,
	}
}

func (t *WeatherTool) Name() string { return "OpenWeatherMap" }

type owmCurrent struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type owmForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

func (t *WeatherTool) Execute(ctx context.Context, _ domain.ToolContext) (string, error) {
	var current owmCurrent
	if err := t.fetch(ctx, "/weather", &current); err != nil {
		return "", fmt.Errorf("current weather: %w", err)
	}

	var forecast owmForecast
	if err := t.fetch(ctx, "/forecast", &forecast); err != nil {
		return "", fmt.Errorf("forecast: %w", err)
	}

	t.logger.Info("fetched weather data", "location", current.Name)
	return t.format(current, forecast), nil
}

func (t *WeatherTool) fetch(ctx context.Context, path string, out any) error {
	params := url.Values{}
	params.Set("appid", t.apiKey)
	params.Set("units", t.units)
	params.Set("lang", t.language)
	if t.latitude != nil && t.longitude != nil {
		params.Set("lat", strconv.FormatFloat(*t.latitude, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(*t.longitude, 'f', -1, 64))
	} else {
		params.Set("q", t.location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openweathermap %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (t *WeatherTool) format(current owmCurrent, forecast owmForecast) string {
	tempUnit := "°C"
	speedUnit := "m/s"
	if t.units == "imperial" {
		tempUnit = "°F"
		speedUnit = "mph"
	}

	desc := ""
	if len(current.Weather) > 0 {
		desc = current.Weather[0].Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT WEATHER for %s:\n", current.Name)
	fmt.Fprintf(&b, "- Temperature: %.1f%s (feels like %.1f%s)\n", current.Main.Temp, tempUnit, current.Main.FeelsLike, tempUnit)
	fmt.Fprintf(&b, "- Conditions: %s\n", desc)
	fmt.Fprintf(&b, "- Humidity: %d%%\n", current.Main.Humidity)
	fmt.Fprintf(&b, "- Wind Speed: %.1f %s\n", current.Wind.Speed, speedUnit)

	// Next 24 hours: 8 slots at 3-hour intervals.
	b.WriteString("\nFORECAST (Next 24 hours):\n")
	slots := forecast.List
	if len(slots) > 8 {
		slots = slots[:8]
	}
	for _, item := range slots {
		itemDesc := ""
		if len(item.Weather) > 0 {
			itemDesc = item.Weather[0].Description
		}
		ts := time.Unix(item.Dt, 0).Format("03:04 PM")
		fmt.Fprintf(&b, "- %s: %.1f%s, %s\n", ts, item.Main.Temp, tempUnit, itemDesc)
	}

	return b.String()
}
