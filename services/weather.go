package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tripmate/config"
	"tripmate/metrics"
)

const weatherUnavailable = "Not available"

type ForecastDay struct {
	Date          string  `json:"date"`
	Description   string  `json:"description"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Precipitation string  `json:"precipitation"`
}

type WeatherInfo struct {
	Destination string        `json:"destination,omitempty"`
	Current     string        `json:"current"`
	Timezone    string        `json:"timezone,omitempty"`
	Forecast    []ForecastDay `json:"forecast"`
}

// UnavailableWeather is what callers get when the lookup fails.
func UnavailableWeather() WeatherInfo {
	return WeatherInfo{Current: weatherUnavailable, Forecast: []ForecastDay{}}
}

func (w WeatherInfo) Available() bool {
	return w.Current != "" && w.Current != weatherUnavailable
}

// TimezoneFinder resolves an IANA zone name from coordinates.
type TimezoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

type WeatherClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	tz         TimezoneFinder
	log        *zap.Logger
}

type WeatherOption func(*WeatherClient)

func WithWeatherHTTPClient(hc *http.Client) WeatherOption {
	return func(c *WeatherClient) { c.httpClient = hc }
}

func WithTimezoneFinder(f TimezoneFinder) WeatherOption {
	return func(c *WeatherClient) { c.tz = f }
}

func NewWeatherClient(cfg config.Weather, log *zap.Logger, opts ...WeatherOption) *WeatherClient {
	if log == nil {
		log = zap.NewNop()
	}
	c := &WeatherClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      gocache.New(10*time.Minute, 20*time.Minute),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		log.Warn("WEATHER_API_KEY not set, weather will be unavailable")
	}
	return c
}

type owmCurrent struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type owmForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMax float64 `json:"temp_max"`
			TempMin float64 `json:"temp_min"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Pop float64 `json:"pop"`
	} `json:"list"`
}

// Lookup returns current conditions and a daily forecast for destination,
// or UnavailableWeather when anything goes wrong.
func (c *WeatherClient) Lookup(ctx context.Context, destination string) WeatherInfo {
	key := strings.ToLower(strings.TrimSpace(destination))
	if cached, ok := c.cache.Get(key); ok {
		return cached.(WeatherInfo)
	}

	info, err := c.fetch(ctx, destination)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.UpstreamRequests.WithLabelValues("weather", outcome).Inc()
	if err != nil {
		c.log.Warn("weather lookup failed", zap.String("destination", destination), zap.Error(err))
		return UnavailableWeather()
	}

	c.cache.Set(key, info, gocache.DefaultExpiration)
	return info
}

func (c *WeatherClient) fetch(ctx context.Context, destination string) (WeatherInfo, error) {
	if c.apiKey == "" {
		return WeatherInfo{}, fmt.Errorf("weather api key not configured")
	}

	params := url.Values{}
	params.Set("q", destination)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	var current owmCurrent
	if err := c.getJSON(ctx, "/weather", params, &current); err != nil {
		return WeatherInfo{}, fmt.Errorf("current weather: %w", err)
	}
	if current.Main == nil || len(current.Weather) == 0 {
		return WeatherInfo{}, fmt.Errorf("current weather: incomplete response")
	}

	params = url.Values{}
	params.Set("lat", strconv.FormatFloat(current.Coord.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(current.Coord.Lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	var forecast owmForecast
	if err := c.getJSON(ctx, "/forecast", params, &forecast); err != nil {
		return WeatherInfo{}, fmt.Errorf("forecast: %w", err)
	}

	// The forecast comes in 3-hour steps; every 8th entry is roughly a day apart.
	days := make([]ForecastDay, 0, len(forecast.List)/8+1)
	for i := 0; i < len(forecast.List); i += 8 {
		entry := forecast.List[i]
		if len(entry.Weather) == 0 {
			continue
		}
		days = append(days, ForecastDay{
			Date:          time.Unix(entry.Dt, 0).UTC().Format(dateLayout),
			Description:   capitalize(entry.Weather[0].Description),
			High:          entry.Main.TempMax,
			Low:           entry.Main.TempMin,
			Precipitation: fmt.Sprintf("%.0f%%", entry.Pop*100),
		})
	}

	info := WeatherInfo{
		Destination: destination,
		Current: fmt.Sprintf("%s°C, %s",
			strconv.FormatFloat(current.Main.Temp, 'f', -1, 64),
			capitalize(current.Weather[0].Description)),
		Forecast: days,
	}
	if c.tz != nil {
		info.Timezone = c.tz.GetTimezoneName(current.Coord.Lon, current.Coord.Lat)
	}
	return info, nil
}

func (c *WeatherClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openweathermap error (%d): %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

// PackingSuggestions derives a packing list from the forecast temperatures
// and conditions.
func PackingSuggestions(w WeatherInfo) []string {
	suggestions := []string{"Comfortable walking shoes"}
	if len(w.Forecast) == 0 {
		return suggestions
	}

	avgHigh := lo.SumBy(w.Forecast, func(d ForecastDay) float64 { return d.High }) / float64(len(w.Forecast))

	switch {
	case avgHigh > 30:
		suggestions = append(suggestions, "Lightweight clothing", "Sunscreen", "Sunglasses", "Hat")
	case avgHigh > 20:
		suggestions = append(suggestions, "Light layers", "Long and short sleeve options")
	case avgHigh > 10:
		suggestions = append(suggestions, "Medium layers", "Light jacket or sweater")
	default:
		suggestions = append(suggestions, "Warm clothing", "Heavy jacket", "Gloves", "Scarf")
	}

	wet := lo.SomeBy(w.Forecast, func(d ForecastDay) bool {
		desc := strings.ToLower(d.Description)
		return strings.Contains(desc, "rain") || strings.Contains(desc, "thunderstorm")
	})
	if wet {
		suggestions = append(suggestions, "Umbrella", "Waterproof jacket", "Waterproof shoes")
	}
	return suggestions
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
