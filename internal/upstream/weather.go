package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultWeatherURL is the OpenWeatherMap current-weather endpoint.
const DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// WeatherClient fetches current outdoor weather. It sends no bearer token;
// the optional API key is passed as the appid query parameter.
type WeatherClient struct {
	url        string
	apiKey     string
	units      string
	httpClient *http.Client
}

// NewWeatherClient creates a weather client. Empty values use defaults
// (DefaultWeatherURL, metric units).
func NewWeatherClient(endpoint, apiKey, units string, httpClient *http.Client) *WeatherClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultWeatherURL
	}
	if units == "" {
		units = "metric"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WeatherClient{url: endpoint, apiKey: apiKey, units: units, httpClient: httpClient}
}

// Current returns the weather at the given coordinates.
func (w *WeatherClient) Current(ctx context.Context, lat, lon float64) (_ Weather, err error) {
	start := time.Now()
	defer func() {
		requestsTotal.WithLabelValues("weather_current", Category(err)).Inc()
		requestDuration.WithLabelValues("weather_current").Observe(time.Since(start).Seconds())
	}()

	query := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"units": {w.units},
	}
	if w.apiKey != "" {
		query.Set("appid", w.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url+"?"+query.Encode(), nil)
	if err != nil {
		return Weather{}, fmt.Errorf("building weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Weather{}, fmt.Errorf("%w: weather: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Weather{}, fmt.Errorf("%w: reading weather response: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Weather{}, statusError(resp.StatusCode, string(data))
	}

	var body struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain map[string]float64 `json:"rain"`
		Sys  struct {
			Sunrise int64 `json:"sunrise"`
			Sunset  int64 `json:"sunset"`
		} `json:"sys"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := decode("weather_current", data, &body); err != nil {
		return Weather{}, err
	}
	if body.Main == nil {
		return Weather{}, fmt.Errorf("%w: weather_current: missing main", ErrMalformedResponse)
	}

	out := Weather{
		Temperature:   body.Main.Temp,
		Humidity:      body.Main.Humidity,
		WindSpeed:     body.Wind.Speed,
		Precipitation: body.Rain["1h"],
		ObservedAt:    time.Now(),
	}
	if body.Dt > 0 {
		out.ObservedAt = time.Unix(body.Dt, 0)
	}
	if body.Sys.Sunrise > 0 {
		out.Sunrise = time.Unix(body.Sys.Sunrise, 0)
	}
	if body.Sys.Sunset > 0 {
		out.Sunset = time.Unix(body.Sys.Sunset, 0)
	}
	if len(body.Weather) > 0 {
		out.Description = body.Weather[0].Description
	}
	return out, nil
}
