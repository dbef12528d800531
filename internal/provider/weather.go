package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vovakirdan/wireroom/internal/command"
)

// DefaultWeatherBaseURL is the OpenWeatherMap API root.
const DefaultWeatherBaseURL = "https://api.openweathermap.org"

// Weather queries an OpenWeatherMap-compatible current weather endpoint.
type Weather struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWeather builds the client. A nil httpClient uses a 10s timeout client.
func NewWeather(baseURL, apiKey string, httpClient *http.Client) *Weather {
	if baseURL == "" {
		baseURL = DefaultWeatherBaseURL
	}
	return &Weather{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: newHTTPClient(httpClient)}
}

// CurrentWeather implements command.WeatherProvider.
func (w *Weather) CurrentWeather(ctx context.Context, city string) (*command.WeatherReport, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "zh_cn")

	doc, err := getJSON(ctx, w.client, "weather", w.baseURL+"/data/2.5/weather", q)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", city, command.ErrCityNotFound)
		}
		return nil, err
	}

	main := doc.Get("main")
	if !main.Exists() {
		return nil, errors.New("weather: response has no main block")
	}
	return &command.WeatherReport{
		City:        doc.Get("name").String(),
		Temp:        main.Get("temp").Float(),
		FeelsLike:   main.Get("feels_like").Float(),
		Humidity:    int(main.Get("humidity").Int()),
		Pressure:    int(main.Get("pressure").Int()),
		WindSpeed:   doc.Get("wind.speed").Float(),
		Description: doc.Get("weather.0.description").String(),
	}, nil
}
