package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCityNotFound is returned by weather providers for unknown cities.
var ErrCityNotFound = errors.New("city not found")

// WeatherReport is the normalized provider answer.
type WeatherReport struct {
	City        string
	Temp        float64
	FeelsLike   float64
	Description string
	WindSpeed   float64
	Humidity    int
	Pressure    int
}

// WeatherProvider looks up current conditions for a city.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, city string) (*WeatherReport, error)
}

// WeatherPayload is the result of the weather command.
type WeatherPayload struct {
	City       string  `json:"city"`
	Temp       float64 `json:"temp"`
	FeelsLike  float64 `json:"feels_like"`
	Condition  string  `json:"condition"`
	Wind       string  `json:"wind"`
	Humidity   int     `json:"humidity"`
	Pressure   int     `json:"pressure"`
	AdviceText string  `json:"advice_text"`
	Hint       string  `json:"display_hint"`
}

func (p WeatherPayload) DisplayHint() string { return p.Hint }

// WeatherHandler answers "@天气 city".
type WeatherHandler struct {
	Provider WeatherProvider
}

func (WeatherHandler) Kind() Kind             { return KindWeather }
func (WeatherHandler) ArgumentRequired() bool { return true }

func (h WeatherHandler) Invoke(ctx context.Context, arg string) (any, error) {
	city := strings.TrimSpace(arg)
	if h.Provider == nil {
		return nil, userError("天气服务未配置。", errors.New("no weather provider"))
	}

	report, err := h.Provider.CurrentWeather(ctx, city)
	if err != nil {
		if errors.Is(err, ErrCityNotFound) {
			return nil, userError(fmt.Sprintf("未找到城市“%s”的天气信息，请检查城市名称。", city), err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, userError("天气服务暂时不可用，请稍后再试。", err)
	}

	name := report.City
	if name == "" {
		name = city
	}
	hint := WeatherHint(report.Description)
	return WeatherPayload{
		City:       name,
		Temp:       report.Temp,
		FeelsLike:  report.FeelsLike,
		Condition:  report.Description,
		Wind:       fmt.Sprintf("%.1f m/s", report.WindSpeed),
		Humidity:   report.Humidity,
		Pressure:   report.Pressure,
		AdviceText: weatherAdvice(report.Temp, hint),
		Hint:       hint,
	}, nil
}

func weatherAdvice(temp float64, hint string) string {
	var parts []string
	switch {
	case temp <= 0:
		parts = append(parts, "天气寒冷，注意保暖")
	case temp < 10:
		parts = append(parts, "气温较低，建议穿厚外套")
	case temp >= 30:
		parts = append(parts, "天气炎热，注意防暑降温")
	default:
		parts = append(parts, "气温适宜")
	}

	switch hint {
	case HintRainy:
		parts = append(parts, "出门记得带伞")
	case HintSnowy:
		parts = append(parts, "路面湿滑，注意出行安全")
	case HintFoggy:
		parts = append(parts, "能见度较低，注意交通安全")
	case HintSunny:
		if temp >= 25 {
			parts = append(parts, "紫外线较强，注意防晒")
		} else {
			parts = append(parts, "适合出行")
		}
	default:
		parts = append(parts, "适合出行")
	}
	return strings.Join(parts, "，") + "。"
}
