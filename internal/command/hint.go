package command

import "strings"

// hintRules are checked in order; the first rule with a matching keyword wins.
var hintRules = []struct {
	hint     string
	keywords []string
}{
	{HintRainy, []string{"雨", "rain", "drizzle", "shower", "thunderstorm"}},
	{HintSnowy, []string{"雪", "snow", "sleet"}},
	{HintSunny, []string{"晴", "sunny", "clear"}},
	{HintCloudy, []string{"阴", "overcast"}},
	{HintPartlyCloudy, []string{"多云", "partly", "cloud"}},
	{HintFoggy, []string{"雾", "霾", "fog", "haze", "mist", "smoke"}},
}

// WeatherHint classifies a free-text weather description into a display hint.
func WeatherHint(description string) string {
	desc := strings.ToLower(description)
	for _, rule := range hintRules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return rule.hint
			}
		}
	}
	return HintDefault
}
