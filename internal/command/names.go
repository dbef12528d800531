package command

import "time"

// Command names; the Chinese token is the one the chat UI advertises.
var (
	MovieNames   = []string{"电影", "movie"}
	AINames      = []string{"川小农", "ai"}
	WeatherNames = []string{"天气", "weather"}
	NewsNames    = []string{"新闻", "news"}
	MusicNames   = []string{"音乐", "music"}
)

// Providers are the network collaborators behind the built-in commands.
// Nil providers degrade per command: weather and news report an error, music a placeholder list.
type Providers struct {
	AIRemote Replier
	Weather  WeatherProvider
	News     NewsProvider
	Music    MusicProvider
}

// Options tune the built-in commands.
type Options struct {
	MovieParserTemplate string
	AIRemoteTimeout     time.Duration
	PlayURLLimit        int
}

// RegisterBuiltins registers the movie, AI-chat, weather, news and music commands.
func RegisterBuiltins(d *Dispatcher, p Providers, opts Options) error {
	fallback, err := NewKeywordFallback()
	if err != nil {
		return err
	}

	d.Register(MovieHandler{ParserTemplate: opts.MovieParserTemplate}, MovieNames...)
	d.Register(AIHandler{Remote: p.AIRemote, Fallback: fallback, RemoteTimeout: opts.AIRemoteTimeout, Log: d.log}, AINames...)
	d.Register(WeatherHandler{Provider: p.Weather}, WeatherNames...)
	d.Register(NewsHandler{Provider: p.News}, NewsNames...)
	d.Register(MusicHandler{Provider: p.Music, PlayURLLimit: opts.PlayURLLimit}, MusicNames...)
	return nil
}
