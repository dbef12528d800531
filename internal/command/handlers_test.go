package command

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeReplier struct {
	reply string
	err   error
	calls atomic.Int32
}

func (f *fakeReplier) Reply(context.Context, string) (string, error) {
	f.calls.Add(1)
	return f.reply, f.err
}

type slowReplier struct{}

func (slowReplier) Reply(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAIHandler_Strategies(t *testing.T) {
	fallback, err := NewKeywordFallback()
	require.NoError(t, err)

	t.Run("Should use remote reply when available", func(t *testing.T) {
		req := require.New(t)
		remote := &fakeReplier{reply: "42"}
		out, err := AIHandler{Remote: remote, Fallback: fallback}.Invoke(context.Background(), "meaning of life?")
		req.NoError(err)
		req.Equal(AIPayload{Question: "meaning of life?", ReplyText: "42", Source: SourceRemote}, out)
	})

	t.Run("Should fall back when remote fails", func(t *testing.T) {
		req := require.New(t)
		remote := &fakeReplier{err: errors.New("503")}
		out, err := AIHandler{Remote: remote, Fallback: fallback}.Invoke(context.Background(), "你好呀")
		req.NoError(err)
		payload := out.(AIPayload)
		req.Equal(SourceFallback, payload.Source)
		req.Contains(fallbackGroups[0].replies, payload.ReplyText)
	})

	t.Run("Should fall back when remote returns blank text", func(t *testing.T) {
		req := require.New(t)
		out, err := AIHandler{Remote: &fakeReplier{reply: "  "}, Fallback: fallback}.Invoke(context.Background(), "谢谢")
		req.NoError(err)
		req.Equal("不客气！能够帮助您是我的荣幸！", out.(AIPayload).ReplyText)
	})

	t.Run("Should fall back when remote exceeds its own timeout", func(t *testing.T) {
		req := require.New(t)
		h := AIHandler{Remote: slowReplier{}, Fallback: fallback, RemoteTimeout: 20 * time.Millisecond}
		out, err := h.Invoke(context.Background(), "你是谁")
		req.NoError(err)
		req.Equal(SourceFallback, out.(AIPayload).Source)
		req.Equal("我是川小农，一个AI助手，很高兴为您服务！", out.(AIPayload).ReplyText)
	})

	t.Run("Should greet without calling remote on empty question", func(t *testing.T) {
		req := require.New(t)
		remote := &fakeReplier{reply: "unused"}
		out, err := AIHandler{Remote: remote, Fallback: fallback}.Invoke(context.Background(), "   ")
		req.NoError(err)
		req.Equal(Greeting, out.(AIPayload).ReplyText)
		req.Zero(remote.calls.Load())
	})
}

func TestKeywordFallback(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f, err := NewKeywordFallback()
	req.NoError(err)

	// Greeting outranks farewell when both match.
	reply, err := f.Reply(ctx, "Hello and bye")
	req.NoError(err)
	req.Contains(fallbackGroups[0].replies, reply)

	reply, err = f.Reply(ctx, "怎么用这个聊天室")
	req.NoError(err)
	req.Contains(reply, "@电影")

	// Deterministic for the same question.
	first, _ := f.Reply(ctx, "随便聊聊")
	for range 5 {
		again, _ := f.Reply(ctx, "随便聊聊")
		req.Equal(first, again)
	}
	req.Contains(defaultReplies, first)
}

func TestWeatherHint(t *testing.T) {
	tests := []struct {
		description string
		input       string
		want        string
	}{
		{"Rain outranks cloud", "多云转小雨", HintRainy},
		{"Snow", "小雪", HintSnowy},
		{"Sunny outranks partly cloudy", "晴转多云", HintSunny},
		{"Overcast", "阴", HintCloudy},
		{"English overcast", "Overcast clouds", HintCloudy},
		{"Partly cloudy", "多云", HintPartlyCloudy},
		{"English scattered clouds", "scattered clouds", HintPartlyCloudy},
		{"Haze", "霾", HintFoggy},
		{"English mist", "Mist", HintFoggy},
		{"English light rain", "light rain", HintRainy},
		{"Clear sky", "clear sky", HintSunny},
		{"Unknown", "sandstorm", HintDefault},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			require.Equal(t, tt.want, WeatherHint(tt.input))
		})
	}
}

func TestWeatherHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Should normalize report and attach hint", func(t *testing.T) {
		req := require.New(t)
		h := WeatherHandler{Provider: stubWeather{report: &WeatherReport{
			City: "Beijing", Temp: 32.5, FeelsLike: 35, Description: "晴", WindSpeed: 3.46, Humidity: 40, Pressure: 1008,
		}}}
		out, err := h.Invoke(ctx, "北京")
		req.NoError(err)
		payload := out.(WeatherPayload)
		req.Equal("Beijing", payload.City)
		req.Equal(HintSunny, payload.DisplayHint())
		req.Equal("3.5 m/s", payload.Wind)
		req.Contains(payload.AdviceText, "防暑")
		req.Contains(payload.AdviceText, "防晒")
	})

	t.Run("Should explain unknown city", func(t *testing.T) {
		req := require.New(t)
		h := WeatherHandler{Provider: stubWeather{err: fmt.Errorf("lookup: %w", ErrCityNotFound)}}
		_, err := h.Invoke(ctx, "Atlantis")
		var he *HandlerError
		req.ErrorAs(err, &he)
		req.Contains(he.Message, "Atlantis")
	})

	t.Run("Should report missing provider", func(t *testing.T) {
		_, err := WeatherHandler{}.Invoke(ctx, "北京")
		var he *HandlerError
		require.ErrorAs(t, err, &he)
	})
}

type stubNews struct {
	articles []Article
	err      error
}

func (s stubNews) SearchNews(context.Context, string) ([]Article, error) { return s.articles, s.err }

func TestNewsHandler(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)

	out, err := NewsHandler{Provider: stubNews{articles: []Article{{Title: "Go 1.25 released"}}}}.Invoke(ctx, "golang")
	req.NoError(err)
	req.Equal("golang", out.(NewsPayload).Keyword)
	req.Len(out.(NewsPayload).Articles, 1)

	_, err = NewsHandler{Provider: stubNews{}}.Invoke(ctx, "nothing")
	var he *HandlerError
	req.ErrorAs(err, &he)
	req.Contains(he.Message, "nothing")

	_, err = NewsHandler{Provider: stubNews{err: errors.New("502")}}.Invoke(ctx, "golang")
	req.ErrorAs(err, &he)
	req.NotEmpty(he.Message)
}

type stubMusic struct {
	tracks    []Track
	searchErr error
	resolved  atomic.Int32
}

func (s *stubMusic) SearchTracks(context.Context, string) ([]Track, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out, nil
}

func (s *stubMusic) PlayURL(_ context.Context, id int64) (string, error) {
	s.resolved.Add(1)
	if id == 2 {
		return "", errors.New("vip only")
	}
	return fmt.Sprintf("https://music.test/%d.mp3", id), nil
}

func TestMusicHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Should resolve play URLs for at most three tracks", func(t *testing.T) {
		req := require.New(t)
		provider := &stubMusic{tracks: []Track{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}}
		out, err := MusicHandler{Provider: provider}.Invoke(ctx, "周杰伦")
		req.NoError(err)
		payload := out.(MusicPayload)
		req.False(payload.Placeholder)
		req.Len(payload.Tracks, 5)
		req.Equal(int32(3), provider.resolved.Load())
		req.Equal("https://music.test/1.mp3", payload.Tracks[0].PlayURL)
		req.Empty(payload.Tracks[1].PlayURL)
		req.Equal("https://music.test/3.mp3", payload.Tracks[2].PlayURL)
		req.Empty(payload.Tracks[3].PlayURL)
	})

	t.Run("Should degrade to placeholder list when provider is down", func(t *testing.T) {
		req := require.New(t)
		out, err := MusicHandler{Provider: &stubMusic{searchErr: errors.New("dial tcp: refused")}}.Invoke(ctx, "jazz")
		req.NoError(err)
		payload := out.(MusicPayload)
		req.True(payload.Placeholder)
		req.NotEmpty(payload.Notice)
		req.Len(payload.Tracks, 3)
		req.Contains(payload.Tracks[0].Name, "jazz")
	})

	t.Run("Should report empty search as error", func(t *testing.T) {
		_, err := MusicHandler{Provider: &stubMusic{}}.Invoke(ctx, "zzzz")
		var he *HandlerError
		require.ErrorAs(t, err, &he)
	})
}
