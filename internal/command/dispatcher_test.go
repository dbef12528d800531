package command

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubWeather struct {
	report *WeatherReport
	err    error
}

func (s stubWeather) CurrentWeather(context.Context, string) (*WeatherReport, error) {
	return s.report, s.err
}

func newTestDispatcher(t *testing.T, p Providers) *Dispatcher {
	t.Helper()
	d := NewDispatcher(time.Second, nil)
	require.NoError(t, RegisterBuiltins(d, p, Options{}))
	return d
}

func TestDispatcher_Parse(t *testing.T) {
	d := newTestDispatcher(t, Providers{})

	tests := []struct {
		description string
		body        string
		wantCommand bool
		wantKind    Kind
		wantArg     string
	}{
		{"Plain text is not a command", "hello everyone", false, "", ""},
		{"Movie with bare host", "@电影 example.com/x", true, KindMovie, "example.com/x"},
		{"English alias is case-insensitive", "@MOVIE http://a.b", true, KindMovie, "http://a.b"},
		{"Argument is trimmed", "@天气   北京  ", true, KindWeather, "北京"},
		{"Music with empty argument degrades to text", "@音乐 ", false, "", ""},
		{"Music without argument degrades to text", "@音乐", false, "", ""},
		{"AI chat accepts empty argument", "@川小农", true, KindAI, ""},
		{"Unknown command degrades to text", "@unknown stuff", false, "", ""},
		{"Leading space is not a command", " @电影 x", false, "", ""},
		{"Email-like text is not a command", "mail me at a@b.c", false, "", ""},
		{"Multi-line argument is kept", "@ai line one\nline two", true, KindAI, "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			inv, ok := d.Parse(tt.body)
			req.Equal(tt.wantCommand, ok)
			if !tt.wantCommand {
				return
			}
			req.Equal(tt.wantKind, inv.Kind)
			req.Equal(tt.wantArg, inv.Arg)
		})
	}
}

func TestDispatcher_MovieResolvesPlayerURL(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t, Providers{})

	inv, ok := d.Parse("@电影 example.com/x")
	req.True(ok)

	res := d.Execute(context.Background(), inv)
	req.Equal(StatusSuccess, res.Status)

	payload, ok := res.Payload.(MoviePayload)
	req.True(ok)
	req.Equal("http://example.com/x", payload.URL)
	req.Contains(payload.ResolvedPlayerURL, url.QueryEscape("http://example.com/x"))
	req.Equal("https://jx.m3u8.tv/jiexi/?url=http%3A%2F%2Fexample.com%2Fx", payload.ResolvedPlayerURL)
}

func TestDispatcher_MovieKeepsExistingScheme(t *testing.T) {
	req := require.New(t)
	res, err := MovieHandler{ParserTemplate: "https://player.test/?v="}.Invoke(context.Background(), "HTTPS://v.test/1")
	req.NoError(err)
	payload := res.(MoviePayload)
	req.Equal("HTTPS://v.test/1", payload.URL)
	req.Equal("https://player.test/?v="+url.QueryEscape("HTTPS://v.test/1"), payload.ResolvedPlayerURL)
}

func TestDispatcher_WeatherFailingProviderYieldsErrorResult(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t, Providers{Weather: stubWeather{err: errors.New("connection refused")}})

	inv, ok := d.Parse("@天气 北京")
	req.True(ok)

	res := d.Execute(context.Background(), inv)
	req.Equal(StatusError, res.Status)
	req.NotEmpty(res.ErrorMessage())
}

type blockingHandler struct {
	release chan struct{}
}

func (blockingHandler) Kind() Kind             { return KindNews }
func (blockingHandler) ArgumentRequired() bool { return false }
func (h blockingHandler) Invoke(context.Context, string) (any, error) {
	<-h.release // ignores ctx on purpose
	return "late", nil
}

type panickingHandler struct{}

func (panickingHandler) Kind() Kind                                  { return KindNews }
func (panickingHandler) ArgumentRequired() bool                      { return false }
func (panickingHandler) Invoke(context.Context, string) (any, error) { panic("boom") }

func TestDispatcher_TimeoutYieldsExactlyOneErrorResult(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher(50*time.Millisecond, nil)
	h := blockingHandler{release: make(chan struct{})}
	t.Cleanup(func() { close(h.release) })
	d.Register(h, "slow")

	inv, ok := d.Parse("@slow")
	req.True(ok)

	started := time.Now()
	res := d.Execute(context.Background(), inv)
	req.Less(time.Since(started), time.Second)
	req.Equal(StatusError, res.Status)
	req.Equal(msgTimeout, res.ErrorMessage())
}

func TestDispatcher_PanicYieldsErrorResult(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher(time.Second, nil)
	d.Register(panickingHandler{}, "boom")

	inv, ok := d.Parse("@boom")
	req.True(ok)

	res := d.Execute(context.Background(), inv)
	req.Equal(StatusError, res.Status)
	req.Equal(msgUnavailable, res.ErrorMessage())
}

func TestDispatcher_Commands(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(t, Providers{})

	cmds := d.Commands()
	req.Len(cmds, 5)
	req.Equal(KindAI, cmds[0].Kind)
	req.ElementsMatch([]string{"川小农", "ai"}, cmds[0].Names)
	req.False(cmds[0].ArgumentRequired)
}
