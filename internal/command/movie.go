package command

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// DefaultMovieParserTemplate is the player endpoint; {url} is replaced by the escaped movie link.
const DefaultMovieParserTemplate = "https://jx.m3u8.tv/jiexi/?url={url}"

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// MoviePayload is the result of the movie command.
type MoviePayload struct {
	URL               string `json:"url"`
	ResolvedPlayerURL string `json:"resolved_player_url"`
}

// MovieHandler turns a link into a player URL. It never fails.
type MovieHandler struct {
	ParserTemplate string
}

func (MovieHandler) Kind() Kind             { return KindMovie }
func (MovieHandler) ArgumentRequired() bool { return true }

func (h MovieHandler) Invoke(_ context.Context, arg string) (any, error) {
	link := strings.TrimSpace(arg)
	if !schemePattern.MatchString(link) {
		link = "http://" + link
	}

	tpl := h.ParserTemplate
	if tpl == "" {
		tpl = DefaultMovieParserTemplate
	}
	escaped := url.QueryEscape(link)
	var player string
	if strings.Contains(tpl, "{url}") {
		player = strings.ReplaceAll(tpl, "{url}", escaped)
	} else {
		player = tpl + escaped
	}

	return MoviePayload{URL: link, ResolvedPlayerURL: player}, nil
}
