package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vovakirdan/wireroom/internal/command"
)

// Music queries a NetEase-cloud-music-compatible API.
type Music struct {
	baseURL     string
	searchLimit int
	client      *http.Client
}

// NewMusic builds the client. baseURL is required; the API is usually self-hosted.
func NewMusic(baseURL string, searchLimit int, httpClient *http.Client) *Music {
	if searchLimit <= 0 {
		searchLimit = 10
	}
	return &Music{baseURL: strings.TrimRight(baseURL, "/"), searchLimit: searchLimit, client: newHTTPClient(httpClient)}
}

// SearchTracks implements command.MusicProvider.
func (m *Music) SearchTracks(ctx context.Context, keyword string) ([]command.Track, error) {
	q := url.Values{}
	q.Set("keywords", keyword)
	q.Set("limit", strconv.Itoa(m.searchLimit))

	doc, err := getJSON(ctx, m.client, "music", m.baseURL+"/search", q)
	if err != nil {
		return nil, err
	}
	if code := doc.Get("code"); code.Exists() && code.Int() != 200 {
		return nil, &StatusError{Provider: "music", Code: int(code.Int())}
	}

	var tracks []command.Track
	doc.Get("result.songs").ForEach(func(_, s gjson.Result) bool {
		var artists []string
		s.Get("artists.#.name").ForEach(func(_, name gjson.Result) bool {
			artists = append(artists, name.String())
			return true
		})
		tracks = append(tracks, command.Track{
			ID:        s.Get("id").Int(),
			Name:      s.Get("name").String(),
			Artists:   artists,
			Album:     s.Get("album.name").String(),
			DurationS: int(s.Get("duration").Int() / 1000),
		})
		return true
	})
	return tracks, nil
}

// PlayURL implements command.MusicProvider.
func (m *Music) PlayURL(ctx context.Context, trackID int64) (string, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(trackID, 10))

	doc, err := getJSON(ctx, m.client, "music", m.baseURL+"/song/url", q)
	if err != nil {
		return "", err
	}
	u := doc.Get("data.0.url").String()
	if u == "" {
		return "", errors.New("music: track has no playable url")
	}
	return u, nil
}
