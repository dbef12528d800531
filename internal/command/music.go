package command

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultPlayURLLimit is how many tracks get a play URL lookup.
const DefaultPlayURLLimit = 3

const placeholderNotice = "音乐服务暂时不可用，以下为示例列表。"

// Track is one music search hit.
type Track struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Artists   []string `json:"artists"`
	Album     string   `json:"album"`
	DurationS int      `json:"duration_s"`
	PlayURL   string   `json:"play_url,omitempty"`
}

// MusicProvider searches tracks and resolves playable URLs.
type MusicProvider interface {
	SearchTracks(ctx context.Context, keyword string) ([]Track, error)
	PlayURL(ctx context.Context, trackID int64) (string, error)
}

// MusicPayload is the result of the music command. Placeholder marks a synthetic list
// returned while the provider is unavailable.
type MusicPayload struct {
	Keyword     string  `json:"keyword"`
	Tracks      []Track `json:"tracks"`
	Placeholder bool    `json:"placeholder,omitempty"`
	Notice      string  `json:"notice,omitempty"`
}

// MusicHandler answers "@音乐 keyword".
type MusicHandler struct {
	Provider     MusicProvider
	PlayURLLimit int
}

func (MusicHandler) Kind() Kind             { return KindMusic }
func (MusicHandler) ArgumentRequired() bool { return true }

func (h MusicHandler) Invoke(ctx context.Context, arg string) (any, error) {
	keyword := strings.TrimSpace(arg)
	if h.Provider == nil {
		return placeholderTracks(keyword), nil
	}

	tracks, err := h.Provider.SearchTracks(ctx, keyword)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return placeholderTracks(keyword), nil
	}
	if len(tracks) == 0 {
		return nil, userError(fmt.Sprintf("没有找到与“%s”相关的歌曲。", keyword), nil)
	}

	h.resolvePlayURLs(ctx, tracks)
	return MusicPayload{Keyword: keyword, Tracks: tracks}, nil
}

// resolvePlayURLs fills PlayURL for the first tracks; lookup failures leave it empty.
func (h MusicHandler) resolvePlayURLs(ctx context.Context, tracks []Track) {
	limit := h.PlayURLLimit
	if limit <= 0 {
		limit = DefaultPlayURLLimit
	}
	limit = min(limit, len(tracks))

	var g errgroup.Group
	for i := range limit {
		g.Go(func() error {
			u, err := h.Provider.PlayURL(ctx, tracks[i].ID)
			if err == nil {
				tracks[i].PlayURL = u
			}
			return nil
		})
	}
	_ = g.Wait()
}

func placeholderTracks(keyword string) MusicPayload {
	tracks := make([]Track, 0, 3)
	for i := 1; i <= 3; i++ {
		tracks = append(tracks, Track{
			ID:        int64(-i),
			Name:      fmt.Sprintf("示例歌曲 %d - %s", i, keyword),
			Artists:   []string{"未知歌手"},
			Album:     "示例专辑",
			DurationS: 180 + 30*i,
		})
	}
	return MusicPayload{Keyword: keyword, Tracks: tracks, Placeholder: true, Notice: placeholderNotice}
}
