package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Article is one news search hit.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Source      string `json:"source"`
}

// NewsProvider searches news by keyword.
type NewsProvider interface {
	SearchNews(ctx context.Context, keyword string) ([]Article, error)
}

// NewsPayload is the result of the news command.
type NewsPayload struct {
	Keyword  string    `json:"keyword"`
	Articles []Article `json:"articles"`
}

// NewsHandler answers "@新闻 keyword".
type NewsHandler struct {
	Provider NewsProvider
}

func (NewsHandler) Kind() Kind             { return KindNews }
func (NewsHandler) ArgumentRequired() bool { return true }

func (h NewsHandler) Invoke(ctx context.Context, arg string) (any, error) {
	keyword := strings.TrimSpace(arg)
	if h.Provider == nil {
		return nil, userError("新闻服务未配置。", errors.New("no news provider"))
	}

	articles, err := h.Provider.SearchNews(ctx, keyword)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, userError("新闻服务暂时不可用，请稍后再试。", err)
	}
	if len(articles) == 0 {
		return nil, userError(fmt.Sprintf("没有找到与“%s”相关的新闻。", keyword), nil)
	}
	return NewsPayload{Keyword: keyword, Articles: articles}, nil
}
