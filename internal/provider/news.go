package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vovakirdan/wireroom/internal/command"
)

// DefaultNewsBaseURL is the NewsAPI root.
const DefaultNewsBaseURL = "https://newsapi.org"

// News queries a NewsAPI-compatible "everything" endpoint.
type News struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
}

// NewNews builds the client.
func NewNews(baseURL, apiKey string, pageSize int, httpClient *http.Client) *News {
	if baseURL == "" {
		baseURL = DefaultNewsBaseURL
	}
	if pageSize <= 0 {
		pageSize = 5
	}
	return &News{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, pageSize: pageSize, client: newHTTPClient(httpClient)}
}

// SearchNews implements command.NewsProvider.
func (n *News) SearchNews(ctx context.Context, keyword string) ([]command.Article, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("pageSize", strconv.Itoa(n.pageSize))
	q.Set("sortBy", "publishedAt")
	q.Set("apiKey", n.apiKey)

	doc, err := getJSON(ctx, n.client, "news", n.baseURL+"/v2/everything", q)
	if err != nil {
		return nil, err
	}
	if status := doc.Get("status").String(); status != "" && status != "ok" {
		return nil, fmt.Errorf("news: provider status %q: %s", status, doc.Get("message").String())
	}

	var articles []command.Article
	doc.Get("articles").ForEach(func(_, a gjson.Result) bool {
		articles = append(articles, command.Article{
			Title:       a.Get("title").String(),
			Description: a.Get("description").String(),
			URL:         a.Get("url").String(),
			PublishedAt: a.Get("publishedAt").String(),
			Source:      a.Get("source.name").String(),
		})
		return len(articles) < n.pageSize
	})
	return articles, nil
}
