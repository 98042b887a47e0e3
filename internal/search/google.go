package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"deepsearch/internal/domain"
)

// googleMaxNum is the largest page size Custom Search accepts.
const googleMaxNum = 10

// Google queries the Custom Search JSON API.
type Google struct {
	apiKey   string
	engineID string
	apiBase  string
	client   *http.Client
}

type GoogleConfig struct {
	APIKey     string
	EngineID   string
	APIBase    string
	HTTPClient *http.Client
}

func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: searchTimeout}
	}
	return &Google{
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		client:   cfg.HTTPClient,
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) SearchURL(term string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(term)
}

func (g *Google) Query(ctx context.Context, term string, count int) ([]domain.Source, error) {
	num := count
	if num > googleMaxNum {
		num = googleMaxNum
	}
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", term)
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		return nil, fmt.Errorf("google search returned %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("google search returned malformed JSON")
	}

	var out []domain.Source
	gjson.GetBytes(body, "items").ForEach(func(_, item gjson.Result) bool {
		link := item.Get("link").String()
		if link == "" {
			return true
		}
		title := item.Get("title").String()
		if title == "" {
			title = link
		}
		out = append(out, domain.Source{
			Title:       title,
			URL:         link,
			Description: item.Get("snippet").String(),
		})
		return len(out) < count
	})
	return out, nil
}
