package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"deepsearch/internal/domain"
)

const maxTitleLen = 100

// DuckDuckGo queries the Instant Answer API. No key is required.
type DuckDuckGo struct {
	apiBase string
	client  *http.Client
}

type DuckDuckGoConfig struct {
	APIBase    string
	HTTPClient *http.Client
}

func NewDuckDuckGo(cfg DuckDuckGoConfig) *DuckDuckGo {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.duckduckgo.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: searchTimeout}
	}
	return &DuckDuckGo{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		client:  cfg.HTTPClient,
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) SearchURL(term string) string {
	return "https://duckduckgo.com/?q=" + url.QueryEscape(term)
}

func (d *DuckDuckGo) Query(ctx context.Context, term string, count int) ([]domain.Source, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1&t=deepsearch",
		d.apiBase, url.QueryEscape(term))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("duckduckgo returned malformed JSON")
	}
	return parseDuckDuckGo(body, count), nil
}

// parseDuckDuckGo keeps the backend order: abstract, related topics
// (flattening topic groups), then web results.
func parseDuckDuckGo(body []byte, count int) []domain.Source {
	doc := gjson.ParseBytes(body)
	var out []domain.Source

	if text, u := doc.Get("AbstractText").String(), doc.Get("AbstractURL").String(); text != "" && u != "" {
		heading := doc.Get("Heading").String()
		if heading == "" {
			heading = "Abstract"
		}
		out = append(out, domain.Source{Title: heading, URL: u, Description: text})
	}

	var addTopic func(t gjson.Result)
	addTopic = func(t gjson.Result) {
		if len(out) >= count {
			return
		}
		if nested := t.Get("Topics"); nested.IsArray() {
			for _, n := range nested.Array() {
				addTopic(n)
			}
			return
		}
		text, u := t.Get("Text").String(), t.Get("FirstURL").String()
		if text == "" || u == "" {
			return
		}
		out = append(out, domain.Source{Title: topicTitle(text), URL: u, Description: text})
	}
	for _, t := range doc.Get("RelatedTopics").Array() {
		addTopic(t)
	}

	doc.Get("Results").ForEach(func(_, r gjson.Result) bool {
		if len(out) >= count {
			return false
		}
		title, u := r.Get("Title").String(), r.Get("FirstURL").String()
		if title == "" || u == "" {
			return true
		}
		desc := r.Get("Text").String()
		if desc == "" {
			desc = title
		}
		out = append(out, domain.Source{Title: title, URL: u, Description: desc})
		return true
	})

	return out
}

func topicTitle(text string) string {
	title, _, _ := strings.Cut(text, " - ")
	if title == "" {
		title = text
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen] + "..."
	}
	return title
}
