package search

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepsearch/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ddgServer answers with body for the terms in hits and "{}" otherwise.
func ddgServer(t *testing.T, hits map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var terms []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		terms = append(terms, q)
		mu.Unlock()
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		if body, ok := hits[q]; ok {
			_, _ = io.WriteString(w, body)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &terms
}

const ddgBody = `{
  "Heading": "Go (programming language)",
  "AbstractText": "Go is a statically typed language.",
  "AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
  "RelatedTopics": [
    {"Text": "Goroutine - A lightweight thread managed by the Go runtime.", "FirstURL": "https://duckduckgo.com/Goroutine"},
    {"Name": "Tools", "Topics": [
      {"Text": "Gofmt - Formatter", "FirstURL": "https://duckduckgo.com/Gofmt"}
    ]},
    {"Text": "", "FirstURL": "https://duckduckgo.com/empty"}
  ],
  "Results": [
    {"Title": "Official site", "FirstURL": "https://go.dev", "Text": ""}
  ]
}`

func TestVariants(t *testing.T) {
	got := Variants("What is Go")
	assert.Equal(t, []string{
		"What is Go",
		"Go",
		"What is Go information",
		"What is Go facts",
		"What is Go overview",
	}, got)

	// no leading phrase: the stripped variant duplicates the query
	assert.Len(t, Variants("golang"), 4)
}

func TestSearch_BackendOrderPreserved(t *testing.T) {
	srv, _ := ddgServer(t, map[string]string{"golang": ddgBody})
	s := NewSearcher(SearcherConfig{
		Backend: NewDuckDuckGo(DuckDuckGoConfig{APIBase: srv.URL}),
		Logger:  testLogger(),
	})

	got := s.Search(context.Background(), "golang", 10)
	require.Len(t, got, 4)
	assert.Equal(t, "Go (programming language)", got[0].Title)
	assert.Equal(t, "Goroutine", got[1].Title)
	assert.Equal(t, "Gofmt", got[2].Title)
	assert.Equal(t, "https://go.dev", got[3].URL)
	assert.Equal(t, "Official site", got[3].Description)
}

func TestSearch_TruncatesToCount(t *testing.T) {
	srv, _ := ddgServer(t, map[string]string{"golang": ddgBody})
	s := NewSearcher(SearcherConfig{Backend: NewDuckDuckGo(DuckDuckGoConfig{APIBase: srv.URL}), Logger: testLogger()})

	got := s.Search(context.Background(), "golang", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Go (programming language)", got[0].Title)
}

func TestSearch_FallsThroughVariants(t *testing.T) {
	srv, terms := ddgServer(t, map[string]string{"Go": ddgBody})
	s := NewSearcher(SearcherConfig{Backend: NewDuckDuckGo(DuckDuckGoConfig{APIBase: srv.URL}), Logger: testLogger()})

	got := s.Search(context.Background(), "tell me about Go", 5)
	require.NotEmpty(t, got)
	assert.Equal(t, []string{"tell me about Go", "Go"}, *terms)
}

func TestSearch_NonexistentTopicSynthesizesLinks(t *testing.T) {
	srv, _ := ddgServer(t, nil)
	s := NewSearcher(SearcherConfig{Backend: NewDuckDuckGo(DuckDuckGoConfig{APIBase: srv.URL}), Logger: testLogger()})

	got := s.Search(context.Background(), "zzqqxx_nonexistent_topic_123", 5)
	require.Len(t, got, 3)
	for _, src := range got {
		u, err := url.ParseRequestURI(src.URL)
		require.NoError(t, err)
		assert.Equal(t, "https", u.Scheme)
		assert.NotEmpty(t, u.Host)
	}
	assert.Contains(t, got[2].Title, "Expert Analysis")
}

func TestSearch_AllErrorsSynthesizesTwoLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	s := NewSearcher(SearcherConfig{Backend: NewDuckDuckGo(DuckDuckGoConfig{APIBase: srv.URL}), Logger: testLogger()})

	got := s.Search(context.Background(), "anything", 5)
	require.Len(t, got, 2)
	assert.Equal(t, "Comprehensive Information about anything", got[0].Title)
}

func TestSearch_MalformedJSONCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()
	s := NewSearcher(SearcherConfig{Backend: NewDuckDuckGo(DuckDuckGoConfig{APIBase: srv.URL}), Logger: testLogger()})

	got := s.Search(context.Background(), "x", 5)
	assert.Len(t, got, 2)
}

func TestTopicTitle_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 120; i++ {
		long += "a"
	}
	got := topicTitle(long)
	assert.Len(t, got, maxTitleLen+3)
	assert.Equal(t, "Short", topicTitle("Short - with detail"))
}

func TestGoogle_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key-1234567890x", q.Get("key"))
		assert.Equal(t, "engine", q.Get("cx"))
		assert.Equal(t, "3", q.Get("num"))
		_, _ = io.WriteString(w, `{"items":[
			{"title":"One","link":"https://one.example","snippet":"first"},
			{"title":"Two","link":"https://two.example","snippet":"second"}
		]}`)
	}))
	defer srv.Close()

	g := NewGoogle(GoogleConfig{APIKey: "key-1234567890x", EngineID: "engine", APIBase: srv.URL})
	got, err := g.Query(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://one.example", got[0].URL)
	assert.Equal(t, "second", got[1].Description)
}

func TestGoogle_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"message":"quota exceeded"}}`)
	}))
	defer srv.Close()

	g := NewGoogle(GoogleConfig{APIKey: "k", EngineID: "e", APIBase: srv.URL})
	_, err := g.Query(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewBackend_Selection(t *testing.T) {
	cfg := config.Defaults().Search
	assert.Equal(t, "duckduckgo", NewBackend(cfg, nil).Name())

	cfg.GoogleAPIKey = "google-key-123456"
	assert.Equal(t, "duckduckgo", NewBackend(cfg, nil).Name(), "engine id missing")

	cfg.GoogleEngineID = "cx"
	assert.Equal(t, "google", NewBackend(cfg, nil).Name())

	cfg.Backend = "duckduckgo"
	assert.Equal(t, "duckduckgo", NewBackend(cfg, nil).Name())
}
