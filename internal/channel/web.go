package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"deepsearch/internal/agent"
	"deepsearch/internal/answer"
	"deepsearch/internal/config"
	"deepsearch/internal/domain"
	"deepsearch/internal/metrics"
	"deepsearch/internal/stream"
)

const (
	maxBodySize         = 1 << 20 // 1MB
	defaultConvLimit    = 20
	maxConvLimit        = 100
	conversationHistory = 200
	shutdownTimeout     = 5 * time.Second
)

// Answerer produces and records answers for the search endpoints.
type Answerer interface {
	Answer(ctx context.Context, query string) (*domain.AggregatedAnswer, bool)
	Record(ctx context.Context, conversationID, query string, ans *domain.AggregatedAnswer)
}

// AgentProcessor handles /agent requests.
type AgentProcessor interface {
	Process(ctx context.Context, req agent.Request) (agent.Result, error)
}

// Web serves the DeepSearch JSON API.
type Web struct {
	host    string
	port    int
	logger  *slog.Logger
	server  *http.Server
	handler http.Handler

	answers Answerer
	agent   AgentProcessor
	store   domain.ConversationStore
	emitter *stream.Emitter

	cfg *config.Config

	listenMu sync.Mutex
	addr     string
}

type WebConfig struct {
	Host    string
	Port    int
	Logger  *slog.Logger
	Config  *config.Config
	Answers Answerer
	Agent   AgentProcessor
	Store   domain.ConversationStore // optional; conversation routes answer 503 without it
	Emitter *stream.Emitter
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Config == nil {
		cfg.Config = config.Defaults()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = stream.NewEmitter(stream.DefaultDelay)
	}

	w := &Web{
		host:    cfg.Host,
		port:    cfg.Port,
		logger:  cfg.Logger,
		answers: cfg.Answers,
		agent:   cfg.Agent,
		store:   cfg.Store,
		emitter: cfg.Emitter,
		cfg:     cfg.Config,
	}
	w.handler = w.routes()
	return w
}

func (w *Web) Name() string { return "web" }

// Handler returns the API handler, for tests and embedding.
func (w *Web) Handler() http.Handler { return w.handler }

func (w *Web) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /search", w.handleSearch)
	mux.HandleFunc("POST /search/stream", w.handleSearchStream)
	mux.HandleFunc("GET /health", w.handleHealth)
	mux.HandleFunc("POST /agent", w.handleAgent)
	mux.HandleFunc("GET /agent", w.handleAgentUsage)
	mux.HandleFunc("GET /conversations", w.handleListConversations)
	mux.HandleFunc("GET /conversations/{id}", w.handleGetConversation)
	mux.HandleFunc("GET /api/config", w.handleGetConfig)

	if w.cfg.Metrics.Enabled {
		endpoint := w.cfg.Metrics.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		mux.Handle("GET "+endpoint, metrics.Collector.Handler())
	}

	return w.recoverPanics(mux)
}

// Start serves until ctx is cancelled.
func (w *Web) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(w.host, strconv.Itoa(w.port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	w.listenMu.Lock()
	w.addr = ln.Addr().String()
	w.server = &http.Server{
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := w.server
	w.listenMu.Unlock()

	w.logger.Info("web API started", "addr", "http://"+ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr is the bound address once Start is listening.
func (w *Web) Addr() string {
	w.listenMu.Lock()
	defer w.listenMu.Unlock()
	return w.addr
}

func (w *Web) Stop() error {
	w.listenMu.Lock()
	defer w.listenMu.Unlock()
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

// recoverPanics turns a handler panic into the generic 500 body.
func (w *Web) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				w.logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeJSON(rw, http.StatusInternalServerError, map[string]string{
					"error":   "Internal server error",
					"message": fmt.Sprint(rec),
				})
			}
		}()
		next.ServeHTTP(rw, r)
	})
}

// decodeSearch reads the request body. ok is false when the body is
// unreadable or the query is blank.
func decodeSearch(r *http.Request) (domain.SearchRequest, bool) {
	var req domain.SearchRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, false
	}
	return req, strings.TrimSpace(req.Query) != ""
}

func (w *Web) handleSearch(rw http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearch(r)
	if !ok {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "Query is required"})
		return
	}
	metrics.SearchRequestsTotal.Inc()

	ans, cached := w.answers.Answer(r.Context(), req.Query)
	w.answers.Record(r.Context(), req.ConversationID, req.Query, ans)

	w.logger.Info("search answered",
		"cached", cached,
		"fallback", ans.Metadata.FallbackUsed,
		"sources", len(ans.Sources),
	)

	writeJSON(rw, http.StatusOK, domain.SearchResponse{
		Answer:           ans.Content,
		Sources:          ans.Sources,
		RelatedQuestions: answer.RelatedQuestions(req.Query),
		ConversationID:   req.ConversationID,
	})
}

func (w *Web) handleSearchStream(rw http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearch(r)
	if !ok {
		http.Error(rw, "Query is required", http.StatusBadRequest)
		return
	}
	metrics.SearchRequestsTotal.Inc()

	ans, _ := w.answers.Answer(r.Context(), req.Query)
	w.answers.Record(r.Context(), req.ConversationID, req.Query, ans)

	flusher, _ := rw.(http.Flusher)
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.WriteHeader(http.StatusOK)

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	chunks := make(chan stream.Chunk)
	errCh := make(chan error, 1)
	go func() { errCh <- w.emitter.Emit(r.Context(), ans, chunks) }()

	for chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		fmt.Fprintf(rw, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if err := <-errCh; err != nil {
		w.logger.Info("stream aborted", "error", err)
	}
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	cfg := w.cfg
	hasKey := func(name string) bool { return cfg.Providers[name].APIKey != "" }

	writeJSON(rw, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"environment": map[string]bool{
			"gemini":       hasKey("gemini"),
			"openRouter":   hasKey("openrouter"),
			"portia":       hasKey("portia"),
			"googleSearch": cfg.Search.GoogleAPIKey != "" && cfg.Search.GoogleEngineID != "",
		},
		"message": "DeepSearch is running successfully!",
	})
}

func (w *Web) handleAgent(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Emails any `json:"emails"`
		Task   any `json:"task"`
		Action any `json:"action"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": agent.ErrNoEmails.Error()})
		return
	}

	list, isList := body.Emails.([]any)
	if !isList || len(list) == 0 {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": agent.ErrNoEmails.Error()})
		return
	}
	task, isString := body.Task.(string)
	if !isString || task == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": agent.ErrNoTask.Error()})
		return
	}
	action, _ := body.Action.(string)

	emails := make([]string, len(list))
	for i, e := range list {
		emails[i] = emailText(e)
	}

	res, err := w.agent.Process(r.Context(), agent.Request{Emails: emails, Task: task, Action: action})
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{
		"success":  true,
		"result":   res.Result,
		"metadata": res.Metadata,
	})
}

// emailText renders one element of the emails array; non-strings are
// passed on as their JSON encoding.
func emailText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func (w *Web) handleAgentUsage(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, agent.Usage())
}

func (w *Web) handleListConversations(rw http.ResponseWriter, r *http.Request) {
	if w.store == nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "storage disabled"})
		return
	}

	limit := defaultConvLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxConvLimit)
	}

	convs, err := w.store.ListConversations(r.Context(), limit)
	if err != nil {
		w.logger.Error("list conversations", "error", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"conversations": convs})
}

func (w *Web) handleGetConversation(rw http.ResponseWriter, r *http.Request) {
	if w.store == nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "storage disabled"})
		return
	}

	id := r.PathValue("id")
	conv, err := w.store.GetConversation(r.Context(), id)
	if err == nil && conv == nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "conversation not found"})
		return
	}
	var msgs []domain.MessageRecord
	if err == nil {
		msgs, err = w.store.GetMessages(r.Context(), id, conversationHistory)
	}
	if err != nil {
		w.logger.Error("get conversation", "id", id, "error", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}
	if msgs == nil {
		msgs = []domain.MessageRecord{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     msgs,
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}
