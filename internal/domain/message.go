package domain

// Source is a link surfaced alongside an answer. Order is the order the
// search backend produced; duplicates are allowed.
type Source struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
}

// AnswerMetadata describes how an AggregatedAnswer was produced.
type AnswerMetadata struct {
	Providers          map[string]bool `json:"providers"`
	FallbackUsed       bool            `json:"fallback_used"`
	SearchPerformed    bool            `json:"search_performed"`
	SearchResultsCount int             `json:"search_results_count"`
}

// AggregatedAnswer is the merged document of one aggregation round.
// Content is never empty. It is not mutated after construction.
type AggregatedAnswer struct {
	Content  string         `json:"content"`
	Sources  []Source       `json:"sources"`
	Metadata AnswerMetadata `json:"metadata"`
}

type SearchRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
}

type SearchResponse struct {
	Answer           string   `json:"answer"`
	Sources          []Source `json:"sources"`
	RelatedQuestions []string `json:"relatedQuestions"`
	ConversationID   string   `json:"conversationId,omitempty"`
}
