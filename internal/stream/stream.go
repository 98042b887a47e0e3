// Package stream replays a finished answer as word-sized chunks.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"deepsearch/internal/domain"
)

// DefaultDelay is the pause before each word.
const DefaultDelay = 30 * time.Millisecond

// Chunk is one frame of a replayed answer: either a word or the terminal
// frame carrying the sources.
type Chunk struct {
	Content string          `json:"content,omitempty"`
	Sources []domain.Source `json:"sources,omitempty"`
	Done    bool            `json:"done,omitempty"`
}

// MarshalJSON writes word frames as {"content"} and the terminal frame as
// {"sources","done"} with sources always present.
func (c Chunk) MarshalJSON() ([]byte, error) {
	if c.Done {
		sources := c.Sources
		if sources == nil {
			sources = []domain.Source{}
		}
		return json.Marshal(struct {
			Sources []domain.Source `json:"sources"`
			Done    bool            `json:"done"`
		}{sources, true})
	}
	return json.Marshal(struct {
		Content string `json:"content"`
	}{c.Content})
}

type Emitter struct {
	delay time.Duration
}

// NewEmitter returns an emitter pacing words by delay. A zero delay emits
// as fast as the consumer reads.
func NewEmitter(delay time.Duration) *Emitter {
	if delay < 0 {
		delay = 0
	}
	return &Emitter{delay: delay}
}

// Emit sends one chunk per space-separated word followed by the terminal
// chunk, then closes out. Newlines stay inside the words so clients can
// rebuild the markdown layout. If ctx ends first it stops and returns
// ctx.Err(); out is closed either way.
func (e *Emitter) Emit(ctx context.Context, answer *domain.AggregatedAnswer, out chan<- Chunk) error {
	defer close(out)

	var tick <-chan time.Time
	if e.delay > 0 {
		t := time.NewTicker(e.delay)
		defer t.Stop()
		tick = t.C
	}

	for _, word := range strings.Split(answer.Content, " ") {
		if word == "" {
			continue
		}
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case out <- Chunk{Content: word + " "}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case out <- Chunk{Sources: answer.Sources, Done: true}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
