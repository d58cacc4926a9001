package reply

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/backend/internal/model/widget"
)

// FallbackMessage is the only failure text a visitor ever sees.
const FallbackMessage = "Sorry, something went wrong while fetching the response."

// Source tells which path produced a reply.
type Source string

const (
	SourceCanned   Source = "canned"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Result is a resolved bot reply.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Stats counts resolutions per path.
type Stats struct {
	Canned      int64      `json:"canned"`
	Remote      int64      `json:"remote"`
	Fallback    int64      `json:"fallback"`
	LastFailure string     `json:"lastFailure,omitempty"`
	LastFailAt  *time.Time `json:"lastFailureAt,omitempty"`
}

// Resolver turns visitor text into a bot reply.
type Resolver struct {
	completer Completer
	timeout   time.Duration

	canned   atomic.Int64
	remote   atomic.Int64
	fallback atomic.Int64

	mu          sync.Mutex
	lastFailure string
	lastFailAt  *time.Time
}

// NewResolver wraps completer. Every remote call is bounded by timeout when it
// is positive.
func NewResolver(completer Completer, timeout time.Duration) *Resolver {
	return &Resolver{completer: completer, timeout: timeout}
}

// Resolve returns the canned response when text matches a configured prompt,
// otherwise the remote reply, otherwise FallbackMessage. It never fails.
func (r *Resolver) Resolve(ctx context.Context, cfg *widget.Config, text string) Result {
	if answer, ok := cfg.CannedResponse(text); ok {
		r.canned.Add(1)
		return Result{Text: answer, Source: SourceCanned}
	}

	if r.completer == nil {
		r.fail(nil, "no remote completer configured")
		return Result{Text: FallbackMessage, Source: SourceFallback}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	message, err := r.completer.Complete(callCtx, Request{
		UserInput:  text,
		ClientID:   cfg.ClientID,
		WidgetName: cfg.Name,
	})
	if err != nil {
		r.fail(err, "")
		return Result{Text: FallbackMessage, Source: SourceFallback}
	}

	r.remote.Add(1)
	return Result{Text: message, Source: SourceRemote}
}

// Stats returns a snapshot of the resolution counters.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Canned:      r.canned.Load(),
		Remote:      r.remote.Load(),
		Fallback:    r.fallback.Load(),
		LastFailure: r.lastFailure,
		LastFailAt:  r.lastFailAt,
	}
}

func (r *Resolver) fail(err error, reason string) {
	r.fallback.Add(1)
	if err != nil {
		reason = err.Error()
	}

	r.mu.Lock()
	r.lastFailure = reason
	failedAt := time.Now().UTC()
	r.lastFailAt = &failedAt
	r.mu.Unlock()

	log.Warn().Err(err).Str("reason", reason).Msg("remote reply failed, using fallback message")
}
