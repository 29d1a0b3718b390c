package classify

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/studiogamma/centralino/internal/domain"
)

// Paths describe which tier produced a classification.
const (
	PathShort    = "short"
	PathFast     = "fast"
	PathLLM      = "llm"
	PathDegraded = "degraded"
)

// Result is one classification outcome. A failed fallback call never raises:
// it degrades to Unknown with the cause carried in Err.
type Result struct {
	Intent     domain.Intent
	Confidence float64
	Slots      map[string]string
	TaxFlag    bool
	Path       string
	Err        error
}

// Classifier turns an utterance into an intent plus typed slots.
type Classifier interface {
	Classify(ctx context.Context, utterance string) Result
}

// Fallback is the slow tier consulted when no keyword matches.
type Fallback interface {
	Classify(ctx context.Context, utterance string) (Result, error)
}

// Engine implements the two-tier strategy: deterministic keyword rules with
// a structured LLM call behind them. A nil fallback means keyword-only mode.
type Engine struct {
	fallback Fallback
	timeout  time.Duration
}

func NewEngine(fallback Fallback, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Engine{fallback: fallback, timeout: timeout}
}

func (e *Engine) Classify(ctx context.Context, utterance string) Result {
	if informativeRunes(utterance) < 3 {
		return Result{Intent: domain.IntentUnknown, Confidence: 0, Path: PathShort}
	}

	if res, ok := fastPath(utterance); ok {
		return res
	}

	// Degraded results still carry extracted slots so a short follow-up like
	// "alle 15" can complete a booking already in progress.
	if e.fallback == nil {
		return Result{Intent: domain.IntentUnknown, Confidence: 0, Slots: extractSlots(utterance), Path: PathDegraded}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.fallback.Classify(callCtx, utterance)
	if err != nil {
		return Result{Intent: domain.IntentUnknown, Confidence: 0, Slots: extractSlots(utterance), Path: PathDegraded, Err: err}
	}
	res.Path = PathLLM
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}
	return res
}

func informativeRunes(s string) int {
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
