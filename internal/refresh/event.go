package refresh

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
)

// Kind names one of the two independently sequenced fetches.
type Kind string

const (
	KindChart   Kind = "chart"
	KindSummary Kind = "summary"
)

// Outcome is the lifecycle stage a fetch reached.
type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeApplied   Outcome = "applied"
	OutcomeDiscarded Outcome = "discarded_stale"
	OutcomeFailed    Outcome = "failed"
)

// ErrSuperseded settles futures whose response arrived after a newer
// request of the same kind was issued. The response was not applied.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// Error is a failed, still-current fetch. Banner is the text shown to the user.
type Error struct {
	Kind   Kind
	Banner string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s refresh failed: %s: %v", e.Kind, e.Banner, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Event reports one lifecycle transition of a fetch.
type Event struct {
	Kind       Kind      `json:"kind"`
	Epoch      uint64    `json:"epoch"`
	Outcome    Outcome   `json:"outcome"`
	Banner     string    `json:"banner,omitempty"`
	Code       string    `json:"code,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	At         time.Time `json:"at"`
	Err        error     `json:"-"`
}

// Observer receives every fetch lifecycle event. Implementations must not
// block or call back into the Coordinator; started events are delivered
// with its lock held.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(evt Event) { f(evt) }

// Observers fans one event out to several observers.
type Observers []Observer

func (o Observers) Observe(evt Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(evt)
		}
	}
}

func errorCode(err error) string {
	var coded *aggregate.CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
