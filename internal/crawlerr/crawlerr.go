// Package crawlerr defines structured error kinds for the crawler so
// callers can branch on failure class without string matching.
package crawlerr

import "fmt"

// Kind categorizes a crawl-time failure.
type Kind string

const (
	// KindConfig marks invalid CLI arguments or configuration.
	KindConfig Kind = "config"

	// KindNetwork marks a transport failure or exhausted retries.
	KindNetwork Kind = "network"

	// KindRobots marks a robots.txt fetch failure; the caller defaults to allow.
	KindRobots Kind = "robots_unavailable"

	// KindParse marks an extractor failure; the caller writes an empty record.
	KindParse Kind = "parse"

	// KindStore marks a transient persistence failure.
	KindStore Kind = "store"

	// KindSink marks a JSONL write failure; fatal to the worker that hit it.
	KindSink Kind = "sink"
)

// Error is the crawler's structured error type.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap enables errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err under the given Kind with a descriptive message.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether target is an *Error of the same Kind, so callers can
// check a kind with errors.Is against a Sentinel value.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel returns a zero-value *Error of the given kind, suitable as an
// errors.Is comparison target: errors.Is(err, crawlerr.Sentinel(crawlerr.KindStore)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
