package model

import "fmt"

// LayoutAssertionError means the page never confirmed the expected
// structural mode after a retry. It is fatal for the whole meet: parsing
// a page whose mode is unknown would produce garbage rows, not errors.
type LayoutAssertionError struct {
	URL      string
	Mode     string
	Attempts int
	Err      error
}

func (e *LayoutAssertionError) Error() string {
	return fmt.Sprintf("layout assertion failed: mode %q not confirmed after %d attempts on %s: %v", e.Mode, e.Attempts, e.URL, e.Err)
}

func (e *LayoutAssertionError) Unwrap() error { return e.Err }

// EventExtractionError wraps a failure while navigating or parsing a single
// event. It is always recovered: the event is skipped, debug artifacts are
// captured, and the crawl continues with the next event.
type EventExtractionError struct {
	Event string
	Phase string // state name at the point of failure
	Err   error
}

func (e *EventExtractionError) Error() string {
	return fmt.Sprintf("event %q failed during %s: %v", e.Event, e.Phase, e.Err)
}

func (e *EventExtractionError) Unwrap() error { return e.Err }

// MalformedSourceError marks one auxiliary enrichment input as unparseable.
// That file is skipped and counted; the remaining inputs continue.
type MalformedSourceError struct {
	Path string
	Err  error
}

func (e *MalformedSourceError) Error() string {
	return fmt.Sprintf("malformed source %s: %v", e.Path, e.Err)
}

func (e *MalformedSourceError) Unwrap() error { return e.Err }
