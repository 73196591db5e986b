// Package events defines the progress/status event objects emitted by
// long-running appdock operations and the sink they are published to.
// The core never assumes a transport; the CLI renders events as progress
// bars, other front ends can forward them elsewhere.
package events

// Kind classifies the operation an event belongs to.
type Kind string

const (
	KindDownload Kind = "download"
	KindInstall  Kind = "install"
	KindDetect   Kind = "detect"
)

// Event is a single progress or status notification. Received/Total and
// BytesPerSec are only meaningful for download events; Phase carries the
// installer state machine transitions.
type Event struct {
	Kind        Kind
	AppID       string
	Phase       string
	Received    int64
	Total       int64
	BytesPerSec float64
	Message     string
	Err         error
}

// Sink receives events from long-running operations. Implementations must
// be safe for concurrent use; Publish must not block for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }

// Discard is a sink that drops all events.
var Discard Sink = SinkFunc(func(Event) {})
