// Package sse reads Server-Sent Events from streaming model responses and
// writes them for streamed turns served by the API.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one parsed SSE event. Events are delimited by a blank line.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string
}
