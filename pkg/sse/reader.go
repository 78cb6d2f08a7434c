package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
)

// Reader parses SSE events from an io.Reader. When built with NewTeeReader
// every raw line read from the source is also copied to a transcript
// writer, which is how the Anthropic client records raw streams for
// debugging.
type Reader struct {
	scanner    *bufio.Scanner
	transcript io.Writer

	current Event
	pending bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, io.Discard)
}

// NewTeeReader returns a Reader over src that copies the raw stream,
// framing included, to transcript.
func NewTeeReader(src io.Reader, transcript io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)

	if transcript == nil {
		transcript = io.Discard
	}

	return &Reader{
		scanner:    scanner,
		transcript: transcript,
	}
}

// Next blocks until a complete event is available and returns it.
// It returns nil, nil once the source is exhausted. An event that is cut
// off by the end of the stream, without a trailing blank line, is still
// returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		if _, err := io.WriteString(r.transcript, line+"\n"); err != nil {
			return nil, err
		}

		switch {
		case line == "":
			if ev := r.flush(); ev != nil {
				return ev, nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			r.field(line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return r.flush(), nil
}

// field folds one "name: value" line into the pending event. A single
// space after the colon is not part of the value. Unknown fields and
// "retry" are ignored.
func (r *Reader) field(line string) {
	name, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch name {
	case "data":
		if r.pending && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
	case "event":
		r.current.Type = value
	case "id":
		r.current.ID = value
	default:
		return
	}
	r.pending = true
}

func (r *Reader) flush() *Event {
	if !r.pending {
		return nil
	}
	ev := r.current
	r.current = Event{}
	r.pending = false
	return &ev
}
