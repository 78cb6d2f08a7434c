package sse

import (
	"fmt"
	"io"
	"strings"
)

// Write encodes ev in the SSE wire format. Multi-line data is split into
// one "data:" line per line so Reader joins it back unchanged.
func Write(w io.Writer, ev *Event) error {
	var sb strings.Builder

	if ev.ID != "" {
		sb.WriteString("id: ")
		sb.WriteString(ev.ID)
		sb.WriteByte('\n')
	}
	if ev.Type != "" {
		sb.WriteString("event: ")
		sb.WriteString(ev.Type)
		sb.WriteByte('\n')
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("writing sse event: %w", err)
	}
	return nil
}
