// Package wire implements the line-delimited JSON framing shared by the
// bridge's client hub and the editor-side dispatcher.
//
// The protocol's two peers disagree on whether a message is terminated with
// "\n": the bridge always appends one, the editor's transmitter historically
// does not. Framer tolerates both so neither side needs to special-case the
// other.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Framer accumulates bytes from a stream and emits complete JSON messages.
// It is stateful and not safe for concurrent use by multiple goroutines.
type Framer struct {
	buf []byte
}

// NewFramer returns a ready-to-use Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends data to the internal buffer and returns every complete JSON
// message that can be extracted from it. A message is complete either
// because it was terminated by '\n', or because the entire remaining buffer
// parses as one JSON value (tolerating a final message with no trailing
// newline).
//
// Parse failures on a newline-terminated candidate are reported via errs,
// one per failed candidate, in the same order the candidates were found;
// framing resumes at the next newline (or next Feed call) regardless.
func (f *Framer) Feed(data []byte) (msgs []json.RawMessage, errs []error) {
	f.buf = append(f.buf, data...)

	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		candidate := bytes.TrimSpace(f.buf[:idx])
		f.buf = f.buf[idx+1:]

		if len(candidate) == 0 {
			continue
		}
		if !json.Valid(candidate) {
			errs = append(errs, fmt.Errorf("wire: invalid JSON message: %s", truncate(candidate)))
			continue
		}
		msgs = append(msgs, json.RawMessage(append([]byte(nil), candidate...)))
	}

	// After draining newlines, a non-empty remainder that parses in full as
	// a single JSON value is emitted immediately (tolerates a final message
	// sent without a trailing newline). Leave it buffered otherwise.
	if rest := bytes.TrimSpace(f.buf); len(rest) > 0 && json.Valid(rest) {
		msgs = append(msgs, json.RawMessage(append([]byte(nil), rest...)))
		f.buf = f.buf[:0]
	}

	return msgs, errs
}

// Reset discards any buffered partial message.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Pending reports the number of unconsumed bytes currently buffered.
func (f *Framer) Pending() int {
	return len(f.buf)
}

func truncate(b []byte) string {
	const max = 120
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
