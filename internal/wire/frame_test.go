package wire

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestFramer_NewlineDelimited(t *testing.T) {
	f := NewFramer()
	input := []byte(`{"command":"a.b","id":"1"}` + "\n" + `{"command":"c.d","id":"2"}` + "\n")

	msgs, errs := f.Feed(input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestFramer_TrailingMessageWithoutNewline(t *testing.T) {
	f := NewFramer()
	msgs, errs := f.Feed([]byte(`{"command":"a.b","id":"1"}` + "\n" + `{"command":"c.d","id":"2"}`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestFramer_PartialMessageWaitsForMoreData(t *testing.T) {
	f := NewFramer()
	msgs, errs := f.Feed([]byte(`{"command":"a.`))
	if len(errs) != 0 || len(msgs) != 0 {
		t.Fatalf("expected no messages yet, got msgs=%v errs=%v", msgs, errs)
	}
	if f.Pending() == 0 {
		t.Fatal("expected partial bytes to remain buffered")
	}

	msgs, errs = f.Feed([]byte(`b","id":"1"}` + "\n"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestFramer_EmptyCandidateDiscarded(t *testing.T) {
	f := NewFramer()
	msgs, errs := f.Feed([]byte("\n\n  \n" + `{"command":"a.b","id":"1"}` + "\n"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestFramer_MalformedMessageEmitsErrorAndContinues(t *testing.T) {
	f := NewFramer()
	msgs, errs := f.Feed([]byte(`not json` + "\n" + `{"command":"a.b","id":"1"}` + "\n"))
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

// TestFramer_RoundTripAcrossByteBoundaries is the universal framing
// round-trip property: feeding a sequence of newline-separated JSON objects
// split at arbitrary byte boundaries yields exactly the original sequence.
func TestFramer_RoundTripAcrossByteBoundaries(t *testing.T) {
	objects := []string{
		`{"command":"menu.execute","id":"1","params":{"x":1}}`,
		`{"status":"success","result":{"ok":true},"id":"1"}`,
		`{"command":"console.clear","id":"2"}`,
	}
	full := []byte(joinWithNewline(objects))

	for chunkSize := 1; chunkSize <= len(full); chunkSize++ {
		f := NewFramer()
		var got []json.RawMessage
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			msgs, errs := f.Feed(full[i:end])
			if len(errs) != 0 {
				t.Fatalf("chunkSize=%d: unexpected errors: %v", chunkSize, errs)
			}
			got = append(got, msgs...)
		}
		if len(got) != len(objects) {
			t.Fatalf("chunkSize=%d: got %d messages, want %d", chunkSize, len(got), len(objects))
		}
		for i, obj := range objects {
			if !jsonEqual(got[i], []byte(obj)) {
				t.Fatalf("chunkSize=%d: message %d = %s, want %s", chunkSize, i, got[i], obj)
			}
		}
	}
}

// TestFramer_RoundTripFinalMessageWithoutNewline is the same property for
// the case where the final object has no trailing newline.
func TestFramer_RoundTripFinalMessageWithoutNewline(t *testing.T) {
	objects := []string{
		`{"command":"menu.execute","id":"1"}`,
		`{"command":"console.clear","id":"2"}`,
	}
	full := []byte(objects[0] + "\n" + objects[1])

	for chunkSize := 1; chunkSize <= len(full); chunkSize++ {
		f := NewFramer()
		var got []json.RawMessage
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			msgs, _ := f.Feed(full[i:end])
			got = append(got, msgs...)
		}
		if len(got) != len(objects) {
			t.Fatalf("chunkSize=%d: got %d messages, want %d", chunkSize, len(got), len(objects))
		}
	}
}

func joinWithNewline(objs []string) string {
	out := ""
	for i, o := range objs {
		if i > 0 {
			out += "\n"
		}
		out += o
	}
	out += "\n"
	return out
}

func jsonEqual(a, b []byte) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	ae, _ := json.Marshal(av)
	be, _ := json.Marshal(bv)
	return bytes.Equal(ae, be)
}
