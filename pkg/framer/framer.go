package framer

import (
	"bytes"
	"errors"
	"strings"
)

// DefaultMaxLineLength caps how many bytes may accumulate before a newline arrives.
const DefaultMaxLineLength = 4096

// ErrLineTooLong is returned by Feed when a line exceeded the configured cap.
// The oversized line is dropped and framing resumes after the next newline.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Framer turns an arbitrary byte stream into newline-delimited text lines.
// It is not safe for concurrent use; each connection owns its own Framer.
type Framer struct {
	buf        []byte
	maxLen     int
	discarding bool
}

// NewFramer creates a Framer. A non-positive maxLineLength selects DefaultMaxLineLength.
func NewFramer(maxLineLength int) *Framer {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &Framer{
		buf:    make([]byte, 0, 256),
		maxLen: maxLineLength,
	}
}

// Feed appends chunk to the internal buffer and returns every line completed by it,
// in the order their newlines appeared. Bytes after the last newline stay buffered.
// When a line overflows the cap, the lines completed so far are still returned
// together with ErrLineTooLong.
func (f *Framer) Feed(chunk []byte) ([]string, error) {
	var lines []string
	overflow := false

	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			if !f.discarding {
				f.buf = append(f.buf, chunk...)
				if len(f.buf) > f.maxLen {
					f.buf = f.buf[:0]
					f.discarding = true
					overflow = true
				}
			}
			break
		}

		segment := chunk[:idx]
		chunk = chunk[idx+1:]

		// Tail of a line that already overflowed
		if f.discarding {
			f.discarding = false
			continue
		}

		if len(f.buf)+len(segment) > f.maxLen {
			f.buf = f.buf[:0]
			overflow = true
			continue
		}

		f.buf = append(f.buf, segment...)
		lines = append(lines, decode(f.buf))
		f.buf = f.buf[:0]
	}

	if overflow {
		return lines, ErrLineTooLong
	}
	return lines, nil
}

// Buffered reports how many bytes are waiting for a newline.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// decode converts raw bytes to text, dropping invalid UTF-8 sequences, and trims whitespace.
func decode(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}
