package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// defaultMaxLineSize bounds a single frame to guard against a runaway child
// process; grounded in dmora-agentrun's Conn.maxMessageSize default.
const defaultMaxLineSize = 8 << 20 // 8 MiB

// encodeUnescaped marshals v with HTML-escaping disabled:
// "any outbound value is serialized with forward slashes not escaped". The
// encoder always appends exactly one trailing newline and no other padding.
func encodeUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewLineScanner wraps r in a bufio.Scanner configured for ACP's
// line-delimited framing, with maxLineSize bounding any single line
// (defaultMaxLineSize if maxLineSize <= 0).
func NewLineScanner(r io.Reader, maxLineSize int) *bufio.Scanner {
	if maxLineSize <= 0 {
		maxLineSize = defaultMaxLineSize
	}
	s := bufio.NewScanner(r)
	initCap := 4096
	if initCap > maxLineSize {
		initCap = maxLineSize
	}
	s.Buffer(make([]byte, 0, initCap), maxLineSize)
	return s
}

// SkippableLine reports whether a raw line should be ignored rather than
// classified: blank lines, and anything not starting with '{' (tolerates
// stray banner output some agent CLIs print to stdout before their first
// JSON-RPC frame).
func SkippableLine(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	return len(trimmed) == 0 || trimmed[0] != '{'
}
