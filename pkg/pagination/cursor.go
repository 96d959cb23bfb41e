// Package pagination provides opaque keyset cursors for paginated listings.
// Cursors encode a stable position as sequence + ID so pages remain
// consistent while new rows are appended.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the page size used when the caller does not specify one.
	DefaultLimit = 50
	// MaxLimit caps the page size a caller may request.
	MaxLimit = 100
)

// Cursor is a stable pagination position.
type Cursor struct {
	Sequence uint64
	ID       string
}

// Encode serializes the cursor to an opaque string.
// Format: base64("seq:{sequence}:id:{id}")
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("seq:%d:id:%s", c.Sequence, c.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode parses an encoded cursor. An empty string decodes to nil (first page).
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	raw := string(data)
	if !strings.HasPrefix(raw, "seq:") {
		return nil, fmt.Errorf("invalid cursor format: missing seq prefix")
	}

	parts := strings.SplitN(raw[len("seq:"):], ":id:", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format: missing id segment")
	}

	seq, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor sequence: %w", err)
	}

	return &Cursor{Sequence: seq, ID: parts[1]}, nil
}

// ClampLimit normalizes a caller-supplied limit into [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
