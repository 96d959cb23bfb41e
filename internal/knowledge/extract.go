package knowledge

import (
	"strings"
	"unicode/utf8"
)

const maxRawExcerptBytes = 4096

// ExtractText pulls indexable text from an uploaded file. Text-like types
// are used verbatim; anything else degrades to a bounded printable excerpt
// rather than failing, so the entry is still created and searchable by its
// title and whatever readable fragments the file contains.
func ExtractText(data []byte, mimeType string) (string, bool) {
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	switch {
	case strings.HasPrefix(base, "text/"),
		base == "application/json",
		base == "application/xml",
		base == "application/x-yaml",
		base == "application/markdown":
		if utf8.Valid(data) {
			return strings.TrimSpace(string(data)), true
		}
	}

	return printableExcerpt(data, maxRawExcerptBytes), false
}

// printableExcerpt keeps runs of printable ASCII from the head of the file,
// capped at limit bytes of input.
func printableExcerpt(data []byte, limit int) string {
	if len(data) > limit {
		data = data[:limit]
	}

	// Collect runs of at least 4 printable bytes, the way strings(1) does.
	var b strings.Builder
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= 4 {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.Write(data[start:end])
		}
		start = -1
	}
	for i, c := range data {
		printable := c == ' ' || (c >= 0x20 && c < 0x7f)
		if printable {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return strings.TrimSpace(b.String())
}
