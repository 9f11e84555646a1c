package unpack

import "strings"

// SanitizePath normalizes a destination-joined archive entry path into
// one the target filesystem accepts. The first colon terminates the
// volume marker (e.g. "sdmc:/") and is preserved verbatim; any colon
// after it is illegal and becomes a space. Runs of spaces left behind
// are collapsed to a single space.
//
// Pure string rewriting, no I/O.
func SanitizePath(raw string) string {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i+1] + strings.ReplaceAll(raw[i+1:], ":", " ")
	}

	for strings.Contains(raw, "  ") {
		raw = strings.ReplaceAll(raw, "  ", " ")
	}

	return raw
}
