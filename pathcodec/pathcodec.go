// Package pathcodec normalizes the document paths record.Store keys its
// entries by, percent-decoding them the way an HTTP request path would be
// decoded before routing.
package pathcodec

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
)

// ErrTruncatedEscape is returned when a "%" is followed by fewer than two
// characters. A "%" followed by two characters that are not hex digits
// yields a different, non-sentinel error.
var ErrTruncatedEscape = errors.New("pathcodec: truncated percent-escape")

// Decode translates percent-escapes (e.g. "%2f") in path into their literal
// bytes. A path with no "%" is returned unchanged.
func Decode(path string) (string, error) {
	substrs := strings.Split(path, "%")
	if len(substrs) == 1 {
		return path, nil
	}

	var b strings.Builder
	b.WriteString(substrs[0])

	for _, substr := range substrs[1:] {
		if len(substr) < 2 {
			slog.Error("pathcodec: truncated escape", "remaining", len(substr))
			return "", ErrTruncatedEscape
		}
		decoded, err := hex.DecodeString(substr[:2])
		if err != nil {
			slog.Error("pathcodec: invalid escape", "escape", substr[:2], "error", err)
			return "", errors.New("pathcodec: invalid percent-escape")
		}
		b.Write(decoded)
		b.WriteString(substr[2:])
	}
	return b.String(), nil
}
