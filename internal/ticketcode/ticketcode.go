// Package ticketcode builds ticket identifiers: the opaque entry token
// scanned at the gate and the human-legible short code printed on the
// ticket. Both are pure constructions; uniqueness is enforced by the
// storage layer and callers retry with a bumped sequence on collision.
package ticketcode

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxShortCodeLen caps the assembled short code.
const MaxShortCodeLen = 24

const fallbackBase = "guest"

// EntryToken returns a fresh opaque token. Collisions are negligible but
// still caught by the entry_token unique index.
func EntryToken() string {
	return "ticket_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NameBase derives the short-code base from a buyer identity: the local
// part of an email address (or the identity as-is), lower-cased, stripped
// to [a-z0-9_-] and truncated to 10 characters. Empty results fall back to
// "guest".
func NameBase(identity string) string {
	s := identity
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	s = sanitize(strings.ToLower(s))
	if len(s) > 10 {
		s = s[:10]
	}
	if s == "" {
		return fallbackBase
	}
	return s
}

// DatePart formats the issuance date as the 8-digit UTC day.
func DatePart(issuedAt time.Time) string {
	return issuedAt.UTC().Format("20060102")
}

// Build assembles "<base>-<datePart>-<seq>". When the result would exceed
// MaxShortCodeLen the base is shortened; the date part and sequence number
// carry the uniqueness and are always kept intact when at least one base
// character fits.
func Build(base, datePart string, seq int) string {
	suffix := strconv.Itoa(seq)
	code := fmt.Sprintf("%s-%s-%s", base, datePart, suffix)
	if len(code) <= MaxShortCodeLen {
		return code
	}
	room := MaxShortCodeLen - len(datePart) - len(suffix) - 2
	if room < 1 {
		return code[:MaxShortCodeLen]
	}
	if room > len(base) {
		room = len(base)
	}
	return base[:room] + "-" + datePart + "-" + suffix
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
