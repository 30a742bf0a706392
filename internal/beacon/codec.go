package beacon

import "strings"

// Delimiter separates key=value pairs within a beacon body, and separates
// consecutive records within a chunk (spec §6, confirmed by the original
// implementation's Beacon::concatenate("&")).
const Delimiter = "&"

// unreserved reports whether b may appear unescaped in a beacon value.
// Underscore is explicitly unreserved, in addition to the usual
// RFC 3986 unreserved set.
func unreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '~' || b == '_':
		return true
	}
	return false
}

const upperhex = "0123456789ABCDEF"

// EncodeValue percent-encodes s for inclusion as a beacon value, leaving
// unreserved characters (including '_') untouched.
func EncodeValue(s string) string {
	needsEscape := false
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0F])
	}
	return b.String()
}

// Pair is a single key/value entry in a beacon's key=value sequence.
type Pair struct {
	Key   string
	Value string
}

// EncodePairs builds a `&`-delimited sequence of `key=value` entries, with
// each value percent-encoded by EncodeValue. Keys are assumed to already be
// wire-safe identifiers (they are chosen by this codebase, never by an
// application or server).
func EncodePairs(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(EncodeValue(p.Value))
	}
	return b.String()
}
