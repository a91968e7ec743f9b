package mention

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

// SentID is a sentence identifier as it appeared on the wire. Extractors
// emit either numbers (3) or strings ("s3"); the original kind is kept so
// records round-trip unchanged.
type SentID struct {
	raw     string
	str     bool
	present bool
}

// IntSentID builds a numeric sentence id.
func IntSentID(n int) SentID {
	return SentID{raw: strconv.Itoa(n), present: true}
}

// StringSentID builds a string sentence id.
func StringSentID(s string) SentID {
	return SentID{raw: s, str: true, present: true}
}

// Present reports whether the field was set (null counts as absent).
func (s SentID) Present() bool { return s.present }

// Key is the identity used for distinct-sentence counting. It is empty for
// absent ids and for empty strings, so those never count as evidence.
func (s SentID) Key() string {
	if !s.present {
		return ""
	}
	return s.raw
}

// String returns the id as text ("" when absent).
func (s SentID) String() string { return s.Key() }

// Int returns a sentence ordinal for distance arithmetic. Strings have any
// non-digit prefix stripped ("s12" -> 12); anything unparsable is 0.
func (s SentID) Int() int {
	if !s.present {
		return 0
	}
	text := s.raw
	if s.str {
		text = strings.TrimLeftFunc(text, func(r rune) bool { return !unicode.IsDigit(r) && r != '-' })
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return int(f)
	}
	return 0
}

// MarshalJSON writes the id back in the JSON kind it was read as.
func (s SentID) MarshalJSON() ([]byte, error) {
	switch {
	case !s.present:
		return []byte("null"), nil
	case s.str:
		return json.Marshal(s.raw)
	default:
		return []byte(s.raw), nil
	}
}

// UnmarshalJSON accepts a number, a string or null.
func (s *SentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = SentID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StringSentID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = SentID{raw: n.String(), present: true}
	return nil
}
