package mention

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// rawFields reads typed values out of a decoded JSON object, trying each
// alias key in order.
type rawFields map[string]json.RawMessage

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func (r rawFields) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

// str reads a string, accepting numbers as their literal text.
func (r rawFields) str(keys ...string) string {
	v, ok := r.lookup(keys...)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

// float reads a number, accepting numeric strings.
func (r rawFields) float(keys ...string) (float64, bool) {
	v, ok := r.lookup(keys...)
	if !ok {
		return 0, false
	}
	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (r rawFields) decode(key string, dst any) error {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	return json.Unmarshal(v, dst)
}

// span reads start/end, falling back to a "span" of [start, end] or
// {"start":..,"end":..}.
func (r rawFields) span() (start, end int, ok bool) {
	s, okS := r.float("start")
	e, okE := r.float("end")
	if okS && okE {
		return int(s), int(e), true
	}
	v, has := r.lookup("span")
	if !has {
		return 0, 0, false
	}
	var pair []float64
	if json.Unmarshal(v, &pair) == nil && len(pair) == 2 {
		return int(pair[0]), int(pair[1]), true
	}
	var obj struct {
		Start *float64 `json:"start"`
		End   *float64 `json:"end"`
	}
	if json.Unmarshal(v, &obj) == nil && obj.Start != nil && obj.End != nil {
		return int(*obj.Start), int(*obj.End), true
	}
	return 0, 0, false
}

// fieldWriter rebuilds a JSON object: raw input fields first, then known
// fields only where input had neither the key nor one of its aliases.
type fieldWriter struct {
	out     map[string]any
	raw     map[string]json.RawMessage
	aliases map[string][]string
}

func newFieldWriter(raw map[string]json.RawMessage, aliases map[string][]string) *fieldWriter {
	out := make(map[string]any, len(raw)+8)
	for k, v := range raw {
		out[k] = v
	}
	return &fieldWriter{out: out, raw: raw, aliases: aliases}
}

func (w *fieldWriter) had(key string) bool {
	if v, ok := w.raw[key]; ok && !isNull(v) {
		return true
	}
	for _, a := range w.aliases[key] {
		if v, ok := w.raw[a]; ok && !isNull(v) {
			return true
		}
	}
	return false
}

// add writes v under key when set and input did not carry the field.
func (w *fieldWriter) add(key string, v any, set bool) {
	if !set || w.had(key) {
		return
	}
	w.out[key] = v
}

// set writes v unconditionally; used for fields a stage owns.
func (w *fieldWriter) set(key string, v any) {
	w.out[key] = v
}
