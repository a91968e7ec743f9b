// Package external provides offline lookup adapters that attach outside
// identifiers (Wikidata QIDs, SAM.gov UEIs) to canonical entities. Adapters
// read pre-built JSON caches; nothing here touches the network.
package external

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/teranos/factgate/errors"
)

// Cache maps a normalised name to an external id.
type Cache map[string]string

// normalizeKey lowercases, trims and drops a "prefix|" qualifier.
func normalizeKey(k string) string {
	key := strings.ToLower(strings.TrimSpace(k))
	if i := strings.Index(key, "|"); i >= 0 {
		key = key[i+1:]
	}
	return key
}

// LoadCache reads a JSON object of name -> id or name -> [{"id": ...}].
// For a list the first item with a non-empty id is used. When two keys
// normalise the same, the later one in the file wins.
func LoadCache(path string) (Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInvalidRequestError("adapter cache %s does not exist", path)
		}
		return nil, errors.Wrapf(err, "open adapter cache %s", path)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.WrapInvalidRequest(err, "read adapter cache "+path)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.NewInvalidRequestError("adapter cache %s must be a JSON object", path)
	}

	cache := make(Cache)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.WrapInvalidRequest(err, "read adapter cache "+path)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.WrapInvalidRequest(err, "read adapter cache "+path)
		}
		if id, ok := cacheValue(raw); ok {
			cache[normalizeKey(key)] = id
		}
	}
	return cache, nil
}

func cacheValue(raw json.RawMessage) (string, bool) {
	var list []map[string]any
	if json.Unmarshal(raw, &list) == nil {
		for _, item := range list {
			if item == nil || item["id"] == nil {
				continue
			}
			if id := strings.TrimSpace(stringify(item["id"])); id != "" {
				return id, true
			}
		}
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return "", false
	}
	return stringify(v), true
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Lookup finds the id for a name, normalising it first.
func (c Cache) Lookup(name string) (string, bool) {
	id, ok := c[strings.ToLower(strings.TrimSpace(name))]
	return id, ok && id != ""
}
