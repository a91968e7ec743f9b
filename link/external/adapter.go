package external

import (
	"sort"
	"strings"

	"github.com/teranos/factgate/errors"
)

// Source names.
const (
	Wikidata = "wikidata"
	UEI      = "uei"
)

// Adapter resolves a normalised entity name to an id in one outside source.
type Adapter interface {
	// Source is the external_ids.source value this adapter writes.
	Source() string
	// Applies reports whether entities of this type may be looked up.
	Applies(entityType string) bool
	// Lookup returns the id for a normalised name.
	Lookup(normalizedName string) (string, bool)
}

type cacheAdapter struct {
	source string
	cache  Cache
	types  map[string]bool // nil means every type
}

func (a *cacheAdapter) Source() string { return a.source }

func (a *cacheAdapter) Applies(entityType string) bool {
	return a.types == nil || a.types[strings.ToUpper(entityType)]
}

func (a *cacheAdapter) Lookup(name string) (string, bool) {
	return a.cache.Lookup(name)
}

// NewWikidata returns an adapter over a Wikidata cache. It applies to
// every entity type.
func NewWikidata(cache Cache) Adapter {
	return &cacheAdapter{source: Wikidata, cache: cache}
}

// NewUEI returns an adapter over a UEI cache. Only organisations have UEIs.
func NewUEI(cache Cache) Adapter {
	return &cacheAdapter{
		source: UEI,
		cache:  cache,
		types:  map[string]bool{"ORG": true, "ORGANIZATION": true},
	}
}

var constructors = map[string]func(Cache) Adapter{
	Wikidata: NewWikidata,
	UEI:      NewUEI,
}

// Known lists the adapter names Load accepts.
func Known() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsKnown reports whether name is a supported adapter.
func IsKnown(name string) bool {
	_, ok := constructors[name]
	return ok
}

// Load builds the named adapters from their cache files. An adapter with
// no configured cache path is a validation error.
func Load(names []string, cachePaths map[string]string) ([]Adapter, error) {
	var out []Adapter
	seen := make(map[string]bool)
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		ctor, ok := constructors[name]
		if !ok {
			return nil, errors.WithHintf(
				errors.NewInvalidRequestError("unknown adapter %q", name),
				"supported adapters: %s", strings.Join(Known(), ", "))
		}
		path := cachePaths[name]
		if path == "" {
			return nil, errors.NewInvalidRequestError("adapter %q needs a cache file", name)
		}
		cache, err := LoadCache(path)
		if err != nil {
			return nil, err
		}
		out = append(out, ctor(cache))
	}
	return out, nil
}
