package jsonl

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/teranos/factgate/errors"
)

// Discover returns the files under dir matching a doublestar pattern such
// as "**/*.entities.jsonl", sorted. A missing dir is a validation error.
func Discover(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInvalidRequestError("input directory %s does not exist", dir)
		}
		return nil, errors.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequestError("%s is not a directory", dir)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.NewInvalidRequestError("invalid pattern %q", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s in %s", pattern, dir)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(out)
	return out, nil
}

// BaseName strips the directory and a known multi-part suffix, e.g.
// BaseName("er/doc1.entities.jsonl", ".entities.jsonl") == "doc1".
func BaseName(path, suffix string) string {
	base := filepath.Base(path)
	if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
		return base[:len(base)-len(suffix)]
	}
	return base
}
