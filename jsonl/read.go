// Package jsonl reads and writes newline-delimited JSON record files.
//
// Writes are canonical (sorted keys, no HTML escaping) and atomic: rows go
// to a temp file in the target directory which is renamed into place, so a
// crash never leaves a partially written file visible.
package jsonl

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
)

// maxLineBytes bounds a single record; mention rows with large props still fit.
const maxLineBytes = 16 * 1024 * 1024

// ReadStats describes one read pass.
type ReadStats struct {
	Lines     int // non-blank lines seen
	Records   int
	Malformed int
}

// Read decodes every non-blank line of r into a T. Lines that fail to
// decode are logged with their line number and skipped.
func Read[T any](r io.Reader, name string, log *zap.SugaredLogger) ([]T, ReadStats, error) {
	log = logger.OrNop(log)
	var (
		out   []T
		stats ReadStats
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		var rec T
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			stats.Malformed++
			log.Warnw("Skipping malformed record",
				logger.FieldFile, name,
				logger.FieldLine, lineNo,
				logger.FieldError, err.Error(),
			)
			continue
		}
		out = append(out, rec)
		stats.Records++
	}
	if err := sc.Err(); err != nil {
		return out, stats, errors.Wrapf(err, "read %s", name)
	}
	return out, stats, nil
}

// ReadFile opens path and reads it with Read. A missing file is a
// validation error.
func ReadFile[T any](path string, log *zap.SugaredLogger) ([]T, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ReadStats{}, errors.WithHint(
				errors.NewInvalidRequestError("input file %s does not exist", path),
				"check the path or run the upstream stage first")
		}
		return nil, ReadStats{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Read[T](f, path, log)
}
