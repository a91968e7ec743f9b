package jsonl

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/teranos/factgate/errors"
)

// Canonical serialises v with object keys sorted at every depth, no HTML
// escaping and no trailing newline. Numbers keep their literal form.
func Canonical(v any) ([]byte, error) {
	first, err := encode(v)
	if err != nil {
		return nil, err
	}

	// Re-decode into generic values so struct field order stops mattering.
	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, errors.Wrap(err, "canonicalize")
	}
	return encode(generic)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CanonicalLines serialises rows and sorts them by their canonical form.
func CanonicalLines[T any](rows []T) ([][]byte, error) {
	lines := make([][]byte, 0, len(rows))
	for i := range rows {
		b, err := Canonical(rows[i])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		lines = append(lines, b)
	}
	sort.Slice(lines, func(i, j int) bool { return bytes.Compare(lines[i], lines[j]) < 0 })
	return lines, nil
}

// WriteSorted writes rows to path in canonical sorted order, atomically.
// It returns the number of rows written.
func WriteSorted[T any](path string, rows []T) (int, error) {
	lines, err := CanonicalLines(rows)
	if err != nil {
		return 0, errors.Wrapf(err, "serialize %s", path)
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.Write(l)
		buf.WriteByte('\n')
	}
	if err := WriteAtomic(path, buf.Bytes()); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// WriteOrdered writes rows in the order given, atomically.
func WriteOrdered[T any](path string, rows []T) error {
	var buf bytes.Buffer
	for i := range rows {
		b, err := Canonical(rows[i])
		if err != nil {
			return errors.Wrapf(err, "serialize %s row %d", path, i)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return WriteAtomic(path, buf.Bytes())
}

// WriteJSON writes v as a single indented canonical JSON document.
func WriteJSON(path string, v any) error {
	b, err := Canonical(v)
	if err != nil {
		return errors.Wrapf(err, "serialize %s", path)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return errors.Wrapf(err, "indent %s", path)
	}
	out.WriteByte('\n')
	return WriteAtomic(path, out.Bytes())
}

// WriteAtomic replaces path with data via temp file, fsync and rename.
// Parent directories are created as needed.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrapf(err, "chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename %s to %s", tmpName, path)
	}
	committed = true
	return nil
}
