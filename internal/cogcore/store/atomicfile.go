// Package store implements the persistent artifact stores (C11: drafts and
// queue items) plus the shared atomic-file helper every C9 learning
// component also uses for its own persistence.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJSONAtomic serializes v as JSON and writes it to path by first
// writing to a sibling ".tmp" file and then renaming over the target, so
// readers never observe a partially-written file. Parent directories are
// created with normal permissions if missing.
func WriteJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadJSON reads and unmarshals path into v. A missing file is not an
// error; v is left unmodified and ok is false.
func ReadJSON(path string, v any) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
