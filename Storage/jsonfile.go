package Storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"AviCRM/Models"
)

// errCorrupt marks a file that exists but does not decode.
var errCorrupt = errors.New("corrupt json file")

// readJSON decodes path into v. A missing file returns os.ErrNotExist, an
// undecodable one errCorrupt; other I/O failures come back as StorageFault.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.ErrNotExist
		}
		return &Models.StorageFault{Op: "read", Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return os.ErrNotExist
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errCorrupt, path, err)
	}
	return nil
}

// writeJSON replaces path with the indented encoding of v. The data goes to
// a temp file in the same directory first and is renamed over path, so a
// concurrent reader sees either the old or the new document.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &Models.StorageFault{Op: "encode", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &Models.StorageFault{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &Models.StorageFault{Op: "create temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &Models.StorageFault{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &Models.StorageFault{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &Models.StorageFault{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &Models.StorageFault{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// quarantine moves a corrupt file aside so the next write starts clean and
// the original bytes stay on disk for inspection.
func quarantine(path string) {
	target := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, target); err != nil {
		log.Printf("Failed to quarantine corrupt file %s: %v", path, err)
		return
	}
	log.Printf("Quarantined corrupt file %s as %s", path, target)
}
