package Models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound covers a missing registry entry, profile or task id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change would move a
	// completed task back to an earlier state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StorageFault wraps a file system failure on one of the JSON stores.
type StorageFault struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageFault) Error() string {
	return fmt.Sprintf("storage fault during %s on %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageFault) Unwrap() error {
	return e.Err
}

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
