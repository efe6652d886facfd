package Models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

type TaskStatus string

const (
	StatusAssigned  TaskStatus = "assigned"
	StatusCompleted TaskStatus = "completed"
)

// serverFields are owned by the server; callers cannot set them.
var serverFields = []string{"id", "employeeId", "assignedAt", "status", "completedAt"}

// TaskFields are the caller-supplied fields of a task, kept as sent.
type TaskFields map[string]json.RawMessage

// ParseTaskFields decodes a JSON object into TaskFields.
func ParseTaskFields(data []byte) (TaskFields, error) {
	var fields TaskFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = TaskFields{}
	}
	return fields, nil
}

// WithoutServerFields returns a copy of f minus the server-owned keys.
func (f TaskFields) WithoutServerFields() TaskFields {
	out := make(TaskFields, len(f))
	for k, v := range f {
		out[k] = v
	}
	for _, k := range serverFields {
		delete(out, k)
	}
	return out
}

// Text reads key as display text. Strings are unquoted, numbers and bools
// keep their literal form, anything else reads as "".
func (f TaskFields) Text(key string) string {
	raw := bytes.TrimSpace(f[key])
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(raw)
	}
}

// TaskRecord is a single assignment as stored in both the dashboard array
// and the notification profile. Only the server-owned fields are typed;
// everything the caller sent stays in Fields and is written back untouched.
type TaskRecord struct {
	ID          int64
	EmployeeID  int64
	AssignedAt  time.Time
	Status      TaskStatus
	CompletedAt *time.Time

	Fields TaskFields
}

func (t TaskRecord) Title() string    { return t.Fields.Text("title") }
func (t TaskRecord) Priority() string { return t.Fields.Text("priority") }
func (t TaskRecord) DueDate() string  { return t.Fields.Text("dueDate") }

// NotificationOverrides is the raw notificationSettings object, if any.
func (t TaskRecord) NotificationOverrides() json.RawMessage {
	return t.Fields["notificationSettings"]
}

// MarshalJSON writes Fields with the set server fields laid over them.
func (t TaskRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(t.Fields)+len(serverFields))
	for k, v := range t.Fields {
		out[k] = v
	}
	if _, kept := t.Fields["id"]; t.ID != 0 || !kept {
		out["id"] = t.ID
	}
	if t.EmployeeID != 0 {
		out["employeeId"] = t.EmployeeID
	}
	if !t.AssignedAt.IsZero() {
		out["assignedAt"] = t.AssignedAt
	}
	if t.Status != "" {
		out["status"] = t.Status
	}
	if t.CompletedAt != nil {
		out["completedAt"] = t.CompletedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any JSON object. A server field that does not parse
// stays in Fields as it was, so the record is still written back intact.
func (t *TaskRecord) UnmarshalJSON(data []byte) error {
	fields, err := ParseTaskFields(data)
	if err != nil {
		return err
	}

	record := TaskRecord{Fields: fields}
	if id, ok := flexInt(fields["id"]); ok {
		record.ID = id
		delete(fields, "id")
	}
	if id, ok := flexInt(fields["employeeId"]); ok {
		record.EmployeeID = id
		delete(fields, "employeeId")
	}
	if raw, ok := fields["assignedAt"]; ok {
		if err := json.Unmarshal(raw, &record.AssignedAt); err == nil {
			delete(fields, "assignedAt")
		}
	}
	if raw, ok := fields["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err == nil {
			record.Status = TaskStatus(status)
			delete(fields, "status")
		}
	}
	if raw, ok := fields["completedAt"]; ok {
		var at *time.Time
		if err := json.Unmarshal(raw, &at); err == nil {
			record.CompletedAt = at
			delete(fields, "completedAt")
		}
	}

	*t = record
	return nil
}

// flexInt reads a JSON number or a numeric string as an int64.
func flexInt(raw json.RawMessage) (int64, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, false
	}
	text = strings.Trim(text, `"`)
	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// IDString is the form task ids are compared in; URLs carry ids as text.
func (t TaskRecord) IDString() string {
	return strconv.FormatInt(t.ID, 10)
}

// SetStatus applies a status change. Completed is terminal: moving a
// completed task to any other state fails with ErrInvalidTransition, and
// completing it again is a no-op that keeps the original completedAt.
func (t *TaskRecord) SetStatus(status TaskStatus, at time.Time) (changed bool, err error) {
	if t.Status == StatusCompleted {
		if status == StatusCompleted {
			return false, nil
		}
		return false, ErrInvalidTransition
	}
	if t.Status == status {
		return false, nil
	}

	t.Status = status
	if status == StatusCompleted {
		completedAt := at.UTC()
		t.CompletedAt = &completedAt
	}
	return true, nil
}

// MarkCompleted is SetStatus(StatusCompleted) without the error path, which
// cannot occur for that target state.
func (t *TaskRecord) MarkCompleted(at time.Time) bool {
	changed, _ := t.SetStatus(StatusCompleted, at)
	return changed
}

// FindTask returns the index of the task whose id matches taskID, or -1.
func FindTask(tasks []TaskRecord, taskID string) int {
	return slices.IndexFunc(tasks, func(t TaskRecord) bool {
		return t.IDString() == taskID
	})
}
