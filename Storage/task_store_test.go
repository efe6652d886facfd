package Storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"AviCRM/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id int64, title string) Models.TaskRecord {
	return Models.TaskRecord{
		ID:         id,
		EmployeeID: 7,
		AssignedAt: time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC),
		Status:     Models.StatusAssigned,
		Fields:     Models.TaskFields{"title": mustJSON(title)},
	}
}

func mustJSON(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func TestTaskStore_AppendCreatesDirectory(t *testing.T) {
	store := NewTaskStore()
	profileDir := filepath.Join(t.TempDir(), "EMP_007")

	require.NoError(t, store.Append(profileDir, newRecord(1, "first")))
	require.NoError(t, store.Append(profileDir, newRecord(2, "second")))

	tasks := store.ReadAll(profileDir)
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Title())
	assert.Equal(t, "second", tasks[1].Title())

	entries, err := os.ReadDir(profileDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestTaskStore_ReadAllMissingOrCorrupt(t *testing.T) {
	store := NewTaskStore()
	profileDir := t.TempDir()

	assert.Empty(t, store.ReadAll(filepath.Join(profileDir, "missing")))

	require.NoError(t, os.WriteFile(store.Path(profileDir), []byte("[{broken"), 0644))
	tasks := store.ReadAll(profileDir)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTaskStore_AppendQuarantinesCorruptFile(t *testing.T) {
	store := NewTaskStore()
	profileDir := t.TempDir()
	require.NoError(t, os.WriteFile(store.Path(profileDir), []byte("not json"), 0644))

	require.NoError(t, store.Append(profileDir, newRecord(5, "after corruption")))

	tasks := store.ReadAll(profileDir)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(5), tasks[0].ID)

	matches, err := filepath.Glob(store.Path(profileDir) + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestTaskStore_FindAndUpdate(t *testing.T) {
	store := NewTaskStore()
	profileDir := t.TempDir()
	require.NoError(t, store.Append(profileDir, newRecord(10, "a")))
	require.NoError(t, store.Append(profileDir, newRecord(11, "b")))

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	found, err := store.FindAndUpdate(profileDir, "11", func(task *Models.TaskRecord) error {
		task.MarkCompleted(at)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, found)

	tasks := store.ReadAll(profileDir)
	assert.Equal(t, Models.StatusAssigned, tasks[0].Status)
	assert.Equal(t, Models.StatusCompleted, tasks[1].Status)
	require.NotNil(t, tasks[1].CompletedAt)
	assert.True(t, at.Equal(*tasks[1].CompletedAt))

	found, err = store.FindAndUpdate(profileDir, "999", func(*Models.TaskRecord) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)

	found, err = store.FindAndUpdate(filepath.Join(profileDir, "nope"), "10", func(*Models.TaskRecord) error { return nil })
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTaskStore_FindAndUpdateMutatorErrorSkipsWrite(t *testing.T) {
	store := NewTaskStore()
	profileDir := t.TempDir()
	require.NoError(t, store.Append(profileDir, newRecord(10, "a")))

	found, err := store.FindAndUpdate(profileDir, "10", func(task *Models.TaskRecord) error {
		task.Fields["title"] = mustJSON("changed")
		return Models.ErrInvalidTransition
	})
	assert.True(t, found)
	assert.ErrorIs(t, err, Models.ErrInvalidTransition)
	assert.Equal(t, "a", store.ReadAll(profileDir)[0].Title())
}

func TestTaskStore_ConcurrentAppendsAreNotLost(t *testing.T) {
	store := NewTaskStore()
	profileDir := t.TempDir()
	ids := NewIDGenerator()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(profileDir, newRecord(ids.Next(), "parallel")))
		}()
	}
	wg.Wait()

	assert.Len(t, store.ReadAll(profileDir), n)
	assert.Zero(t, store.locks.size())
}

func TestTaskStore_MistypedFieldsAreNotQuarantined(t *testing.T) {
	store := NewTaskStore()
	profileDir := t.TempDir()
	existing := `[{"id":"3","employeeId":7,"title":"legacy","estimatedHours":"4","priority":2,` +
		`"notificationSettings":{"sound":{"name":"chime"}}}]`
	require.NoError(t, os.WriteFile(store.Path(profileDir), []byte(existing), 0644))

	require.NoError(t, store.Append(profileDir, newRecord(4, "next")))

	tasks := store.ReadAll(profileDir)
	require.Len(t, tasks, 2)
	assert.Equal(t, int64(3), tasks[0].ID)
	assert.Equal(t, "legacy", tasks[0].Title())
	assert.JSONEq(t, `"4"`, string(tasks[0].Fields["estimatedHours"]))
	assert.JSONEq(t, `2`, string(tasks[0].Fields["priority"]))
	assert.JSONEq(t, `{"sound":{"name":"chime"}}`, string(tasks[0].Fields["notificationSettings"]))

	matches, err := filepath.Glob(store.Path(profileDir) + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
