package TaskSync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"AviCRM/Directory"
	"AviCRM/Models"
	"AviCRM/Notifier"
	"AviCRM/Storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registry = `[
  {"employeeId": 7, "username": "jsmith", "firstName": "John"},
  {"employeeId": 8, "username": "MLee", "firstName": "Mia"},
]`

func titled(title string) Models.TaskFields {
	raw, _ := json.Marshal(title)
	return Models.TaskFields{"title": raw}
}

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []Models.TaskRecord
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) TaskAssigned(_ context.Context, _ Directory.Entry, task Models.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

type fixture struct {
	dataDir       string
	coordinator   *Coordinator
	tasks         *Storage.TaskStore
	notifications *Storage.NotificationStore
}

func newFixture(t *testing.T, notifiers ...Notifier.Notifier) *fixture {
	t.Helper()
	dataDir := t.TempDir()
	registryPath := filepath.Join(dataDir, "master_employees.json")
	require.NoError(t, os.WriteFile(registryPath, []byte(registry), 0644))

	tasks := Storage.NewTaskStore()
	notifications := Storage.NewNotificationStore()
	c := NewCoordinator(Directory.NewResolver(dataDir, registryPath), tasks, notifications, Storage.NewIDGenerator(), Notifier.Fanout(notifiers))
	return &fixture{dataDir: dataDir, coordinator: c, tasks: tasks, notifications: notifications}
}

func (f *fixture) profileDir(id int64) string {
	return filepath.Join(f.dataDir, Directory.ProfileDirName(id))
}

func TestAssign_WritesBothStores(t *testing.T) {
	recorder := &recordingNotifier{}
	f := newFixture(t, recorder)

	record, err := f.coordinator.Assign(context.Background(), 7, Models.TaskFields{"title": json.RawMessage(`"Inspect site"`), "priority": json.RawMessage(`"high"`)})
	require.NoError(t, err)
	assert.Equal(t, Models.StatusAssigned, record.Status)
	assert.Nil(t, record.CompletedAt)

	dashboard := f.tasks.ReadAll(f.profileDir(7))
	require.Len(t, dashboard, 1)
	assert.Equal(t, record.ID, dashboard[0].ID)

	profile, found := f.notifications.Read(f.profileDir(7), "jsmith")
	require.True(t, found)
	require.Len(t, profile.Tasks, 1)
	assert.Equal(t, record.ID, profile.Tasks[0].ID)
	assert.Equal(t, int64(7), profile.UserID)
	assert.Equal(t, Models.DefaultFrequencies, profile.NotificationSettings.Frequencies)

	f.coordinator.Wait()
	require.Len(t, recorder.tasks, 1)
	assert.Equal(t, record.ID, recorder.tasks[0].ID)
}

func TestAssign_RejectsInvalidEmployee(t *testing.T) {
	f := newFixture(t)

	for _, id := range []int64{0, -3} {
		_, err := f.coordinator.Assign(context.Background(), id, titled("x"))
		var validation *Models.ValidationError
		require.True(t, errors.As(err, &validation), "employee %d", id)
		assert.Contains(t, validation.Fields, "employeeId")
	}

	entries, err := os.ReadDir(f.dataDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the registry file may exist")
}

func TestAssign_ReplacesServerControlledFields(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.coordinator.now = func() time.Time { return fixed }

	fields, err := Models.ParseTaskFields([]byte(`{"id":42,"employeeId":9,"title":"Inspect site","status":"completed","assignedAt":"2024-02-28T12:00:00Z","completedAt":"2024-02-28T12:00:00Z"}`))
	require.NoError(t, err)
	record, err := f.coordinator.Assign(context.Background(), 7, fields)
	require.NoError(t, err)

	assert.NotEqual(t, int64(42), record.ID)
	assert.Equal(t, int64(7), record.EmployeeID)
	assert.Equal(t, fixed, record.AssignedAt)
	assert.Equal(t, Models.StatusAssigned, record.Status)
	assert.Nil(t, record.CompletedAt)
	assert.Equal(t, Models.TaskFields{"title": json.RawMessage(`"Inspect site"`)}, record.Fields)

	stored := f.tasks.ReadAll(f.profileDir(7))
	require.Len(t, stored, 1)
	assert.Equal(t, Models.StatusAssigned, stored[0].Status)
	assert.Nil(t, stored[0].CompletedAt)
}

func TestAssign_KeepsCallerFieldsAsSent(t *testing.T) {
	f := newFixture(t)
	fields, err := Models.ParseTaskFields([]byte(`{"title":"","priority":2,"estimatedHours":"4","notificationSettings":{"intervals":[60],"sound":"chime"}}`))
	require.NoError(t, err)

	record, err := f.coordinator.Assign(context.Background(), 7, fields)
	require.NoError(t, err)

	for _, stored := range []Models.TaskRecord{f.tasks.ReadAll(f.profileDir(7))[0], f.coordinator.Profile("jsmith").Tasks[0]} {
		assert.Equal(t, record.ID, stored.ID)
		assert.JSONEq(t, `""`, string(stored.Fields["title"]))
		assert.JSONEq(t, `2`, string(stored.Fields["priority"]))
		assert.JSONEq(t, `"4"`, string(stored.Fields["estimatedHours"]))
		assert.JSONEq(t, `{"intervals":[60],"sound":"chime"}`, string(stored.Fields["notificationSettings"]))
	}
	assert.Equal(t, []int{60}, f.coordinator.Profile("jsmith").NotificationSettings.Frequencies)
}

func TestAssign_ExistingMistypedRecordsSurvive(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.profileDir(7), 0755))
	legacy := `[{"id":1700000000000,"employeeId":"7","title":"Old","estimatedHours":"4.5","assignedAt":"2024-02-10T09:00:00.000Z","status":"assigned"}]`
	require.NoError(t, os.WriteFile(f.tasks.Path(f.profileDir(7)), []byte(legacy), 0644))

	before := f.coordinator.Tasks(7)
	require.Len(t, before, 1)
	assert.Equal(t, "Old", before[0].Title())

	_, err := f.coordinator.Assign(context.Background(), 7, titled("New"))
	require.NoError(t, err)

	after := f.coordinator.Tasks(7)
	require.Len(t, after, 2)
	assert.Equal(t, int64(1700000000000), after[0].ID)
	assert.JSONEq(t, `"4.5"`, string(after[0].Fields["estimatedHours"]))

	matches, err := filepath.Glob(f.tasks.Path(f.profileDir(7)) + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAssign_NotificationFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	// A directory where the profile file belongs makes every profile write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(f.profileDir(7), "taskjsmith.json"), 0755))

	record, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	require.NoError(t, err)

	dashboard := f.tasks.ReadAll(f.profileDir(7))
	require.Len(t, dashboard, 1)
	assert.Equal(t, record.ID, dashboard[0].ID)

	_, found := f.notifications.Read(f.profileDir(7), "jsmith")
	assert.False(t, found)
}

func TestAssign_DashboardFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.profileDir(7), []byte("not a directory"), 0644))

	_, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	var fault *Models.StorageFault
	require.True(t, errors.As(err, &fault))

	_, found := f.notifications.Read(f.profileDir(7), "jsmith")
	assert.False(t, found)
}

func TestAssign_UnknownEmployeeGetsSynthesizedUsername(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Assign(context.Background(), 99, titled("Walkthrough"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.profileDir(99), "taskuser99.json"))
	assert.NoError(t, err)
}

func TestAssign_ConcurrentAssignmentsGetDistinctIDs(t *testing.T) {
	f := newFixture(t)
	const n = 40

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record, err := f.coordinator.Assign(context.Background(), 7, titled(fmt.Sprintf("task %d", i)))
			if assert.NoError(t, err) {
				ids <- record.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	assert.Len(t, f.tasks.ReadAll(f.profileDir(7)), n)
	profile, found := f.notifications.Read(f.profileDir(7), "jsmith")
	require.True(t, found)
	assert.Len(t, profile.Tasks, n)
}

func TestComplete_MirrorsSameCompletedAt(t *testing.T) {
	f := newFixture(t)
	record, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	require.NoError(t, err)

	completed, err := f.coordinator.Complete(context.Background(), "jsmith", record.IDString())
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)

	profile, _ := f.notifications.Read(f.profileDir(7), "jsmith")
	dashboard := f.tasks.ReadAll(f.profileDir(7))
	require.Len(t, profile.Tasks, 1)
	require.Len(t, dashboard, 1)

	assert.Equal(t, Models.StatusCompleted, profile.Tasks[0].Status)
	assert.Equal(t, Models.StatusCompleted, dashboard[0].Status)
	assert.True(t, profile.Tasks[0].CompletedAt.Equal(*dashboard[0].CompletedAt))
	assert.True(t, completed.CompletedAt.Equal(*dashboard[0].CompletedAt))
}

func TestComplete_SecondCompletionKeepsFirstTimestamp(t *testing.T) {
	f := newFixture(t)
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.coordinator.now = func() time.Time { return first }

	record, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	require.NoError(t, err)
	_, err = f.coordinator.Complete(context.Background(), "jsmith", record.IDString())
	require.NoError(t, err)

	f.coordinator.now = func() time.Time { return first.Add(time.Hour) }
	again, err := f.coordinator.Complete(context.Background(), "jsmith", record.IDString())
	require.NoError(t, err)
	assert.Equal(t, first, *again.CompletedAt)

	dashboard := f.tasks.ReadAll(f.profileDir(7))
	assert.Equal(t, first, *dashboard[0].CompletedAt)
}

func TestComplete_ProfileWithoutCompletedAtUsesClock(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	f.coordinator.now = func() time.Time { return fixed }

	record, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	require.NoError(t, err)

	path, err := f.notifications.Path(f.profileDir(7), "jsmith")
	require.NoError(t, err)
	profile, _ := f.notifications.Read(f.profileDir(7), "jsmith")
	profile.Tasks[0].Status = Models.StatusCompleted
	profile.Tasks[0].CompletedAt = nil
	raw, err := json.Marshal(profile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, err = f.coordinator.Complete(context.Background(), "jsmith", record.IDString())
	require.NoError(t, err)

	dashboard := f.tasks.ReadAll(f.profileDir(7))
	require.NotNil(t, dashboard[0].CompletedAt)
	assert.Equal(t, fixed, *dashboard[0].CompletedAt)
}

func TestComplete_ByEmployeeIDAndCaseInsensitiveUsername(t *testing.T) {
	f := newFixture(t)
	a, err := f.coordinator.Assign(context.Background(), 8, titled("a"))
	require.NoError(t, err)
	b, err := f.coordinator.Assign(context.Background(), 8, titled("b"))
	require.NoError(t, err)

	_, err = f.coordinator.Complete(context.Background(), "8", a.IDString())
	require.NoError(t, err)
	_, err = f.coordinator.Complete(context.Background(), "mlee", b.IDString())
	require.NoError(t, err)

	for _, task := range f.tasks.ReadAll(f.profileDir(8)) {
		assert.Equal(t, Models.StatusCompleted, task.Status)
	}
}

func TestComplete_NotFound(t *testing.T) {
	f := newFixture(t)
	record, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	require.NoError(t, err)

	_, err = f.coordinator.Complete(context.Background(), "jsmith", "12345")
	assert.ErrorIs(t, err, Models.ErrNotFound)

	_, err = f.coordinator.Complete(context.Background(), "nobody", record.IDString())
	assert.ErrorIs(t, err, Models.ErrNotFound)

	_, err = f.coordinator.Complete(context.Background(), "MLee", record.IDString())
	assert.ErrorIs(t, err, Models.ErrNotFound, "profile does not exist yet")
}

func TestComplete_DashboardMissingTaskIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	record, err := f.coordinator.Assign(context.Background(), 7, titled("Inspect site"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.tasks.Path(f.profileDir(7))))

	_, err = f.coordinator.Complete(context.Background(), "jsmith", record.IDString())
	assert.NoError(t, err)
}

func TestProfile_DefaultIsStable(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.coordinator.now = func() time.Time { return fixed }

	first := f.coordinator.Profile("ghost")
	second := f.coordinator.Profile("ghost")
	assert.Equal(t, first, second)
	assert.Equal(t, "ghost", first.Username)
	assert.Equal(t, int64(0), first.UserID)
	assert.Empty(t, first.Tasks)
	assert.Equal(t, Models.DefaultNotificationSettings(), first.NotificationSettings)

	entries, err := os.ReadDir(f.dataDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "reading a default profile must not create files")
}

func TestTasks_EmptyForUnknownEmployee(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []Models.TaskRecord{}, f.coordinator.Tasks(1234))
	assert.Equal(t, []Models.TaskRecord{}, f.coordinator.Tasks(0))
}

func TestEndToEnd_AssignPollComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.coordinator.Assign(ctx, 7, Models.TaskFields{"title": json.RawMessage(`"Inspect site"`), "priority": json.RawMessage(`"high"`)})
	require.NoError(t, err)

	profile := f.coordinator.Profile("jsmith")
	require.Len(t, profile.Tasks, 1)
	assert.Equal(t, "Inspect site", profile.Tasks[0].Title())
	assert.Equal(t, Models.StatusAssigned, profile.Tasks[0].Status)

	_, err = f.coordinator.Complete(ctx, "jsmith", record.IDString())
	require.NoError(t, err)

	tasks := f.coordinator.Tasks(7)
	require.Len(t, tasks, 1)
	assert.Equal(t, Models.StatusCompleted, tasks[0].Status)
	assert.Equal(t, Models.StatusCompleted, f.coordinator.Profile("jsmith").Tasks[0].Status)
}
