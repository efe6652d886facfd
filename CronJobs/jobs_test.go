package CronJobs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"AviCRM/Directory"
	"AviCRM/Models"
	"AviCRM/Storage"
	"AviCRM/TaskSync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) (*TaskSync.Coordinator, string) {
	t.Helper()
	dataDir := t.TempDir()
	registryPath := filepath.Join(dataDir, "master_employees.json")
	require.NoError(t, os.WriteFile(registryPath, []byte(`[{"employeeId": 7, "username": "jsmith", "firstName": "John"}]`), 0644))

	c := TaskSync.NewCoordinator(
		Directory.NewResolver(dataDir, registryPath),
		Storage.NewTaskStore(),
		Storage.NewNotificationStore(),
		Storage.NewIDGenerator(),
		nil,
	)
	return c, dataDir
}

func TestRunOnce_RepairsEveryProfile(t *testing.T) {
	coordinator, dataDir := newCoordinator(t)
	ctx := context.Background()

	for _, id := range []int64{7, 9} {
		_, err := coordinator.Assign(ctx, id, Models.TaskFields{"title": json.RawMessage(`"Inspect site"`)})
		require.NoError(t, err)
	}
	require.NoError(t, os.Remove(filepath.Join(dataDir, "EMP_007", "taskjsmith.json")))
	require.NoError(t, os.Remove(filepath.Join(dataDir, "EMP_009", "taskuser9.json")))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "archive"), 0755))

	r := NewReconciler(coordinator, dataDir, "", false)
	report, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)

	assert.Len(t, coordinator.Profile("jsmith").Tasks, 1)
	assert.Len(t, coordinator.Profile("user9").Tasks, 1)

	again, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestRunOnce_MissingDataDir(t *testing.T) {
	coordinator, dataDir := newCoordinator(t)

	r := NewReconciler(coordinator, filepath.Join(dataDir, "missing"), "", false)
	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestStartStopAndUpdateSchedule(t *testing.T) {
	coordinator, dataDir := newCoordinator(t)

	r := NewReconciler(coordinator, dataDir, "@every 1h", false)
	require.NoError(t, r.Start())
	defer r.Stop()

	require.NoError(t, r.UpdateSchedule("@every 30m"))
	assert.Equal(t, "@every 30m", r.Schedule())
	assert.Len(t, r.cronScheduler.Entries(), 1)

	assert.Error(t, r.UpdateSchedule("not a schedule"))
	assert.Equal(t, "@every 30m", r.Schedule())
	assert.Len(t, r.cronScheduler.Entries(), 1, "the running schedule is kept")
}

func TestStart_InvalidSchedule(t *testing.T) {
	coordinator, dataDir := newCoordinator(t)

	r := NewReconciler(coordinator, dataDir, "every now and then", false)
	assert.Error(t, r.Start())
}
