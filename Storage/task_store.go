package Storage

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"AviCRM/Models"
)

// TaskDashboardFile is the per-employee array the admin dashboard reads.
const TaskDashboardFile = "taskdashboard.json"

// TaskStore keeps one JSON array of task records per profile directory.
type TaskStore struct {
	locks *KeyedMutex
}

func NewTaskStore() *TaskStore {
	return &TaskStore{locks: NewKeyedMutex()}
}

func (s *TaskStore) Path(profileDir string) string {
	return filepath.Join(profileDir, TaskDashboardFile)
}

// load reads the array for a mutation. A corrupt file is quarantined and
// the mutation proceeds from an empty array.
func (s *TaskStore) load(path string) ([]Models.TaskRecord, error) {
	var tasks []Models.TaskRecord
	err := readJSON(path, &tasks)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return []Models.TaskRecord{}, nil
	case errors.Is(err, errCorrupt):
		log.Printf("Task dashboard unreadable, starting a new one: %v", &Models.StorageFault{Op: "decode", Path: path, Err: err})
		quarantine(path)
		return []Models.TaskRecord{}, nil
	default:
		return nil, err
	}
	if tasks == nil {
		tasks = []Models.TaskRecord{}
	}
	return tasks, nil
}

// Append adds record to the end of the employee's array, creating the
// profile directory and file as needed.
func (s *TaskStore) Append(profileDir string, record Models.TaskRecord) error {
	path := s.Path(profileDir)
	unlock := s.locks.Lock(path)
	defer unlock()

	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return &Models.StorageFault{Op: "mkdir", Path: profileDir, Err: err}
	}

	tasks, err := s.load(path)
	if err != nil {
		return err
	}
	tasks = append(tasks, record)
	return writeJSON(path, tasks)
}

// FindAndUpdate applies mutate to the record whose id equals taskID and
// writes the array back. found is false, with a nil error, when there is no
// such record. An error from mutate aborts without writing.
func (s *TaskStore) FindAndUpdate(profileDir, taskID string, mutate func(*Models.TaskRecord) error) (bool, error) {
	path := s.Path(profileDir)
	unlock := s.locks.Lock(path)
	defer unlock()

	var tasks []Models.TaskRecord
	err := readJSON(path, &tasks)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, errCorrupt) {
		if errors.Is(err, errCorrupt) {
			log.Printf("Task dashboard unreadable, cannot update task %s: %v", taskID, err)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	idx := Models.FindTask(tasks, taskID)
	if idx < 0 {
		return false, nil
	}
	if err := mutate(&tasks[idx]); err != nil {
		return true, err
	}
	return true, writeJSON(path, tasks)
}

// ReadAll never fails: a missing or unreadable file reads as no tasks.
func (s *TaskStore) ReadAll(profileDir string) []Models.TaskRecord {
	path := s.Path(profileDir)

	var tasks []Models.TaskRecord
	if err := readJSON(path, &tasks); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Reading task dashboard %s failed: %v", path, err)
		}
		return []Models.TaskRecord{}
	}
	if tasks == nil {
		return []Models.TaskRecord{}
	}
	return tasks
}
