package Storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"AviCRM/Models"

	"golang.org/x/exp/slices"
)

// NotificationFileName is the profile file the mobile client syncs from.
func NotificationFileName(username string) string {
	return "task" + username + ".json"
}

// NotificationStore keeps one NotificationProfile per username inside the
// employee's profile directory.
type NotificationStore struct {
	locks *KeyedMutex
	now   func() time.Time
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{locks: NewKeyedMutex(), now: time.Now}
}

func (s *NotificationStore) Path(profileDir, username string) (string, error) {
	if username == "" || username != filepath.Base(username) || strings.Contains(username, "..") {
		return "", &Models.StorageFault{Op: "resolve", Path: profileDir, Err: fmt.Errorf("invalid username %q", username)}
	}
	return filepath.Join(profileDir, NotificationFileName(username)), nil
}

func (s *NotificationStore) load(path string) (Models.NotificationProfile, bool, error) {
	var profile Models.NotificationProfile
	err := readJSON(path, &profile)
	switch {
	case err == nil:
		if profile.Tasks == nil {
			profile.Tasks = []Models.TaskRecord{}
		}
		return profile, true, nil
	case errors.Is(err, os.ErrNotExist):
		return profile, false, nil
	case errors.Is(err, errCorrupt):
		return profile, false, err
	default:
		return profile, false, err
	}
}

// UpsertTask appends record to the username's profile, creating the profile
// when it does not exist yet. Settings are merged from the record only on
// creation; later assignments never change them. A record whose id is
// already present is not appended twice.
func (s *NotificationStore) UpsertTask(profileDir, username string, employeeID int64, record Models.TaskRecord, defaults Models.NotificationSettings) error {
	path, err := s.Path(profileDir, username)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(path)
	defer unlock()

	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return &Models.StorageFault{Op: "mkdir", Path: profileDir, Err: err}
	}

	now := s.now().UTC()
	profile, found, err := s.load(path)
	if errors.Is(err, errCorrupt) {
		log.Printf("Notification profile unreadable, starting a new one: %v", &Models.StorageFault{Op: "decode", Path: path, Err: err})
		quarantine(path)
		found, err = false, nil
	}
	if err != nil {
		return err
	}

	if !found {
		profile = Models.NewNotificationProfile(username, employeeID, now)
		profile.NotificationSettings = defaults.Merge(record.NotificationOverrides())
		profile.Tasks = append(profile.Tasks, record)
		return writeJSON(path, profile)
	}

	exists := slices.ContainsFunc(profile.Tasks, func(t Models.TaskRecord) bool {
		return t.ID == record.ID
	})
	if exists {
		return nil
	}

	if profile.UserID == 0 {
		profile.UserID = employeeID
	}
	profile.Tasks = append(profile.Tasks, record)
	profile.LastUpdated = now
	return writeJSON(path, profile)
}

// CompleteTask marks taskID completed at the given time and returns the
// stored record. found is false when the profile or the task is missing.
// A task that is already completed is returned unchanged.
func (s *NotificationStore) CompleteTask(profileDir, username, taskID string, at time.Time) (Models.TaskRecord, bool, error) {
	path, err := s.Path(profileDir, username)
	if err != nil {
		return Models.TaskRecord{}, false, err
	}
	unlock := s.locks.Lock(path)
	defer unlock()

	profile, found, err := s.load(path)
	if errors.Is(err, errCorrupt) {
		log.Printf("Notification profile unreadable, cannot complete task %s: %v", taskID, err)
		return Models.TaskRecord{}, false, nil
	}
	if err != nil || !found {
		return Models.TaskRecord{}, false, err
	}

	idx := Models.FindTask(profile.Tasks, taskID)
	if idx < 0 {
		return Models.TaskRecord{}, false, nil
	}

	task := &profile.Tasks[idx]
	if !task.MarkCompleted(at) {
		return *task, true, nil
	}
	profile.LastUpdated = s.now().UTC()
	if err := writeJSON(path, profile); err != nil {
		return Models.TaskRecord{}, true, err
	}
	return *task, true, nil
}

// Read returns the stored profile. A missing or unreadable profile is not
// an error; found reports whether one was read.
func (s *NotificationStore) Read(profileDir, username string) (Models.NotificationProfile, bool) {
	path, err := s.Path(profileDir, username)
	if err != nil {
		return Models.NotificationProfile{}, false
	}

	profile, found, err := s.load(path)
	if err != nil {
		log.Printf("Reading notification profile %s failed: %v", path, err)
		return Models.NotificationProfile{}, false
	}
	return profile, found
}
