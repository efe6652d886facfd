package Models

import (
	"encoding/json"
	"time"
)

// DefaultFrequencies are the reminder intervals in seconds: 5min, 15min, 30min, 1hr.
var DefaultFrequencies = []int{300, 900, 1800, 3600}

type NotificationSettings struct {
	Enabled              bool   `json:"enabled"`
	Frequencies          []int  `json:"frequencies"`
	PersistUntilComplete bool   `json:"persistUntilComplete"`
	UrgencyLevel         string `json:"urgencyLevel"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:              true,
		Frequencies:          append([]int(nil), DefaultFrequencies...),
		PersistUntilComplete: true,
		UrgencyLevel:         "normal",
	}
}

// Merge lays a task's notificationSettings object over s. Keys that are
// missing or of the wrong type keep the value from s; "intervals" replaces
// the frequencies.
func (s NotificationSettings) Merge(overrides json.RawMessage) NotificationSettings {
	merged := s
	merged.Frequencies = append([]int(nil), s.Frequencies...)

	var o map[string]json.RawMessage
	if err := json.Unmarshal(overrides, &o); err != nil || o == nil {
		return merged
	}

	read := func(key string, v interface{}) bool {
		raw := o[key]
		return len(raw) > 0 && string(raw) != "null" && json.Unmarshal(raw, v) == nil
	}

	var enabled, persist bool
	if read("enabled", &enabled) {
		merged.Enabled = enabled
	}
	if read("persistUntilComplete", &persist) {
		merged.PersistUntilComplete = persist
	}
	var urgency string
	if read("urgencyLevel", &urgency) && urgency != "" {
		merged.UrgencyLevel = urgency
	}
	var intervals []float64
	if read("intervals", &intervals) && len(intervals) > 0 {
		merged.Frequencies = make([]int, 0, len(intervals))
		for _, seconds := range intervals {
			merged.Frequencies = append(merged.Frequencies, int(seconds))
		}
	}
	return merged
}

// NotificationProfile is the per-username document the mobile client polls.
type NotificationProfile struct {
	Username             string               `json:"username"`
	UserID               int64                `json:"userId"`
	Tasks                []TaskRecord         `json:"tasks"`
	LastUpdated          time.Time            `json:"lastUpdated"`
	NotificationSettings NotificationSettings `json:"notificationSettings"`
}

// NewNotificationProfile returns the default-shaped empty profile.
func NewNotificationProfile(username string, userID int64, now time.Time) NotificationProfile {
	return NotificationProfile{
		Username:             username,
		UserID:               userID,
		Tasks:                []TaskRecord{},
		LastUpdated:          now.UTC(),
		NotificationSettings: DefaultNotificationSettings(),
	}
}
