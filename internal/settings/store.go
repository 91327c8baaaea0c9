package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Persisted key names. These double as the JSON keys on disk, so renaming one
// is a breaking change and previously stored values will be lost.
const (
	KeyDeviceName         = "DEVICE_NAME"
	KeyMonitoringToggle   = "NOTIFICATION_SERVICE_TOGGLE"
	KeyMaxLevelToggle     = "MAX_LEVEL_NOTIFICATION_TOGGLE"
	KeyMaxLevelPercent    = "MAX_LEVEL_PERCENTAGE"
	KeyLowBatteryToggle   = "LOW_BATTERY_NOTIFICATION_TOGGLE"
	KeySkipWhileDisplayOn = "SKIP_WHILE_SCREEN_ON_TOGGLE"
	KeyPairedServiceTag   = "PAIRED_SERVICE_TAG"
	KeyReceiverToken      = "RECEIVER_TOKEN"
	KeyLastMessageID      = "LAST_MESSAGE_ID"
)

const defaultMaxLevelPercent = 85

// Settings is the user-facing configuration document. JSON tags must stay in
// sync with the Key* constants above.
type Settings struct {
	DeviceName                string `json:"DEVICE_NAME"`
	MonitoringEnabled         bool   `json:"NOTIFICATION_SERVICE_TOGGLE"`
	MaxLevelNotifyEnabled     bool   `json:"MAX_LEVEL_NOTIFICATION_TOGGLE"`
	MaxLevelPercent           int    `json:"MAX_LEVEL_PERCENTAGE"`
	LowBatteryNotifyEnabled   bool   `json:"LOW_BATTERY_NOTIFICATION_TOGGLE"`
	SkipWhileDisplayOnEnabled bool   `json:"SKIP_WHILE_SCREEN_ON_TOGGLE"`
	PairedServiceTag          string `json:"PAIRED_SERVICE_TAG,omitempty"`
	ReceiverToken             string `json:"RECEIVER_TOKEN,omitempty"`
	LastMessageID             string `json:"LAST_MESSAGE_ID,omitempty"`
}

// Paired reports whether a receiver token is present.
func (s Settings) Paired() bool {
	return s.ReceiverToken != ""
}

// MonitoringActive is the gating condition: monitoring does nothing unless it
// is enabled, a receiver is paired, and at least one notification type is on.
func (s Settings) MonitoringActive() bool {
	return s.MonitoringEnabled && s.Paired() &&
		(s.MaxLevelNotifyEnabled || s.LowBatteryNotifyEnabled)
}

func defaults() Settings {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "This device"
	}

	return Settings{
		DeviceName:                name,
		MonitoringEnabled:         true,
		MaxLevelNotifyEnabled:     true,
		MaxLevelPercent:           defaultMaxLevelPercent,
		LowBatteryNotifyEnabled:   true,
		SkipWhileDisplayOnEnabled: true,
	}
}

// Store persists Settings as a single JSON document and notifies subscribers
// on every change. Safe for concurrent use from the web UI and the monitor.
type Store struct {
	mu        sync.RWMutex
	filePath  string
	data      Settings
	listeners map[string]func(key string)
}

func NewStore(filePath string) *Store {
	return &Store{
		filePath:  filePath,
		data:      defaults(),
		listeners: make(map[string]func(key string)),
	}
}

// Load reads the settings file if it exists; a missing or empty file leaves
// the compiled-in defaults in place.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	loaded := defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if loaded.MaxLevelPercent == 0 {
		loaded.MaxLevelPercent = defaultMaxLevelPercent
	}

	s.data = loaded
	return nil
}

// save must be called with the write lock held.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Subscribe registers a listener invoked with the changed key after every
// successful set. Listeners run on the mutating goroutine and must not call
// back into setters.
func (s *Store) Subscribe(fn func(key string)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.listeners[id] = fn
	return id
}

func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) set(key string, mutate func(*Settings)) error {
	s.mu.Lock()
	mutate(&s.data)
	err := s.save()
	listeners := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	for _, fn := range listeners {
		fn(key)
	}
	return nil
}

func (s *Store) SetDeviceName(name string) error {
	return s.set(KeyDeviceName, func(d *Settings) { d.DeviceName = name })
}

func (s *Store) SetMonitoringEnabled(enabled bool) error {
	return s.set(KeyMonitoringToggle, func(d *Settings) { d.MonitoringEnabled = enabled })
}

func (s *Store) SetMaxLevelNotifyEnabled(enabled bool) error {
	return s.set(KeyMaxLevelToggle, func(d *Settings) { d.MaxLevelNotifyEnabled = enabled })
}

func (s *Store) SetMaxLevelPercent(percent int) error {
	return s.set(KeyMaxLevelPercent, func(d *Settings) { d.MaxLevelPercent = percent })
}

func (s *Store) SetLowBatteryNotifyEnabled(enabled bool) error {
	return s.set(KeyLowBatteryToggle, func(d *Settings) { d.LowBatteryNotifyEnabled = enabled })
}

func (s *Store) SetSkipWhileDisplayOnEnabled(enabled bool) error {
	return s.set(KeySkipWhileDisplayOn, func(d *Settings) { d.SkipWhileDisplayOnEnabled = enabled })
}

func (s *Store) SetPairedServiceTag(tag string) error {
	return s.set(KeyPairedServiceTag, func(d *Settings) { d.PairedServiceTag = tag })
}

func (s *Store) SetReceiverToken(token string) error {
	return s.set(KeyReceiverToken, func(d *Settings) { d.ReceiverToken = token })
}

func (s *Store) SetLastMessageID(id string) error {
	return s.set(KeyLastMessageID, func(d *Settings) { d.LastMessageID = id })
}
