package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/noahxzhu/charge-notify/internal/events"
	"github.com/noahxzhu/charge-notify/internal/platform"
	"github.com/noahxzhu/charge-notify/internal/settings"
)

// Stable identity of the one polling alarm. Start under the same id replaces
// any existing registration instead of duplicating it.
const alarmID = 64

const defaultPollInterval = time.Minute

// AlarmManager owns the repeating battery level check that runs while the
// device is charging. At most one alarm exists at a time; Start replaces,
// Stop is a no-op when idle.
type AlarmManager struct {
	store    *settings.Store
	battery  platform.BatteryReader
	broker   *events.Broker
	interval time.Duration

	mu     sync.Mutex
	cancel chan struct{}
}

func NewAlarmManager(store *settings.Store, battery platform.BatteryReader, broker *events.Broker, interval time.Duration) *AlarmManager {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &AlarmManager{
		store:    store,
		battery:  battery,
		broker:   broker,
		interval: interval,
	}
}

// Start schedules the repeating level check, first fire immediate. If the
// battery is already past the target level there is nothing to poll for and
// Start does nothing.
func (a *AlarmManager) Start() {
	level, err := a.battery.Level()
	if err != nil {
		slog.Error("Not starting the polling alarm, battery level unreadable", "alarmId", alarmID, "error", err)
		return
	}

	if level > a.store.Snapshot().MaxLevelPercent {
		slog.Info("Charger connected, but battery is already ahead of the preferred level", "level", level)
		return
	}

	a.mu.Lock()
	if a.cancel != nil {
		close(a.cancel)
	}
	cancel := make(chan struct{})
	a.cancel = cancel
	a.mu.Unlock()

	slog.Info("Starting the battery level polling alarm", "alarmId", alarmID, "interval", a.interval)

	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		a.broker.Publish(events.Event{Kind: events.AlarmTick})

		for {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				a.broker.Publish(events.Event{Kind: events.AlarmTick})
			}
		}
	}()
}

// Stop cancels the alarm. Safe to call when no alarm is running.
func (a *AlarmManager) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return
	}

	close(a.cancel)
	a.cancel = nil
	slog.Info("Stopped the battery level polling alarm", "alarmId", alarmID)
}

// Active reports whether an alarm is currently scheduled.
func (a *AlarmManager) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}
