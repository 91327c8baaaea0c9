package monitor

import (
	"log/slog"
	"sync"

	"github.com/noahxzhu/charge-notify/internal/events"
	"github.com/noahxzhu/charge-notify/internal/platform"
	"github.com/noahxzhu/charge-notify/internal/settings"
)

// Router owns the subscription lifecycle for battery/power events. It holds
// at most one broker subscription at a time, computed from current settings:
// charger events iff max-level notifications are on, battery-low iff
// low-battery notifications are on, and nothing at all unless monitoring is
// enabled and a receiver is paired.
//
// After a LOW notification fires, the subscription is narrowed to drop
// BatteryLow until the next PowerConnected. Some firmwares re-broadcast the
// low battery state every few minutes; narrowing turns that into a single
// notification per discharge cycle.
type Router struct {
	store    *settings.Store
	broker   *events.Broker
	alarm    *AlarmManager
	handlers *Handlers
	battery  platform.BatteryReader

	mu          sync.Mutex
	running     bool
	handle      string
	narrowed    bool
	settingsSub string
}

func NewRouter(
	store *settings.Store,
	broker *events.Broker,
	alarm *AlarmManager,
	handlers *Handlers,
	battery platform.BatteryReader,
) *Router {
	return &Router{
		store:    store,
		broker:   broker,
		alarm:    alarm,
		handlers: handlers,
		battery:  battery,
	}
}

// Start registers for events according to current settings and reconciles
// with the present charging state: if the charger was connected before we
// started, the connect broadcast is long gone, so the polling alarm has to be
// started by asking the battery directly.
func (r *Router) Start() {
	r.mu.Lock()
	r.running = true
	r.settingsSub = r.store.Subscribe(r.onSettingsChanged)
	r.reconcileLocked()
	r.mu.Unlock()

	snap := r.store.Snapshot()
	if !snap.MonitoringActive() || !snap.MaxLevelNotifyEnabled {
		return
	}

	charging, err := r.battery.Charging()
	if err != nil {
		slog.Warn("Could not determine charging state at startup", "error", err)
		return
	}
	if charging {
		slog.Info("Charger was already connected at startup, starting the polling alarm")
		r.alarm.Start()
	}
}

// Stop unregisters everything and cancels the polling alarm. In-flight
// notification requests are left to complete on their own.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running = false
	r.narrowed = false
	if r.settingsSub != "" {
		r.store.Unsubscribe(r.settingsSub)
		r.settingsSub = ""
	}
	r.unsubscribeLocked()
	r.alarm.Stop()
}

// Registered reports whether the router currently holds a subscription.
func (r *Router) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle != ""
}

func (r *Router) onSettingsChanged(key string) {
	switch key {
	case settings.KeyMonitoringToggle,
		settings.KeyMaxLevelToggle,
		settings.KeyLowBatteryToggle,
		settings.KeyReceiverToken:
	default:
		return
	}

	slog.Info("Monitoring settings changed, re-evaluating subscriptions", "key", key)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.narrowed = false
	r.reconcileLocked()
}

// reconcileLocked recomputes the filter set from current settings and swaps
// the broker subscription. A stale subscription is a correctness bug: a
// disabled toggle must stop producing events at the very next one.
func (r *Router) reconcileLocked() {
	snap := r.store.Snapshot()

	if !r.running || !snap.MonitoringActive() {
		r.unsubscribeLocked()
		r.alarm.Stop()
		return
	}

	kinds := r.filters(snap)
	r.unsubscribeLocked()
	r.handle = r.broker.Subscribe(kinds, r.handleEvent)
	slog.Info("Subscribed to battery events", "filters", kinds)

	// The polling alarm belongs to the max-level flow. Once charger events
	// are filtered out nothing would ever stop it, so it must not outlive
	// the toggle.
	if !snap.MaxLevelNotifyEnabled {
		r.alarm.Stop()
	}
}

func (r *Router) unsubscribeLocked() {
	if r.handle == "" {
		return
	}
	r.broker.Unsubscribe(r.handle)
	r.handle = ""
}

func (r *Router) filters(snap settings.Settings) []events.Kind {
	var kinds []events.Kind

	if snap.MaxLevelNotifyEnabled {
		kinds = append(kinds, events.PowerConnected, events.PowerDisconnected, events.AlarmTick)
	}
	if snap.LowBatteryNotifyEnabled && !r.narrowed {
		kinds = append(kinds, events.BatteryLow)
	}
	if r.narrowed && !snap.MaxLevelNotifyEnabled {
		// Still need to see the next charger connect to end the debounce.
		kinds = append(kinds, events.PowerConnected)
	}

	return kinds
}

func (r *Router) handleEvent(ev events.Event) {
	// Settings may have changed between delivery and handling; never act on a
	// stale gating decision.
	snap := r.store.Snapshot()
	if !snap.MonitoringActive() {
		r.mu.Lock()
		r.reconcileLocked()
		r.mu.Unlock()
		return
	}

	slog.Debug("Handling battery event", "kind", ev.Kind)

	switch ev.Kind {
	case events.PowerConnected:
		r.mu.Lock()
		if r.narrowed {
			r.narrowed = false
			r.reconcileLocked()
		}
		r.mu.Unlock()
		// The connect may have been delivered only to end the debounce.
		if snap.MaxLevelNotifyEnabled {
			r.handlers.PowerConnected()
		}

	case events.PowerDisconnected:
		r.handlers.PowerDisconnected()

	case events.BatteryLow:
		// The event may have been copied for delivery just before an
		// unsubscribe; the toggle wins.
		if !snap.LowBatteryNotifyEnabled {
			return
		}
		if r.handlers.BatteryLow() {
			r.mu.Lock()
			r.narrowed = true
			r.reconcileLocked()
			r.mu.Unlock()
		}

	case events.AlarmTick:
		if !snap.MaxLevelNotifyEnabled {
			return
		}
		r.handlers.LevelTick()

	default:
		slog.Error("Unsupported event kind", "kind", ev.Kind)
	}
}
