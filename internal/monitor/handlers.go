package monitor

import (
	"log/slog"

	"github.com/noahxzhu/charge-notify/internal/model"
	"github.com/noahxzhu/charge-notify/internal/platform"
	"github.com/noahxzhu/charge-notify/internal/settings"
)

// Dispatcher is the outbound side of the monitor; satisfied by push.Client.
type Dispatcher interface {
	Send(messageType model.MessageType, batteryLevel *int, onResult func(ok bool, body string))
}

// UpdateRenderer shows receiver updates locally; satisfied by notify.Desktop.
type UpdateRenderer interface {
	Show(update model.Update) error
}

// Handlers holds the business logic invoked for each battery/power event.
type Handlers struct {
	store      *settings.Store
	battery    platform.BatteryReader
	display    platform.DisplayReader
	alarm      *AlarmManager
	dispatcher Dispatcher
	renderer   UpdateRenderer
}

func NewHandlers(
	store *settings.Store,
	battery platform.BatteryReader,
	display platform.DisplayReader,
	alarm *AlarmManager,
	dispatcher Dispatcher,
	renderer UpdateRenderer,
) *Handlers {
	return &Handlers{
		store:      store,
		battery:    battery,
		display:    display,
		alarm:      alarm,
		dispatcher: dispatcher,
		renderer:   renderer,
	}
}

// PowerConnected starts polling the battery level while charging.
func (h *Handlers) PowerConnected() {
	h.alarm.Start()
}

// PowerDisconnected stops the polling alarm.
func (h *Handlers) PowerDisconnected() {
	h.alarm.Stop()
}

// BatteryLow dispatches a LOW notification unless suppressed. It reports
// whether a notification was actually dispatched so the router can narrow its
// subscription afterwards.
func (h *Handlers) BatteryLow() bool {
	if h.shouldSkip() {
		slog.Info("Battery is low, but a display is on; skipping the notification")
		return false
	}

	h.dispatcher.Send(model.MessageLow, nil, h.handleResponse)
	return true
}

// LevelTick checks the current battery level against the target. At or above
// target (and not suppressed) it stops the alarm and dispatches a FULL
// notification carrying the observed level.
func (h *Handlers) LevelTick() {
	level, err := h.battery.Level()
	if err != nil {
		// Better to miss a tick than to notify with a bogus level.
		slog.Error("Battery level unreadable, skipping this tick", "error", err)
		return
	}

	slog.Debug("Polled battery level", "level", level)

	if level < h.store.Snapshot().MaxLevelPercent {
		return
	}

	if h.shouldSkip() {
		slog.Info("Target level reached, but a display is on; skipping this tick and continuing the alarm")
		return
	}

	h.alarm.Stop()
	h.dispatcher.Send(model.MessageFull, &level, h.handleResponse)
}

// shouldSkip applies the suppression rule: skip only when the user asked to
// skip while a display is on AND one actually is. A failed display query
// counts as "no display on" so a notification is never silently lost.
func (h *Handlers) shouldSkip() bool {
	if !h.store.Snapshot().SkipWhileDisplayOnEnabled {
		return false
	}

	on, err := h.display.AnyOn()
	if err != nil {
		slog.Warn("Display state unavailable, not suppressing", "error", err)
		return false
	}
	return on
}

func (h *Handlers) handleResponse(ok bool, body string) {
	if !ok {
		slog.Warn("Notification was not delivered", "body", body)
		return
	}

	update, isUpdate := model.ParseUpdate(body)
	if !isUpdate {
		return
	}

	if h.renderer == nil {
		return
	}
	if err := h.renderer.Show(update); err != nil {
		slog.Warn("Failed to render receiver update", "error", err)
	}
}
