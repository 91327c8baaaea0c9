package platform

import (
	"context"
	"time"

	"github.com/noahxzhu/charge-notify/internal/events"
)

// BatteryReader reports the current charge state of the device battery.
type BatteryReader interface {
	// Level returns the battery charge percentage (0-100).
	Level() (int, error)
	// Charging reports whether a charger is currently connected and charging.
	Charging() (bool, error)
}

// DisplayReader answers "is any screen currently on?".
type DisplayReader interface {
	AnyOn() (bool, error)
}

// WakeLocker prevents the device from sleeping while a lock is held.
// Acquire returns a release function that is safe to call exactly once; the
// lock is also released automatically when the timeout elapses.
type WakeLocker interface {
	Acquire(reason string, timeout time.Duration) (release func(), err error)
}

// PowerEventSource watches the platform for power state changes and publishes
// them until ctx is cancelled.
type PowerEventSource interface {
	Run(ctx context.Context, publish func(events.Event)) error
}

// NoopLocker satisfies WakeLocker without doing anything. Used when the
// system has no sleep inhibitor available (containers, CI).
type NoopLocker struct{}

func (NoopLocker) Acquire(reason string, timeout time.Duration) (func(), error) {
	return func() {}, nil
}
