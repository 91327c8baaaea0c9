package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
)

// LogindLocker implements WakeLocker on top of systemd-logind sleep
// inhibitors. Each Acquire takes a "block" inhibitor lock on sleep; closing
// the returned file descriptor releases it.
type LogindLocker struct {
	conn *dbus.Conn
}

func NewLogindLocker() (*LogindLocker, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &LogindLocker{conn: conn}, nil
}

func (l *LogindLocker) Acquire(reason string, timeout time.Duration) (func(), error) {
	var fd dbus.UnixFD

	obj := l.conn.Object("org.freedesktop.login1", "/org/freedesktop/login1")
	err := obj.Call(
		"org.freedesktop.login1.Manager.Inhibit", 0,
		"sleep", "charge-notify", reason, "block",
	).Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("failed to take sleep inhibitor: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := syscall.Close(int(fd)); err != nil {
				slog.Warn("Failed to close inhibitor fd", "error", err)
			}
		})
	}

	// logind keeps the inhibitor alive as long as the fd is open, so bound it
	// in case the caller never gets to release.
	timer := time.AfterFunc(timeout, release)

	return func() {
		timer.Stop()
		release()
	}, nil
}

func (l *LogindLocker) Close() error {
	return l.conn.Close()
}
