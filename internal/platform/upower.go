package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/noahxzhu/charge-notify/internal/events"
)

// UPower warning levels; Low and above mean the battery is running out.
const upowerWarningLow uint32 = 3

// UPowerSource translates UPower D-Bus property changes into power events:
// line-power Online flips become PowerConnected/PowerDisconnected, and a
// battery WarningLevel at or above "low" becomes BatteryLow.
type UPowerSource struct {
	conn *dbus.Conn
}

func NewUPowerSource() (*UPowerSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &UPowerSource{conn: conn}, nil
}

func (u *UPowerSource) Run(ctx context.Context, publish func(events.Event)) error {
	err := u.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace("/org/freedesktop/UPower"),
	)
	if err != nil {
		return fmt.Errorf("failed to add UPower signal match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	u.conn.Signal(signals)
	defer u.conn.RemoveSignal(signals)

	slog.Info("Watching UPower for power state changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("system bus signal channel closed")
			}
			u.handleSignal(sig, publish)
		}
	}
}

func (u *UPowerSource) handleSignal(sig *dbus.Signal, publish func(events.Event)) {
	if len(sig.Body) < 2 {
		return
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != "org.freedesktop.UPower.Device" {
		return
	}

	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if v, ok := changed["Online"]; ok {
		if online, ok := v.Value().(bool); ok {
			kind := events.PowerDisconnected
			if online {
				kind = events.PowerConnected
			}
			slog.Debug("Line power changed", "online", online)
			publish(events.Event{Kind: kind})
		}
	}

	if v, ok := changed["WarningLevel"]; ok {
		if level, ok := v.Value().(uint32); ok && level >= upowerWarningLow {
			slog.Debug("Battery warning level raised", "level", level)
			publish(events.Event{Kind: events.BatteryLow})
		}
	}
}

func (u *UPowerSource) Close() error {
	return u.conn.Close()
}
