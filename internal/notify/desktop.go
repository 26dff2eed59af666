package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = "/org/freedesktop/Notifications"
	notifyMethod         = notificationsService + ".Notify"
)

// Urgency levels defined by org.freedesktop.Notifications.
const (
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DesktopNotifier sends notifications to the desktop's notification daemon over the session bus.
type DesktopNotifier struct {
	conn    *dbus.Conn
	obj     caller
	appName string
}

// NewDesktopNotifier connects to the session bus.
func NewDesktopNotifier(appName string) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DesktopNotifier{
		conn:    conn,
		obj:     conn.Object(notificationsService, notificationsPath),
		appName: appName,
	}, nil
}

func (d *DesktopNotifier) Notify(ctx context.Context, n Notification) error {
	urgency := urgencyNormal
	if n.Urgent {
		urgency = urgencyCritical
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency),
	}
	call := d.obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName,
		uint32(0), // replaces_id
		"",        // app_icon
		n.Title,
		n.Body,
		[]string{}, // actions
		hints,
		int32(n.Timeout.Milliseconds()),
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// Close releases the bus connection.
func (d *DesktopNotifier) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
