package types

import "time"

// NotificationKind names an outbound notification toward UI overlays
type NotificationKind string

const (
	NotifyAppStarting        NotificationKind = "app-starting"
	NotifyAppFocusChanged    NotificationKind = "app-focus-changed"
	NotifyAppCrashed         NotificationKind = "app-crashed"
	NotifyAppEvicted         NotificationKind = "app-evicted"
	NotifyAppVisibility      NotificationKind = "app-visibility"
	NotifySwitcherVisibility NotificationKind = "switcher-visibility-changed"
	NotifyLauncherVisibility NotificationKind = "launcher-visibility-changed"
	NotifyBackKeyAvailable   NotificationKind = "back-key-available"
	NotifyPressureChanged    NotificationKind = "pressure-changed"
)

// Notification is one outbound message. Payload fields are optional and
// depend on the kind.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Timestamp time.Time        `json:"timestamp"`
	App       string           `json:"app,omitempty"`
	PID       int              `json:"pid,omitempty"`
	Visible   *bool            `json:"visible,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Bool returns a pointer to b for optional notification fields
func Bool(b bool) *bool {
	return &b
}
