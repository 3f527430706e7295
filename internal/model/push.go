package model

import "time"

// Notification type constants
const (
	NotifTypeChoreDue    = "chore_due"
	NotifTypeTaskDue     = "task_due"
	NotifTypeReminderDue = "reminder_due"
)

// NotificationTypes lists every preference key in display order.
var NotificationTypes = []string{NotifTypeChoreDue, NotifTypeTaskDue, NotifTypeReminderDue}

type PushSubscription struct {
	ID         string    `json:"id"`
	SpaceID    string    `json:"space_id"`
	Member     string    `json:"member"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationPreference struct {
	SpaceID          string `json:"space_id"`
	Member           string `json:"member"`
	NotificationType string `json:"notification_type"`
	Enabled          bool   `json:"enabled"`
}
