package models

import "time"

type NotificationKind string

const (
	NotifyScanned      NotificationKind = "scanned"
	NotifySent         NotificationKind = "sent"
	NotifyFailed       NotificationKind = "failed"
	NotifyError        NotificationKind = "error"
	NotifyScannerError NotificationKind = "scanner_error"
)

// Toast lifetimes. Short toasts confirm, long ones carry errors worth reading.
const (
	ToastShort = 2 * time.Second
	ToastLong  = 3500 * time.Millisecond
)

// Notification is a transient message shown to the operator.
type Notification struct {
	Kind NotificationKind
	Text string
	Long bool
}

// Duration returns how long the notification stays visible.
func (n Notification) Duration() time.Duration {
	if n.Long {
		return ToastLong
	}
	return ToastShort
}
