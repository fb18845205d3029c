package driver

// Notification represents a PostgreSQL NOTIFY notification.
type Notification struct {
	// Channel is the notification channel name.
	Channel string

	// PID is the process ID of the notifying server backend.
	PID uint32

	// Payload is the notification payload (may be empty).
	Payload string
}
