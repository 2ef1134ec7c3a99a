package domain

import "time"

// LogEntry is the delivery audit record for one notification key. A sent
// entry is never overwritten.
type LogEntry struct {
	ID              int64
	Key             Key
	DeliveryStatus  Status
	Attempts        int
	LastError       string
	TemplateKey     string
	TemplateVersion string
	CreatedAt       time.Time
}
