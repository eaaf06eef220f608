package domain

import "time"

// Message is a single post read from the watched channel.
type Message struct {
	ID   int64     `json:"id"`
	Text string    `json:"text"`
	Date time.Time `json:"date,omitempty"`
}

// Peer identifies the resolved channel for history calls. It is resolved once
// at startup and reused for the lifetime of the process.
type Peer struct {
	ID         int64
	AccessHash int64
	Title      string
}

// MaxID returns the highest message id in the batch, or 0 for an empty batch.
func MaxID(messages []Message) int64 {
	var maxID int64
	for _, m := range messages {
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	return maxID
}

// AlertEvent describes one notification decision, mirrored to the alert topic.
type AlertEvent struct {
	Kind      TemplateKind   `json:"kind"`
	Category  DangerCategory `json:"category"`
	Watermark int64          `json:"watermark"`
	Delivered bool           `json:"delivered"`
	SentAt    time.Time      `json:"sent_at"`
}

// ConnectionState is the lifecycle of the downstream socket.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
