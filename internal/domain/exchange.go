package domain

import "time"

// Exchange is a write-only journal record of a single relay call.
type Exchange struct {
	RequestID    string
	Provider     string
	Model        string
	Turns        int
	PromptTokens int
	Reply        string
	Status       string
	LatencyMs    int64
	CreatedAt    time.Time
	TTL          int64
}
