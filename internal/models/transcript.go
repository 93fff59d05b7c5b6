package models

// TranscriptPartial is the event published for an interim transcript
// result. Interim results are never persisted, only relayed.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	TenantID  string `json:"tenantId"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal is the event published for a finalized transcript
// segment, alongside its persistence in the transcript log.
type TranscriptFinal struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	TenantID    string  `json:"tenantId"`
	Timestamp   int64   `json:"timestamp"`
	Text        string  `json:"text"`
	SpeakerName string  `json:"speakerName,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// SessionEndedEvent is the event published when a meeting call terminates
// and the session is torn down.
type SessionEndedEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	TenantID  string `json:"tenantId"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason"`
}
