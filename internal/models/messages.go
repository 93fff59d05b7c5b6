package models

import (
	"encoding/json"
	"fmt"
)

// Websocket message types, discriminated by the "type" field.
const (
	MessageTypeTranscript  = "TRANSCRIPT"
	MessageTypeMeetingEnd  = "MEETING_END"
	MessageTypeLiveSummary = "LIVE_SUMMARY"
)

// IncomingMessage is a frame received from a meeting bot or viewer.
// Exactly one of the payload field groups is meaningful, selected by Type.
type IncomingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`

	// TRANSCRIPT payload
	Text        string  `json:"text,omitempty"`
	SpeakerName *string `json:"speakerName,omitempty"`
	IsFinal     bool    `json:"isFinal,omitempty"`

	// MEETING_END payload
	Reason string `json:"reason,omitempty"`
}

// DecodeIncoming parses a raw websocket frame into an IncomingMessage.
// Unknown or missing type values are an error; callers log and skip the
// frame rather than closing the connection.
func DecodeIncoming(data []byte) (IncomingMessage, error) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return IncomingMessage{}, fmt.Errorf("decode incoming frame: %w", err)
	}
	switch msg.Type {
	case MessageTypeTranscript, MessageTypeMeetingEnd:
		return msg, nil
	default:
		return IncomingMessage{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// LiveSummary is the outbound frame broadcast to all viewers of a
// session whenever a new summary is generated.
type LiveSummary struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Summary   string `json:"summary"`
}

// MeetingEnd is the outbound frame notifying viewers that the meeting
// ended and the connection is about to close.
type MeetingEnd struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// NewMeetingEnd builds a MEETING_END frame for a session.
func NewMeetingEnd(sessionID, reason string) MeetingEnd {
	return MeetingEnd{
		Type:      MessageTypeMeetingEnd,
		SessionID: sessionID,
		Reason:    reason,
	}
}

// NewLiveSummary builds a LIVE_SUMMARY frame for a session.
func NewLiveSummary(sessionID, summary string) LiveSummary {
	return LiveSummary{
		Type:      MessageTypeLiveSummary,
		SessionID: sessionID,
		Summary:   summary,
	}
}
