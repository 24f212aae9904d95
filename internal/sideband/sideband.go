// Package sideband defines the JSON messages multiplexed alongside binary
// audio frames on a voice connection.
package sideband

import (
	"encoding/json"
	"time"
)

// Message types carried on the text side of a voice connection.
const (
	TypeIntent     = "intent"
	TypeContext    = "context"
	TypeControl    = "control"
	TypeTranscript = "transcript"
)

// Control commands understood by the gateway.
const (
	CommandStart = "start"
	CommandStop  = "stop"
	CommandPing  = "ping"
)

// Message is a sideband frame. Unknown JSON fields are ignored on decode;
// absent optional fields stay at their zero value (Confidence uses a pointer
// so "absent" and "0.0" remain distinguishable).
type Message struct {
	Type      string `json:"type"`
	Data      Data   `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Data is the closed set of optional payload fields a sideband frame may carry.
type Data struct {
	IntentType        string         `json:"intent_type,omitempty"`
	Entities          []string       `json:"entities,omitempty"`
	Confidence        *float64       `json:"confidence,omitempty"`
	TranscriptSegment string         `json:"transcript_segment,omitempty"`
	ContextData       map[string]any `json:"context_data,omitempty"`
	Command           string         `json:"command,omitempty"`
}

// Decode parses a text frame into a Message.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Encode serializes a Message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Now returns the current time as a sideband timestamp (Unix milliseconds).
func Now() int64 {
	return time.Now().UnixMilli()
}

// ParsedIntent is a structured intent extracted from an intent-typed Message.
type ParsedIntent struct {
	Category   string
	Entities   []string
	Confidence float64
	Transcript string
}

// ParseIntent extracts a structured intent from a sideband message. It returns
// nil for anything that is not a well-formed intent: wrong message type,
// missing category, or missing confidence. Most sideband traffic is not an
// intent, so nil is the common case, not an error.
func ParseIntent(msg Message) *ParsedIntent {
	if msg.Type != TypeIntent {
		return nil
	}
	if msg.Data.IntentType == "" || msg.Data.Confidence == nil {
		return nil
	}

	entities := msg.Data.Entities
	if entities == nil {
		entities = []string{}
	}

	return &ParsedIntent{
		Category:   msg.Data.IntentType,
		Entities:   entities,
		Confidence: *msg.Data.Confidence,
		Transcript: msg.Data.TranscriptSegment,
	}
}
