package sideband

import (
	"testing"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestParseIntent_WellFormed(t *testing.T) {
	msg := Message{
		Type: TypeIntent,
		Data: Data{
			IntentType:        "brainstorm",
			Entities:          []string{"pricing", "launch"},
			Confidence:        floatPtr(0.92),
			TranscriptSegment: "let's brainstorm the pricing launch",
		},
		Timestamp: 1700000000000,
	}

	intent := ParseIntent(msg)
	if intent == nil {
		t.Fatal("Expected parsed intent, got nil")
	}
	if intent.Category != "brainstorm" {
		t.Errorf("Expected category brainstorm, got %s", intent.Category)
	}
	if len(intent.Entities) != 2 || intent.Entities[0] != "pricing" || intent.Entities[1] != "launch" {
		t.Errorf("Expected entities [pricing launch], got %v", intent.Entities)
	}
	if intent.Confidence != 0.92 {
		t.Errorf("Expected confidence 0.92, got %f", intent.Confidence)
	}
	if intent.Transcript != "let's brainstorm the pricing launch" {
		t.Errorf("Unexpected transcript: %s", intent.Transcript)
	}
}

func TestParseIntent_WrongType(t *testing.T) {
	for _, typ := range []string{TypeContext, TypeControl, TypeTranscript} {
		msg := Message{
			Type: typ,
			Data: Data{IntentType: "brainstorm", Confidence: floatPtr(0.9)},
		}
		if intent := ParseIntent(msg); intent != nil {
			t.Errorf("Expected nil intent for type %s, got %+v", typ, intent)
		}
	}
}

func TestParseIntent_MissingCategory(t *testing.T) {
	msg := Message{
		Type: TypeIntent,
		Data: Data{Confidence: floatPtr(0.9)},
	}
	if intent := ParseIntent(msg); intent != nil {
		t.Errorf("Expected nil intent without category, got %+v", intent)
	}
}

func TestParseIntent_MissingConfidence(t *testing.T) {
	msg := Message{
		Type: TypeIntent,
		Data: Data{IntentType: "deploy"},
	}
	if intent := ParseIntent(msg); intent != nil {
		t.Errorf("Expected nil intent without confidence, got %+v", intent)
	}
}

func TestParseIntent_ZeroConfidenceIsPresent(t *testing.T) {
	msg := Message{
		Type: TypeIntent,
		Data: Data{IntentType: "question", Confidence: floatPtr(0)},
	}
	intent := ParseIntent(msg)
	if intent == nil {
		t.Fatal("Expected intent with explicit zero confidence, got nil")
	}
	if intent.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %f", intent.Confidence)
	}
}

func TestParseIntent_NilEntitiesBecomeEmpty(t *testing.T) {
	msg := Message{
		Type: TypeIntent,
		Data: Data{IntentType: "command", Confidence: floatPtr(0.7)},
	}
	intent := ParseIntent(msg)
	if intent == nil {
		t.Fatal("Expected parsed intent, got nil")
	}
	if intent.Entities == nil || len(intent.Entities) != 0 {
		t.Errorf("Expected empty entity slice, got %v", intent.Entities)
	}
}

func TestDecode_UnknownFieldsIgnored(t *testing.T) {
	raw := []byte(`{"type":"intent","data":{"intent_type":"deploy","confidence":0.8,"mystery":true},"timestamp":123,"extra":"x"}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Type != TypeIntent {
		t.Errorf("Expected type intent, got %s", msg.Type)
	}
	if msg.Data.IntentType != "deploy" {
		t.Errorf("Expected intent_type deploy, got %s", msg.Data.IntentType)
	}
	if msg.Timestamp != 123 {
		t.Errorf("Expected timestamp 123, got %d", msg.Timestamp)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestEncodeDecode_ControlPing(t *testing.T) {
	msg := Message{
		Type:      TypeControl,
		Data:      Data{Command: CommandPing},
		Timestamp: Now(),
	}
	raw, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Data.Command != CommandPing {
		t.Errorf("Expected command ping, got %s", got.Data.Command)
	}
}
