package amqp

import (
	"testing"
	"time"
)

func TestNewSeriesUpdatedMessage(t *testing.T) {
	msg := NewSeriesUpdatedMessage(120, 2025, 6)

	if msg.Records != 120 {
		t.Errorf("Records = %d, want 120", msg.Records)
	}
	if msg.ThroughYear != 2025 || msg.ThroughMonth != 6 {
		t.Errorf("Through = %d-%d, want 2025-6", msg.ThroughYear, msg.ThroughMonth)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestSeriesUpdatedMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	msg := &SeriesUpdatedMessage{
		Records:      36,
		ThroughYear:  2025,
		ThroughMonth: 6,
		Timestamp:    timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SeriesUpdatedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("SeriesUpdatedMessageFromJSON() error = %v", err)
	}

	if parsed.Records != msg.Records {
		t.Errorf("Parsed Records = %d, want %d", parsed.Records, msg.Records)
	}
	if parsed.ThroughYear != msg.ThroughYear || parsed.ThroughMonth != msg.ThroughMonth {
		t.Errorf("Parsed Through = %d-%d, want %d-%d",
			parsed.ThroughYear, parsed.ThroughMonth, msg.ThroughYear, msg.ThroughMonth)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestSeriesUpdatedMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"records": "not_a_number"}`)

	if _, err := SeriesUpdatedMessageFromJSON(invalidJSON); err == nil {
		t.Error("SeriesUpdatedMessageFromJSON() should fail with invalid JSON")
	}
}
