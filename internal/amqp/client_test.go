package amqp

import (
	"testing"
	"time"
)

func TestNewReportReadyMessage(t *testing.T) {
	msg := NewReportReadyMessage("alice", "daily", "2025-03-10", 4, "2,000", "alice_daily_2025-03-10.csv")

	if msg.TenantID != "alice" {
		t.Errorf("TenantID = %v, want alice", msg.TenantID)
	}
	if msg.Period != "daily" || msg.Label != "2025-03-10" {
		t.Errorf("period fields = %v %v", msg.Period, msg.Label)
	}
	if msg.Rows != 4 || msg.Total != "2,000" {
		t.Errorf("summary fields = %v %v", msg.Rows, msg.Total)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestReportReadyMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 3, 10, 23, 55, 0, 0, time.UTC)
	msg := &ReportReadyMessage{
		TenantID:  "alice",
		Period:    "weekly",
		Label:     "2025-03-03_to_2025-03-09",
		Rows:      12,
		Total:     "-4,500",
		Filename:  "alice_weekly_2025-03-03_to_2025-03-09.csv",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := ReportReadyMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("ReportReadyMessageFromJSON() error = %v", err)
	}

	if parsedMsg.TenantID != msg.TenantID || parsedMsg.Period != msg.Period {
		t.Errorf("parsed = %+v, want %+v", parsedMsg, msg)
	}
	if parsedMsg.Rows != msg.Rows || parsedMsg.Total != msg.Total || parsedMsg.Filename != msg.Filename {
		t.Errorf("parsed = %+v, want %+v", parsedMsg, msg)
	}
	if !parsedMsg.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsedMsg.Timestamp, msg.Timestamp)
	}
}

func TestReportReadyMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"rows": "not_a_number"}`)

	_, err := ReportReadyMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("ReportReadyMessageFromJSON() should fail with invalid JSON")
	}
}
