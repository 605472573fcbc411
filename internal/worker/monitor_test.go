package worker

import (
	"testing"

	"riel/internal/amqp"
)

func TestReportMonitorHandleReportReady(t *testing.T) {
	m := NewReportMonitor()

	msg := amqp.NewReportReadyMessage("alice", "daily", "2025-03-10", 2, "500", "alice_daily_2025-03-10.csv")
	if err := m.HandleReportReady(msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, ok := m.Latest("alice")
	if !ok {
		t.Fatal("no notification recorded for alice")
	}
	if got.Label != "2025-03-10" || got.Rows != 2 || got.Total != "500" {
		t.Fatalf("recorded message = %+v", got)
	}

	// A newer message for the same tenant replaces the old one.
	newer := amqp.NewReportReadyMessage("alice", "weekly", "2025-03-03_to_2025-03-09", 5, "12,000", "alice_weekly.csv")
	if err := m.HandleReportReady(newer); err != nil {
		t.Fatalf("handle newer: %v", err)
	}
	got, _ = m.Latest("alice")
	if got.Period != "weekly" {
		t.Fatalf("latest period = %q, want weekly", got.Period)
	}

	if _, ok := m.Latest("bob"); ok {
		t.Fatal("unexpected notification for bob")
	}
}

func TestReportMonitorRejectsMalformed(t *testing.T) {
	m := NewReportMonitor()

	cases := []*amqp.ReportReadyMessage{
		nil,
		{Period: "daily", Label: "2025-03-10"},         // no tenant
		{TenantID: "alice", Label: "2025-03-10"},       // no period
		{TenantID: "alice", Period: "daily", Rows: -1}, // negative rows
	}
	for i, msg := range cases {
		if err := m.HandleReportReady(msg); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, msg)
		}
	}
	if _, ok := m.Latest("alice"); ok {
		t.Fatal("malformed message was recorded")
	}
}
