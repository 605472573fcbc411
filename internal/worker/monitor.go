package worker

import (
	"fmt"
	"log/slog"
	"sync"

	"riel/internal/amqp"
)

// ReportMonitor consumes report-ready messages and keeps the latest
// notification per tenant. It is the downstream half of the report
// pipeline: the scheduled worker publishes, the monitor logs what
// arrived and when.
type ReportMonitor struct {
	mu     sync.Mutex
	latest map[string]*amqp.ReportReadyMessage
}

func NewReportMonitor() *ReportMonitor {
	return &ReportMonitor{latest: make(map[string]*amqp.ReportReadyMessage)}
}

// HandleReportReady records one notification. Malformed messages fail
// so the consumer can reject them instead of acking silently.
func (m *ReportMonitor) HandleReportReady(msg *amqp.ReportReadyMessage) error {
	if msg == nil {
		return fmt.Errorf("nil report message")
	}
	if msg.TenantID == "" || msg.Period == "" {
		return fmt.Errorf("report message missing tenant or period: %+v", msg)
	}
	if msg.Rows < 0 {
		return fmt.Errorf("report message has negative row count: %d", msg.Rows)
	}

	m.mu.Lock()
	m.latest[msg.TenantID] = msg
	m.mu.Unlock()

	slog.Info("Report ready",
		"tenant_id", msg.TenantID,
		"period", msg.Period,
		"label", msg.Label,
		"rows", msg.Rows,
		"total", msg.Total,
		"file", msg.Filename)
	return nil
}

// Latest returns the most recent notification seen for a tenant.
func (m *ReportMonitor) Latest(tenantID string) (*amqp.ReportReadyMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.latest[tenantID]
	return msg, ok
}
