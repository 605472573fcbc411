package amqp

import (
	"encoding/json"
	"time"
)

// ReportReadyMessage announces that a rollup report was written to the
// export directory. Consumers fetch the file themselves; the message
// carries only the summary and the path.
type ReportReadyMessage struct {
	TenantID  string    `json:"tenant_id"`
	Period    string    `json:"period"`
	Label     string    `json:"label"`
	Rows      int       `json:"rows"`
	Total     string    `json:"total"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportReadyMessage(tenantID, period, label string, rows int, total, filename string) *ReportReadyMessage {
	return &ReportReadyMessage{
		TenantID:  tenantID,
		Period:    period,
		Label:     label,
		Rows:      rows,
		Total:     total,
		Filename:  filename,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportReadyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func ReportReadyMessageFromJSON(data []byte) (*ReportReadyMessage, error) {
	var msg ReportReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
