package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldTenantID = "tenant_id"
	FieldEntryID  = "entry_id"
	FieldPeriod   = "period"
	FieldLabel    = "label"
	FieldCategory = "category"
	FieldRows     = "rows"
	FieldTotal    = "total"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpStore    = "store"
	OpQuery    = "query"
	OpTotals   = "totals"
	OpEdit     = "edit"
	OpDelete   = "delete"
	OpExport   = "export"
	OpReport   = "report"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
