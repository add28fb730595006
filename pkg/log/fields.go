package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID    = "user_id"
	FieldUsername  = "username"
	FieldSessionID = "session_id"

	// Protocol
	FieldOperation = "operation"
	FieldModel     = "model"
	FieldRecordID  = "record_id"
	FieldCount     = "count"
	FieldErrorKind = "error_kind"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
