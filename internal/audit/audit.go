package audit

import (
	"context"

	"github.com/edi-spaghetti/cs50w-network/pkg/log"
)

// Audit actions for the network API.
const (
	ActionCreate    = "record.create"
	ActionUpdate    = "record.update"
	ActionForbidden = "access.forbidden"
	ActionCSRFIssue = "session.csrf_issue"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogRecord emits an audit log naming the record an action touched.
func LogRecord(ctx context.Context, action string, userID int64, model string, recordID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(log.FieldModel, model).
		Int64(log.FieldRecordID, recordID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Warn().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
