package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit records dispatched after ledger commits.
	QueueAudit = "audit"

	// TaskAuditRecord persists one audit record.
	TaskAuditRecord = "audit:record"
	// TaskLedgerIntegrity re-derives ledger running balances.
	TaskLedgerIntegrity = "ledger:integrity"
)

// LedgerIntegrityPayload scopes an integrity sweep. An empty tenant sweeps all tenants.
type LedgerIntegrityPayload struct {
	TenantID string `json:"tenant_id,omitempty"`
}

// NewAuditRecordTask constructs an Asynq task carrying the audit record.
func NewAuditRecordTask(log internalShared.AuditLog) (*asynq.Task, error) {
	data, err := json.Marshal(log)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.Queue(QueueAudit), asynq.MaxRetry(10)), nil
}

// NewLedgerIntegrityTask constructs an integrity sweep task. uuid.Nil means every tenant.
func NewLedgerIntegrityTask(tenantID uuid.UUID) (*asynq.Task, error) {
	payload := LedgerIntegrityPayload{}
	if tenantID != uuid.Nil {
		payload.TenantID = tenantID.String()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
