package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// LedgerIntegrityLockKey builds the redis key guarding a tenant's integrity sweep.
func LedgerIntegrityLockKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("ledger:integrity:%s:lock", tenantID)
}
