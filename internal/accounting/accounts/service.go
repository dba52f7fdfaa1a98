package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records registry events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service is the account registry: it owns chart of accounts invariants.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the registry.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and inserts a new account.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, actorID int64, in CreateInput) (Account, error) {
	if tenantID == uuid.Nil {
		return Account{}, shared.Validationf("accounting: tenant required")
	}
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return Account{}, shared.Validationf("accounting: account code required")
	}
	if in.Name == "" {
		return Account{}, shared.Validationf("accounting: account name required")
	}
	if !in.Type.Valid() {
		return Account{}, shared.Validationf("accounting: invalid account type %q", in.Type)
	}
	if in.NormalBalance == "" {
		in.NormalBalance = in.Type.NormalBalance()
	}
	if !in.NormalBalance.Valid() {
		return Account{}, shared.Validationf("accounting: invalid normal balance %q", in.NormalBalance)
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.FindByCode(ctx, tenantID, in.Code); err == nil {
			return shared.ErrDuplicateCode
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return err
		}
		if in.ParentID != nil {
			if _, err := tx.GetAccount(ctx, tenantID, *in.ParentID); err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return shared.Validationf("accounting: parent account %d not found", *in.ParentID)
				}
				return err
			}
		}
		inserted, err := tx.InsertAccount(ctx, Account{
			TenantID:      tenantID,
			Code:          in.Code,
			Name:          in.Name,
			Type:          in.Type,
			Category:      strings.TrimSpace(in.Category),
			NormalBalance: in.NormalBalance,
			ParentID:      in.ParentID,
			IsActive:      true,
			IsSystem:      in.IsSystem,
		})
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		TenantID: tenantID,
		Action:   "account.create",
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", created.ID),
		Meta:     map[string]any{"code": created.Code, "type": string(created.Type)},
		At:       s.now(),
	})
	return created, nil
}

// Update applies changes to code, name, category, parent or active flag.
// Type and normal balance are fixed at creation.
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, actorID int64, id int64, in UpdateInput) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Concurrent re-parenting could otherwise close a cycle the ancestor walk cannot see.
		if in.ParentID != nil && !in.ClearParent {
			if err := tx.LockHierarchy(ctx, tenantID); err != nil {
				return err
			}
		}
		current, err := tx.GetAccountForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if in.Type != nil && *in.Type != current.Type {
			return shared.Validationf("accounting: account type is immutable")
		}
		if in.NormalBalance != nil && *in.NormalBalance != current.NormalBalance {
			return shared.Validationf("accounting: normal balance is immutable")
		}
		next := current
		if in.Code != nil {
			code := strings.TrimSpace(*in.Code)
			if code == "" {
				return shared.Validationf("accounting: account code required")
			}
			if code != current.Code {
				if _, err := tx.FindByCode(ctx, tenantID, code); err == nil {
					return shared.ErrDuplicateCode
				} else if !errors.Is(err, shared.ErrAccountNotFound) {
					return err
				}
			}
			next.Code = code
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return shared.Validationf("accounting: account name required")
			}
			next.Name = name
		}
		if in.Category != nil {
			next.Category = strings.TrimSpace(*in.Category)
		}
		if in.IsActive != nil {
			next.IsActive = *in.IsActive
		}
		switch {
		case in.ClearParent:
			next.ParentID = nil
		case in.ParentID != nil && !sameParent(current.ParentID, in.ParentID):
			if err := s.checkParent(ctx, tx, tenantID, id, *in.ParentID); err != nil {
				return err
			}
			parent := *in.ParentID
			next.ParentID = &parent
		}
		saved, err := tx.UpdateAccount(ctx, next)
		if err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		TenantID: tenantID,
		Action:   "account.update",
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", updated.ID),
		Meta:     map[string]any{"code": updated.Code},
		At:       s.now(),
	})
	return updated, nil
}

// checkParent rejects missing parents and any parent that would make id its own ancestor.
func (s *Service) checkParent(ctx context.Context, tx TxRepository, tenantID uuid.UUID, id, parentID int64) error {
	if parentID == id {
		return shared.Validationf("accounting: account cannot be its own parent")
	}
	seen := map[int64]bool{id: true}
	cursor := parentID
	for {
		if seen[cursor] {
			return shared.Validationf("accounting: account %d cannot be its own ancestor", id)
		}
		seen[cursor] = true
		ancestor, err := tx.GetAccount(ctx, tenantID, cursor)
		if err != nil {
			if errors.Is(err, shared.ErrAccountNotFound) {
				return shared.Validationf("accounting: parent account %d not found", cursor)
			}
			return err
		}
		if ancestor.ParentID == nil {
			return nil
		}
		cursor = *ancestor.ParentID
	}
}

// Delete removes an account that has no children, no references and is not a system account.
func (s *Service) Delete(ctx context.Context, tenantID uuid.UUID, actorID int64, id int64) error {
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetAccountForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if acc.IsSystem {
			return shared.Conflictf("accounting: system account %s cannot be deleted", acc.Code)
		}
		usage, err := tx.Usage(ctx, tenantID, id)
		if err != nil {
			return err
		}
		switch {
		case usage.Children > 0:
			return shared.Conflictf("accounting: account %s has %d child accounts", acc.Code, usage.Children)
		case usage.JournalLines > 0:
			return shared.Conflictf("accounting: account %s is referenced by %d journal lines", acc.Code, usage.JournalLines)
		case usage.LedgerEntries > 0:
			return shared.Conflictf("accounting: account %s is referenced by %d ledger entries", acc.Code, usage.LedgerEntries)
		}
		code = acc.Code
		return tx.DeleteAccount(ctx, tenantID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		TenantID: tenantID,
		Action:   "account.delete",
		Entity:   "account",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"code": code},
		At:       s.now(),
	})
	return nil
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, tenantID, id)
}

// List returns the tenant's accounts ordered by code.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return s.repo.ListAccounts(ctx, tenantID)
}

// Hierarchy returns the chart of accounts as a forest.
func (s *Service) Hierarchy(ctx context.Context, tenantID uuid.UUID) ([]*Node, error) {
	accounts, err := s.repo.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(accounts), nil
}

// Balance reports opening, movement and closing balances for the range.
func (s *Service) Balance(ctx context.Context, tenantID uuid.UUID, accountID int64, rng shared.DateRange) (Balance, error) {
	if err := rng.Validate(); err != nil {
		return Balance{}, err
	}
	acc, err := s.repo.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return Balance{}, err
	}
	totals, err := s.repo.LedgerTotals(ctx, tenantID, accountID, rng)
	if err != nil {
		return Balance{}, err
	}
	opening := acc.NormalBalance.Delta(totals.BeforeDebit, totals.BeforeCredit)
	return Balance{
		AccountID:     acc.ID,
		Code:          acc.Code,
		NormalBalance: acc.NormalBalance,
		Range:         rng,
		Opening:       opening,
		Debit:         totals.Debit,
		Credit:        totals.Credit,
		Closing:       opening + acc.NormalBalance.Delta(totals.Debit, totals.Credit),
		Current:       totals.Current,
		Entries:       totals.Entries,
	}, nil
}

// SeedDefaults inserts DefaultChart. Rows whose code already exists are skipped,
// so a partially seeded tenant can be re-seeded safely.
func (s *Service) SeedDefaults(ctx context.Context, tenantID uuid.UUID, actorID int64) (SeedResult, error) {
	result := SeedResult{Created: []string{}, Skipped: []string{}}
	ids := make(map[string]int64, len(DefaultChart))
	for _, row := range DefaultChart {
		var parentID *int64
		if row.ParentCode != "" {
			pid, err := s.resolveCode(ctx, tenantID, row.ParentCode, ids)
			if err != nil {
				return result, err
			}
			parentID = &pid
		}
		acc, err := s.Create(ctx, tenantID, actorID, CreateInput{
			Code:     row.Code,
			Name:     row.Name,
			Type:     row.Type,
			Category: row.Category,
			ParentID: parentID,
			IsSystem: true,
		})
		if err != nil {
			if errors.Is(err, shared.ErrDuplicateCode) {
				result.Skipped = append(result.Skipped, row.Code)
				continue
			}
			return result, err
		}
		ids[row.Code] = acc.ID
		result.Created = append(result.Created, row.Code)
	}
	if len(result.Created) > 0 {
		s.record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			TenantID: tenantID,
			Action:   "account.seed",
			Entity:   "chart_of_accounts",
			EntityID: tenantID.String(),
			Meta:     map[string]any{"created": len(result.Created), "skipped": len(result.Skipped)},
			At:       s.now(),
		})
	}
	s.logger.Info("seeded chart of accounts",
		slog.String("tenant", tenantID.String()),
		slog.Int("created", len(result.Created)),
		slog.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *Service) resolveCode(ctx context.Context, tenantID uuid.UUID, code string, ids map[string]int64) (int64, error) {
	if id, ok := ids[code]; ok {
		return id, nil
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.FindByCode(ctx, tenantID, code)
		if err != nil {
			return err
		}
		id = acc.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	ids[code] = id
	return id, nil
}

func (s *Service) record(ctx context.Context, log internalShared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
