package perf

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type bench struct {
	accounts *accounts.Service
	journals *journals.Service
	tenant   uuid.UUID
	debit    int64
	credit   int64
}

func newBench(tb testing.TB) *bench {
	tb.Helper()
	store := memstore.New()
	audit := internalShared.NewMemoryAuditLog()
	b := &bench{
		accounts: accounts.NewService(store.Accounts(), audit, nil),
		journals: journals.NewService(store.Journals(), audit, nil),
		tenant:   uuid.New(),
	}
	ctx := context.Background()
	cash, err := b.accounts.Create(ctx, b.tenant, 1, accounts.CreateInput{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset})
	if err != nil {
		tb.Fatalf("create cash: %v", err)
	}
	sales, err := b.accounts.Create(ctx, b.tenant, 1, accounts.CreateInput{Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue})
	if err != nil {
		tb.Fatalf("create sales: %v", err)
	}
	b.debit, b.credit = cash.ID, sales.ID
	return b
}

func (b *bench) draft() journals.Draft {
	return journals.Draft{
		Date: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		Lines: []journals.LineInput{
			{AccountID: b.debit, Debit: shared.MustAmount("19.99")},
			{AccountID: b.credit, Credit: shared.MustAmount("19.99")},
		},
	}
}

func (b *bench) createAndPost(ctx context.Context) error {
	entry, err := b.journals.Create(ctx, b.tenant, 1, b.draft())
	if err != nil {
		return err
	}
	_, err = b.journals.Post(ctx, b.tenant, 1, entry.ID)
	return err
}

func BenchmarkCreateAndPost(bm *testing.B) {
	b := newBench(bm)
	ctx := context.Background()
	bm.ResetTimer()
	for i := 0; i < bm.N; i++ {
		if err := b.createAndPost(ctx); err != nil {
			bm.Fatalf("post: %v", err)
		}
	}
}

func BenchmarkCreateAndPostParallel(bm *testing.B) {
	b := newBench(bm)
	ctx := context.Background()
	bm.ResetTimer()
	bm.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := b.createAndPost(ctx); err != nil {
				bm.Errorf("post: %v", err)
				return
			}
		}
	})
}

func BenchmarkHTTPCreateJournal(bm *testing.B) {
	b := newBench(bm)
	h := accounting.NewHandler(nil, b.accounts, b.journals, internalShared.NewMemoryIdempotency(), nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := internalShared.ContextWithIdentity(req.Context(), internalShared.Identity{TenantID: b.tenant, ActorID: 1})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/v1", h.MountRoutes)

	body, err := json.Marshal(map[string]any{
		"date": "2025-02-14",
		"lines": []map[string]any{
			{"account_id": b.debit, "debit": "19.99"},
			{"account_id": b.credit, "credit": "19.99"},
		},
	})
	if err != nil {
		bm.Fatalf("marshal: %v", err)
	}
	bm.ResetTimer()
	for i := 0; i < bm.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/journals", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			bm.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
	}
}

// Posting on a warmed chain stays within budget.
func TestPostingLatencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("latency sampling skipped in short mode")
	}
	b := newBench(t)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		if err := b.createAndPost(ctx); err != nil {
			t.Fatalf("warm chain: %v", err)
		}
	}
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		start := time.Now()
		if err := b.createAndPost(ctx); err != nil {
			t.Fatalf("post: %v", err)
		}
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("posting latency regression: p95=%s", p95)
	}
}

func TestPercentile95(t *testing.T) {
	var samples []time.Duration
	for i := 1; i <= 20; i++ {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	if got := percentile95(samples); got != 19*time.Millisecond {
		t.Fatalf("p95 = %s", got)
	}
	if got := percentile95(nil); got != 0 {
		t.Fatalf("empty p95 = %s", got)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
