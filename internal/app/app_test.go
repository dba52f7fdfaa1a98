package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func memoryConfig() *Config {
	return &Config{
		AppEnv:               "test",
		StoreDriver:          StoreDriverMemory,
		AuditMode:            AuditModeSync,
		LedgerPostMaxRetries: 3,
		APIRateLimit:         0,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("API_RATE_LIMIT", "10")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, AuditModeSync, cfg.AuditMode)
	assert.Equal(t, 3, cfg.LedgerPostMaxRetries)
	assert.Equal(t, 10, cfg.APIRateLimit)
	assert.Equal(t, "0 3 * * *", cfg.IntegrityCron)
	assert.Equal(t, int32(10), cfg.PGMaxConns)
	assert.Equal(t, 5*time.Second, cfg.PGLockTimeout)
	assert.Len(t, cfg.PoolOptions("test"), 3)
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":  func(c *Config) { c.StoreDriver = "sqlite" },
		"audit":   func(c *Config) { c.AuditMode = "maybe" },
		"retries": func(c *Config) { c.LedgerPostMaxRetries = -1 },
		"lock":    func(c *Config) { c.PGLockTimeout = -time.Second },
		"dsn":     func(c *Config) { c.StoreDriver = StoreDriverPostgres; c.PGDSN = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := memoryConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, memoryConfig().Validate())
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func newTestRouter(t *testing.T, cfg *Config, checks map[string]HealthCheck) (http.Handler, *Ledger) {
	t.Helper()
	led, err := NewLedger(cfg, LedgerDeps{})
	require.NoError(t, err)
	return NewRouter(RouterParams{
		Config:            cfg,
		AccountingHandler: led.Handler(cfg, nil),
		JobHandler:        jobs.NewHandler(nil, nil),
		Metrics:           observability.NewMetrics(),
		Checks:            checks,
	}), led
}

func call(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesLedgerForTenant(t *testing.T) {
	h, led := newTestRouter(t, memoryConfig(), nil)
	tenant := uuid.New()
	headers := map[string]string{HeaderTenantID: tenant.String(), HeaderActorID: "9"}

	rec := call(h, http.MethodPost, "/api/v1/accounts", `{"code":"1000","name":"Cash","type":"ASSET"}`, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	list, err := led.Accounts.List(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, list, 1)

	other := call(h, http.MethodGet, "/api/v1/accounts", "", map[string]string{HeaderTenantID: uuid.NewString()})
	require.Equal(t, http.StatusOK, other.Code)
	assert.JSONEq(t, `{"accounts":[]}`, other.Body.String())
}

func TestIdentityHeaders(t *testing.T) {
	h, _ := newTestRouter(t, memoryConfig(), nil)

	rec := call(h, http.MethodGet, "/api/v1/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(h, http.MethodGet, "/api/v1/accounts", "", map[string]string{HeaderTenantID: "acme"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(h, http.MethodGet, "/api/v1/accounts", "", map[string]string{HeaderTenantID: uuid.NewString(), HeaderActorID: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "actor id invalid")
}

func TestRateLimitPerTenant(t *testing.T) {
	cfg := memoryConfig()
	cfg.APIRateLimit = 1
	h, _ := newTestRouter(t, cfg, nil)
	a := map[string]string{HeaderTenantID: uuid.NewString()}
	b := map[string]string{HeaderTenantID: uuid.NewString()}

	assert.Equal(t, http.StatusCreated, call(h, http.MethodPost, "/api/v1/accounts", `{"code":"1","name":"A","type":"ASSET"}`, a).Code)
	assert.Equal(t, http.StatusTooManyRequests, call(h, http.MethodPost, "/api/v1/accounts", `{"code":"2","name":"B","type":"ASSET"}`, a).Code)
	assert.Equal(t, http.StatusCreated, call(h, http.MethodPost, "/api/v1/accounts", `{"code":"1","name":"A","type":"ASSET"}`, b).Code)
	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/api/v1/accounts", "", a).Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	down := errors.New("down")
	h, _ := newTestRouter(t, memoryConfig(), map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return down },
	})

	rec := call(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"down"}}`, rec.Body.String())

	rec = call(h, http.MethodGet, "/jobs/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "odyssey_http_requests_total")
}

type captureEnqueuer struct{ tasks []*asynq.Task }

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestNewLedgerAuditModes(t *testing.T) {
	cfg := memoryConfig()
	cfg.AuditMode = AuditModeAsync
	_, err := NewLedger(cfg, LedgerDeps{})
	require.Error(t, err)

	enq := &captureEnqueuer{}
	led, err := NewLedger(cfg, LedgerDeps{Enqueuer: enq})
	require.NoError(t, err)
	_, err = led.Accounts.Create(context.Background(), uuid.New(), 1, accountInput("1000"))
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, jobs.TaskAuditRecord, enq.tasks[0].Type())

	cfg.AuditMode = AuditModeOff
	led, err = NewLedger(cfg, LedgerDeps{})
	require.NoError(t, err)
	assert.Nil(t, led.Audit)

	cfg.StoreDriver = StoreDriverPostgres
	_, err = NewLedger(cfg, LedgerDeps{})
	assert.Error(t, err)
}

func accountInput(code string) accounts.CreateInput {
	return accounts.CreateInput{Code: code, Name: "Cash", Type: accounts.AccountTypeAsset}
}
