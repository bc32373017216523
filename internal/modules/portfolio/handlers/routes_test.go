package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/aristath/autopilot/internal/modules/portfolio"
	"github.com/aristath/autopilot/internal/scheduler"
	testingpkg "github.com/aristath/autopilot/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mu   sync.Mutex
	err  error
	runs []string
}

func (m *mockRunner) RunOne(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, id)
	return m.err
}

func newTestRouter(t *testing.T, runner Runner) (*chi.Mux, *portfolio.Repository) {
	t.Helper()
	db := testingpkg.NewMemoryConn(t)

	repo := portfolio.NewRepository(db, zerolog.Nop())
	router := chi.NewRouter()
	require.NotPanics(t, func() {
		NewHandler(repo, runner, zerolog.Nop()).RegisterRoutes(router)
	})
	return router, repo
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGet(t *testing.T) {
	router, _ := newTestRouter(t, &mockRunner{})

	rec := do(router, http.MethodPost, "/portfolios/", `{
		"owner_id": "user-1",
		"strategy_id": "s-1",
		"provider": "broker",
		"cadence": "weekly",
		"initial_investment": 1000,
		"target_positions": [{"symbol": "AAPL", "target_weight": 0.6}, {"symbol": "MSFT", "target_weight": 0.4}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Version)

	rec = do(router, http.MethodGet, "/portfolios/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, domain.CadenceWeekly, fetched.Cadence)
	assert.Len(t, fetched.TargetPositions, 2)
}

func TestCreateCopyTrade(t *testing.T) {
	router, repo := newTestRouter(t, &mockRunner{})

	rec := do(router, http.MethodPost, "/portfolios/", `{
		"owner_id": "user-1",
		"provider": "copytrade",
		"initial_investment": 100,
		"copy_trade": {"counterparty_address": "0xabc", "address": "0xme", "api_key": "key-123", "secret": "c2VjcmV0", "passphrase": "pass-456"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, secret := range []string{"key-123", "c2VjcmV0", "pass-456"} {
		assert.NotContains(t, rec.Body.String(), secret)
	}

	var created domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(router, http.MethodGet, "/portfolios/?owner_id=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0xabc")
	assert.NotContains(t, rec.Body.String(), "key-123")

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Cash)
	require.NotNil(t, stored.Replay)
	assert.True(t, stored.Replay.Credentials.Complete())
	assert.Equal(t, "key-123", stored.Replay.Credentials.APIKey)
	assert.True(t, stored.Replay.Bootstrapping())
}

func TestCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t, &mockRunner{})

	cases := map[string]string{
		"malformed":        `{`,
		"unknown provider": `{"owner_id": "u", "provider": "futures"}`,
		"missing owner":    `{"provider": "broker"}`,
		"negative amount":  `{"owner_id": "u", "provider": "broker", "initial_investment": -5}`,
		"copytrade target": `{"owner_id": "u", "provider": "copytrade"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/portfolios/", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListAndDelete(t *testing.T) {
	router, repo := newTestRouter(t, &mockRunner{})
	ctx := context.Background()

	for _, owner := range []string{"user-1", "user-1", "user-2"} {
		require.NoError(t, repo.Create(ctx, &domain.Portfolio{OwnerID: owner, Provider: domain.ProviderBroker, Cadence: domain.CadenceDaily}))
	}

	rec := do(router, http.MethodGet, "/portfolios/?owner_id=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []domain.Portfolio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)

	rec = do(router, http.MethodDelete, "/portfolios/"+listed[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(router, http.MethodDelete, "/portfolios/"+listed[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/portfolios/"+listed[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/portfolios/?owner_id=nobody", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReconcileStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, http.StatusOK},
		{scheduler.ErrSweepInProgress, http.StatusConflict},
		{fmt.Errorf("%w: p-1", domain.ErrPortfolioNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: no keys", domain.ErrConfiguration), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: clock", domain.ErrVenueUnavailable), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		runner := &mockRunner{err: tc.err}
		router, _ := newTestRouter(t, runner)

		rec := do(router, http.MethodPost, "/portfolios/p-1/reconcile", "")
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
		assert.Equal(t, []string{"p-1"}, runner.runs)
	}
}
