package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mmms/internal/auth"
	"mmms/internal/core"
	"mmms/internal/export"
	"mmms/internal/log"
	"mmms/internal/services"
	"mmms/internal/sheets/memory"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

var testNow = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t     *testing.T
	srv   *Server
	token string
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()
	logger := log.New(log.Config{Handler: log.NewHandler(io.Discard, "error", "text")})
	cfg := Config{Addr: ":0", FrontendURL: "http://localhost:3000", RateLimitPerMinute: 1000}
	for _, m := range mutate {
		m(&cfg)
	}
	authSvc := auth.NewService(auth.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3001/api/auth/google/callback",
		JWTSecret:    testSecret,
		Logger:       logger,
	})
	srv := NewServer(cfg, Deps{
		Provider: memory.New(),
		Auth:     authSvc,
		Services: services.Deps{Clock: func() time.Time { return testNow }},
		Logger:   logger,
	})
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	token, _, err := authSvc.Issue(core.User{Email: "owner@example.com", Name: "Owner", AccessToken: "ya29"}, time.Time{})
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, token: token}
}

// do sends an authenticated request and decodes a JSON response into out
// when out is non-nil.
func (ts *testServer) do(method, path string, body any, out any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(ts.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	if out != nil {
		require.NoError(ts.t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr
}

func errorOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestAuthStatusCodes(t *testing.T) {
	ts := newTestServer(t)

	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Access token required", errorOf(t, rr))

	ts.token = "not-a-jwt"
	rr = ts.do(http.MethodGet, "/api/transactions", nil, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "Invalid or expired token", errorOf(t, rr))
}

func TestMeHidesAccessToken(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodGet, "/api/auth/me", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "owner@example.com")
	require.NotContains(t, rr.Body.String(), "ya29")
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	var created core.Transaction
	rr := ts.do(http.MethodPost, "/api/transactions", map[string]any{
		"date":        "2025-10-03",
		"description": "Lunch",
		"amount":      12.5,
		"currency":    "USD",
		"category":    "food",
		"type":        "expense",
		"tags":        []string{"work"},
	}, &created)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "food", created.Category.ID)
	require.True(t, strings.HasPrefix(created.ID, "trans"))

	ts.do(http.MethodPost, "/api/transactions", map[string]any{
		"date": "2025-10-05", "description": "Salary", "amount": 1000, "currency": "USD", "type": "income",
	}, nil)
	ts.do(http.MethodPost, "/api/transactions", map[string]any{
		"date": "2025-09-20", "description": "Old", "amount": 41000, "currency": "KHR", "type": "expense",
	}, nil)

	var list []core.Transaction
	rr = ts.do(http.MethodGet, "/api/transactions?month=2025-10", nil, &list)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, list, 2)

	rr = ts.do(http.MethodGet, "/api/transactions?month=2025-10&type=expense", nil, &list)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, list, 1)

	var summary map[string]any
	rr = ts.do(http.MethodGet, "/api/transactions/summary?month=2025-10", nil, &summary)
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 2, summary["transactionCount"])
	require.Equal(t, map[string]any{"amount": 12.5, "currency": "USD"}, summary["totalExpenses"])

	rr = ts.do(http.MethodDelete, "/api/transactions/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(http.MethodDelete, "/api/transactions/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactionValidation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"unknown field", `{"description":"x","amount":1,"currency":"USD","type":"expense","extra":1}`, "extra is not allowed"},
		{"unsupported currency", `{"description":"x","amount":1,"currency":"EUR","type":"expense"}`, "Supported currencies are USD and KHR only"},
		{"missing description", `{"amount":1,"currency":"USD","type":"expense"}`, "description is required"},
		{"bad type", `{"description":"x","amount":1,"currency":"USD","type":"gift"}`, "type must be income or expense"},
		{"bad date", `{"date":"15/10/2025","description":"x","amount":1,"currency":"USD","type":"expense"}`, "date must be YYYY-MM-DD"},
		{"malformed", `{"description":`, ""},
		{"two objects", `{"description":"x","amount":1,"currency":"USD","type":"expense"}{}`, "body must contain a single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(http.MethodPost, "/api/transactions", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			if tt.wantMsg != "" {
				require.Equal(t, tt.wantMsg, errorOf(t, rr))
			}
		})
	}

	rr := ts.do(http.MethodGet, "/api/transactions?month=2025-13", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t)

	var all []core.Category
	rr := ts.do(http.MethodGet, "/api/categories", nil, &all)
	require.Equal(t, http.StatusOK, rr.Code)
	builtins := len(all)
	require.NotZero(t, builtins)

	var created core.Category
	rr = ts.do(http.MethodPost, "/api/categories", map[string]any{"name": "Pets", "color": "#112233"}, &created)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.True(t, created.IsCustom)

	rr = ts.do(http.MethodGet, "/api/categories", nil, &all)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, all, builtins+1)

	var updated core.Category
	rr = ts.do(http.MethodPut, "/api/categories/"+created.ID, map[string]any{"name": "Animals"}, &updated)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "Animals", updated.Name)

	rr = ts.do(http.MethodPut, "/api/categories/food", map[string]any{"name": "Eats"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Cannot modify default categories", errorOf(t, rr))

	rr = ts.do(http.MethodDelete, "/api/categories/food", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodDelete, "/api/categories/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(http.MethodGet, "/api/categories/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCategoryBreakdown(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []map[string]any{
		{"date": "2025-10-02", "description": "a", "amount": 30, "currency": "USD", "category": "food", "type": "expense"},
		{"date": "2025-10-04", "description": "b", "amount": 41000, "currency": "KHR", "category": "transport", "type": "expense"},
	} {
		require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/transactions", body, nil).Code)
	}

	var out struct {
		Currency   core.Currency `json:"currency"`
		Categories []struct {
			Category core.Category `json:"category"`
		} `json:"categories"`
	}
	rr := ts.do(http.MethodGet, "/api/categories/breakdown?start=2025-10-01&end=2025-10-31", nil, &out)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, core.USD, out.Currency)
	require.Len(t, out.Categories, 2)

	rr = ts.do(http.MethodGet, "/api/categories/breakdown?start=2025-10-31&end=2025-10-01", nil, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBudgetGoals(t *testing.T) {
	ts := newTestServer(t)

	var goal core.BudgetGoal
	rr := ts.do(http.MethodPost, "/api/budget-goals", map[string]any{
		"categoryId": "food",
		"limit":      map[string]any{"amount": 100, "currency": "USD"},
		"period":     "monthly",
	}, &goal)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	ts.do(http.MethodPost, "/api/transactions", map[string]any{
		"date": "2025-10-10", "description": "Dinner", "amount": 40, "currency": "USD", "category": "food", "type": "expense",
	}, nil)

	var views []struct {
		Spent      core.Money `json:"spent"`
		Percentage float64    `json:"percentage"`
		Status     string     `json:"status"`
	}
	rr = ts.do(http.MethodGet, "/api/budget-goals/progress", nil, &views)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, views, 1)
	require.Equal(t, "40", views[0].Spent.Amount.String())
	require.InDelta(t, 40.0, views[0].Percentage, 0.001)
	require.Equal(t, "active", views[0].Status)

	rr = ts.do(http.MethodPost, "/api/budget-goals", map[string]any{
		"category": map[string]any{"id": "nope"},
		"target":   map[string]any{"amount": 10, "currency": "USD"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPost, "/api/budget-goals", map[string]any{"categoryId": "food"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "limit is required", errorOf(t, rr))

	rr = ts.do(http.MethodPut, "/api/budget-goals/"+goal.ID, map[string]any{"period": "weekly"}, &goal)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, core.Period("weekly"), goal.Period)

	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/budget-goals/"+goal.ID, nil, nil).Code)
	require.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/budget-goals/"+goal.ID, nil, nil).Code)
}

func TestSavingsGoals(t *testing.T) {
	ts := newTestServer(t)

	var goal core.SavingsGoal
	rr := ts.do(http.MethodPost, "/api/savings-goals", map[string]any{
		"name":         "Laptop",
		"targetAmount": map[string]any{"amount": 1000, "currency": "USD"},
		"deadline":     "2025-12-31",
	}, &goal)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var view struct {
		Saved       core.Money `json:"saved"`
		IsCompleted bool       `json:"isCompleted"`
	}
	rr = ts.do(http.MethodPost, "/api/savings-goals/"+goal.ID+"/contributions",
		map[string]any{"amount": 410000, "currency": "KHR"}, &view)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "100", view.Saved.Amount.String())
	require.False(t, view.IsCompleted)

	var progress []map[string]any
	rr = ts.do(http.MethodGet, "/api/savings-goals/progress", nil, &progress)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, progress, 1)

	rr = ts.do(http.MethodPost, "/api/savings-goals/"+goal.ID+"/contributions",
		map[string]any{"amount": 5, "currency": "EUR"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodPost, "/api/savings-goals", map[string]any{"name": "No target"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodDelete, "/api/savings-goals/"+goal.ID, nil, nil).Code)
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/transactions", map[string]any{
		"date": "2025-10-10", "description": "Dinner", "amount": 40, "currency": "USD", "category": "food", "type": "expense",
	}, nil)

	var out dashboardResponse
	rr := ts.do(http.MethodGet, "/api/dashboard?month=2025-10", nil, &out)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "2025-10", out.Month)
	require.Len(t, out.RecentTransactions, 1)
	require.NotEmpty(t, out.Categories)
	require.Empty(t, out.Budgets)
}

func TestExportTransactions(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/transactions", map[string]any{
		"date": "2025-10-10", "description": "Dinner", "amount": 40, "currency": "USD", "type": "expense",
	}, nil)

	rr := ts.do(http.MethodGet, "/api/transactions/export?month=2025-10", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), export.FileName("2025-10"))
	require.NotZero(t, rr.Body.Len())
}

func TestCurrencyRoutes(t *testing.T) {
	ts := newTestServer(t)

	var conv map[string]any
	rr := ts.do(http.MethodPost, "/api/currency/convert",
		map[string]any{"amount": 100, "fromCurrency": "USD", "toCurrency": "KHR"}, &conv)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.EqualValues(t, 410000, conv["convertedAmount"])
	require.EqualValues(t, 4100, conv["rate"])
	require.Equal(t, "410,000៛", conv["formatted"])

	rr = ts.do(http.MethodPost, "/api/currency/convert", map[string]any{"amount": 5, "fromCurrency": "USD", "toCurrency": "USD"}, &conv)
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 1, conv["rate"])

	rr = ts.do(http.MethodPost, "/api/currency/convert", map[string]any{"amount": 100}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Amount, fromCurrency, and toCurrency are required", errorOf(t, rr))

	rr = ts.do(http.MethodPost, "/api/currency/convert", map[string]any{"amount": 1, "fromCurrency": "USD", "toCurrency": "EUR"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Supported currencies are USD and KHR only", errorOf(t, rr))

	var supported struct {
		Currencies []supportedCurrency `json:"currencies"`
	}
	rr = ts.do(http.MethodGet, "/api/currency/supported", nil, &supported)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []supportedCurrency{
		{Code: core.USD, Name: "US Dollar", Symbol: "$"},
		{Code: core.KHR, Name: "Cambodian Riel", Symbol: "៛"},
	}, supported.Currencies)

	var rates map[string]any
	rr = ts.do(http.MethodGet, "/api/currency/rates", nil, &rates)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "static demo rate", rates["source"])
}

func TestRateLimitOnAPI(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/currency/supported", nil, nil).Code)
	}
	rr := ts.do(http.MethodGet, "/api/currency/supported", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Probes outside /api/ are not limited.
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/currency/supported", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(http.MethodGet, "/api/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "Route not found", errorOf(t, rr))
}

func TestAuthBypass(t *testing.T) {
	logger := log.New(log.Config{Handler: log.NewHandler(io.Discard, "error", "text")})
	srv := NewServer(Config{FrontendURL: "http://localhost:3000"}, Deps{
		Provider: memory.New(),
		Auth:     auth.NewService(auth.Config{JWTSecret: testSecret, Bypass: true, Logger: logger}),
		Logger:   logger,
	})
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), auth.DevUser.Email)
}
