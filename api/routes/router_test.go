package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shopsterhq/shopster-backend/internal/checkout"
	"github.com/shopsterhq/shopster-backend/internal/stats"
	pkgAuth "github.com/shopsterhq/shopster-backend/pkg/auth"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	"github.com/shopsterhq/shopster-backend/pkg/enums"
	pkgredis "github.com/shopsterhq/shopster-backend/pkg/redis"
)

type stubStatsService struct {
	overview *stats.Overview
}

func (s stubStatsService) Overview(context.Context, stats.Range) (*stats.Overview, error) {
	return s.overview, nil
}

func testRouterConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "shopster-test", ExpirationMinutes: 10},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config: testRouterConfig(),
		Stats:  stubStatsService{overview: &stats.Overview{}},
	})
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Shopster-Env") != "test" {
		t.Fatalf("expected env header, got %q", resp.Header().Get("X-Shopster-Env"))
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAdminStatsRequiresStaff(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/overview", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous got %d", resp.Code)
	}

	cfg := testRouterConfig()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now().UTC(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), IsStaff: true})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	staffReq := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/overview", nil)
	staffReq.Header.Set("Authorization", "Bearer "+token)
	staffResp := httptest.NewRecorder()
	router.ServeHTTP(staffResp, staffReq)
	if staffResp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff got %d: %s", staffResp.Code, staffResp.Body.String())
	}
}

type memoryIdempotencyStore struct {
	data map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: make(map[string]string)}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	m.data[key] = str
	return nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	m.data[key] = str
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type countingCheckout struct {
	calls int
}

func (c *countingCheckout) PlaceOrder(context.Context, checkout.PlaceOrderInput) (*checkout.PlacedOrder, error) {
	c.calls++
	return &checkout.PlacedOrder{
		Order: &models.Order{
			ID:            uuid.New(),
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			Currency:      enums.CurrencyRUB,
			CustomerEmail: "guest@example.com",
			PlacedAt:      time.Now().UTC(),
		},
	}, nil
}

func placeOrderBody() string {
	return fmt.Sprintf(`{
		"cart_id": %q,
		"customer_email": "guest@example.com",
		"shipping_full_name": "Guest Buyer",
		"shipping_address": "1 Main St",
		"shipping_city": "Moscow"
	}`, uuid.NewString())
}

// Order placement must be guarded by the idempotency middleware through the
// assembled router, where sub-router mounting hides the leaf route pattern
// from the middleware.
func TestOrderPlacementGuardedByIdempotencyKey(t *testing.T) {
	t.Parallel()

	store := newMemoryIdempotencyStore()
	svc := &countingCheckout{}
	router := NewRouter(Deps{
		Config:      testRouterConfig(),
		Idempotency: store,
		Checkout:    svc,
		Stats:       stubStatsService{overview: &stats.Overview{}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(placeOrderBody()))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("checkout must not run without idempotency key, ran %d times", svc.calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected no stored records, found %d", len(store.data))
	}

	body := placeOrderBody()
	first := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	first.Header.Set("Content-Type", "application/json")
	first.Header.Set("Idempotency-Key", "order-key-1")
	firstResp := httptest.NewRecorder()
	router.ServeHTTP(firstResp, first)
	if firstResp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", firstResp.Code, firstResp.Body.String())
	}
	if len(store.data) != 1 {
		t.Fatalf("expected one stored record, found %d", len(store.data))
	}

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	replay.Header.Set("Content-Type", "application/json")
	replay.Header.Set("Idempotency-Key", "order-key-1")
	replayResp := httptest.NewRecorder()
	router.ServeHTTP(replayResp, replay)
	if replayResp.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d: %s", replayResp.Code, replayResp.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected checkout to run once, ran %d times", svc.calls)
	}
	if replayResp.Body.String() != firstResp.Body.String() {
		t.Fatalf("replay body differs from original")
	}
}

func TestStaffWritesRejectedForCustomers(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	cfg := testRouterConfig()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now().UTC(), pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}
}
