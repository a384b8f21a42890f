package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type credentials struct {
	email    string
	password string
}

var (
	asAdmin     = &credentials{storage.DemoAdminEmail, storage.DemoAdminPassword}
	asAssistant = &credentials{storage.DemoAssistantEmail, storage.DemoAssistantPass}
	asCustomer  = &credentials{storage.DemoCustomerEmail, storage.DemoCustomerPass}
)

type testEnv struct {
	store   *storage.Store
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T, logger *zap.Logger) *testEnv {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	store := storage.New(storage.Options{PasswordCost: bcrypt.MinCost})
	require.NoError(t, store.Seed(context.Background()))

	srv := New(store, auth.NewAdapter(store, logger), logger)
	ctx, cancel := context.WithCancel(context.Background())
	srv.AuditManager.Start(ctx)
	t.Cleanup(cancel)

	return &testEnv{store: store, server: srv, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, creds *credentials, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if creds != nil {
		req.SetBasicAuth(creds.email, creds.password)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name           string
		creds          *credentials
		method         string
		path           string
		body           interface{}
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "sign in with demo admin",
			method:         http.MethodPost,
			path:           "/auth/signin",
			body:           map[string]string{"email": storage.DemoAdminEmail, "password": storage.DemoAdminPassword},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "sign in with wrong password",
			method:         http.MethodPost,
			path:           "/auth/signin",
			body:           map[string]string{"email": storage.DemoAdminEmail, "password": "nope"},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid email or password"}`,
		},
		{
			name:           "protected route without credentials",
			method:         http.MethodGet,
			path:           "/orders",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}`,
		},
		{
			name:           "protected route with bad credentials",
			creds:          &credentials{storage.DemoCustomerEmail, "wrong"},
			method:         http.MethodGet,
			path:           "/orders",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid email or password"}`,
		},
		{
			name:           "public catalogue",
			method:         http.MethodGet,
			path:           "/products",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, tc.creds, tc.method, tc.path, tc.body)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
		})
	}
}

type failingSignOut struct {
	*auth.Adapter
	err error
}

func (f failingSignOut) SignOut(string) error { return f.err }

func TestSignOut(t *testing.T) {
	t.Run("without an open session", func(t *testing.T) {
		env := newTestEnv(t, nil)

		rr := env.do(t, asCustomer, http.MethodPost, "/auth/signout", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("registry failure is reported", func(t *testing.T) {
		store := storage.New(storage.Options{PasswordCost: bcrypt.MinCost})
		require.NoError(t, store.Seed(context.Background()))
		logger := zap.NewNop()
		srv := New(store, failingSignOut{
			Adapter: auth.NewAdapter(store, logger),
			err:     errors.New("registry unavailable"),
		}, logger)
		env := &testEnv{store: store, server: srv, handler: srv.Handler()}

		rr := env.do(t, asCustomer, http.MethodPost, "/auth/signout", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Internal error"}`, rr.Body.String())
	})
}

func TestSignUpAndDisabledAssistant(t *testing.T) {
	env := newTestEnv(t, nil)
	body := map[string]string{"email": "noor@example.com", "full_name": "Noor", "password": "pw"}

	rr := env.do(t, nil, http.MethodPost, "/auth/signup", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[sessionResponse](t, rr)
	assert.Equal(t, permission.RoleUser, resp.Role)
	assert.Equal(t, "noor@example.com", resp.Session.Email)

	rr = env.do(t, nil, http.MethodPost, "/auth/signup", body)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, asAdmin, http.MethodPut, "/assistants/"+storage.DemoAssistantID+"/enabled", map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, asAssistant, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"Account disabled. Contact admin."}`, rr.Body.String())
}

func TestProductRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	newProduct := map[string]interface{}{
		"name":     "Silk Scarf",
		"price":    "140.50",
		"category": []string{"accessories"},
		"stock":    4,
		"images":   []string{"scarf.jpg"},
	}

	t.Run("customer cannot create", func(t *testing.T) {
		rr := env.do(t, asCustomer, http.MethodPost, "/products", newProduct)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin creates, stale patch conflicts, delete removes", func(t *testing.T) {
		rr := env.do(t, asAdmin, http.MethodPost, "/products", newProduct)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		created := decode[storage.Product](t, rr)
		assert.Equal(t, "140.5", created.Price.String())

		rr = env.do(t, asAdmin, http.MethodPatch, "/products/"+created.ID, map[string]interface{}{
			"stock":            10,
			"expected_version": created.Version + 5,
		})
		assert.Equal(t, http.StatusConflict, rr.Code)

		rr = env.do(t, asAdmin, http.MethodPatch, "/products/"+created.ID, map[string]interface{}{
			"stock":            10,
			"expected_version": created.Version,
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, 10, decode[storage.Product](t, rr).Stock)

		rr = env.do(t, asAdmin, http.MethodDelete, "/products/"+created.ID, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		rr = env.do(t, nil, http.MethodGet, "/products/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid product is a bad request", func(t *testing.T) {
		rr := env.do(t, asAdmin, http.MethodPost, "/products", map[string]interface{}{"name": "", "price": 1})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("on sale filter", func(t *testing.T) {
		rr := env.do(t, nil, http.MethodGet, "/products?on_sale=true", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		products := decode[[]storage.Product](t, rr)
		require.Len(t, products, 1)
		assert.Equal(t, "prod-2", products[0].ID)

		rr = env.do(t, nil, http.MethodGet, "/products?on_sale=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestBannerVisibility(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, nil, http.MethodGet, "/banners", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]storage.Banner](t, rr), 1)

	rr = env.do(t, asAdmin, http.MethodGet, "/banners", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]storage.Banner](t, rr), 2)
}

func TestOrderRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, asCustomer, http.MethodPost, "/orders", map[string]interface{}{
		"items":            []map[string]interface{}{{"product_id": "prod-3", "quantity": 3}},
		"shipping_address": "Dubai Marina",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decode[storage.Order](t, rr)
	assert.Equal(t, storage.OrderPlaced, order.Status)
	assert.Equal(t, "960", order.TotalAmount.String())

	rr = env.do(t, asCustomer, http.MethodPost, "/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": "prod-2", "quantity": 50}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, asCustomer, http.MethodPut, "/orders/"+order.ID+"/status", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, asAssistant, http.MethodPut, "/orders/"+order.ID+"/status", map[string]string{"status": "shipped", "note": "Courier picked up"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[storage.Order](t, rr)
	assert.Equal(t, storage.OrderShipped, updated.Status)
	assert.Len(t, updated.Timeline, 2)

	rr = env.do(t, asAssistant, http.MethodPut, "/orders/"+order.ID+"/status", map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, asCustomer, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]storage.Order](t, rr), 2)

	_, err := env.store.SignUp(context.Background(), storage.SignUpInput{Email: "other@example.com", FullName: "Other", Password: "pw"})
	require.NoError(t, err)
	other := &credentials{"other@example.com", "pw"}

	rr = env.do(t, other, http.MethodGet, "/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = env.do(t, other, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]storage.Order](t, rr))
	rr = env.do(t, asAssistant, http.MethodGet, "/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, asCustomer, http.MethodPost, "/requests", map[string]interface{}{
		"title":       "Anniversary hamper",
		"description": "Dates, oud and a card",
		"budget":      900,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[storage.CustomRequest](t, rr)

	rr = env.do(t, asAssistant, http.MethodPut, "/requests/"+created.ID+"/status", map[string]string{"status": "in_review"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, asAdmin, http.MethodPut, "/requests/"+created.ID+"/status", map[string]string{"status": "quoted"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, asAdmin, http.MethodPut, "/requests/"+created.ID+"/status", map[string]interface{}{
		"status": "quoted",
		"quote":  map[string]interface{}{"amount": "850", "message": "Ready in 3 days"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, asAdmin, http.MethodPut, "/requests/"+created.ID+"/status", map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, rr.Code)
	rejected := decode[storage.CustomRequest](t, rr)
	assert.Equal(t, storage.RequestRejected, rejected.Status)
	assert.Equal(t, "850", rejected.QuoteAmount.String())
	assert.Equal(t, "Ready in 3 days", rejected.QuoteMessage)

	rr = env.do(t, asAdmin, http.MethodPut, "/requests/"+created.ID+"/status", map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, storage.RequestClosed, decode[storage.CustomRequest](t, rr).Status)

	rr = env.do(t, asAdmin, http.MethodPut, "/requests/"+created.ID+"/status", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConversationRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, asCustomer, http.MethodPost, "/conversations", map[string]string{"text": "Where is my order?"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	conv := decode[storage.Conversation](t, rr)
	assert.Equal(t, storage.ConversationUnassigned, conv.Status)

	rr = env.do(t, asAssistant, http.MethodPatch, "/conversations/"+conv.ID, map[string]string{"assign_to": storage.DemoAssistantID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assigned := decode[storage.Conversation](t, rr)
	assert.Equal(t, storage.ConversationAssigned, assigned.Status)
	assert.Equal(t, storage.DemoAssistantID, assigned.AssignedTo)

	rr = env.do(t, asAssistant, http.MethodPost, "/conversations/"+conv.ID+"/messages", map[string]string{"text": "On its way"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Len(t, decode[storage.Conversation](t, rr).Messages, 2)

	rr = env.do(t, asCustomer, http.MethodPatch, "/conversations/"+conv.ID, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, asCustomer, http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]storage.Conversation](t, rr), 2)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("customers cannot list users", func(t *testing.T) {
		rr := env.do(t, asCustomer, http.MethodGet, "/users", nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("assistant lifecycle", func(t *testing.T) {
		rr := env.do(t, asAdmin, http.MethodPost, "/assistants", map[string]interface{}{
			"email":     "omar@giftstore.com",
			"full_name": "Omar Staff",
			"tasks":     []string{"manage_banners", " Update_Orders ", "fly"},
			"password":  "Start123",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assistant := decode[storage.User](t, rr)
		assert.ElementsMatch(t, []permission.Capability{permission.CapManageBanners, permission.CapUpdateOrders}, assistant.AssistantTasks)
		assert.Equal(t, storage.AssistantOffline, assistant.AssistantStatus)

		omar := &credentials{"omar@giftstore.com", "Start123"}
		rr = env.do(t, omar, http.MethodGet, "/me/capabilities", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"role":"assistant","capabilities":["manage_banners","update_orders"]}`, rr.Body.String())

		rr = env.do(t, omar, http.MethodPut, "/assistants/"+assistant.ID+"/availability", map[string]string{"status": "online"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, storage.AssistantOnline, decode[storage.User](t, rr).AssistantStatus)

		rr = env.do(t, asAdmin, http.MethodPost, "/users/"+assistant.ID+"/password-reset", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		reset := decode[map[string]string](t, rr)
		assert.Len(t, reset["password"], 8)

		rr = env.do(t, omar, http.MethodGet, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		rr = env.do(t, &credentials{omar.email, reset["password"]}, http.MethodGet, "/me", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = env.do(t, asAdmin, http.MethodDelete, "/users/"+assistant.ID, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		rr = env.do(t, asAdmin, http.MethodDelete, "/users/"+assistant.ID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("banned customer cannot sign up again", func(t *testing.T) {
		rr := env.do(t, asAdmin, http.MethodDelete, "/users/"+storage.DemoCustomerID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = env.do(t, nil, http.MethodPost, "/auth/signup", map[string]string{
			"email": storage.DemoCustomerEmail, "full_name": "Layla", "password": "pw",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("kpis and activity", func(t *testing.T) {
		rr := env.do(t, asAdmin, http.MethodGet, "/kpis", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		kpis := decode[storage.KPIs](t, rr)
		assert.Equal(t, 1, kpis.TotalOrders)
		assert.Equal(t, "640", kpis.Revenue.String())

		rr = env.do(t, asAdmin, http.MethodGet, "/activity?limit=2", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		events := decode[[]storage.ActivityEvent](t, rr)
		require.Len(t, events, 2)
		assert.Equal(t, storage.ActivityUserBanned, events[0].Type)
		assert.Equal(t, storage.DemoAdminID, events[0].PerformerID)

		rr = env.do(t, asAdmin, http.MethodGet, "/activity?limit=zero", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = env.do(t, asAssistant, http.MethodGet, "/kpis", nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, asCustomer, http.MethodGet, "/orders/missing", nil)

	rr := env.do(t, nil, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "giftstore_operation_errors_total")
}
