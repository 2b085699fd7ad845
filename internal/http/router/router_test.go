package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gig-escrow/internal/auth"
	"github.com/ignatzorin/gig-escrow/internal/authz"
	"github.com/ignatzorin/gig-escrow/internal/config"
	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/events"
	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
	"github.com/ignatzorin/gig-escrow/internal/fraud"
	"github.com/ignatzorin/gig-escrow/internal/http/router"
	"github.com/ignatzorin/gig-escrow/internal/infrastructure/memstore"
	"github.com/ignatzorin/gig-escrow/internal/interface/http/handler"
	"github.com/ignatzorin/gig-escrow/internal/metrics"
	"github.com/ignatzorin/gig-escrow/internal/orchestrator"
	"github.com/ignatzorin/gig-escrow/internal/payment"
	"github.com/ignatzorin/gig-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/gig-escrow/internal/ws"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 Safari/605.1.15"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Alerts  json.RawMessage `json:"alerts"`
	Error   *struct {
		Code      string         `json:"code"`
		Details   map[string]any `json:"details"`
		Retryable bool           `json:"retryable"`
	} `json:"error"`
}

type server struct {
	engine *gin.Engine
	hub    *ws.Hub
	gig    *entity.Gig
	tokens *auth.TokenManager
	buyer  string
	seller string
	admin  string
	other  string
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
		Currency:        "USD",
	}

	store := memstore.New()
	m := metrics.New()
	ledger := escrow.NewLedger(store, payment.NewSandbox(), time.Second, cfg.Currency).WithObserver(m)
	az, err := authz.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	publisher := events.NewMulti(hub)
	engine := fraud.NewEngine(fraud.NewMemoryHistory(time.Hour), store.FraudAlerts(), publisher, m, fraud.DefaultThresholds())
	orch := orchestrator.New(orchestrator.Deps{
		Store:     store,
		Ledger:    ledger,
		UseCases:  orchestrator.NewUseCases(store, ledger, 10),
		Authz:     az,
		Fraud:     engine,
		Publisher: publisher,
		Metrics:   m,
	})

	gigID := uuid.New()
	gig := &entity.Gig{
		ID:        gigID,
		SellerID:  uuid.New(),
		Active:    true,
		Published: true,
		Currency:  "USD",
		Packages:  []entity.GigPackage{{ID: uuid.New(), GigID: gigID, Tier: "basic", Price: 5000}},
	}
	require.NoError(t, store.Gigs().Create(context.Background(), gig))

	tokens := auth.NewTokenManager("router-test-secret", time.Minute)
	extractor, err := fingerprint.NewExtractor("fingerprint-test-secret")
	require.NoError(t, err)

	issue := func(id uuid.UUID, role valueobject.Role) string {
		token, err := tokens.Issue(id, role)
		require.NoError(t, err)
		return token
	}

	return &server{
		engine: router.SetupRouter(cfg, tokens, extractor, router.Handlers{
			Orders:   handler.NewOrderHandler(orch),
			Escrow:   handler.NewEscrowHandler(orch, cfg.Currency),
			Disputes: handler.NewDisputeHandler(orch),
			Fraud:    handler.NewFraudHandler(orch),
			Health:   handler.NewHealthHandler(map[string]handler.HealthCheck{"store": store.Ping}),
			WS:       handler.NewWSHandler(hub, tokens, cfg.AllowedOrigins),
			Metrics:  m.Handler(),
		}),
		hub:    hub,
		gig:    gig,
		tokens: tokens,
		buyer:  issue(uuid.New(), valueobject.RoleBuyer),
		seller: issue(gig.SellerID, valueobject.RoleSeller),
		admin:  issue(uuid.New(), valueobject.RoleAdmin),
		other:  issue(uuid.New(), valueobject.RoleBuyer),
	}
}

func (s *server) do(t *testing.T, method, path, token string, body any) (int, envelope) {
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
	req.Header.Set("User-Agent", browserUA)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func field(t *testing.T, raw json.RawMessage, path ...string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(raw, &v))
	for _, key := range path {
		m, ok := v.(map[string]any)
		require.True(t, ok, "нет объекта для %q", key)
		v = m[key]
	}
	return v
}

func (s *server) createOrder(t *testing.T) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/orders", s.buyer, map[string]any{
		"gig_id":     s.gig.ID,
		"package_id": s.gig.Packages[0].ID,
	})
	require.Equal(t, http.StatusCreated, code)
	return field(t, env.Data, "id").(string)
}

func TestRouter_FullLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	orderID := s.createOrder(t)

	code, env := s.do(t, http.MethodPost, "/api/orders/"+orderID+"/payment/authorize", s.buyer, nil)
	require.Equal(t, http.StatusCreated, code)
	txID := field(t, env.Data, "id").(string)
	assert.Equal(t, "authorized", field(t, env.Data, "status"))
	assert.Equal(t, "50.00", field(t, env.Data, "amount", "display"))

	code, _ = s.do(t, http.MethodPost, "/api/escrow/"+txID+"/capture", s.buyer, nil)
	require.Equal(t, http.StatusOK, code)

	for _, step := range []struct {
		token string
		event string
	}{
		{s.seller, "start"},
		{s.seller, "deliver"},
		{s.buyer, "accept"},
	} {
		code, env = s.do(t, http.MethodPost, "/api/orders/"+orderID+"/transitions", step.token, map[string]string{"event": step.event})
		require.Equal(t, http.StatusOK, code, step.event)
	}
	assert.Equal(t, "completed", field(t, env.Data, "order", "status"))
	assert.Equal(t, "released", field(t, env.Data, "transaction", "status"))

	code, env = s.do(t, http.MethodGet, "/api/payouts/balance", s.seller, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4500), field(t, env.Data, "available", "minor"))

	code, env = s.do(t, http.MethodPost, "/api/payouts", s.seller, map[string]any{"amount": 4000, "currency": "USD"})
	require.Equal(t, http.StatusCreated, code)
	payoutID := field(t, env.Data, "id").(string)

	code, env = s.do(t, http.MethodPost, "/api/payouts/"+payoutID+"/process", s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", field(t, env.Data, "status"))

	code, env = s.do(t, http.MethodGet, "/api/orders/"+orderID+"/history", s.buyer, nil)
	require.Equal(t, http.StatusOK, code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 4)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newServer(t)
	orderID := s.createOrder(t)

	code, env := s.do(t, http.MethodPost, "/api/orders/"+orderID+"/transitions", s.buyer, map[string]string{"event": "accept"})
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.Equal(t, "pending", env.Error.Details["current_status"])

	code, env = s.do(t, http.MethodGet, "/api/orders/"+orderID, s.other, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, _ = s.do(t, http.MethodGet, "/api/orders/"+orderID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/orders/not-a-uuid", s.buyer, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/orders", s.buyer, map[string]any{"gig_id": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/api/payouts", s.seller, map[string]any{"amount": 100, "currency": "usd"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/api/payouts", s.seller, map[string]any{"amount": 100})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", env.Error.Code)

	code, _ = s.do(t, http.MethodPost, "/api/fraud/evaluate", s.buyer, map[string]any{"user_id": uuid.NewString()})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRouter_DisputeOverHTTP(t *testing.T) {
	s := newServer(t)
	orderID := s.createOrder(t)

	code, env := s.do(t, http.MethodPost, "/api/orders/"+orderID+"/payment/authorize", s.buyer, nil)
	require.Equal(t, http.StatusCreated, code)
	txID := field(t, env.Data, "id").(string)
	code, _ = s.do(t, http.MethodPost, "/api/escrow/"+txID+"/capture", s.buyer, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPost, "/api/orders/"+orderID+"/disputes", s.buyer, map[string]string{
		"reason":      "not_as_described",
		"description": "<b>Сделано</b> не то",
	})
	require.Equal(t, http.StatusCreated, code)
	disputeID := field(t, env.Data, "id").(string)
	assert.Equal(t, "Сделано не то", field(t, env.Data, "description"))

	code, env = s.do(t, http.MethodPost, "/api/orders/"+orderID+"/disputes", s.seller, map[string]string{
		"reason":      "other",
		"description": "второй спор",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DISPUTE_ALREADY_OPEN", env.Error.Code)

	code, _ = s.do(t, http.MethodPost, "/api/disputes/"+disputeID+"/evidence", s.seller, map[string]string{"text": "скриншоты переписки"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/disputes/"+disputeID+"/resolve", s.buyer, map[string]string{"outcome": "refund_full"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodPost, "/api/disputes/"+disputeID+"/resolve", s.admin, map[string]string{"outcome": "refund_full"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", field(t, env.Data, "order", "status"))
	assert.Equal(t, "refunded", field(t, env.Data, "transaction", "status"))

	code, env = s.do(t, http.MethodGet, "/api/orders/"+orderID+"/disputes", s.buyer, nil)
	require.Equal(t, http.StatusOK, code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"healthy"`)

	s.createOrder(t)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_WebSocketReceivesParticipantEvents(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + s.seller
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return s.hub.Connected(s.gig.SellerID) == 1 }, time.Second, 10*time.Millisecond)

	s.createOrder(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, string(events.OrderCreated), msg.Type)
}

func TestRouter_WebSocketRequiresToken(t *testing.T) {
	s := newServer(t)
	code, _ := s.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
