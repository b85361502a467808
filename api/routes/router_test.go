package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/internal/board"
	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/auth"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	store   *cache.Store
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "ordersync", ExpirationMinutes: 60},
	}
	gdb := dbtest.Open(t)
	client := db.NewFromGorm(gdb)
	store := cache.NewStore()
	logg := logger.Nop()

	statusSvc, err := status.NewService(status.ServiceParams{
		Logger: logg,
		Repo:   status.NewRepository(gdb),
		Lines:  store,
		Tx:     client,
	})
	if err != nil {
		t.Fatalf("status service: %v", err)
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Logger: logg,
		Repo:   orders.NewRepository(gdb),
		Cache:  store,
		Status: statusSvc,
		Tx:     client,
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	boardSvc, err := board.NewService(store, status.NewRepository(gdb), nil)
	if err != nil {
		t.Fatalf("board service: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics.NewJobMetrics(reg)

	handler := NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       stubPinger{},
		Redis:    stubPinger{},
		Cache:    store,
		Gatherer: reg,
		Orders:   ordersSvc,
		Residues: statusSvc,
		Board:    boardSvc,
	})
	return testServer{handler: handler, cfg: cfg, store: store}
}

func (s testServer) token(t *testing.T, role enums.OperatorRole, dept *enums.Department) string {
	t.Helper()
	token, err := auth.MintAccessToken(s.cfg.JWT, time.Now(), auth.OperatorTokenPayload{Username: "anna", Role: role, Department: dept})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (s testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func seedOrders(store *cache.Store) {
	mk := func(serial, number, article string, dept enums.Department) snapshot.OrderLine {
		return snapshot.OrderLine{
			RawOrderLine: snapshot.RawOrderLine{
				Serial:       serial,
				OrderNumber:  number,
				CustomerName: "Edil Rossi",
				Pickup:       "ritiro",
				ArticleCode:  article,
				Quantity:     decimal.NewFromInt(4),
				Unit:         "PZ",
			},
			Department: dept,
		}
	}
	store.CommitOrders([]snapshot.OrderLine{
		mk("S1", "100", "A", enums.DepartmentBeams),
		mk("S1", "100", "B", enums.DepartmentHardware),
		mk("S2", "101", "C", enums.DepartmentBeams),
	}, nil)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	if resp := srv.do(t, http.MethodGet, "/health/live", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodGet, "/health/ready", "", ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before first generation: expected 503 got %d", resp.Code)
	}
	seedOrders(srv.store)
	if resp := srv.do(t, http.MethodGet, "/health/ready", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}
	resp := srv.do(t, http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", resp.Code)
	}
}

func TestOrdersRequireToken(t *testing.T) {
	srv := newTestServer(t)
	if resp := srv.do(t, http.MethodGet, "/api/v1/orders", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOrdersBeforeCacheReady(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, enums.OperatorRoleCashier, nil)
	if resp := srv.do(t, http.MethodGet, "/api/v1/orders", token, ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestPickerFlow(t *testing.T) {
	srv := newTestServer(t)
	seedOrders(srv.store)
	dept := enums.DepartmentBeams
	token := srv.token(t, enums.OperatorRolePicker, &dept)

	resp := srv.do(t, http.MethodGet, "/api/v1/orders", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var list struct {
		Data []orders.Summary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].Serial != "S2" {
		t.Fatalf("unexpected list %+v", list.Data)
	}

	if resp := srv.do(t, http.MethodGet, "/api/v1/orders/S1", token, ""); resp.Code != http.StatusOK {
		t.Fatalf("detail: expected 200 got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodPost, "/api/v1/orders/S1/status", token, `{"status":"in_preparazione"}`); resp.Code != http.StatusOK {
		t.Fatalf("status: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/board", token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("board: expected 200 got %d", resp.Code)
	}
	var out struct {
		Data board.Board `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	found := false
	for _, col := range out.Data.Columns {
		if col.Department == dept && len(col.InProgress) == 1 && col.InProgress[0].Serial == "S1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected S1 in progress on the board: %+v", out.Data.Columns)
	}
}

func TestPickerOnlyRoutes(t *testing.T) {
	srv := newTestServer(t)
	seedOrders(srv.store)
	token := srv.token(t, enums.OperatorRoleCashier, nil)

	if resp := srv.do(t, http.MethodPost, "/api/v1/orders/S1/start", token, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier start got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodGet, "/api/v1/residues", token, ""); resp.Code != http.StatusOK {
		t.Fatalf("residues: expected 200 got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	dept := enums.DepartmentBuilding
	picker := srv.token(t, enums.OperatorRolePicker, &dept)
	if resp := srv.do(t, http.MethodPost, "/api/admin/v1/articles/reload", picker, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for picker got %d", resp.Code)
	}
	admin := srv.token(t, enums.OperatorRoleAdmin, nil)
	if resp := srv.do(t, http.MethodPost, "/api/admin/v1/articles/reload", admin, ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without configured admin key got %d", resp.Code)
	}
}
