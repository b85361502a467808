package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/api/middleware"
	internalorders "github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/auth"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/pagination"
)

type stubService struct {
	listFn   func(op auth.Operator, filter internalorders.ListFilter, page pagination.Params) ([]internalorders.Summary, pagination.Page, error)
	detailFn func(op auth.Operator, serial string) (internalorders.Detail, error)
	statusFn func(op auth.Operator, serial string, next enums.OrderStatus) (status.Transition, error)
	editFn   func(op auth.Operator, input internalorders.EditInput) (models.OrderEdit, error)
	changes  internalorders.Changes
	since    uint64
	article  string
}

func (s *stubService) List(_ context.Context, op auth.Operator, filter internalorders.ListFilter, page pagination.Params) ([]internalorders.Summary, pagination.Page, error) {
	return s.listFn(op, filter, page)
}

func (s *stubService) Detail(_ context.Context, op auth.Operator, serial string) (internalorders.Detail, error) {
	return s.detailFn(op, serial)
}

func (s *stubService) Lines(context.Context, string) ([]snapshot.OrderLine, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubService) Departments(context.Context, string) ([]internalorders.DepartmentState, error) {
	return nil, nil
}

func (s *stubService) SetStatus(_ context.Context, op auth.Operator, serial string, next enums.OrderStatus) (status.Transition, error) {
	return s.statusFn(op, serial, next)
}

func (s *stubService) Edit(_ context.Context, op auth.Operator, input internalorders.EditInput) (models.OrderEdit, error) {
	return s.editFn(op, input)
}

func (s *stubService) MarkUnavailable(context.Context, auth.Operator, string, []internalorders.UnavailableItem) (internalorders.UnavailableResult, error) {
	return internalorders.UnavailableResult{}, nil
}

func (s *stubService) Start(context.Context, auth.Operator, string) (bool, error) {
	return true, nil
}

func (s *stubService) Changes(_ context.Context, since uint64) (internalorders.Changes, error) {
	s.since = since
	return s.changes, nil
}

func (s *stubService) Stock(_ context.Context, article string) ([]snapshot.StockLine, uint64, error) {
	s.article = article
	return []snapshot.StockLine{{ArticleCode: article}}, 7, nil
}

func picker() auth.Operator {
	dept := enums.DepartmentBeams
	return auth.Operator{Username: "luca", Role: enums.OperatorRolePicker, Department: &dept}
}

func serve(t *testing.T, handler http.HandlerFunc, method, target, pattern, body string, op *auth.Operator) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, handler)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if op != nil {
		req = req.WithContext(middleware.WithOperator(req.Context(), *op))
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestListParsesFiltersAndPages(t *testing.T) {
	op := picker()
	svc := &stubService{
		listFn: func(got auth.Operator, filter internalorders.ListFilter, page pagination.Params) ([]internalorders.Summary, pagination.Page, error) {
			if got.Username != op.Username {
				t.Fatalf("unexpected operator %+v", got)
			}
			if filter.Query != "rossi" || filter.Status == nil || *filter.Status != enums.OrderStatusReady {
				t.Fatalf("unexpected filter %+v", filter)
			}
			if filter.Pickup == nil || !*filter.Pickup {
				t.Fatalf("expected pickup filter")
			}
			if page.Page != 2 || page.PageSize != pagination.DefaultPageSize {
				t.Fatalf("unexpected page %+v", page)
			}
			return []internalorders.Summary{{Serial: "S1"}}, page.Describe(11), nil
		},
	}

	resp := serve(t, List(svc, nil), http.MethodGet, "/orders?q=%20rossi%20&status=pronto&pickup=true&page=2", "/orders", "", &op)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data []internalorders.Summary `json:"data"`
		Page pagination.Page          `json:"page"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Page.TotalPages != 2 {
		t.Fatalf("unexpected payload %+v", envelope)
	}
}

func TestListRejectsBadStatus(t *testing.T) {
	op := picker()
	resp := serve(t, List(&stubService{}, nil), http.MethodGet, "/orders?status=shipped", "/orders", "", &op)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListRequiresOperator(t *testing.T) {
	resp := serve(t, List(&stubService{}, nil), http.MethodGet, "/orders", "/orders", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestDetailPassesSerial(t *testing.T) {
	op := picker()
	svc := &stubService{
		detailFn: func(_ auth.Operator, serial string) (internalorders.Detail, error) {
			if serial != "ABC123" {
				t.Fatalf("unexpected serial %q", serial)
			}
			return internalorders.Detail{Summary: internalorders.Summary{Serial: serial}, ShowingAll: true}, nil
		},
	}
	resp := serve(t, Detail(svc, nil), http.MethodGet, "/orders/ABC123", "/orders/{serial}", "", &op)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestLinesMapsNotFound(t *testing.T) {
	resp := serve(t, Lines(&stubService{}, nil), http.MethodGet, "/orders/missing/lines", "/orders/{serial}/lines", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestSetStatusValidatesBody(t *testing.T) {
	op := picker()
	called := false
	svc := &stubService{
		statusFn: func(_ auth.Operator, serial string, next enums.OrderStatus) (status.Transition, error) {
			called = true
			return status.Transition{Serial: serial, Status: next, OrderStatus: enums.OrderStatusInProgress}, nil
		},
	}

	resp := serve(t, SetStatus(svc, nil), http.MethodPost, "/orders/S1/status", "/orders/{serial}/status", `{"status":"letto"}`, &op)
	if resp.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without calling the service, got %d", resp.Code)
	}

	resp = serve(t, SetStatus(svc, nil), http.MethodPost, "/orders/S1/status", "/orders/{serial}/status", `{"status":"pronto"}`, &op)
	if resp.Code != http.StatusOK || !called {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestConfirmAndEditSetMode(t *testing.T) {
	op := picker()
	var inputs []internalorders.EditInput
	svc := &stubService{
		editFn: func(_ auth.Operator, input internalorders.EditInput) (models.OrderEdit, error) {
			inputs = append(inputs, input)
			return models.OrderEdit{Serial: input.Serial, ArticleCode: input.ArticleCode, Quantity: input.Quantity}, nil
		},
	}
	body := `{"article_code":" TR-100 ","quantity":"2.5","unit":"mt"}`
	if resp := serve(t, Confirm(svc, nil), http.MethodPost, "/orders/S1/confirm", "/orders/{serial}/confirm", body, &op); resp.Code != http.StatusCreated {
		t.Fatalf("confirm: expected 201 got %d", resp.Code)
	}
	if resp := serve(t, Edit(svc, nil), http.MethodPost, "/orders/S1/edit", "/orders/{serial}/edit", body, &op); resp.Code != http.StatusCreated {
		t.Fatalf("edit: expected 201 got %d", resp.Code)
	}
	if len(inputs) != 2 || !inputs[0].Confirm || inputs[1].Confirm {
		t.Fatalf("unexpected inputs %+v", inputs)
	}
	if inputs[0].ArticleCode != "TR-100" || !inputs[0].Quantity.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected parsed input %+v", inputs[0])
	}
}

func TestUnavailableRequiresItems(t *testing.T) {
	op := picker()
	resp := serve(t, MarkUnavailable(&stubService{}, nil), http.MethodPost, "/orders/S1/unavailable", "/orders/{serial}/unavailable", `{"items":[]}`, &op)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestChangesAndStock(t *testing.T) {
	svc := &stubService{changes: internalorders.Changes{HasChanges: true, Generation: 9}}
	resp := serve(t, Changes(svc, nil), http.MethodGet, "/changes?since=4", "/changes", "", nil)
	if resp.Code != http.StatusOK || svc.since != 4 {
		t.Fatalf("changes: code %d since %d", resp.Code, svc.since)
	}
	if resp := serve(t, Changes(svc, nil), http.MethodGet, "/changes?since=abc", "/changes", "", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", resp.Code)
	}

	resp = serve(t, Stock(svc, nil), http.MethodGet, "/stock?article=TR-100", "/stock", "", nil)
	if resp.Code != http.StatusOK || svc.article != "TR-100" {
		t.Fatalf("stock: code %d article %q", resp.Code, svc.article)
	}
	var envelope struct {
		Data stockResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode stock: %v", err)
	}
	if envelope.Data.Generation != 7 || len(envelope.Data.Lines) != 1 {
		t.Fatalf("unexpected stock payload %+v", envelope.Data)
	}
}
