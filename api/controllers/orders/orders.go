package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/api/middleware"
	"github.com/angelmondragon/ordersync-backend/api/responses"
	"github.com/angelmondragon/ordersync-backend/api/validators"
	internalorders "github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/auth"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/pagination"
)

const maxQueryLen = 64

// Service is the order surface the controllers drive.
type Service interface {
	List(ctx context.Context, op auth.Operator, filter internalorders.ListFilter, page pagination.Params) ([]internalorders.Summary, pagination.Page, error)
	Detail(ctx context.Context, op auth.Operator, serial string) (internalorders.Detail, error)
	Lines(ctx context.Context, serial string) ([]snapshot.OrderLine, error)
	Departments(ctx context.Context, serial string) ([]internalorders.DepartmentState, error)
	SetStatus(ctx context.Context, op auth.Operator, serial string, next enums.OrderStatus) (status.Transition, error)
	Edit(ctx context.Context, op auth.Operator, input internalorders.EditInput) (models.OrderEdit, error)
	MarkUnavailable(ctx context.Context, op auth.Operator, serial string, items []internalorders.UnavailableItem) (internalorders.UnavailableResult, error)
	Start(ctx context.Context, op auth.Operator, serial string) (bool, error)
	Changes(ctx context.Context, since uint64) (internalorders.Changes, error)
	Stock(ctx context.Context, article string) ([]snapshot.StockLine, uint64, error)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_preparazione pronto"`
}

type editRequest struct {
	ArticleCode string          `json:"article_code" validate:"notblank"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
	Unit        string          `json:"unit"`
}

type unavailableRequest struct {
	Items []internalorders.UnavailableItem `json:"items" validate:"required,min=1,dive"`
}

type stockResponse struct {
	Generation uint64               `json:"generation"`
	Lines      []snapshot.StockLine `json:"lines"`
}

// List returns the order page visible to the operator.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := operatorOrError(w, r, logg)
		if !ok {
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pageSize, err := validators.ParseQueryInt(r, "page_size", pagination.DefaultPageSize, 1, pagination.MaxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := buildListFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, meta, err := svc.List(r.Context(), op, filter, pagination.Params{Page: page, PageSize: pageSize})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, items, meta)
	}
}

// Detail returns one decorated order and records the operator's first read.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := operatorOrError(w, r, logg)
		if !ok {
			return
		}
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Detail(r.Context(), op, serial)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// Lines returns the raw cached lines of one order.
func Lines(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := svc.Lines(r.Context(), serial)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lines)
	}
}

// Departments returns the per-department status of one order.
func Departments(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		states, err := svc.Departments(r.Context(), serial)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, states)
	}
}

// SetStatus moves the picker's department share of an order forward.
func SetStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := operatorOrError(w, r, logg)
		if !ok {
			return
		}
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		transition, err := svc.SetStatus(r.Context(), op, serial, next)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transition)
	}
}

// Confirm records that the picker prepared an article in the given quantity.
func Confirm(svc Service, logg *logger.Logger) http.HandlerFunc {
	return editHandler(svc, logg, true)
}

// Edit corrects the prepared quantity of an article.
func Edit(svc Service, logg *logger.Logger) http.HandlerFunc {
	return editHandler(svc, logg, false)
}

func editHandler(svc Service, logg *logger.Logger, confirm bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := operatorOrError(w, r, logg)
		if !ok {
			return
		}
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload editRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		edit, err := svc.Edit(r.Context(), op, internalorders.EditInput{
			Serial:      serial,
			ArticleCode: strings.TrimSpace(payload.ArticleCode),
			Quantity:    payload.Quantity,
			Unit:        strings.TrimSpace(payload.Unit),
			Confirm:     confirm,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, edit)
	}
}

// MarkUnavailable flags or clears unavailable articles for the picker's department.
func MarkUnavailable(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := operatorOrError(w, r, logg)
		if !ok {
			return
		}
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload unavailableRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.MarkUnavailable(r.Context(), op, serial, payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Start moves the picker's department to in_preparazione when it is still new.
func Start(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, ok := operatorOrError(w, r, logg)
		if !ok {
			return
		}
		serial, err := serialParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		started, err := svc.Start(r.Context(), op, serial)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"started": started})
	}
}

// Changes answers the client poll with whether anything moved since a generation.
func Changes(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, err := validators.ParseQueryUint64(r, "since", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		changes, err := svc.Changes(r.Context(), since)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, changes)
	}
}

// Stock returns the cached stock lines, optionally for one article.
func Stock(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		article := validators.SanitizeString(r.URL.Query().Get("article"), maxQueryLen)
		lines, gen, err := svc.Stock(r.Context(), article)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stockResponse{Generation: gen, Lines: lines})
	}
}

func buildListFilter(r *http.Request) (internalorders.ListFilter, error) {
	filter := internalorders.ListFilter{
		Query: validators.SanitizeString(r.URL.Query().Get("q"), maxQueryLen),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &st
	}
	pickup, err := validators.ParseQueryBool(r, "pickup")
	if err != nil {
		return filter, err
	}
	filter.Pickup = pickup
	return filter, nil
}

func serialParam(r *http.Request) (string, error) {
	serial := strings.TrimSpace(chi.URLParam(r, "serial"))
	if serial == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "serial is required")
	}
	return serial, nil
}

func operatorOrError(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Operator, bool) {
	op, ok := middleware.OperatorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator context missing"))
		return auth.Operator{}, false
	}
	return op, true
}
