package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ordersync-backend/api/middleware"
	"github.com/angelmondragon/ordersync-backend/api/responses"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

// ResidueService lists and maintains the orders still to complete.
type ResidueService interface {
	ListResidues(ctx context.Context, dept *enums.Department) ([]status.ResidueGroup, error)
	AddMarker(ctx context.Context, serial string, dept enums.Department) (bool, error)
	RemoveResidues(ctx context.Context, serial string, dept *enums.Department) (int64, error)
}

// ResidueList returns residues grouped by order. Pickers only see their department.
func ResidueList(svc ResidueService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := residueDepartment(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groups, err := svc.ListResidues(r.Context(), dept)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, groups)
	}
}

// ResidueAdd flags an order as still to complete for a department.
func ResidueAdd(svc ResidueService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial := strings.TrimSpace(chi.URLParam(r, "serial"))
		if serial == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "serial is required"))
			return
		}
		dept, err := residueDepartment(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if dept == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "department is required"))
			return
		}
		added, err := svc.AddMarker(r.Context(), serial, *dept)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := http.StatusOK
		if added {
			code = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, code, map[string]bool{"added": added})
	}
}

// ResidueRemove deletes the residues of an order, limited to one department when known.
func ResidueRemove(svc ResidueService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial := strings.TrimSpace(chi.URLParam(r, "serial"))
		if serial == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "serial is required"))
			return
		}
		dept, err := residueDepartment(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		removed, err := svc.RemoveResidues(r.Context(), serial, dept)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"removed": removed})
	}
}

// residueDepartment resolves the department scope: a picker's own department,
// otherwise the optional ?department= filter.
func residueDepartment(r *http.Request) (*enums.Department, error) {
	if op, ok := middleware.OperatorFromContext(r.Context()); ok && op.Department != nil {
		dept := *op.Department
		return &dept, nil
	}
	raw := strings.TrimSpace(r.URL.Query().Get("department"))
	if raw == "" {
		return nil, nil
	}
	dept, err := enums.ParseDepartment(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid department")
	}
	return &dept, nil
}
