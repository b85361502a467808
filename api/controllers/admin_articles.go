package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/ordersync-backend/api/responses"
	"github.com/angelmondragon/ordersync-backend/internal/articles"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

// ArticleReloader re-imports the article reference table.
type ArticleReloader interface {
	Reload(ctx context.Context) (articles.ReloadResult, error)
}

// ReloadRequester asks the sync worker for a full order reload.
type ReloadRequester interface {
	Request(ctx context.Context) error
}

type articleReloadResponse struct {
	articles.ReloadResult
	ReloadRequested bool `json:"reload_requested"`
}

// AdminArticlesReload replaces the article reference and schedules a full order
// reload so every line picks up the new departments.
func AdminArticlesReload(reloader ArticleReloader, requests ReloadRequester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reloader == nil || requests == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "article reload unavailable"))
			return
		}
		result, err := reloader.Reload(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := articleReloadResponse{ReloadResult: result}
		if err := requests.Request(r.Context()); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "failed to request full reload", err)
			}
		} else {
			out.ReloadRequested = true
		}
		responses.WriteSuccess(w, out)
	}
}
