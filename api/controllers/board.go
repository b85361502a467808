package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/ordersync-backend/api/responses"
	"github.com/angelmondragon/ordersync-backend/internal/board"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

// BoardService builds the pickup display.
type BoardService interface {
	Build(ctx context.Context, previousHash string) (board.Board, error)
}

// Board serves the pickup display. Clients pass back the last hash they
// rendered as ?hash= and redraw only when changed is true.
func Board(svc BoardService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.Build(r.Context(), strings.TrimSpace(r.URL.Query().Get("hash")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, out)
	}
}
