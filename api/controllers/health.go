package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/ordersync-backend/api/responses"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

const envHeader = "X-OrderSync-Env"

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheReadiness reports whether the first order generation is installed.
type CacheReadiness interface {
	Ready() bool
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks every dependency and the order cache.
func HealthReady(cfg *config.Config, logg *logger.Logger, db Pinger, redis Pinger, cache CacheReadiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		failed := false
		for name, p := range map[string]Pinger{"db": db, "redis": redis} {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "error"
				failed = true
				continue
			}
			checks[name] = "ok"
		}
		if cache != nil {
			if cache.Ready() {
				checks["cache"] = "ok"
			} else {
				checks["cache"] = "loading"
				failed = true
			}
		}
		if failed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "not ready").WithDetails(checks))
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
