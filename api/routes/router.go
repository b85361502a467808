package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ordersync-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/ordersync-backend/api/controllers/orders"
	"github.com/angelmondragon/ordersync-backend/api/middleware"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

// Deps gathers everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Cache    controllers.CacheReadiness
	Gatherer prometheus.Gatherer

	Orders   ordercontrollers.Service
	Residues controllers.ResidueService
	Board    controllers.BoardService
	Articles controllers.ArticleReloader
	Reloads  controllers.ReloadRequester
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis, deps.Cache))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Route("/{serial}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				r.Get("/lines", ordercontrollers.Lines(deps.Orders, logg))
				r.Get("/departments", ordercontrollers.Departments(deps.Orders, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.OperatorRolePicker))
					r.Post("/status", ordercontrollers.SetStatus(deps.Orders, logg))
					r.Post("/confirm", ordercontrollers.Confirm(deps.Orders, logg))
					r.Post("/edit", ordercontrollers.Edit(deps.Orders, logg))
					r.Post("/unavailable", ordercontrollers.MarkUnavailable(deps.Orders, logg))
					r.Post("/start", ordercontrollers.Start(deps.Orders, logg))
				})
			})
		})

		r.Get("/changes", ordercontrollers.Changes(deps.Orders, logg))
		r.Get("/stock", ordercontrollers.Stock(deps.Orders, logg))
		r.Get("/board", controllers.Board(deps.Board, logg))

		r.Route("/residues", func(r chi.Router) {
			r.Get("/", controllers.ResidueList(deps.Residues, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.OperatorRolePicker, enums.OperatorRoleAdmin, enums.OperatorRoleCashier))
				r.Post("/{serial}", controllers.ResidueAdd(deps.Residues, logg))
				r.Delete("/{serial}", controllers.ResidueRemove(deps.Residues, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin))
		r.Use(middleware.RequireAdminKey(cfg.Admin.KeyHash, logg))
		r.Post("/articles/reload", controllers.AdminArticlesReload(deps.Articles, deps.Reloads, logg))
	})

	return r
}
