package storefront

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry
	Metrics  *kit.Metrics

	MetricsEnabled bool
	MetricsToken   string
}

// Deps are the two halves of the storefront plus their backing stores for
// readiness checks.
type Deps struct {
	Catalog *catalog.Server
	Cart    *cart.Server

	CatalogStore catalog.Store
	CartStore    *cart.Store
}

const readyTimeout = 2 * time.Second

func NewHandler(deps Deps, httpDeps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(httpDeps.Log))
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	r.Mount("/cart", deps.Cart.Routes())
	r.Mount("/", deps.Catalog.Routes())

	return r
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = kit.NewMetrics(deps.Registry)
	}
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := deps.CatalogStore.Ping(ctx); err != nil {
			if log != nil {
				log.Warn("readyz failed: catalog", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog not ready", nil)
			return
		}

		if err := deps.CartStore.Ping(ctx); err != nil {
			if log != nil {
				log.Warn("readyz failed: cart slot", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "cart slot not ready", nil)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
