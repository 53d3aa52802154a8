package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/pkg/kit"
)

const (
	serviceName = "storefront"

	// devSessionSecret signs sessions when session.secret is unset. Fine for
	// a demo; anyone who knows it can forge a session id.
	devSessionSecret = "storefront-dev-session-secret-change-me"
)

// App is a fully wired storefront. Close releases every backend connection.
type App struct {
	Handler http.Handler
	Catalog catalog.Store
	Cart    *cart.Service

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Backends opens what the configured sources need. The Postgres pool is
// shared between the catalog and the cart slot.
type Backends struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool

	closers []func()
}

func NewBackends(cfg *config.Config, log *zap.Logger) *Backends {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backends{cfg: cfg, log: log}
}

func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func (b *Backends) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	pool, err := db.Open(ctx, b.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	b.pool = pool
	b.closers = append(b.closers, pool.Close)
	return pool, nil
}

// CatalogStore builds the product source named by catalog.source.
func (b *Backends) CatalogStore(ctx context.Context) (catalog.Store, error) {
	c := b.cfg.Catalog
	switch c.Source {
	case "file":
		return catalog.NewFileStore(c.Path), nil
	case "http":
		s := catalog.NewHTTPStore(c.URL, c.Timeout, c.Retries)
		b.closers = append(b.closers, func() { _ = s.Close() })
		return s, nil
	case "postgres":
		pool, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.NewPostgresStore(pool), nil
	case "memory":
		return catalog.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", c.Source)
	}
}

// CartSlot builds the persistence slot named by cart.slot.
func (b *Backends) CartSlot(ctx context.Context) (cart.Slot, error) {
	switch b.cfg.Cart.Slot {
	case "memory":
		return cart.NewMemSlot(), nil
	case "file":
		return cart.NewFileSlot(b.cfg.Cart.FileDir)
	case "redis":
		rc := b.cfg.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		return cart.NewRedisSlot(client, rc.TTL), nil
	case "postgres":
		pool, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return cart.NewPostgresSlot(pool), nil
	default:
		return nil, fmt.Errorf("unknown cart slot %q", b.cfg.Cart.Slot)
	}
}

// Build wires the catalog and cart handlers from cfg. reg may be nil to run
// without metrics.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if log == nil {
		log = zap.NewNop()
	}

	backends := NewBackends(cfg, log)
	app := &App{closers: []func(){backends.Close}}

	store, err := backends.CatalogStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	slot, err := backends.CartSlot(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	policy, err := cart.ParseQuantityPolicy(cfg.Cart.QuantityPolicy)
	if err != nil {
		app.Close()
		return nil, err
	}

	var metrics *kit.Metrics
	if reg != nil {
		metrics = kit.NewMetrics(reg)
	}

	secret := cfg.Session.Secret
	if secret == "" {
		log.Warn("session.secret is empty, using the development secret")
		secret = devSessionSecret
	}

	cartStore := cart.NewStore(slot)
	svc := cart.NewService(cartStore, store, cart.Options{
		Policy:  policy,
		Log:     log,
		Metrics: metrics,
	})

	deps := Deps{
		Catalog: &catalog.Server{
			Store:         store,
			Log:           log,
			FeaturedLimit: cfg.Catalog.FeaturedLimit,
		},
		Cart: &cart.Server{
			Service:  svc,
			Sessions: cart.NewSessions(secret, cfg.Session.TTL),
			Limiter:  kit.NewIPRateLimiter(cfg.Cart.RateLimitPerMin, time.Minute),
			Log:      log,
		},
		CatalogStore: store,
		CartStore:    cartStore,
	}

	app.Handler = NewHandler(deps, HTTPDeps{
		Log:            log,
		Service:        serviceName,
		Registry:       reg,
		Metrics:        metrics,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})
	app.Catalog = store
	app.Cart = svc

	log.Info("storefront wired",
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("cart_slot", cfg.Cart.Slot),
		zap.String("quantity_policy", policy.String()),
	)
	return app, nil
}
