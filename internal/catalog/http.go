package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/pkg/kit"
)

const (
	defaultFeaturedLimit = 4
	maxFeaturedLimit     = 50
)

type Server struct {
	Store         Store
	Log           *zap.Logger
	FeaturedLimit int
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/products", s.list)
	r.Get("/products/{id}", s.get)
	r.Get("/categories", s.categories)
	r.Get("/featured", s.featured)

	return r
}

// list applies the catalog filters. category and q are read once from the
// query string; categoria is the legacy alias for category.
func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, ok := s.load(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = q.Get("categoria")
	}

	kit.WriteJSON(w, http.StatusOK, Filter(products, q.Get("q"), category))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, ok, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeSourceError(w, r, err)
		return
	}
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	products, ok := s.load(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, DistinctCategories(products))
}

func (s *Server) featured(w http.ResponseWriter, r *http.Request) {
	limit := s.FeaturedLimit
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxFeaturedLimit {
			kit.WriteError(w, r, http.StatusBadRequest, "bad limit", map[string]any{"max": maxFeaturedLimit})
			return
		}
		limit = n
	}

	products, ok := s.load(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, SelectFeatured(products, limit))
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) ([]Product, bool) {
	products, err := s.Store.List(r.Context())
	if err != nil {
		s.writeSourceError(w, r, err)
		return nil, false
	}
	return products, true
}

func (s *Server) writeSourceError(w http.ResponseWriter, r *http.Request, err error) {
	if s.Log != nil {
		s.Log.Error("catalog source failed", zap.Error(err), zap.String("path", r.URL.Path))
	}

	switch {
	case errors.Is(err, ErrUnavailable):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	case errors.Is(err, ErrBadDocument):
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	default:
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
