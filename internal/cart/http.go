package cart

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront/internal/catalog"
	"storefront/pkg/kit"
)

// Server exposes the cart of the caller's session. Routes are relative so the
// handler can be mounted under /cart.
type Server struct {
	Service  *Service
	Sessions *Sessions
	Limiter  *kit.IPRateLimiter
	Log      *zap.Logger
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.Sessions.Middleware)

	r.Get("/", s.get)
	r.Get("/count", s.count)

	r.Group(func(mr chi.Router) {
		if s.Limiter != nil {
			mr.Use(s.Limiter.Middleware)
		}
		mr.Post("/items", s.add)
		mr.Put("/items/{id}", s.setQuantity)
		mr.Delete("/items/{id}", s.remove)
		mr.Delete("/", s.clear)
		mr.Post("/checkout", s.checkout)
	})

	return r
}

// qty is the field name the first clients sent.
type addReq struct {
	ID       json.RawMessage `json:"id"`
	Quantity json.RawMessage `json:"quantity"`
	Qty      json.RawMessage `json:"qty"`
}

type quantityReq struct {
	Quantity json.RawMessage `json:"quantity"`
	Qty      json.RawMessage `json:"qty"`
}

type countResp struct {
	ItemCount int `json:"item_count"`
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Service.Get(r.Context(), key))
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, countResp{ItemCount: s.Service.Get(r.Context(), key).ItemCount})
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}

	var req addReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	id := strings.TrimSpace(catalog.IDFromJSON(req.ID))
	if id == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "id required", nil)
		return
	}

	qty := 1
	if raw := present(req.Quantity, req.Qty); !absent(raw) {
		qty = parseQuantity(raw)
	}

	res, err := s.Service.AddItem(r.Context(), key, id, qty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) setQuantity(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}

	var req quantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	res, err := s.Service.SetQuantity(r.Context(), key, chi.URLParam(r, "id"), parseQuantity(present(req.Quantity, req.Qty)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}

	res, err := s.Service.RemoveItem(r.Context(), key, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}

	res, err := s.Service.Clear(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	key, ok := s.slotKey(w, r)
	if !ok {
		return
	}

	res, err := s.Service.Checkout(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) slotKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := SessionFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no session", nil)
		return "", false
	}
	return SlotKey(id), true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid quantity", nil)
	case errors.Is(err, ErrSlotUnavailable):
		if s.Log != nil {
			s.Log.Warn("cart slot unavailable", zap.Error(err), zap.String("path", r.URL.Path))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "cart unavailable", nil)
	case errors.Is(err, catalog.ErrUnavailable):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	case errors.Is(err, catalog.ErrBadDocument):
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	default:
		if s.Log != nil {
			s.Log.Error("cart request failed", zap.Error(err), zap.String("path", r.URL.Path))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

// parseQuantity reads a JSON number or numeric string, truncating fractions.
// Anything else reads as 0 and is left to the quantity policy.
func parseQuantity(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return 0
		}
		f = v
	}

	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
