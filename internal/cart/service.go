package cart

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/catalog"
	"storefront/pkg/kit"
)

const (
	noticeEmptyCart = "Your cart is empty."
	noticeCheckout  = "Simulated purchase completed. Thank you!"
)

// Catalog resolves product ids for AddItem.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, bool, error)
}

// Result is the cart after an operation plus what the view needs to render:
// badge count, subtotal and an optional notice.
type Result struct {
	Lines      Cart    `json:"lines"`
	ItemCount  int     `json:"item_count"`
	Subtotal   float64 `json:"subtotal"`
	Changed    bool    `json:"changed"`
	Persisted  bool    `json:"persisted"`
	CheckedOut bool    `json:"checked_out,omitempty"`
	Notice     string  `json:"notice,omitempty"`
}

type Options struct {
	Policy  QuantityPolicy
	Log     *zap.Logger
	Metrics *kit.Metrics
}

// Service runs cart mutations as load, modify, save under a per-key lock.
type Service struct {
	store   *Store
	catalog Catalog
	policy  QuantityPolicy
	log     *zap.Logger
	metrics *kit.Metrics
	locks   keyLocks
}

func NewService(store *Store, cat Catalog, opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		catalog: cat,
		policy:  opts.Policy,
		log:     log,
		metrics: opts.Metrics,
	}
}

func (s *Service) Policy() QuantityPolicy { return s.policy }

// change is what a mutation decided: the next cart, whether to write it and
// whether it differs from what was loaded.
type change struct {
	cart       Cart
	save       bool
	changed    bool
	checkedOut bool
	notice     string
}

func (s *Service) Get(ctx context.Context, key string) Result {
	unlock := s.locks.lock(key)
	defer unlock()

	c, _ := s.load(ctx, key)
	return result(c, change{}, true)
}

// AddItem adds quantity of the product to the cart, accumulating onto an
// existing line. Zero means one. An unknown product id is a no-op.
func (s *Service) AddItem(ctx context.Context, key, productID string, quantity int) (Result, error) {
	if quantity == 0 {
		quantity = 1
	}
	quantity, err := s.policy.apply(quantity)
	if err != nil {
		s.metrics.CartOp("add", "invalid")
		return Result{}, err
	}

	p, found, err := s.catalog.Get(ctx, productID)
	if err != nil {
		s.metrics.CartOp("add", "error")
		return Result{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}

	return s.mutate(ctx, "add", key, func(c Cart) change {
		if !found {
			s.log.Warn("product not found", zap.String("product_id", productID))
			return change{cart: c}
		}

		if i := c.index(p.ID); i >= 0 {
			c[i].Quantity += quantity
		} else {
			c = append(c, Line{
				ID:       p.ID,
				Name:     p.Name,
				Price:    p.Price,
				Images:   append([]string{}, p.Images...),
				Quantity: quantity,
			})
		}
		return change{cart: c, save: true, changed: true, notice: p.Name + " added to cart."}
	})
}

// SetQuantity overwrites the quantity of line id, subject to the quantity
// policy. A missing line is a no-op.
func (s *Service) SetQuantity(ctx context.Context, key, id string, quantity int) (Result, error) {
	quantity, err := s.policy.apply(quantity)
	if err != nil {
		s.metrics.CartOp("set_quantity", "invalid")
		return Result{}, err
	}

	return s.mutate(ctx, "set_quantity", key, func(c Cart) change {
		i := c.index(id)
		if i < 0 {
			return change{cart: c}
		}
		changed := c[i].Quantity != quantity
		c[i].Quantity = quantity
		return change{cart: c, save: true, changed: changed}
	})
}

// RemoveItem drops line id. The cart is written back even when id is absent.
func (s *Service) RemoveItem(ctx context.Context, key, id string) (Result, error) {
	return s.mutate(ctx, "remove", key, func(c Cart) change {
		out := make(Cart, 0, len(c))
		for _, l := range c {
			if l.ID != id {
				out = append(out, l)
			}
		}
		return change{cart: out, save: true, changed: len(out) != len(c)}
	})
}

func (s *Service) Clear(ctx context.Context, key string) (Result, error) {
	return s.mutate(ctx, "clear", key, func(c Cart) change {
		return change{cart: Cart{}, save: true, changed: len(c) > 0}
	})
}

// Checkout empties a non-empty cart. No order is recorded anywhere; the
// purchase is simulated.
func (s *Service) Checkout(ctx context.Context, key string) (Result, error) {
	return s.mutate(ctx, "checkout", key, func(c Cart) change {
		if len(c) == 0 {
			return change{cart: c, notice: noticeEmptyCart}
		}
		return change{cart: Cart{}, save: true, changed: true, checkedOut: true, notice: noticeCheckout}
	})
}

func (s *Service) mutate(ctx context.Context, op, key string, fn func(Cart) change) (Result, error) {
	unlock := s.locks.lock(key)
	defer unlock()

	c, err := s.load(ctx, key)
	if err != nil && !errors.Is(err, ErrCorruptCart) {
		// the stored cart may still be there; writing now would replace it
		s.metrics.CartOp(op, "load_failed")
		return Result{}, err
	}

	ch := fn(c)
	if !ch.save {
		s.metrics.CartOp(op, "noop")
		return result(ch.cart, ch, true), nil
	}

	persisted := true
	if err := s.store.Save(ctx, key, ch.cart); err != nil {
		persisted = false
		s.metrics.PersistFailed()
		s.log.Error("save cart failed", zap.String("op", op), zap.Error(err))
	}

	s.metrics.CartOp(op, outcome(ch, persisted))
	return result(ch.cart, ch, persisted), nil
}

// load logs a failed read and returns an empty cart with the error. A corrupt
// cart is safe to overwrite; an unreadable slot is not.
func (s *Service) load(ctx context.Context, key string) (Cart, error) {
	c, err := s.store.Load(ctx, key)
	if err != nil {
		level := s.log.Error
		if errors.Is(err, ErrCorruptCart) {
			level = s.log.Warn
		}
		level("load cart failed, using an empty cart", zap.Error(err))
	}
	return c.clone(), err
}

func result(c Cart, ch change, persisted bool) Result {
	return Result{
		Lines:      c,
		ItemCount:  c.ItemCount(),
		Subtotal:   c.Subtotal(),
		Changed:    ch.changed,
		Persisted:  persisted,
		CheckedOut: ch.checkedOut,
		Notice:     ch.notice,
	}
}

func outcome(ch change, persisted bool) string {
	switch {
	case !persisted:
		return "persist_failed"
	case ch.changed:
		return "ok"
	default:
		return "unchanged"
	}
}
