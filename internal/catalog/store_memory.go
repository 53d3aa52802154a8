package catalog

import (
	"context"
	"sync"
)

type MemStore struct {
	mu       sync.RWMutex
	products []Product
}

// NewMemStore seeds the store with products, or with a small demo catalog
// when none are given.
func NewMemStore(products ...Product) *MemStore {
	if len(products) == 0 {
		products = demoProducts()
	}
	s := &MemStore{}
	s.Replace(products)
	return s
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := Find(s.products, id)
	return p, ok, nil
}

// Replace swaps the whole catalog.
func (s *MemStore) Replace(products []Product) {
	cp := make([]Product, len(products))
	copy(cp, products)

	s.mu.Lock()
	s.products = cp
	s.mu.Unlock()
}

func demoProducts() []Product {
	return []Product{
		{ID: "1", Name: "Polera básica", Price: 9990, Category: "Poleras", Images: []string{"img/polera-1.jpg"}, Featured: true},
		{ID: "2", Name: "Polerón canguro", Price: 24990, Category: "Polerones", Images: []string{"img/poleron-1.jpg", "img/poleron-2.jpg"}, Featured: true},
		{ID: "3", Name: "Gorro de lana", Price: 7990, Category: "Accesorios", Images: []string{}},
		{ID: "4", Name: "Jockey bordado", Price: 12990, Category: "Accesorios", Images: []string{"img/jockey-1.jpg"}},
	}
}
