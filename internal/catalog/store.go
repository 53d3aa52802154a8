package catalog

import "context"

// Store is a read-only product source. List keeps document order.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
	Ping(ctx context.Context) error
}
