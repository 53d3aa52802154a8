package catalog

import "math/rand/v2"

type shuffleFunc func(n int, swap func(i, j int))

// SelectFeatured returns up to limit products flagged featured, in catalog
// order. When nothing is flagged it returns limit products sampled uniformly
// without replacement from the whole catalog.
func SelectFeatured(products []Product, limit int) []Product {
	return selectFeatured(products, limit, rand.Shuffle)
}

func selectFeatured(products []Product, limit int, shuffle shuffleFunc) []Product {
	if limit <= 0 {
		return []Product{}
	}

	var flagged []Product
	for _, p := range products {
		if p.Featured {
			flagged = append(flagged, p)
		}
	}
	if len(flagged) > 0 {
		return flagged[:min(limit, len(flagged))]
	}

	pool := make([]Product, len(products))
	copy(pool, products)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	return pool[:min(limit, len(pool))]
}
