package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"storefront/internal/catalog"
)

// Line is one cart entry. Name, Price and Images are a snapshot taken when the
// product was first added and are never refreshed from the catalog.
type Line struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Images   []string `json:"images"`
	Quantity int      `json:"quantity"`
}

// legacyLine is the shape the first cart slots were written in.
type legacyLine struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Nombre   string          `json:"nombre"`
	Price    json.RawMessage `json:"price"`
	Precio   json.RawMessage `json:"precio"`
	Images   []string        `json:"images"`
	Imagenes []string        `json:"imagenes"`
	Quantity json.RawMessage `json:"quantity"`
	Qty      json.RawMessage `json:"qty"`
}

// UnmarshalJSON also reads slots written with nombre/precio/imagenes/qty and
// numeric ids.
func (l *Line) UnmarshalJSON(data []byte) error {
	var raw legacyLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Line{
		ID:     catalog.IDFromJSON(raw.ID),
		Name:   firstNonEmpty(raw.Name, raw.Nombre),
		Images: raw.Images,
	}
	if l.Images == nil {
		l.Images = raw.Imagenes
	}
	l.Price = catalog.NumberFromJSON(present(raw.Price, raw.Precio))

	n, err := lineQuantity(present(raw.Quantity, raw.Qty))
	if err != nil {
		return err
	}
	l.Quantity = n
	return nil
}

// lineQuantity reads a number or numeric string and truncates fractions. An
// absent quantity is one.
func lineQuantity(raw json.RawMessage) (int, error) {
	if absent(raw) {
		return 1, nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(catalog.IDFromJSON(raw)), 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("quantity %s is not a number", raw)
	}

	switch {
	case f > math.MaxInt32:
		return math.MaxInt32, nil
	case f < math.MinInt32:
		return math.MinInt32, nil
	}
	return int(f), nil
}

func present(primary, legacy json.RawMessage) json.RawMessage {
	if absent(primary) {
		return legacy
	}
	return primary
}

func absent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Cart is an ordered list of lines, unique by ID.
type Cart []Line

func (c Cart) index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// ItemCount is the total quantity across lines, the number on the cart badge.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

func (c Cart) Subtotal() float64 {
	var total float64
	for _, l := range c {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	for i, l := range c {
		l.Images = append([]string{}, l.Images...)
		out[i] = l
	}
	return out
}

// normalize merges lines that share an id, keeping the first position and
// summing quantities.
func normalize(c Cart) Cart {
	out := make(Cart, 0, len(c))
	for _, l := range c {
		if l.Images == nil {
			l.Images = []string{}
		}
		if i := out.index(l.ID); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}
