package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrBadDocument = errors.New("catalog document malformed")
	ErrUnavailable = errors.New("catalog unavailable")
)

// Product is read-only catalog data. ID holds the string form of the document
// id, so numeric and string ids that print the same are the same product.
type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Category string   `json:"category,omitempty"`
	Images   []string `json:"images"`
	Featured bool     `json:"featured,omitempty"`
}

// rawProduct accepts both the current field names and the legacy Spanish ones
// the first data files were written with.
type rawProduct struct {
	ID        json.RawMessage `json:"id"`
	Name      json.RawMessage `json:"name"`
	Nombre    json.RawMessage `json:"nombre"`
	Price     json.RawMessage `json:"price"`
	Precio    json.RawMessage `json:"precio"`
	Category  json.RawMessage `json:"category"`
	Categoria json.RawMessage `json:"categoria"`
	Images    []string        `json:"images"`
	Imagenes  []string        `json:"imagenes"`
	Featured  json.RawMessage `json:"featured"`
	Destacado json.RawMessage `json:"destacado"`
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var raw rawProduct
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	images := raw.Images
	if images == nil {
		images = raw.Imagenes
	}
	if images == nil {
		images = []string{}
	}

	*p = Product{
		ID:       scalarString(raw.ID),
		Name:     scalarString(pick(raw.Name, raw.Nombre)),
		Price:    price(pick(raw.Price, raw.Precio)),
		Category: scalarString(pick(raw.Category, raw.Categoria)),
		Images:   images,
		Featured: isTrue(pick(raw.Featured, raw.Destacado)),
	}
	return nil
}

// Decode parses a catalog document: a bare list of products, an object with a
// "products" (or legacy "productos") list, or a single product object.
func Decode(data []byte) ([]Product, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return []Product{}, nil
	}

	switch data[0] {
	case '[':
		return decodeList(data)
	case '{':
		var wrapper struct {
			Products  json.RawMessage `json:"products"`
			Productos json.RawMessage `json:"productos"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
		}
		if isList(wrapper.Products) {
			return decodeList(wrapper.Products)
		}
		if isList(wrapper.Productos) {
			return decodeList(wrapper.Productos)
		}

		var p Product
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
		}
		return []Product{p}, nil
	default:
		return nil, fmt.Errorf("%w: want a list or an object", ErrBadDocument)
	}
}

func decodeList(data []byte) ([]Product, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}

	out := make([]Product, 0, len(items))
	for i, it := range items {
		if isNull(it) {
			continue
		}
		var p Product
		if err := json.Unmarshal(it, &p); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrBadDocument, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// IDFromJSON renders a JSON id, string or number, in the string form products
// are keyed by.
func IDFromJSON(raw json.RawMessage) string {
	return scalarString(raw)
}

// Find looks a product up by the string form of its id.
func Find(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func pick(primary, legacy json.RawMessage) json.RawMessage {
	if len(primary) > 0 {
		return primary
	}
	return legacy
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func isList(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

// isTrue only accepts the JSON literal true; "yes", 1 and friends do not count.
func isTrue(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("true"))
}

// scalarString renders strings, numbers and booleans as text; anything else
// (absent, null, objects) is empty.
func scalarString(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || isNull(b) {
		return ""
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		// numbers print the way JavaScript's String() does: 1.0 and 1e0 are "1"
		if v, err := strconv.ParseFloat(string(b), 64); err == nil {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return string(b)
	}
}

// NumberFromJSON reads a number or a numeric string; anything else is 0.
func NumberFromJSON(b json.RawMessage) float64 {
	return price(b)
}

func price(b json.RawMessage) float64 {
	s := strings.TrimSpace(scalarString(b))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
