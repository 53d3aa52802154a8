package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrCorruptCart     = errors.New("persisted cart is corrupt")
	ErrPersist         = errors.New("persist cart")
	ErrSlotUnavailable = errors.New("cart slot unavailable")
)

// SlotKeyPrefix names the persistence slot; the session id is appended.
const SlotKeyPrefix = "tg_cart:"

// Slot is a named string-keyed persistence slot holding one serialized cart
// per key.
type Slot interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

func SlotKey(sessionID string) string {
	return SlotKeyPrefix + sessionID
}

type Store struct {
	slot Slot
}

func NewStore(slot Slot) *Store {
	return &Store{slot: slot}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.slot.Ping(ctx)
}

// Load returns the cart stored under key. Nothing stored is an empty cart
// with no error. On a read failure (ErrSlotUnavailable) or an unparsable value
// (ErrCorruptCart) the cart is still empty and the error says which.
func (s *Store) Load(ctx context.Context, key string) (Cart, error) {
	raw, ok, err := s.slot.Get(ctx, key)
	if err != nil {
		return Cart{}, fmt.Errorf("%w: read: %w", ErrSlotUnavailable, err)
	}
	if !ok || raw == "" {
		return Cart{}, nil
	}

	c, err := decodeCart([]byte(raw))
	if err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	return c, nil
}

// Save replaces the value under key. Failures wrap ErrPersist.
func (s *Store) Save(ctx context.Context, key string, c Cart) error {
	if c == nil {
		c = Cart{}
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersist, err)
	}
	if err := s.slot.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func decodeCart(raw []byte) (Cart, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return Cart{}, nil
	}

	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return normalize(c), nil
}
