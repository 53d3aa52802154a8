package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/catalog"
	"storefront/pkg/kit"
)

const key = "tg_cart:test"

func testCatalog() *catalog.MemStore {
	return catalog.NewMemStore(
		catalog.Product{ID: "1", Name: "A", Price: 1000, Category: "X", Images: []string{"a.jpg"}},
		catalog.Product{ID: "2", Name: "B", Price: 2000, Category: "Y"},
	)
}

func newTestService(t *testing.T, slot Slot, policy QuantityPolicy) *Service {
	t.Helper()
	return NewService(NewStore(slot), testCatalog(), Options{Policy: policy, Log: zap.NewNop()})
}

type brokenCatalog struct{}

func (brokenCatalog) Get(context.Context, string) (catalog.Product, bool, error) {
	return catalog.Product{}, false, catalog.ErrUnavailable
}

func TestService_EndToEndExample(t *testing.T) {
	ctx := context.Background()
	slot := NewMemSlot()
	svc := newTestService(t, slot, PolicyClamp)

	_, err := svc.AddItem(ctx, key, "1", 2)
	require.NoError(t, err)
	res, err := svc.AddItem(ctx, key, "1", 3)
	require.NoError(t, err)
	assert.Equal(t, "A added to cart.", res.Notice)

	c, err := NewStore(slot).Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, "1", c[0].ID)
	assert.Equal(t, 5, c[0].Quantity)
	assert.Equal(t, 5000.0, c.Subtotal())
	assert.Equal(t, 5000.0, res.Subtotal)
	assert.Equal(t, 5, res.ItemCount)
}

func TestService_AddAccumulates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)

	want := 0
	for _, q := range []int{1, 4, 2, 7} {
		want += q
		res, err := svc.AddItem(ctx, key, "2", q)
		require.NoError(t, err)
		require.Len(t, res.Lines, 1)
		assert.Equal(t, want, res.Lines[0].Quantity)
	}
}

func TestService_AddDefaultsToOne(t *testing.T) {
	res, err := newTestService(t, NewMemSlot(), PolicyReject).AddItem(context.Background(), key, "1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lines[0].Quantity)
}

func TestService_AddSnapshotsProduct(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog()
	svc := NewService(NewStore(NewMemSlot()), cat, Options{})

	_, err := svc.AddItem(ctx, key, "1", 1)
	require.NoError(t, err)

	cat.Replace([]catalog.Product{{ID: "1", Name: "A v2", Price: 1}})
	res, err := svc.AddItem(ctx, key, "1", 1)
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assert.Equal(t, "A", res.Lines[0].Name)
	assert.Equal(t, 1000.0, res.Lines[0].Price)
	assert.Equal(t, []string{"a.jpg"}, res.Lines[0].Images)
	assert.Equal(t, 2, res.Lines[0].Quantity)
}

func TestService_AddKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)

	_, _ = svc.AddItem(ctx, key, "2", 1)
	_, _ = svc.AddItem(ctx, key, "1", 1)
	res, err := svc.AddItem(ctx, key, "2", 1)
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "2", res.Lines[0].ID)
	assert.Equal(t, "1", res.Lines[1].ID)
}

func TestService_AddUnknownProductIsNoop(t *testing.T) {
	ctx := context.Background()
	slot := NewMemSlot()
	svc := newTestService(t, slot, PolicyClamp)

	res, err := svc.AddItem(ctx, key, "404", 1)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Lines)
	assert.Empty(t, res.Notice)

	_, ok, _ := slot.Get(ctx, key)
	assert.False(t, ok, "nothing should be written")
}

func TestService_AddCatalogFailure(t *testing.T) {
	svc := NewService(NewStore(NewMemSlot()), brokenCatalog{}, Options{})

	_, err := svc.AddItem(context.Background(), key, "1", 1)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
}

func TestService_SetQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)
	_, err := svc.AddItem(ctx, key, "1", 2)
	require.NoError(t, err)

	res, err := svc.SetQuantity(ctx, key, "1", 9)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 9, res.Lines[0].Quantity)

	res, err = svc.SetQuantity(ctx, key, "missing", 3)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 9, res.Lines[0].Quantity)
}

func TestService_SetQuantityPolicies(t *testing.T) {
	cases := []struct {
		policy  QuantityPolicy
		in      int
		want    int
		wantErr bool
	}{
		{policy: PolicyClamp, in: 0, want: 1},
		{policy: PolicyClamp, in: -4, want: 1},
		{policy: PolicyClamp, in: 3, want: 3},
		{policy: PolicyAsIs, in: 0, want: 0},
		{policy: PolicyAsIs, in: -2, want: -2},
		{policy: PolicyReject, in: 0, wantErr: true},
		{policy: PolicyReject, in: -1, wantErr: true},
		{policy: PolicyReject, in: 2, want: 2},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%d", tc.policy, tc.in), func(t *testing.T) {
			ctx := context.Background()
			slot := NewMemSlot()
			svc := newTestService(t, slot, tc.policy)
			_, err := svc.AddItem(ctx, key, "1", 5)
			require.NoError(t, err)

			res, err := svc.SetQuantity(ctx, key, "1", tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuantity)
				c, _ := NewStore(slot).Load(ctx, key)
				assert.Equal(t, 5, c[0].Quantity, "rejected value must not be persisted")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Lines[0].Quantity)
		})
	}
}

func TestService_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)
	_, _ = svc.AddItem(ctx, key, "1", 1)
	_, _ = svc.AddItem(ctx, key, "2", 1)

	first, err := svc.RemoveItem(ctx, key, "1")
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := svc.RemoveItem(ctx, key, "1")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Lines, second.Lines)
	assert.True(t, second.Persisted)
}

func TestService_Clear(t *testing.T) {
	ctx := context.Background()
	slot := NewMemSlot()
	svc := newTestService(t, slot, PolicyClamp)
	_, _ = svc.AddItem(ctx, key, "1", 3)

	res, err := svc.Clear(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Zero(t, res.ItemCount)

	c, err := NewStore(slot).Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, c)

	res, err = svc.Clear(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestService_CheckoutTwice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)
	_, _ = svc.AddItem(ctx, key, "1", 1)

	first, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.CheckedOut)
	assert.Equal(t, noticeCheckout, first.Notice)
	assert.Empty(t, first.Lines)

	second, err := svc.Checkout(ctx, key)
	require.NoError(t, err)
	assert.False(t, second.CheckedOut)
	assert.Equal(t, noticeEmptyCart, second.Notice)
}

func TestService_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)

	_, _ = svc.AddItem(ctx, SlotKey("a"), "1", 1)
	assert.Empty(t, svc.Get(ctx, SlotKey("b")).Lines)
	assert.Equal(t, 1, svc.Get(ctx, SlotKey("a")).ItemCount)
}

func TestService_SaveFailureIsSwallowed(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := kit.NewMetrics(reg)

	slot := newFlakySlot()
	slot.setErr = errors.New("quota exceeded")
	svc := NewService(NewStore(slot), testCatalog(), Options{Metrics: metrics})

	res, err := svc.AddItem(context.Background(), key, "1", 2)
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, 2, res.ItemCount, "in-memory result is still returned")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CartOps.WithLabelValues("add", "persist_failed")))

	// the next load does not see the failed write
	assert.Empty(t, svc.Get(context.Background(), key).Lines)
}

func TestService_CorruptSlotReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	slot := NewMemSlot()
	require.NoError(t, slot.Set(ctx, key, "{garbage"))
	svc := newTestService(t, slot, PolicyClamp)

	assert.Empty(t, svc.Get(ctx, key).Lines)

	res, err := svc.AddItem(ctx, key, "2", 1)
	require.NoError(t, err)
	assert.Len(t, res.Lines, 1)

	c, err := NewStore(slot).Load(ctx, key)
	require.NoError(t, err, "a successful write replaces the corrupt value")
	assert.Len(t, c, 1)
}

func TestService_ConcurrentAddsOnOneSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, NewMemSlot(), PolicyClamp)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, key, "1", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, svc.Get(ctx, key).ItemCount)
	assert.Empty(t, svc.locks.m, "locks are released")
}

func TestParseQuantityPolicy(t *testing.T) {
	for in, want := range map[string]QuantityPolicy{"": PolicyClamp, "clamp": PolicyClamp, "as_is": PolicyAsIs, "reject": PolicyReject} {
		got, err := ParseQuantityPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseQuantityPolicy("strict")
	assert.Error(t, err)
}

func TestService_ReadFailureDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	slot := newFlakySlot()
	svc := NewService(NewStore(slot), testCatalog(), Options{})

	_, err := svc.AddItem(ctx, key, "1", 3)
	require.NoError(t, err)

	slot.getErr = errors.New("timeout")
	_, err = svc.AddItem(ctx, key, "2", 1)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	_, err = svc.Clear(ctx, key)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	_, err = svc.Checkout(ctx, key)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Empty(t, svc.Get(ctx, key).Lines, "reads still degrade to empty")

	slot.getErr = nil
	res := svc.Get(ctx, key)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "1", res.Lines[0].ID)
	assert.Equal(t, 3, res.Lines[0].Quantity)
}
