package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/pkg/kit"
)

type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func newClient(t *testing.T, svc *Service, limiter *kit.IPRateLimiter) *client {
	t.Helper()
	srv := &Server{
		Service:  svc,
		Sessions: NewSessions("test-secret", time.Hour),
		Limiter:  limiter,
		Log:      zap.NewNop(),
	}
	r := chi.NewRouter()
	r.Mount("/cart", srv.Routes())
	return &client{t: t, h: r}
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "10.0.0.1:1234"
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result {
	t.Helper()
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func TestHTTP_AddThenCheckout(t *testing.T) {
	c := newClient(t, newTestService(t, NewMemSlot(), PolicyClamp), nil)

	rec := c.do(http.MethodPost, "/cart/items", `{"id":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = c.do(http.MethodPost, "/cart/items", `{"id":"1","quantity":"3"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeResult(t, rec)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 5, res.Lines[0].Quantity)
	assert.Equal(t, 5000.0, res.Subtotal)
	assert.True(t, res.Persisted)

	rec = c.do(http.MethodGet, "/cart/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"item_count":5}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/cart/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeResult(t, rec)
	assert.True(t, res.CheckedOut)
	assert.Empty(t, res.Lines)

	rec = c.do(http.MethodPost, "/cart/checkout", "")
	res = decodeResult(t, rec)
	assert.False(t, res.CheckedOut)
	assert.Equal(t, "Your cart is empty.", res.Notice)
}

func TestHTTP_SetRemoveClear(t *testing.T) {
	c := newClient(t, newTestService(t, NewMemSlot(), PolicyClamp), nil)
	c.do(http.MethodPost, "/cart/items", `{"id":"1"}`)
	c.do(http.MethodPost, "/cart/items", `{"id":"2"}`)

	rec := c.do(http.MethodPut, "/cart/items/2", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeResult(t, rec).ItemCount)

	rec = c.do(http.MethodDelete, "/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "2", res.Lines[0].ID)

	rec = c.do(http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeResult(t, rec).ItemCount)

	rec = c.do(http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeResult(t, rec).Lines)
}

func TestHTTP_UnknownProduct(t *testing.T) {
	c := newClient(t, newTestService(t, NewMemSlot(), PolicyClamp), nil)

	rec := c.do(http.MethodPost, "/cart/items", `{"id":"999"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeResult(t, rec).Changed)
}

func TestHTTP_BadRequests(t *testing.T) {
	c := newClient(t, newTestService(t, NewMemSlot(), PolicyReject), nil)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cart/items", `{"quantity":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cart/items", `{"id":"1"`).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cart/items", `{"id":"1","extra":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/cart/items", `{"id":"1","quantity":-2}`).Code)
}

func TestHTTP_CatalogDown(t *testing.T) {
	svc := NewService(NewStore(NewMemSlot()), brokenCatalog{}, Options{})
	c := newClient(t, svc, nil)

	rec := c.do(http.MethodPost, "/cart/items", `{"id":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTP_SessionsDoNotShareCarts(t *testing.T) {
	svc := newTestService(t, NewMemSlot(), PolicyClamp)
	alice := newClient(t, svc, nil)
	bob := newClient(t, svc, nil)

	alice.do(http.MethodPost, "/cart/items", `{"id":"1","quantity":3}`)
	rec := bob.do(http.MethodGet, "/cart/count", "")
	assert.JSONEq(t, `{"item_count":0}`, rec.Body.String())
}

func TestHTTP_MutationsAreRateLimited(t *testing.T) {
	c := newClient(t, newTestService(t, NewMemSlot(), PolicyClamp), kit.NewIPRateLimiter(2, time.Minute))

	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", `{"id":"1"}`).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", `{"id":"1"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodPost, "/cart/items", `{"id":"1"}`).Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/cart", "").Code)
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]int{
		`3`:      3,
		`2.9`:    2,
		`"4"`:    4,
		`" 5 "`:  5,
		`"x"`:    0,
		`null`:   0,
		`true`:   0,
		`-1`:     -1,
		`1e12`:   math.MaxInt32,
		`-1e12`:  math.MinInt32,
		`"1e12"`: math.MaxInt32,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseQuantity(json.RawMessage(in)), in)
	}
}

func TestHTTP_SlotReadFailure(t *testing.T) {
	slot := newFlakySlot()
	c := newClient(t, NewService(NewStore(slot), testCatalog(), Options{}), nil)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", `{"id":"1"}`).Code)

	slot.getErr = errors.New("timeout")
	assert.Equal(t, http.StatusServiceUnavailable, c.do(http.MethodPost, "/cart/items", `{"id":"2"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, c.do(http.MethodDelete, "/cart", "").Code)

	slot.getErr = nil
	assert.JSONEq(t, `{"item_count":1}`, c.do(http.MethodGet, "/cart/count", "").Body.String())
}

func TestHTTP_AcceptsQtyAlias(t *testing.T) {
	c := newClient(t, newTestService(t, NewMemSlot(), PolicyClamp), nil)

	rec := c.do(http.MethodPost, "/cart/items", `{"id":1,"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decodeResult(t, rec).ItemCount)

	rec = c.do(http.MethodPut, "/cart/items/1", `{"qty":"6"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 6, decodeResult(t, rec).ItemCount)
}
