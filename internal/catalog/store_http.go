package catalog

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

// HTTPStore fetches the catalog document from a URL, typically a static file
// on a CDN.
type HTTPStore struct {
	url    string
	client *resty.Client
}

func NewHTTPStore(url string, timeout time.Duration, retries int) *HTTPStore {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPStore{url: url, client: client}
}

func (s *HTTPStore) Close() error {
	return s.client.Close()
}

func (s *HTTPStore) Ping(ctx context.Context) error {
	_, err := s.fetch(ctx)
	return err
}

func (s *HTTPStore) List(ctx context.Context) ([]Product, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

func (s *HTTPStore) Get(ctx context.Context, id string) (Product, bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return Product{}, false, err
	}
	p, ok := Find(products, id)
	return p, ok, nil
}

func (s *HTTPStore) fetch(ctx context.Context) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode())
	}
	return []byte(resp.String()), nil
}
