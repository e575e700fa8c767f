package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quoteboard/internal/adapters/clients"
	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// maxResponseBody caps how much of a success body is decoded.
const maxResponseBody = 1 << 20

// BaseAdapter holds the client and downstream name shared by adapters.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

// NewBaseAdapter creates a BaseAdapter.
func NewBaseAdapter(client *clients.Client, serviceName string) BaseAdapter {
	return BaseAdapter{client: client, serviceName: serviceName}
}

// Client returns the underlying HTTP client.
func (a *BaseAdapter) Client() *clients.Client {
	return a.client
}

// ServiceName returns the downstream name used in errors.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// Get issues a GET and returns the body of a 2xx response; the caller
// closes it. Failures are already domain errors.
func (a *BaseAdapter) Get(ctx context.Context, path, operation string) (io.ReadCloser, error) {
	resp, err := a.client.Get(ctx, path)

	return a.check(resp, err, operation)
}

// PostJSON encodes payload, posts it and returns the body of a 2xx response.
func (a *BaseAdapter) PostJSON(ctx context.Context, path string, payload any, operation string) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", operation, err)
	}

	resp, err := a.client.PostJSON(ctx, path, body)

	return a.check(resp, err, operation)
}

func (a *BaseAdapter) check(resp *http.Response, err error, operation string) (io.ReadCloser, error) {
	if err != nil {
		return nil, MapHTTPError(nil, err, a.serviceName, operation, "")
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, a.serviceName, operation, operation)
	}

	return resp.Body, nil
}

// DecodeResponse decodes a JSON body into T and closes it. Decoding
// failures are reported as domain parse errors attributed to source.
func DecodeResponse[T any](body io.ReadCloser, source string) (T, error) {
	var result T

	if body == nil {
		return result, domain.NewParseError(source, io.ErrUnexpectedEOF)
	}
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(io.LimitReader(body, maxResponseBody)).Decode(&result); err != nil {
		return result, domain.NewParseError(source, err)
	}

	return result, nil
}

// Translator converts one external DTO into a domain value. ok is false
// for items that carry nothing usable.
type Translator[E, D any] func(ext *E) (d D, ok bool)

// TranslateSlice applies translate to every item, keeping the usable ones.
func TranslateSlice[E, D any](items []E, translate Translator[E, D]) []D {
	result := make([]D, 0, len(items))

	for i := range items {
		if d, ok := translate(&items[i]); ok {
			result = append(result, d)
		}
	}

	return result
}
