// Package middleware provides reusable HTTP middleware components.
package middleware

import (
	"maps"
	"net/http"
)

// JSONHeaders returns a middleware that declares JSON content negotiation on
// all requests: Content-type and Accept are both set to application/json.
// The vCider API speaks UTF-8 JSON on every endpoint.
func JSONHeaders() func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return &jsonHeadersTransport{next: next}
	}
}

type jsonHeadersTransport struct {
	next http.RoundTripper
}

func (t *jsonHeadersTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid modifying the original
	req = cloneRequest(req)

	req.Header.Set("Content-type", "application/json")
	req.Header.Set("Accept", "application/json")

	//nolint:wrapcheck // Middleware passes through errors from next handler in chain
	return t.next.RoundTrip(req)
}

// cloneRequest creates a shallow copy of the request with a cloned header map.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = make(http.Header, len(req.Header))
	maps.Copy(r.Header, req.Header)
	return r
}
