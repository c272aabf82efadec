package vcider

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/vcider/go-vcider/apiclient"
)

// Error kinds surfaced by the resource model and the client facade. All are
// usable with errors.Is; operation errors wrap these sentinels with context.
var (
	// ErrMalformedRequest indicates a request URI the signer could not
	// canonicalize. Fatal to the single call.
	ErrMalformedRequest = apiclient.ErrMalformedRequest

	// ErrExcessiveTimeDrift indicates the server rejected the request on
	// timestamp grounds and the drift could not be resolved.
	ErrExcessiveTimeDrift = apiclient.ErrExcessiveTimeDrift

	// ErrUnavailableResource indicates a resource fetch failed with not-found,
	// or failed with no prior cached data to fall back on. The resource should
	// be treated as unusable.
	ErrUnavailableResource = errors.New("resource unavailable")

	// ErrStaleResource indicates a refresh failed but prior data exists.
	// The resource remains readable with old data.
	ErrStaleResource = errors.New("resource stale")

	// ErrMissingAttribute indicates a field path does not exist on the
	// resource even after one refresh attempt.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrSchemaMismatch indicates locally assembled fields are not recognized
	// by the server's template, which signals version skew between client and
	// server.
	ErrSchemaMismatch = errors.New("template schema mismatch")

	// ErrResourceDeleted indicates an operation on a resource whose server-side
	// entity was already deleted through this object.
	ErrResourceDeleted = errors.New("resource deleted")
)

// APIError reports an unexpected status code from the API. It carries the
// request URI, the status and the response body for diagnostics.
type APIError struct {
	URI        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s returned status %d: %s", e.URI, e.StatusCode, e.Body)
}

func newAPIError(uri string, resp *apiclient.Response) error {
	return &APIError{
		URI:        uri,
		StatusCode: resp.StatusCode,
		Body:       string(resp.Body),
	}
}
