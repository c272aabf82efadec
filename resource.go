package vcider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// resourceKind names a server-side entity kind. The kind keys the discovered
// URI patterns and the template cache.
type resourceKind string

const (
	kindNode    resourceKind = "Node"
	kindNetwork resourceKind = "Network"
	kindPort    resourceKind = "Port"
)

// resource is the shared core of every server-side entity mirrored locally:
// a lazily-fetched, partially-known, mutable local copy of server state.
//
// The mirrored document is either fully absent (the constructor fetches it
// immediately, or defers the fetch to the first field access) or present but
// possibly partial, seeded from a listing's related info. A field access
// against a partial document transparently triggers exactly one refresh
// before declaring the field missing.
//
// A resource performs all network I/O through its owning client; it is never
// constructed without one. Resources are not safe for concurrent mutation.
type resource struct {
	client *Client
	kind   resourceKind

	// attrs maps attribute names to document paths; translate maps write
	// template keys to attribute names where the two diverge.
	attrs     map[string]string
	translate map[string]string

	id  string
	uri string
	doc map[string]any

	// updated reports whether this object has done its own full fetch, not
	// whether the document is usable: a resource seeded from related info is
	// readable but not yet updated.
	updated   bool
	statusMsg string
	deleted   bool
}

// init completes construction: a resource without a document either fetches
// it now or defers to the first field access; a resource seeded with partial
// data is left pending its own full fetch. The identifier, when not supplied
// by the caller, is taken from the document's metadata.
func (r *resource) init(ctx context.Context, fetch bool) error {
	switch {
	case r.doc != nil:
		r.statusMsg = "Not updated yet"
	case fetch:
		if err := r.update(ctx); err != nil {
			return err
		}
	default:
		r.statusMsg = "Not fetched yet"
	}

	if r.id == "" && r.doc != nil {
		if _, err := r.ID(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the server-assigned identifier. For a resource constructed from
// a Location header the identifier is derived lazily from the fetched
// document's metadata.
func (r *resource) ID(ctx context.Context) (string, error) {
	if r.id != "" {
		return r.id, nil
	}
	v, err := r.getData(ctx, "id", "meta/id")
	if err != nil {
		return "", err
	}
	id, err := asString(v)
	if err != nil {
		return "", err
	}
	r.id = id
	return id, nil
}

// URI returns the resource's canonical URI.
func (r *resource) URI() string {
	return r.uri
}

// IsDeleted reports whether the server-side entity was deleted through this
// object. A deletion performed elsewhere is not reflected here.
func (r *resource) IsDeleted() bool {
	return r.deleted
}

// UpdateStatus returns a human-readable message describing the outcome of
// the last refresh attempt.
func (r *resource) UpdateStatus() string {
	return r.statusMsg
}

func (r *resource) String() string {
	return fmt.Sprintf("%s: id: %s (%s)", r.kind, r.id, r.statusMsg)
}

// getData reads the document value at key (a slash-separated path). If a
// path segment is missing and this object has not yet done its own full
// fetch, it refreshes once and retries; a miss after that reports
// ErrMissingAttribute. The loop is bounded, never recursive.
func (r *resource) getData(ctx context.Context, name, key string) (any, error) {
	segments := strings.Split(key, "/")
	for attempt := 0; ; attempt++ {
		if r.doc != nil {
			if v, ok := lookupPath(r.doc, segments); ok {
				return v, nil
			}
		}
		if r.updated || attempt > 0 {
			return nil, errors.Wrapf(ErrMissingAttribute, "%s has no attribute %q", r.kind, name)
		}
		if err := r.update(ctx); err != nil {
			return nil, err
		}
	}
}

// setData writes the document value at key, purely in memory; nothing reaches
// the server until Save. Missing intermediate segments follow the same
// one-shot refresh-then-retry rule as getData.
func (r *resource) setData(ctx context.Context, name, key string, value any) error {
	segments := strings.Split(key, "/")
	for attempt := 0; ; attempt++ {
		if r.doc != nil && storePath(r.doc, segments, value) {
			return nil
		}
		if r.updated || attempt > 0 {
			return errors.Wrapf(ErrMissingAttribute, "%s has no attribute %q", r.kind, name)
		}
		if err := r.update(ctx); err != nil {
			return err
		}
	}
}

// Update refreshes the mirrored document from the server.
//
// The resource is requested with the discovered link-metadata and
// id-inclusion query modifiers (added only when not already present) so that
// template links and foreign-key identifiers are available afterwards.
//
// On failure the object degrades: a 404, or any error while no prior data
// existed, marks the resource unavailable; any other error with prior data
// present marks it stale, keeping the old data readable.
func (r *resource) Update(ctx context.Context) error {
	return r.update(ctx)
}

func (r *resource) update(ctx context.Context) error {
	hadData := r.doc != nil

	path, qs := splitQuery(r.uri)
	var adds []string
	if !strings.Contains(qs, r.client.qsLinkinfo) {
		adds = append(adds, r.client.qsLinkinfo)
	}
	if !strings.Contains(qs, r.client.qsIDs) {
		adds = append(adds, r.client.qsIDs)
	}
	if extra := strings.Join(adds, "&"); extra != "" {
		if qs == "" {
			qs = extra
		} else {
			qs += "&" + extra
		}
	}
	uri := path
	if qs != "" {
		uri = path + "?" + qs
	}

	doc, err := r.client.getJSONDoc(ctx, uri)
	if err != nil {
		r.updated = false
		r.statusMsg = err.Error()

		var apiErr *APIError
		notFound := errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
		if notFound || !hadData {
			return errors.Mark(errors.Wrap(err, "cannot find resource"), ErrUnavailableResource)
		}
		return errors.Mark(errors.Wrap(err, "cannot update resource"), ErrStaleResource)
	}

	r.doc = doc
	r.updated = true
	r.statusMsg = "Ok"
	return nil
}

// Save writes the in-memory field values back to the server.
//
// The write template for this resource kind describes which fields the
// server accepts; the payload contains exactly those keys, each resolved
// from the resource's current attribute values with the kind's name
// translations applied. The server answers a successful save with 204 and
// no body; local state is already the intended new state.
func (r *resource) Save(ctx context.Context) error {
	if r.deleted {
		return errors.Wrapf(ErrResourceDeleted, "cannot save %s %s", r.kind, r.id)
	}

	id, err := r.ID(ctx)
	if err != nil {
		return err
	}
	pattern, ok := r.client.templatePatterns[r.kind]
	if !ok {
		return errors.Newf("no template URI pattern discovered for kind %s", r.kind)
	}
	template, err := r.client.template(ctx, string(r.kind), substituteID(pattern, id))
	if err != nil {
		return err
	}

	payload := make(map[string]any, len(template))
	for key := range template {
		attr := key
		if t, ok := r.translate[key]; ok {
			attr = t
		}
		path, ok := r.attrs[attr]
		if !ok {
			continue
		}
		val, err := r.getData(ctx, attr, path)
		if err != nil {
			if errors.Is(err, ErrMissingAttribute) {
				continue
			}
			return err
		}
		payload[key] = val
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode save payload")
	}

	resp, err := r.client.api.Put(ctx, r.uri, body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return newAPIError(r.uri, resp)
	}
	return nil
}

// Delete removes the server-side entity and latches the deleted flag. The
// local object survives; the flag is never cleared.
func (r *resource) Delete(ctx context.Context) error {
	if r.deleted {
		return errors.Wrapf(ErrResourceDeleted, "%s %s already deleted", r.kind, r.id)
	}

	resp, err := r.client.api.Delete(ctx, r.uri)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return newAPIError(r.uri, resp)
	}
	r.deleted = true
	return nil
}

// relatedIDs follows the named relationship link and returns the bare list
// of identifiers of the listed resources.
func (r *resource) relatedIDs(ctx context.Context, linkName string) ([]string, error) {
	listURI, err := r.getString(ctx, linkName, "links/"+linkName+"/uri")
	if err != nil {
		return nil, err
	}
	items, err := r.client.fetchList(ctx, listURI, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.id)
	}
	return ids, nil
}

// relatedItems follows the named relationship link requesting related info,
// so each listed resource arrives with inlined summary data.
func (r *resource) relatedItems(ctx context.Context, linkName string) ([]listItem, error) {
	listURI, err := r.getString(ctx, linkName, "links/"+linkName+"/uri")
	if err != nil {
		return nil, err
	}
	return r.client.fetchList(ctx, listURI, true)
}

// Typed accessor helpers shared by the resource kinds.

func (r *resource) getString(ctx context.Context, name, key string) (string, error) {
	v, err := r.getData(ctx, name, key)
	if err != nil {
		return "", err
	}
	return asString(v)
}

func (r *resource) getBool(ctx context.Context, name, key string) (bool, error) {
	v, err := r.getData(ctx, name, key)
	if err != nil {
		return false, err
	}
	return asBool(v)
}

func (r *resource) getInt(ctx context.Context, name, key string) (int, error) {
	v, err := r.getData(ctx, name, key)
	if err != nil {
		return 0, err
	}
	return asInt(v)
}

func (r *resource) getFloat(ctx context.Context, name, key string) (float64, error) {
	v, err := r.getData(ctx, name, key)
	if err != nil {
		return 0, err
	}
	return asFloat(v)
}

func (r *resource) getStringSlice(ctx context.Context, name, key string) ([]string, error) {
	v, err := r.getData(ctx, name, key)
	if err != nil {
		return nil, err
	}
	return asStringSlice(v)
}
