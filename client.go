package vcider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vcider/go-vcider/apiclient"
	"github.com/vcider/go-vcider/observability"
)

// idPlaceholder is the token inside discovered URI patterns that the client
// substitutes with a concrete resource identifier.
const idPlaceholder = "{id}"

// ClientConfig holds configuration for the vCider API client.
type ClientConfig struct {
	// BaseURI is the base URI of the API, e.g. "https://my.vcider.com/api/".
	BaseURI string

	// APIID is the public part of the API credentials.
	APIID string

	// APIKey is the secret part of the API credentials.
	APIKey string

	// AppID identifies the application to connect to. Currently always "0",
	// which is the default.
	AppID string

	// AutoSync enables automatic clock resynchronization when the server
	// rejects a request for excessive time drift.
	AutoSync bool

	// HashAlgorithm selects the signature hash (defaults to SHA256).
	HashAlgorithm apiclient.Algorithm

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout.
	Timeout time.Duration

	// RateLimitPerMinute sets the client-side rate limit. Zero means the
	// default; a negative value disables limiting.
	RateLimitPerMinute int

	// Logger for observability (optional, uses noop logger if nil).
	Logger observability.Logger

	// Metrics recorder for observability (optional, uses noop recorder if nil).
	Metrics observability.MetricsRecorder
}

// Client is the high-level vCider API client.
//
// At construction it fetches the API root, follows the server link to the
// server-info resource, and learns the query-string modifier names, the link
// attribute names, and the per-kind URI and template-URI patterns. All
// accessor methods are built from this discovered configuration; no resource
// URI is ever hard-coded.
//
// The discovered configuration is immutable for the client's lifetime and is
// not re-fetched. Write templates are cached without expiry; they are assumed
// immutable for the process lifetime.
type Client struct {
	api    *apiclient.Client
	logger observability.Logger

	// links are the top-level list URIs learned from the root resource.
	links map[string]string

	// Query-string modifiers discovered from server info.
	qsIDs       string // request identifier inclusion
	qsLinkinfo  string // request link metadata (template links)
	qsRelated   string // request related-object inlining
	qsListStart string // pagination lower bound parameter name
	qsListEnd   string // pagination upper bound parameter name

	// Link attribute names surfaced when the modifiers above are used.
	idLinkAttr       string
	templateLinkAttr string
	relatedLinkAttr  string

	// Discovered URI patterns per resource kind, each containing idPlaceholder.
	uriPatterns      map[resourceKind]string
	templatePatterns map[resourceKind]string
	createPatterns   map[resourceKind]string

	mu            sync.RWMutex
	templateCache map[string]map[string]any
}

// New creates a client with default settings and performs the initial
// discovery of the server's URI patterns and query conventions. Automatic
// clock resynchronization is enabled; use NewWithConfig to control it.
func New(ctx context.Context, baseURI, apiID, apiKey string) (*Client, error) {
	return NewWithConfig(ctx, &ClientConfig{
		BaseURI:  baseURI,
		APIID:    apiID,
		APIKey:   apiKey,
		AutoSync: true,
	})
}

// NewWithConfig creates a client with custom configuration and performs the
// initial discovery.
func NewWithConfig(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	api, err := apiclient.New(&apiclient.Config{
		BaseURI: cfg.BaseURI,
		Credentials: apiclient.Credentials{
			AppID:  cfg.AppID,
			APIID:  cfg.APIID,
			APIKey: cfg.APIKey,
		},
		Algorithm:          cfg.HashAlgorithm,
		AutoSync:           cfg.AutoSync,
		HTTPClient:         cfg.HTTPClient,
		Timeout:            cfg.Timeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             cfg.Logger,
		Metrics:            cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}

	c := &Client{
		api:           api,
		logger:        logger,
		templateCache: make(map[string]map[string]any),
	}
	if err := c.discover(ctx); err != nil {
		return nil, errors.Wrap(err, "server discovery failed")
	}

	return c, nil
}

// API returns the low-level request-signing client, for callers that want to
// follow server-provided links manually.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// discover fetches the root resource and the server-info resource it links
// to, and extracts the configuration every accessor is built from.
func (c *Client) discover(ctx context.Context) error {
	root, err := c.getJSONDoc(ctx, "/")
	if err != nil {
		return err
	}

	c.links = make(map[string]string)
	if links, ok := root["links"].(map[string]any); ok {
		for name, entry := range links {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if uri, err := asString(m["uri"]); err == nil {
				c.links[name] = uri
			}
		}
	}

	serverURI, ok := c.links["server"]
	if !ok {
		return errors.New(`root resource has no "server" link`)
	}
	info, err := c.getJSONDoc(ctx, serverURI)
	if err != nil {
		return err
	}

	if c.qsIDs, err = docString(info, "qs_modifiers/ids"); err != nil {
		return err
	}
	if c.qsLinkinfo, err = docString(info, "qs_modifiers/linkinfo"); err != nil {
		return err
	}
	if c.qsRelated, err = docString(info, "qs_modifiers/related"); err != nil {
		return err
	}
	// Pagination modifiers are optional: older servers do not announce them.
	c.qsListStart, _ = docString(info, "qs_modifiers/list_start")
	c.qsListEnd, _ = docString(info, "qs_modifiers/list_end")

	if c.idLinkAttr, err = docString(info, "link_attrs/id"); err != nil {
		return err
	}
	if c.templateLinkAttr, err = docString(info, "link_attrs/template"); err != nil {
		return err
	}
	if c.relatedLinkAttr, err = docString(info, "link_attrs/related"); err != nil {
		return err
	}

	if c.uriPatterns, err = docPatterns(info, "uri_patterns"); err != nil {
		return err
	}
	if c.templatePatterns, err = docPatterns(info, "template_patterns"); err != nil {
		return err
	}
	// Creation templates exist only for kinds the API allows creating.
	c.createPatterns, _ = docPatterns(info, "create_patterns")

	c.logger.Debug("server discovery complete",
		observability.Field{Key: "links", Value: len(c.links)},
		observability.Field{Key: "uri_patterns", Value: len(c.uriPatterns)},
	)

	return nil
}

// NumNodesAndNets returns the current number of nodes and networks, read
// from the root resource's volatile counters.
func (c *Client) NumNodesAndNets(ctx context.Context) (nodes, nets int, err error) {
	root, err := c.getJSONDoc(ctx, "/")
	if err != nil {
		return 0, 0, err
	}
	v, ok := lookupPath(root, []string{"volatile", "num_nodes"})
	if !ok {
		return 0, 0, errors.New(`root resource has no "volatile/num_nodes"`)
	}
	if nodes, err = asInt(v); err != nil {
		return 0, 0, err
	}
	v, ok = lookupPath(root, []string{"volatile", "num_nets"})
	if !ok {
		return 0, 0, errors.New(`root resource has no "volatile/num_nets"`)
	}
	if nets, err = asInt(v); err != nil {
		return 0, 0, err
	}
	return nodes, nets, nil
}

// ListNodeIDs returns the identifiers of all nodes.
func (c *Client) ListNodeIDs(ctx context.Context) ([]string, error) {
	return c.listIDs(ctx, "nodes_list")
}

// ListNodeIDsRange returns node identifiers bounded by the server's
// discovered pagination parameters.
func (c *Client) ListNodeIDsRange(ctx context.Context, start, end int) ([]string, error) {
	return c.listIDsRange(ctx, "nodes_list", start, end)
}

// GetAllNodes returns all nodes keyed by node ID. Each node is seeded with
// the related info the listing inlined and defers its own full fetch.
func (c *Client) GetAllNodes(ctx context.Context) (map[string]*Node, error) {
	items, err := c.listItems(ctx, "nodes_list")
	if err != nil {
		return nil, err
	}
	return c.nodesFromList(ctx, items)
}

// GetNode fetches the node with the given ID.
func (c *Client) GetNode(ctx context.Context, id string) (*Node, error) {
	uri, err := c.resourceURI(kindNode, id)
	if err != nil {
		return nil, err
	}
	return newNode(ctx, c, id, uri, nil, true)
}

// ListNetworkIDs returns the identifiers of all networks.
func (c *Client) ListNetworkIDs(ctx context.Context) ([]string, error) {
	return c.listIDs(ctx, "networks_list")
}

// ListNetworkIDsRange returns network identifiers bounded by the server's
// discovered pagination parameters.
func (c *Client) ListNetworkIDsRange(ctx context.Context, start, end int) ([]string, error) {
	return c.listIDsRange(ctx, "networks_list", start, end)
}

// GetAllNetworks returns all networks keyed by network ID.
func (c *Client) GetAllNetworks(ctx context.Context) (map[string]*Network, error) {
	items, err := c.listItems(ctx, "networks_list")
	if err != nil {
		return nil, err
	}
	return c.networksFromList(ctx, items)
}

// GetNetwork fetches the network with the given ID.
func (c *Client) GetNetwork(ctx context.Context, id string) (*Network, error) {
	uri, err := c.resourceURI(kindNetwork, id)
	if err != nil {
		return nil, err
	}
	return newNetwork(ctx, c, id, uri, nil, true)
}

// GetPort fetches the port with the given ID.
func (c *Client) GetPort(ctx context.Context, id string) (*Port, error) {
	uri, err := c.resourceURI(kindPort, id)
	if err != nil {
		return nil, err
	}
	return newPort(ctx, c, id, uri, nil, true)
}

// CreateNetwork creates a new network and returns its local representation,
// which defers its own fetch until first use.
//
// The locally assembled fields are validated against the server's creation
// template; a field the template does not know signals version skew between
// client and server and fails with ErrSchemaMismatch.
func (c *Client) CreateNetwork(ctx context.Context, name, netAddresses string, autoAddr bool) (*Network, error) {
	pattern, ok := c.createPatterns[kindNetwork]
	if !ok {
		return nil, errors.New("server announced no network creation template")
	}
	template, err := c.template(ctx, string(kindNetwork)+"_create", pattern)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"name":          name,
		"net_addresses": netAddresses,
		"opt_auto_addr": autoAddr,
	}
	for key := range fields {
		if _, ok := template[key]; !ok {
			return nil, errors.Mark(
				errors.Newf("field %q not present in the network creation template", key),
				ErrSchemaMismatch)
		}
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode create payload")
	}

	listURI, err := c.link("networks_list")
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Post(ctx, listURI, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, newAPIError(listURI, resp)
	}

	loc, err := locationPath(resp, listURI)
	if err != nil {
		return nil, err
	}
	return newNetwork(ctx, c, "", loc, nil, false)
}

// link returns a top-level list URI learned from the root resource.
func (c *Client) link(name string) (string, error) {
	uri, ok := c.links[name]
	if !ok {
		return "", errors.Newf("root resource has no %q link", name)
	}
	return uri, nil
}

// resourceURI substitutes a concrete identifier into the discovered URI
// pattern for the kind.
func (c *Client) resourceURI(kind resourceKind, id string) (string, error) {
	pattern, ok := c.uriPatterns[kind]
	if !ok {
		return "", errors.Newf("no URI pattern discovered for kind %s", kind)
	}
	return substituteID(pattern, id), nil
}

func (c *Client) listIDs(ctx context.Context, linkName string) ([]string, error) {
	uri, err := c.link(linkName)
	if err != nil {
		return nil, err
	}
	items, err := c.fetchList(ctx, uri, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.id)
	}
	return ids, nil
}

func (c *Client) listIDsRange(ctx context.Context, linkName string, start, end int) ([]string, error) {
	if c.qsListStart == "" || c.qsListEnd == "" {
		return nil, errors.New("server announced no pagination parameters")
	}
	uri, err := c.link(linkName)
	if err != nil {
		return nil, err
	}
	uri = appendQuery(uri, fmt.Sprintf("%s=%d&%s=%d", c.qsListStart, start, c.qsListEnd, end))
	items, err := c.fetchList(ctx, uri, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.id)
	}
	return ids, nil
}

func (c *Client) listItems(ctx context.Context, linkName string) ([]listItem, error) {
	uri, err := c.link(linkName)
	if err != nil {
		return nil, err
	}
	return c.fetchList(ctx, uri, true)
}

// listItem is one entry of a list resource: the linked resource's identifier
// and URI, plus whatever related summary data the server inlined.
type listItem struct {
	id      string
	uri     string
	related map[string]any
}

// fetchList retrieves a list resource, optionally decorated with the
// related-info query modifier, and normalizes its entries.
func (c *Client) fetchList(ctx context.Context, uri string, related bool) ([]listItem, error) {
	if related {
		uri = appendQuery(uri, c.qsRelated)
	}
	raw, err := c.getJSON(ctx, uri)
	if err != nil {
		return nil, err
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, errors.Newf("list resource %s has unexpected shape %T", uri, raw)
	}

	items := make([]listItem, 0, len(arr))
	for _, e := range arr {
		entry, ok := e.(map[string]any)
		if !ok {
			return nil, errors.Newf("list entry of %s has unexpected shape %T", uri, e)
		}
		entryURI, err := asString(entry["uri"])
		if err != nil {
			return nil, errors.Wrapf(err, "list entry of %s has no usable uri", uri)
		}
		entryURI, _ = splitQuery(entryURI)

		item := listItem{uri: entryURI}
		if v, ok := entry[c.idLinkAttr]; ok {
			if item.id, err = asString(v); err != nil {
				return nil, err
			}
		} else {
			item.id = lastPathSegment(entryURI)
		}
		if rel, ok := entry[c.relatedLinkAttr].(map[string]any); ok {
			item.related = rel
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) nodesFromList(ctx context.Context, items []listItem) (map[string]*Node, error) {
	out := make(map[string]*Node, len(items))
	for _, item := range items {
		n, err := newNode(ctx, c, item.id, item.uri, item.related, false)
		if err != nil {
			return nil, err
		}
		out[item.id] = n
	}
	return out, nil
}

func (c *Client) networksFromList(ctx context.Context, items []listItem) (map[string]*Network, error) {
	out := make(map[string]*Network, len(items))
	for _, item := range items {
		n, err := newNetwork(ctx, c, item.id, item.uri, item.related, false)
		if err != nil {
			return nil, err
		}
		out[item.id] = n
	}
	return out, nil
}

func (c *Client) portsFromList(ctx context.Context, items []listItem) (map[string]*Port, error) {
	out := make(map[string]*Port, len(items))
	for _, item := range items {
		p, err := newPort(ctx, c, item.id, item.uri, item.related, false)
		if err != nil {
			return nil, err
		}
		out[item.id] = p
	}
	return out, nil
}

// template returns the write template cached under name, fetching it from
// uri on the first request.
func (c *Client) template(ctx context.Context, name, uri string) (map[string]any, error) {
	c.mu.RLock()
	t, ok := c.templateCache[name]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := c.getJSONDoc(ctx, uri)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.templateCache[name] = t
	c.mu.Unlock()
	return t, nil
}

// getJSON issues a GET expecting 200 and decodes the JSON body. Numbers are
// kept as json.Number so identifiers and timestamps survive round-trips.
func (c *Client) getJSON(ctx context.Context, uri string) (any, error) {
	resp, err := c.api.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(uri, resp)
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrapf(err, "invalid JSON from %s", uri)
	}
	return v, nil
}

// getJSONDoc is getJSON for resources known to be JSON objects.
func (c *Client) getJSONDoc(ctx context.Context, uri string) (map[string]any, error) {
	v, err := c.getJSON(ctx, uri)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Newf("resource %s has unexpected shape %T", uri, v)
	}
	return doc, nil
}

func substituteID(pattern, id string) string {
	return strings.ReplaceAll(pattern, idPlaceholder, id)
}

// appendQuery attaches a query fragment to a URI that may or may not already
// carry a query string.
func appendQuery(uri, fragment string) string {
	if fragment == "" {
		return uri
	}
	if strings.Contains(uri, "?") {
		return uri + "&" + fragment
	}
	return uri + "?" + fragment
}

func lastPathSegment(uri string) string {
	trimmed := strings.TrimSuffix(uri, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// locationPath extracts the path of the Location header from a 201 response.
func locationPath(resp *apiclient.Response, uri string) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.Newf("created response from %s carries no Location header", uri)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", errors.Wrapf(err, "invalid Location header from %s", uri)
	}
	if u.Path == "" {
		return "", errors.Newf("Location header %q from %s has no path", loc, uri)
	}
	return u.Path, nil
}

// docString reads a required string at a slash-separated path of a document.
func docString(doc map[string]any, path string) (string, error) {
	v, ok := lookupPath(doc, strings.Split(path, "/"))
	if !ok {
		return "", errors.Newf("server info is missing %q", path)
	}
	return asString(v)
}

// docPatterns reads a map of per-kind URI patterns from a document.
func docPatterns(doc map[string]any, key string) (map[resourceKind]string, error) {
	raw, ok := doc[key].(map[string]any)
	if !ok {
		return nil, errors.Newf("server info is missing %q", key)
	}
	out := make(map[resourceKind]string, len(raw))
	for kind, v := range raw {
		s, err := asString(v)
		if err != nil {
			return nil, errors.Wrapf(err, "server info %s/%s", key, kind)
		}
		out[resourceKind(kind)] = s
	}
	return out, nil
}
