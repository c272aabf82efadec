package vcider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixtureServer serves a small in-memory rendition of the API: a root
// resource, server info, two nodes, one network, one port, and the write
// templates the save and create paths need. Every request is recorded so
// tests can assert on fetch counts and payloads.
type fixtureServer struct {
	mu       sync.Mutex
	requests []fixtureRequest
	docs     map[string]string
	handlers map[string]http.HandlerFunc // keyed "METHOD /path"
}

type fixtureRequest struct {
	method string
	path   string
	query  string
	body   string
}

func (s *fixtureServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, fixtureRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		body:   string(body),
	})
	h, handled := s.handlers[r.Method+" "+r.URL.Path]
	doc, hasDoc := s.docs[r.URL.Path]
	s.mu.Unlock()

	if handled {
		h(w, r)
		return
	}
	if hasDoc && r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc))
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
}

func (s *fixtureServer) recorded() []fixtureRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fixtureRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// countFetches returns how many GET requests hit the given path.
func (s *fixtureServer) countFetches(path string) int {
	n := 0
	for _, r := range s.recorded() {
		if r.method == http.MethodGet && r.path == path {
			n++
		}
	}
	return n
}

// lastRequest returns the most recent request matching method and path.
func (s *fixtureServer) lastRequest(t *testing.T, method, path string) fixtureRequest {
	t.Helper()
	reqs := s.recorded()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].method == method && reqs[i].path == path {
			return reqs[i]
		}
	}
	t.Fatalf("no recorded %s %s", method, path)
	return fixtureRequest{}
}

func (s *fixtureServer) setHandler(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = h
}

func (s *fixtureServer) setDoc(path, doc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = doc
}

func (s *fixtureServer) removeDoc(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

func newFixtureServer(t *testing.T) (*fixtureServer, *httptest.Server) {
	t.Helper()

	fs := &fixtureServer{
		docs:     make(map[string]string),
		handlers: make(map[string]http.HandlerFunc),
	}

	fs.docs["/api/"] = `{
		"links": {
			"nodes_list":    {"uri": "/api/nodes/"},
			"networks_list": {"uri": "/api/nets/"},
			"server":        {"uri": "/api/server/"},
			"credentials":   {"uri": "/api/creds/"}
		},
		"volatile": {"num_nodes": 2, "num_nets": 1}
	}`

	fs.docs["/api/server/"] = `{
		"volatile": {"server_time": 1700000000},
		"qs_modifiers": {
			"ids":        "_ids",
			"linkinfo":   "_linkinfo",
			"related":    "_related",
			"list_start": "_start",
			"list_end":   "_end"
		},
		"link_attrs": {
			"id":       "_id_link",
			"template": "_template_link",
			"related":  "_related_info"
		},
		"uri_patterns": {
			"Node":    "/api/nodes/{id}/",
			"Network": "/api/nets/{id}/",
			"Port":    "/api/ports/{id}/"
		},
		"template_patterns": {
			"Node":    "/api/nodes/{id}/tpl/",
			"Network": "/api/nets/{id}/tpl/",
			"Port":    "/api/ports/{id}/tpl/"
		},
		"create_patterns": {
			"Network": "/api/nets/tpl/"
		}
	}`

	fs.docs["/api/nodes/"] = `[
		{"uri": "/api/nodes/n1/", "_id_link": "n1", "_related_info": {"name": "alpha"}},
		{"uri": "/api/nodes/n2/", "_id_link": "n2", "_related_info": {"name": "beta"}}
	]`

	fs.docs["/api/nets/"] = `[
		{"uri": "/api/nets/net1/", "_id_link": "net1", "_related_info": {"name": "prod"}}
	]`

	fs.docs["/api/nodes/n1/"] = `{
		"name": "alpha",
		"meta": {"id": "n1", "creation_time": "2012-01-15 10:00:00"},
		"info": {
			"os": "Linux",
			"tags": ["web", "frontend"],
			"sw_version": "0.9.1",
			"phys_addrs_set": ["00:11:22:33:44:55"]
		},
		"volatile": {
			"cur_packets": 12.5,
			"cur_traffic": 1024.0,
			"last_seen": "2012-02-02 08:30:00",
			"num_gateways": 0,
			"num_networks": 1,
			"status_level": 0,
			"status_msg": "ok"
		},
		"links": {
			"networks_list": {"uri": "/api/nodes/n1/nets/"},
			"ports_list":    {"uri": "/api/nodes/n1/ports/"}
		}
	}`

	fs.docs["/api/nodes/n2/"] = `{
		"name": "beta",
		"meta": {"id": "n2", "creation_time": "2012-01-16 11:00:00"},
		"info": {"os": "FreeBSD", "tags": [], "sw_version": "0.9.1", "phys_addrs_set": []},
		"volatile": {
			"cur_packets": 0.0, "cur_traffic": 0.0,
			"last_seen": "2012-02-02 08:31:00",
			"num_gateways": 0, "num_networks": 1,
			"status_level": 1, "status_msg": "degraded"
		},
		"links": {
			"networks_list": {"uri": "/api/nodes/n2/nets/"},
			"ports_list":    {"uri": "/api/nodes/n2/ports/"}
		}
	}`

	fs.docs["/api/nets/net1/"] = `{
		"name": "prod",
		"net_addresses": "10.1.0.0/24",
		"opt_auto_addr": true,
		"opt_encrypted": false,
		"opt_may_use_pub_addr": true,
		"tags": ["web"],
		"meta": {"id": "net1", "creation_time": "2012-01-10 09:00:00"},
		"volatile": {
			"cur_packets": 5.0, "cur_traffic": 512.0,
			"num_gateways": 1, "num_nodes": 2,
			"status_level": 0, "status_msg": "ok"
		},
		"links": {
			"nodes_list": {
				"uri": "/api/nets/net1/nodes/",
				"_template_link": "/api/nets/net1/nodes/tpl/"
			},
			"ports_list": {"uri": "/api/nets/net1/ports/"}
		}
	}`

	fs.docs["/api/ports/p1/"] = `{
		"vcider_vaddr": "10.1.0.5",
		"interface": {
			"mac_address": "aa:bb:cc:dd:ee:ff",
			"virt_ip_addrs_set": ["10.1.0.5", "10.1.0.6"]
		},
		"meta": {"id": "p1", "creation_time": "2012-01-20 12:00:00"},
		"links": {
			"node":    {"uri": "/api/nodes/n1/", "_id_link": "n1"},
			"network": {"uri": "/api/nets/net1/", "_id_link": "net1"}
		}
	}`

	// Relationship listings.
	fs.docs["/api/nodes/n1/nets/"] = `[
		{"uri": "/api/nets/net1/", "_id_link": "net1", "_related_info": {"name": "prod"}}
	]`
	fs.docs["/api/nodes/n1/ports/"] = `[
		{"uri": "/api/ports/p1/", "_id_link": "p1"}
	]`
	fs.docs["/api/nets/net1/nodes/"] = `[
		{"uri": "/api/nodes/n1/", "_id_link": "n1"},
		{"uri": "/api/nodes/n2/", "_id_link": "n2"}
	]`
	fs.docs["/api/nets/net1/ports/"] = `[
		{"uri": "/api/ports/p1/", "_id_link": "p1"}
	]`

	// Write templates.
	fs.docs["/api/nets/net1/tpl/"] = `{
		"name": "",
		"net_addresses": "",
		"opt_auto_addr": false,
		"opt_encrypted": false,
		"opt_may_use_pub_addr": false,
		"tags": []
	}`
	fs.docs["/api/nets/tpl/"] = `{
		"name": "",
		"net_addresses": "",
		"opt_auto_addr": false
	}`
	fs.docs["/api/nets/net1/nodes/tpl/"] = `{"node_id": ""}`
	fs.docs["/api/nodes/n1/tpl/"] = `{"name": ""}`
	fs.docs["/api/ports/p1/tpl/"] = `{"vcider_vaddr": ""}`

	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	return fs, srv
}

func newFixtureClient(t *testing.T) (*Client, *fixtureServer) {
	t.Helper()

	fs, srv := newFixtureServer(t)
	client, err := NewWithConfig(context.Background(), &ClientConfig{
		BaseURI:            srv.URL + "/api/",
		APIID:              "test-api-id",
		APIKey:             "test-api-key",
		RateLimitPerMinute: -1,
	})
	require.NoError(t, err)

	return client, fs
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &m))
	return m
}
