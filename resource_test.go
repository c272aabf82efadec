package vcider

import (
	"context"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResource_LazyFetchOnFirstAccess(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	nodes, err := client.GetAllNodes(ctx)
	require.NoError(t, err)
	node := nodes["n1"]

	assert.Equal(t, "Not updated yet", node.UpdateStatus())
	assert.Equal(t, 0, fs.countFetches("/api/nodes/n1/"))

	// The OS is not part of the inlined related info, so the first access
	// triggers exactly one full fetch.
	os, err := node.OS(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Linux", os)
	assert.Equal(t, 1, fs.countFetches("/api/nodes/n1/"))
	assert.Equal(t, "Ok", node.UpdateStatus())

	// Further accesses are served from the now-complete document.
	_, err = node.SWVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fs.countFetches("/api/nodes/n1/"))
}

func TestResource_MissingAttributeAfterRefresh(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	node, err := client.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, 1, fs.countFetches("/api/nodes/n1/"))

	// The document is fresh, so a missing attribute fails without another
	// round-trip.
	_, err = node.getString(ctx, "bogus", "info/bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAttribute))
	assert.Equal(t, 1, fs.countFetches("/api/nodes/n1/"))
}

func TestResource_MissingAttributeRefreshesOnce(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	nodes, err := client.GetAllNodes(ctx)
	require.NoError(t, err)
	node := nodes["n1"]

	// An attribute missing even from the full document costs exactly one
	// refresh, never more.
	_, err = node.getString(ctx, "bogus", "info/bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAttribute))
	assert.Equal(t, 1, fs.countFetches("/api/nodes/n1/"))
}

func TestResource_UpdateUnavailable(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	node, err := client.GetNode(ctx, "n1")
	require.NoError(t, err)

	fs.removeDoc("/api/nodes/n1/")

	// A 404 marks the resource unavailable even though old data existed.
	err = node.Update(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailableResource))
	assert.NotEqual(t, "Ok", node.UpdateStatus())

	// The stale data remains readable.
	name, err := node.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", name)
}

func TestResource_UpdateStale(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	node, err := client.GetNode(ctx, "n1")
	require.NoError(t, err)

	fs.setHandler(http.MethodGet, "/api/nodes/n1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	// A non-404 failure with prior data marks the resource stale.
	err = node.Update(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaleResource))
	assert.False(t, errors.Is(err, ErrUnavailableResource))
}

func TestResource_SavePayload(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	net, err := client.GetNetwork(ctx, "net1")
	require.NoError(t, err)

	fs.setHandler(http.MethodPut, "/api/nets/net1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, net.SetName(ctx, "renamed"))
	require.NoError(t, net.SetAutoAddr(ctx, false))
	require.NoError(t, net.Save(ctx))

	// The payload holds exactly the template's keys, with the option fields
	// under their server-side names.
	req := fs.lastRequest(t, http.MethodPut, "/api/nets/net1/")
	payload := decodeBody(t, req.body)
	assert.Equal(t, map[string]any{
		"name":                 "renamed",
		"net_addresses":        "10.1.0.0/24",
		"opt_auto_addr":        false,
		"opt_encrypted":        false,
		"opt_may_use_pub_addr": true,
		"tags":                 []any{"web"},
	}, payload)
}

func TestResource_SaveRejected(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	net, err := client.GetNetwork(ctx, "net1")
	require.NoError(t, err)

	fs.setHandler(http.MethodPut, "/api/nets/net1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid name"))
	})

	err = net.Save(ctx)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestResource_DeleteIsTerminal(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	net, err := client.GetNetwork(ctx, "net1")
	require.NoError(t, err)
	assert.False(t, net.IsDeleted())

	fs.setHandler(http.MethodDelete, "/api/nets/net1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, net.Delete(ctx))
	assert.True(t, net.IsDeleted())

	// Every subsequent save or delete fails; the flag never clears.
	err = net.Save(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceDeleted))

	err = net.Delete(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceDeleted))

	// Reads still work on the local copy.
	name, err := net.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prod", name)
}

func TestResource_DeleteRefused(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	// A node still in contact with the controller refuses the delete.
	node, err := client.GetNode(ctx, "n1")
	require.NoError(t, err)

	fs.setHandler(http.MethodDelete, "/api/nodes/n1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("node is still active"))
	})

	err = node.Delete(ctx)
	require.Error(t, err)
	assert.False(t, node.IsDeleted())
}

func TestResource_SetDataNeedsExistingIntermediates(t *testing.T) {
	t.Parallel()

	client, _ := newFixtureClient(t)
	ctx := context.Background()

	node, err := client.GetNode(ctx, "n1")
	require.NoError(t, err)

	err = node.setData(ctx, "bogus", "no_such/branch", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAttribute))
}

func TestResource_String(t *testing.T) {
	t.Parallel()

	client, _ := newFixtureClient(t)

	node, err := client.GetNode(context.Background(), "n1")
	require.NoError(t, err)

	s := node.String()
	assert.Contains(t, s, "Node")
	assert.Contains(t, s, "n1")
	assert.Contains(t, s, "Ok")
}

func TestNode_Relationships(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	node, err := client.GetNode(ctx, "n1")
	require.NoError(t, err)

	netIDs, err := node.NetworkIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"net1"}, netIDs)

	portIDs, err := node.PortIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, portIDs)

	nets, err := node.GetAllNetworks(ctx)
	require.NoError(t, err)
	require.Contains(t, nets, "net1")

	// The networks came from the relationship listing with related info; the
	// network's own document was never fetched.
	assert.Equal(t, 0, fs.countFetches("/api/nets/net1/"))

	name, err := nets["net1"].Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prod", name)

	ports, err := node.GetAllPorts(ctx)
	require.NoError(t, err)
	require.Contains(t, ports, "p1")
}

func TestNetwork_Relationships(t *testing.T) {
	t.Parallel()

	client, _ := newFixtureClient(t)
	ctx := context.Background()

	net, err := client.GetNetwork(ctx, "net1")
	require.NoError(t, err)

	nodeIDs, err := net.NodeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, nodeIDs)

	nodes, err := net.GetAllNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	portIDs, err := net.PortIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, portIDs)
}

func TestNetwork_AddNode(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	net, err := client.GetNetwork(ctx, "net1")
	require.NoError(t, err)

	fs.setHandler(http.MethodPost, "/api/nets/net1/nodes/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/api/ports/p9/")
		w.WriteHeader(http.StatusCreated)
	})
	fs.setDoc("/api/ports/p9/", `{
		"vcider_vaddr": "10.1.0.9",
		"meta": {"id": "p9"},
		"links": {
			"node":    {"uri": "/api/nodes/n2/", "_id_link": "n2"},
			"network": {"uri": "/api/nets/net1/", "_id_link": "net1"}
		}
	}`)

	port, err := net.AddNode(ctx, "n2")
	require.NoError(t, err)

	req := fs.lastRequest(t, http.MethodPost, "/api/nets/net1/nodes/")
	payload := decodeBody(t, req.body)
	assert.Equal(t, map[string]any{"node_id": "n2"}, payload)

	// The port defers its fetch until first use.
	assert.Equal(t, 0, fs.countFetches("/api/ports/p9/"))

	nodeID, err := port.NodeID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n2", nodeID)

	id, err := port.ID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p9", id)
}

func TestNetwork_AddNodeSchemaMismatch(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	net, err := client.GetNetwork(ctx, "net1")
	require.NoError(t, err)

	// The attach template no longer declares node_id.
	fs.setDoc("/api/nets/net1/nodes/tpl/", `{"member": ""}`)

	_, err = net.AddNode(ctx, "n2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestPort_SaveVaddr(t *testing.T) {
	t.Parallel()

	client, fs := newFixtureClient(t)
	ctx := context.Background()

	port, err := client.GetPort(ctx, "p1")
	require.NoError(t, err)

	fs.setHandler(http.MethodPut, "/api/ports/p1/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, port.SetVciderVaddr(ctx, "10.1.0.77"))
	require.NoError(t, port.Save(ctx))

	req := fs.lastRequest(t, http.MethodPut, "/api/ports/p1/")
	payload := decodeBody(t, req.body)
	assert.Equal(t, map[string]any{"vcider_vaddr": "10.1.0.77"}, payload)
}
