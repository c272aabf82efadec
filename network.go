package vcider

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
)

// networkAttrs maps network attribute names to paths in the mirrored document.
var networkAttrs = map[string]string{
	"name":             "name",
	"net_addresses":    "net_addresses",
	"auto_addr":        "opt_auto_addr",
	"encrypted":        "opt_encrypted",
	"may_use_pub_addr": "opt_may_use_pub_addr",
	"tags":             "tags",
	"creation_time":    "meta/creation_time",
	"cur_packets":      "volatile/cur_packets",
	"cur_traffic":      "volatile/cur_traffic",
	"num_gateways":     "volatile/num_gateways",
	"num_nodes":        "volatile/num_nodes",
	"status_level":     "volatile/status_level",
	"status_msg":       "volatile/status_msg",
}

// networkTranslate maps write-template keys to attribute names where the two
// diverge; the server names the option fields with an opt_ prefix.
var networkTranslate = map[string]string{
	"opt_auto_addr":        "auto_addr",
	"opt_encrypted":        "encrypted",
	"opt_may_use_pub_addr": "may_use_pub_addr",
}

// Network represents a network resource.
//
// Settable attributes are the name, the address space (CIDR), the automatic
// address assignment, encryption and public-address options, and the tags
// used for automatic node assignment.
type Network struct {
	resource
}

func newNetwork(ctx context.Context, c *Client, id, uri string, doc map[string]any, fetch bool) (*Network, error) {
	n := &Network{resource{
		client:    c,
		kind:      kindNetwork,
		attrs:     networkAttrs,
		translate: networkTranslate,
		id:        id,
		uri:       uri,
		doc:       doc,
	}}
	if err := n.init(ctx, fetch); err != nil {
		return nil, err
	}
	return n, nil
}

// Name returns the name of the network.
func (n *Network) Name(ctx context.Context) (string, error) {
	return n.getString(ctx, "name", "name")
}

// SetName changes the network name in memory; call Save to persist it.
func (n *Network) SetName(ctx context.Context, name string) error {
	return n.setData(ctx, "name", "name", name)
}

// NetAddresses returns the CIDR address space of the network.
func (n *Network) NetAddresses(ctx context.Context) (string, error) {
	return n.getString(ctx, "net_addresses", "net_addresses")
}

// SetNetAddresses changes the CIDR address space in memory.
func (n *Network) SetNetAddresses(ctx context.Context, addrs string) error {
	return n.setData(ctx, "net_addresses", "net_addresses", addrs)
}

// AutoAddr reports whether IP addresses are automatically assigned to new nodes.
func (n *Network) AutoAddr(ctx context.Context) (bool, error) {
	return n.getBool(ctx, "auto_addr", "opt_auto_addr")
}

// SetAutoAddr changes the automatic address assignment option in memory.
func (n *Network) SetAutoAddr(ctx context.Context, v bool) error {
	return n.setData(ctx, "auto_addr", "opt_auto_addr", v)
}

// Encrypted reports whether all inter-node traffic on the network is encrypted.
func (n *Network) Encrypted(ctx context.Context) (bool, error) {
	return n.getBool(ctx, "encrypted", "opt_encrypted")
}

// SetEncrypted changes the encryption option in memory.
func (n *Network) SetEncrypted(ctx context.Context, v bool) error {
	return n.setData(ctx, "encrypted", "opt_encrypted", v)
}

// MayUsePubAddr reports whether nodes may contact each other on public addresses.
func (n *Network) MayUsePubAddr(ctx context.Context) (bool, error) {
	return n.getBool(ctx, "may_use_pub_addr", "opt_may_use_pub_addr")
}

// SetMayUsePubAddr changes the public-address option in memory.
func (n *Network) SetMayUsePubAddr(ctx context.Context, v bool) error {
	return n.setData(ctx, "may_use_pub_addr", "opt_may_use_pub_addr", v)
}

// Tags returns the tags defined for this network.
func (n *Network) Tags(ctx context.Context) ([]string, error) {
	return n.getStringSlice(ctx, "tags", "tags")
}

// SetTags changes the network tags in memory.
func (n *Network) SetTags(ctx context.Context, tags []string) error {
	return n.setData(ctx, "tags", "tags", tags)
}

// CreationTime returns when this network was created.
func (n *Network) CreationTime(ctx context.Context) (string, error) {
	return n.getString(ctx, "creation_time", "meta/creation_time")
}

// CurPackets returns the current packets per second within this network.
func (n *Network) CurPackets(ctx context.Context) (float64, error) {
	return n.getFloat(ctx, "cur_packets", "volatile/cur_packets")
}

// CurTraffic returns the current traffic (bytes/s) within this network.
func (n *Network) CurTraffic(ctx context.Context) (float64, error) {
	return n.getFloat(ctx, "cur_traffic", "volatile/cur_traffic")
}

// NumGateways returns how many gateway routes are configured for this network.
func (n *Network) NumGateways(ctx context.Context) (int, error) {
	return n.getInt(ctx, "num_gateways", "volatile/num_gateways")
}

// NumNodes returns the number of member nodes of this network.
func (n *Network) NumNodes(ctx context.Context) (int, error) {
	return n.getInt(ctx, "num_nodes", "volatile/num_nodes")
}

// StatusLevel returns the current status level of the network.
func (n *Network) StatusLevel(ctx context.Context) (int, error) {
	return n.getInt(ctx, "status_level", "volatile/status_level")
}

// StatusMsg returns the current status message of the network.
func (n *Network) StatusMsg(ctx context.Context) (string, error) {
	return n.getString(ctx, "status_msg", "volatile/status_msg")
}

// NodeIDs returns the identifiers of all member nodes of this network.
func (n *Network) NodeIDs(ctx context.Context) ([]string, error) {
	return n.relatedIDs(ctx, "nodes_list")
}

// GetAllNodes returns the member nodes of this network, keyed by node ID.
func (n *Network) GetAllNodes(ctx context.Context) (map[string]*Node, error) {
	items, err := n.relatedItems(ctx, "nodes_list")
	if err != nil {
		return nil, err
	}
	return n.client.nodesFromList(ctx, items)
}

// PortIDs returns the identifiers of all ports of this network.
func (n *Network) PortIDs(ctx context.Context) ([]string, error) {
	return n.relatedIDs(ctx, "ports_list")
}

// GetAllPorts returns the ports (node connections) of this network, keyed by
// port ID.
func (n *Network) GetAllPorts(ctx context.Context) (map[string]*Port, error) {
	items, err := n.relatedItems(ctx, "ports_list")
	if err != nil {
		return nil, err
	}
	return n.client.portsFromList(ctx, items)
}

// AddNode adds the node with the given ID to the network and returns the
// port created for the new connection. The port defers its own fetch until
// first use.
//
// The attach template is taken from the node list's link metadata rather
// than from the network's own template: the POST lands on the node list, so
// the list's template is the schema for what that POST accepts.
func (n *Network) AddNode(ctx context.Context, nodeID string) (*Port, error) {
	templateURI, err := n.getString(ctx, "template_uri", "links/nodes_list/"+n.client.templateLinkAttr)
	if err != nil {
		return nil, err
	}
	template, err := n.client.template(ctx, string(kindNetwork)+"_add_node", templateURI)
	if err != nil {
		return nil, err
	}
	if _, ok := template["node_id"]; !ok {
		return nil, errors.Mark(
			errors.New(`template for adding a node to a network does not declare "node_id"`),
			ErrSchemaMismatch)
	}

	body, err := json.Marshal(map[string]any{"node_id": nodeID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode add-node payload")
	}

	listURI, err := n.getString(ctx, "list_uri", "links/nodes_list/uri")
	if err != nil {
		return nil, err
	}
	resp, err := n.client.api.Post(ctx, listURI, body)
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
	return newPort(ctx, n.client, "", loc, nil, false)
}
