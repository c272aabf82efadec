package vcider

import "context"

// nodeAttrs maps node attribute names to paths in the mirrored document.
var nodeAttrs = map[string]string{
	"name":          "name",
	"os":            "info/os",
	"tags":          "info/tags",
	"sw_version":    "info/sw_version",
	"phys_addrs":    "info/phys_addrs_set",
	"creation_time": "meta/creation_time",
	"cur_packets":   "volatile/cur_packets",
	"cur_traffic":   "volatile/cur_traffic",
	"last_seen":     "volatile/last_seen",
	"num_gateways":  "volatile/num_gateways",
	"num_networks":  "volatile/num_networks",
	"status_level":  "volatile/status_level",
	"status_msg":    "volatile/status_msg",
}

// Node represents a node resource.
//
// The only settable attribute is the name; everything else is determined by
// the node itself and cannot be changed via the API. Deleting a node only
// succeeds when contact to the node has been lost: a node still actively
// connected to the controller refuses the delete.
type Node struct {
	resource
}

func newNode(ctx context.Context, c *Client, id, uri string, doc map[string]any, fetch bool) (*Node, error) {
	n := &Node{resource{
		client: c,
		kind:   kindNode,
		attrs:  nodeAttrs,
		id:     id,
		uri:    uri,
		doc:    doc,
	}}
	if err := n.init(ctx, fetch); err != nil {
		return nil, err
	}
	return n, nil
}

// Name returns the name of the node.
func (n *Node) Name(ctx context.Context) (string, error) {
	return n.getString(ctx, "name", "name")
}

// SetName changes the node name in memory; call Save to persist it.
func (n *Node) SetName(ctx context.Context, name string) error {
	return n.setData(ctx, "name", "name", name)
}

// OS returns the operating system of the node.
func (n *Node) OS(ctx context.Context) (string, error) {
	return n.getString(ctx, "os", "info/os")
}

// Tags returns the tags defined for this node.
func (n *Node) Tags(ctx context.Context) ([]string, error) {
	return n.getStringSlice(ctx, "tags", "info/tags")
}

// SWVersion returns the version of the agent software running on this node.
func (n *Node) SWVersion(ctx context.Context) (string, error) {
	return n.getString(ctx, "sw_version", "info/sw_version")
}

// PhysAddrs returns the list of physical addresses of the node.
func (n *Node) PhysAddrs(ctx context.Context) ([]string, error) {
	return n.getStringSlice(ctx, "phys_addrs", "info/phys_addrs_set")
}

// CreationTime returns when this node first connected to the controller.
func (n *Node) CreationTime(ctx context.Context) (string, error) {
	return n.getString(ctx, "creation_time", "meta/creation_time")
}

// CurPackets returns the current packets per second seen by this node.
func (n *Node) CurPackets(ctx context.Context) (float64, error) {
	return n.getFloat(ctx, "cur_packets", "volatile/cur_packets")
}

// CurTraffic returns the current traffic (bytes/s) seen by this node.
func (n *Node) CurTraffic(ctx context.Context) (float64, error) {
	return n.getFloat(ctx, "cur_traffic", "volatile/cur_traffic")
}

// LastSeen returns when this node last reported to the controller.
func (n *Node) LastSeen(ctx context.Context) (string, error) {
	return n.getString(ctx, "last_seen", "volatile/last_seen")
}

// NumGateways returns how many gateway routes are configured for this node.
func (n *Node) NumGateways(ctx context.Context) (int, error) {
	return n.getInt(ctx, "num_gateways", "volatile/num_gateways")
}

// NumNetworks returns the number of networks this node is a member of.
func (n *Node) NumNetworks(ctx context.Context) (int, error) {
	return n.getInt(ctx, "num_networks", "volatile/num_networks")
}

// StatusLevel returns the current status level of the node.
func (n *Node) StatusLevel(ctx context.Context) (int, error) {
	return n.getInt(ctx, "status_level", "volatile/status_level")
}

// StatusMsg returns the current status message of the node.
func (n *Node) StatusMsg(ctx context.Context) (string, error) {
	return n.getString(ctx, "status_msg", "volatile/status_msg")
}

// NetworkIDs returns the identifiers of all networks this node is a member of.
func (n *Node) NetworkIDs(ctx context.Context) ([]string, error) {
	return n.relatedIDs(ctx, "networks_list")
}

// GetAllNetworks returns the networks this node is a member of, keyed by
// network ID. Each network is seeded with the related info the listing
// already inlined, deferring its own full fetch.
func (n *Node) GetAllNetworks(ctx context.Context) (map[string]*Network, error) {
	items, err := n.relatedItems(ctx, "networks_list")
	if err != nil {
		return nil, err
	}
	return n.client.networksFromList(ctx, items)
}

// PortIDs returns the identifiers of all ports of this node.
func (n *Node) PortIDs(ctx context.Context) ([]string, error) {
	return n.relatedIDs(ctx, "ports_list")
}

// GetAllPorts returns the ports (network connections) of this node, keyed by
// port ID.
func (n *Node) GetAllPorts(ctx context.Context) (map[string]*Port, error) {
	items, err := n.relatedItems(ctx, "ports_list")
	if err != nil {
		return nil, err
	}
	return n.client.portsFromList(ctx, items)
}
