package vcider

import "context"

// portAttrs maps port attribute names to paths in the mirrored document.
// The node and network identifiers are addressed dynamically because their
// document path depends on the discovered id-link attribute name.
var portAttrs = map[string]string{
	"vcider_vaddr":  "vcider_vaddr",
	"mac_addr":      "interface/mac_address",
	"virt_ip_addrs": "interface/virt_ip_addrs_set",
	"creation_time": "meta/creation_time",
}

// Port represents a port resource: one node's connection to one network.
//
// The only settable attribute is the virtual address under the controller's
// control. The virtual interface created on the node for this port can carry
// any number of addresses, but only one of them is managed here.
type Port struct {
	resource
}

func newPort(ctx context.Context, c *Client, id, uri string, doc map[string]any, fetch bool) (*Port, error) {
	p := &Port{resource{
		client: c,
		kind:   kindPort,
		attrs:  portAttrs,
		id:     id,
		uri:    uri,
		doc:    doc,
	}}
	if err := p.init(ctx, fetch); err != nil {
		return nil, err
	}
	return p, nil
}

// VciderVaddr returns the one IP address that is under the controller's control.
func (p *Port) VciderVaddr(ctx context.Context) (string, error) {
	return p.getString(ctx, "vcider_vaddr", "vcider_vaddr")
}

// SetVciderVaddr changes the managed virtual address in memory; call Save to
// persist it.
func (p *Port) SetVciderVaddr(ctx context.Context, addr string) error {
	return p.setData(ctx, "vcider_vaddr", "vcider_vaddr", addr)
}

// MACAddr returns the MAC address of the virtual interface.
func (p *Port) MACAddr(ctx context.Context) (string, error) {
	return p.getString(ctx, "mac_addr", "interface/mac_address")
}

// VirtIPAddrs returns all IP addresses configured on the virtual interface.
func (p *Port) VirtIPAddrs(ctx context.Context) ([]string, error) {
	return p.getStringSlice(ctx, "virt_ip_addrs", "interface/virt_ip_addrs_set")
}

// NodeID returns the identifier of the node this port belongs to.
func (p *Port) NodeID(ctx context.Context) (string, error) {
	return p.getString(ctx, "node_id", "links/node/"+p.client.idLinkAttr)
}

// NetworkID returns the identifier of the network this port belongs to.
func (p *Port) NetworkID(ctx context.Context) (string, error) {
	return p.getString(ctx, "network_id", "links/network/"+p.client.idLinkAttr)
}

// CreationTime returns when this port was created.
func (p *Port) CreationTime(ctx context.Context) (string, error) {
	return p.getString(ctx, "creation_time", "meta/creation_time")
}
