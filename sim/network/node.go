package network

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/qos-sim/qos-sim/sim/routing"
)

// LoopbackInterface is the interface index of the implicit loopback device.
// Point-to-point devices are numbered from 1 in the order links are added.
const LoopbackInterface = 0

// Node is a host or router. Every node forwards.
type Node struct {
	id      int
	name    string
	net     *Network
	devices []*Device // devices[i] has interface index i+1
	stack   *Stack
}

func newNode(n *Network, id int, name string) *Node {
	node := &Node{id: id, name: name, net: n}
	node.stack = newStack(node)
	return node
}

// ID returns the node index in creation order.
func (n *Node) ID() int { return n.id }

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Stack returns the node's IP stack.
func (n *Node) Stack() *Stack { return n.stack }

// Devices returns the point-to-point devices in interface order.
func (n *Node) Devices() []*Device { return n.devices }

// Device returns the device with interface index ifindex, or nil.
func (n *Node) Device(ifindex int) *Device {
	if ifindex < 1 || ifindex > len(n.devices) {
		return nil
	}
	return n.devices[ifindex-1]
}

// DeviceTo returns the first device whose link leads to peer.
func (n *Node) DeviceTo(peer *Node) *Device {
	for _, d := range n.devices {
		if d.peer != nil && d.peer.node == peer {
			return d
		}
	}
	return nil
}

// Address returns the address of the first device, the node's default
// source address.
func (n *Node) Address() netip.Addr {
	if len(n.devices) == 0 {
		return netip.Addr{}
	}
	return n.devices[0].addr.Addr()
}

func (n *Node) addDevice(d *Device) {
	n.devices = append(n.devices, d)
	d.ifindex = len(n.devices)
}

func (n *Node) String() string {
	return fmt.Sprintf("node %s", n.name)
}

// PrintRoutingTable writes the node's active routing table.
func (n *Node) PrintRoutingTable(w io.Writer) {
	fmt.Fprintf(w, "Node: %s\n", n.name)
	if tp, ok := n.stack.routing.(routing.TablePrinter); ok {
		tp.PrintRoutingTable(w)
		return
	}
	fmt.Fprintf(w, "  (%T has no printable table)\n", n.stack.routing)
}

// Network returns the network the node belongs to.
func (n *Node) Network() *Network { return n.net }
