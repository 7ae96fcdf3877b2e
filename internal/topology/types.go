// Package topology applies batches of network and bond changes to the host
// transactionally: validation up front, mutations in dependency order, and
// best-effort rollback of everything already applied when a step fails.
package topology

import "fmt"

// Boot protocol values for network addressing.
const (
	BootProtoNone = "none"
	BootProtoDHCP = "dhcp"
)

// Switch kinds. Only the legacy kernel switch is driven by this module;
// the field is carried so the comparator can detect drift on it.
const (
	SwitchLegacy = "legacy"
)

// Addressing describes how a network gets its IPv4 address.
type Addressing struct {
	BootProto    string `json:"bootproto"`
	Address      string `json:"address,omitempty"`
	Netmask      string `json:"netmask,omitempty"`
	Gateway      string `json:"gateway,omitempty"`
	DefaultRoute bool   `json:"default_route,omitempty"`
}

// Static reports whether the addressing is a static address assignment.
func (a Addressing) Static() bool {
	return a.BootProto == BootProtoNone && a.Address != ""
}

// QoS is outbound traffic shaping for a network, in the classic
// curve-parameter form. Zero-valued fields mean "not set" and are dropped
// during normalization.
type QoS struct {
	// M1 is the burst rate in bits per second.
	M1 uint64 `json:"m1,omitempty" yaml:"m1,omitempty"`
	// D is the burst duration in microseconds.
	D uint64 `json:"d,omitempty" yaml:"d,omitempty"`
	// M2 is the sustained rate in bits per second.
	M2 uint64 `json:"m2,omitempty" yaml:"m2,omitempty"`
}

// Zero reports whether no shaping parameter is set.
func (q *QoS) Zero() bool {
	return q == nil || (q.M1 == 0 && q.D == 0 && q.M2 == 0)
}

// NetworkSpec is the desired shape of one logical network.
type NetworkSpec struct {
	Name string `json:"name"`
	// NIC is the southbound physical device. Mutually exclusive with Bond.
	NIC string `json:"nic,omitempty"`
	// Bond is the southbound bond device. Mutually exclusive with NIC.
	Bond string `json:"bond,omitempty"`
	// VLAN tags the southbound device when non-nil.
	VLAN *int `json:"vlan,omitempty"`
	// Bridged places a bridge on top of the (possibly tagged) southbound
	// device and hangs the addressing off the bridge.
	Bridged bool `json:"bridged"`
	// STP on the bridge. Meaningless when Bridged is false.
	STP        bool       `json:"stp,omitempty"`
	MTU        int        `json:"mtu"`
	Switch     string     `json:"switch"`
	Addressing Addressing `json:"addressing"`
	QoS        *QoS       `json:"qos,omitempty"`
	// Remove requests teardown instead of creation.
	Remove bool `json:"remove,omitempty"`
}

// Southbound returns the device the network sits on, before VLAN tagging.
func (n NetworkSpec) Southbound() string {
	if n.Bond != "" {
		return n.Bond
	}
	return n.NIC
}

// TaggedDevice returns the device carrying the network's traffic after
// VLAN tagging is accounted for.
func (n NetworkSpec) TaggedDevice() string {
	if n.VLAN != nil {
		return fmt.Sprintf("%s.%d", n.Southbound(), *n.VLAN)
	}
	return n.Southbound()
}

// TopDevice returns the device addressing is applied to: the bridge for
// bridged networks (which share the network's name), the tagged device
// otherwise.
func (n NetworkSpec) TopDevice() string {
	if n.Bridged {
		return n.Name
	}
	return n.TaggedDevice()
}

// BondSpec is the desired shape of one bond device.
type BondSpec struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	// Options are bonding options as key=value pairs.
	Options map[string]string `json:"options,omitempty"`
	Switch  string            `json:"switch"`
	// Remove requests teardown instead of creation.
	Remove bool `json:"remove,omitempty"`
}

// ChangeSet is one requested batch of topology mutations.
type ChangeSet struct {
	Networks map[string]NetworkSpec `json:"networks"`
	Bonds    map[string]BondSpec    `json:"bonds"`
}

// Empty reports whether the change-set requests nothing.
func (c ChangeSet) Empty() bool {
	return len(c.Networks) == 0 && len(c.Bonds) == 0
}

// NetworkState is the live kernel view of one network.
type NetworkState struct {
	Name    string `json:"name" yaml:"name"`
	NIC     string `json:"nic,omitempty" yaml:"nic,omitempty"`
	Bond    string `json:"bond,omitempty" yaml:"bond,omitempty"`
	VLAN    *int   `json:"vlan,omitempty" yaml:"vlan,omitempty"`
	Bridged bool   `json:"bridged" yaml:"bridged"`
	STP     bool   `json:"stp,omitempty" yaml:"stp,omitempty"`
	// MTU is reported as text. The kernel query layer historically
	// stringifies it and the comparator coerces it back.
	MTU        string     `json:"mtu" yaml:"mtu"`
	Switch     string     `json:"switch" yaml:"switch"`
	Addressing Addressing `json:"addressing" yaml:"addressing"`
	QoS        *QoS       `json:"qos,omitempty" yaml:"qos,omitempty"`
}

// Southbound returns the device the network sits on, before VLAN tagging.
func (n NetworkState) Southbound() string {
	if n.Bond != "" {
		return n.Bond
	}
	return n.NIC
}

// TaggedDevice returns the device carrying the network's traffic after
// VLAN tagging is accounted for.
func (n NetworkState) TaggedDevice() string {
	if n.VLAN != nil {
		return fmt.Sprintf("%s.%d", n.Southbound(), *n.VLAN)
	}
	return n.Southbound()
}

// TopDevice returns the device addressing is applied to.
func (n NetworkState) TopDevice() string {
	if n.Bridged {
		return n.Name
	}
	return n.TaggedDevice()
}

// BondState is the live kernel view of one bond.
type BondState struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
	// Options are reported as a single space-separated option string in
	// whatever order the kernel enumerates them.
	Options string `json:"options" yaml:"options"`
	Switch  string `json:"switch" yaml:"switch"`
}

// Snapshot is the live kernel view consumed by verification and by the
// exclusivity check.
type Snapshot struct {
	Networks map[string]NetworkState `json:"networks" yaml:"networks"`
	Bonds    map[string]BondState    `json:"bonds" yaml:"bonds"`
	// NICs are the physical devices present on the host.
	NICs []string `json:"nics" yaml:"nics"`
	// Bridges are all bridge devices, including unmanaged ones.
	Bridges []string `json:"bridges" yaml:"bridges"`
}

// ClaimedBy returns the name of the network or bond currently claiming the
// NIC, or the empty string when it is free.
func (s Snapshot) ClaimedBy(nic string) string {
	for name, bond := range s.Bonds {
		for _, member := range bond.Members {
			if member == nic {
				return name
			}
		}
	}
	for name, network := range s.Networks {
		if network.NIC == nic {
			return name
		}
	}
	return ""
}
