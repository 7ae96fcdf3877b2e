// Package kernelconfig canonicalizes the persisted intended configuration
// and the kernel-reported live state so the two can be compared for
// equivalence. It never mutates anything; it is a pure comparison layer.
package kernelconfig

import (
	"sort"
	"strconv"
	"strings"

	"grimm.is/hostnet/internal/link"
	"grimm.is/hostnet/internal/topology"
)

// Network is the canonical form of one network, restricted to the fields
// under reconciliation control.
type Network struct {
	NIC          string `yaml:"nic,omitempty"`
	Bond         string `yaml:"bond,omitempty"`
	VLAN         *int   `yaml:"vlan,omitempty"`
	Bridged      bool   `yaml:"bridged"`
	STP          bool   `yaml:"stp"`
	MTU          int    `yaml:"mtu"`
	Switch       string `yaml:"switch"`
	BootProto    string `yaml:"bootproto"`
	Address      string `yaml:"address,omitempty"`
	Netmask      string `yaml:"netmask,omitempty"`
	Gateway      string `yaml:"gateway,omitempty"`
	DefaultRoute bool   `yaml:"default_route"`
	// QoS holds only the shaping parameters that are actually set; the
	// zero value of a parameter means "not set" and is dropped so that an
	// all-zero spec and an absent spec canonicalize identically.
	QoS map[string]uint64 `yaml:"qos,omitempty"`
}

// Bond is the canonical form of one bond.
type Bond struct {
	// Members sorted; member order is not meaningful.
	Members []string `yaml:"members"`
	// Options as sorted key=value tokens; kernel-reported option order is
	// not meaningful either.
	Options []string `yaml:"options"`
	Switch  string   `yaml:"switch"`
}

// Tree is a canonical configuration tree.
type Tree struct {
	Networks map[string]Network `yaml:"networks"`
	Bonds    map[string]Bond    `yaml:"bonds"`
}

// NormalizeDesired canonicalizes an intended configuration.
func NormalizeDesired(networks map[string]topology.NetworkSpec, bonds map[string]topology.BondSpec) Tree {
	tree := Tree{
		Networks: make(map[string]Network, len(networks)),
		Bonds:    make(map[string]Bond, len(bonds)),
	}
	for name, spec := range networks {
		if spec.Remove {
			continue
		}
		tree.Networks[name] = Network{
			NIC:          spec.NIC,
			Bond:         spec.Bond,
			VLAN:         spec.VLAN,
			Bridged:      spec.Bridged,
			STP:          spec.STP,
			MTU:          defaultMTU(spec.MTU),
			Switch:       defaultSwitch(spec.Switch),
			BootProto:    defaultBootProto(spec.Addressing.BootProto),
			Address:      spec.Addressing.Address,
			Netmask:      spec.Addressing.Netmask,
			Gateway:      spec.Addressing.Gateway,
			DefaultRoute: spec.Addressing.DefaultRoute,
			QoS:          normalizeQoS(spec.QoS),
		}
	}
	for name, spec := range bonds {
		if spec.Remove {
			continue
		}
		tree.Bonds[name] = Bond{
			Members: sortedCopy(spec.Members),
			Options: optionTokens(spec.Options),
			Switch:  defaultSwitch(spec.Switch),
		}
	}
	return tree
}

// NormalizeRunning canonicalizes the kernel-reported live state.
func NormalizeRunning(snap topology.Snapshot) Tree {
	tree := Tree{
		Networks: make(map[string]Network, len(snap.Networks)),
		Bonds:    make(map[string]Bond, len(snap.Bonds)),
	}
	for name, state := range snap.Networks {
		tree.Networks[name] = Network{
			NIC:          state.NIC,
			Bond:         state.Bond,
			VLAN:         state.VLAN,
			Bridged:      state.Bridged,
			STP:          state.STP,
			MTU:          coerceMTU(state.MTU),
			Switch:       defaultSwitch(state.Switch),
			BootProto:    defaultBootProto(state.Addressing.BootProto),
			Address:      state.Addressing.Address,
			Netmask:      state.Addressing.Netmask,
			Gateway:      state.Addressing.Gateway,
			DefaultRoute: state.Addressing.DefaultRoute,
			QoS:          normalizeQoS(state.QoS),
		}
	}
	for name, state := range snap.Bonds {
		options := topology.ParseBondOptions(state.Options)
		tree.Bonds[name] = Bond{
			Members: sortedCopy(state.Members),
			Options: optionTokens(options),
			Switch:  defaultSwitch(state.Switch),
		}
	}
	return tree
}

// coerceMTU turns a textually reported MTU into a number. Unparseable text
// canonicalizes to the default rather than poisoning the comparison with a
// zero no desired config would ever carry.
func coerceMTU(s string) int {
	mtu, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || mtu <= 0 {
		return link.DefaultMTU
	}
	return mtu
}

func defaultMTU(mtu int) int {
	if mtu <= 0 {
		return link.DefaultMTU
	}
	return mtu
}

func defaultSwitch(s string) string {
	if s == "" {
		return topology.SwitchLegacy
	}
	return s
}

func defaultBootProto(s string) string {
	if s == "" {
		return topology.BootProtoNone
	}
	return s
}

func normalizeQoS(q *topology.QoS) map[string]uint64 {
	if q.Zero() {
		return nil
	}
	out := make(map[string]uint64, 3)
	if q.M1 != 0 {
		out["m1"] = q.M1
	}
	if q.D != 0 {
		out["d"] = q.D
	}
	if q.M2 != 0 {
		out["m2"] = q.M2
	}
	return out
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func optionTokens(options map[string]string) []string {
	tokens := make([]string, 0, len(options))
	for key, value := range options {
		tokens = append(tokens, key+"="+value)
	}
	sort.Strings(tokens)
	return tokens
}
