// Package config loads and canonicalizes the declarative desired-state
// configuration (networks, bonds, reconciler settings) from HCL.
package config

import (
	"grimm.is/hostnet/internal/topology"
)

// CurrentSchemaVersion is written into new configs and accepted on load.
const CurrentSchemaVersion = "1"

// Config is the top-level desired-state document.
type Config struct {
	SchemaVersion string         `hcl:"schema_version,optional"`
	Settings      *Settings      `hcl:"settings,block"`
	Networks      []NetworkBlock `hcl:"network,block"`
	Bonds         []BondBlock    `hcl:"bond,block"`
}

// Settings tunes reconciler behavior.
type Settings struct {
	// ConnectivityCheck probes the default gateway after apply and rolls
	// back when it is unreachable.
	ConnectivityCheck bool `hcl:"connectivity_check,optional"`
	// ConnectivityTimeoutSeconds bounds the probe.
	ConnectivityTimeoutSeconds int `hcl:"connectivity_timeout_seconds,optional"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `hcl:"log_level,optional"`
	// RunningConfigPath overrides where the persisted running config lives.
	RunningConfigPath string `hcl:"running_config_path,optional"`
}

// NetworkBlock is one `network "name" { ... }` block.
type NetworkBlock struct {
	Name         string    `hcl:"name,label"`
	NIC          string    `hcl:"nic,optional"`
	Bond         string    `hcl:"bond,optional"`
	VLAN         *int      `hcl:"vlan,optional"`
	Bridged      *bool     `hcl:"bridged,optional"`
	STP          bool      `hcl:"stp,optional"`
	MTU          int       `hcl:"mtu,optional"`
	Switch       string    `hcl:"switch,optional"`
	BootProto    string    `hcl:"bootproto,optional"`
	Address      string    `hcl:"address,optional"`
	Netmask      string    `hcl:"netmask,optional"`
	Prefix       *int      `hcl:"prefix,optional"`
	Gateway      string    `hcl:"gateway,optional"`
	DefaultRoute bool      `hcl:"default_route,optional"`
	Remove       bool      `hcl:"remove,optional"`
	QoS          *QoSBlock `hcl:"qos,block"`
}

// QoSBlock carries outbound shaping curve parameters.
type QoSBlock struct {
	M1 uint64 `hcl:"m1,optional"`
	D  uint64 `hcl:"d,optional"`
	M2 uint64 `hcl:"m2,optional"`
}

// BondBlock is one `bond "name" { ... }` block.
type BondBlock struct {
	Name    string   `hcl:"name,label"`
	Members []string `hcl:"members,optional"`
	// Options in the kernel's textual form, e.g. "mode=4 miimon=100".
	Options string `hcl:"options,optional"`
	Switch  string `hcl:"switch,optional"`
	Remove  bool   `hcl:"remove,optional"`
}

// ChangeSet converts the canonicalized config into a topology change-set.
// Call Canonicalize first; ChangeSet assumes defaults are already explicit.
func (c *Config) ChangeSet() topology.ChangeSet {
	cs := topology.ChangeSet{
		Networks: make(map[string]topology.NetworkSpec, len(c.Networks)),
		Bonds:    make(map[string]topology.BondSpec, len(c.Bonds)),
	}
	for _, block := range c.Networks {
		bridged := true
		if block.Bridged != nil {
			bridged = *block.Bridged
		}
		spec := topology.NetworkSpec{
			Name:    block.Name,
			NIC:     block.NIC,
			Bond:    block.Bond,
			VLAN:    block.VLAN,
			Bridged: bridged,
			STP:     block.STP,
			MTU:     block.MTU,
			Switch:  block.Switch,
			Remove:  block.Remove,
			Addressing: topology.Addressing{
				BootProto:    block.BootProto,
				Address:      block.Address,
				Netmask:      block.Netmask,
				Gateway:      block.Gateway,
				DefaultRoute: block.DefaultRoute,
			},
		}
		if block.QoS != nil {
			spec.QoS = &topology.QoS{M1: block.QoS.M1, D: block.QoS.D, M2: block.QoS.M2}
		}
		cs.Networks[block.Name] = spec
	}
	for _, block := range c.Bonds {
		cs.Bonds[block.Name] = topology.BondSpec{
			Name:    block.Name,
			Members: block.Members,
			Options: topology.ParseBondOptions(block.Options),
			Switch:  block.Switch,
			Remove:  block.Remove,
		}
	}
	return cs
}
