package topology

import (
	"fmt"
	"strings"
)

// plan expands the change-set into an ordered step list. Removals run
// first (networks, then bonds), creations after (bonds, then networks), so
// nothing ever references an already-destroyed device mid-transaction.
// Editing an existing entity is planned as its removal followed by its
// re-creation in the requested shape.
//
// Undo closures for removal steps are reconstructed from the validation-time
// snapshot, which is the last coherent view of what is being torn down.
func (t *Transaction) plan(cs ChangeSet, snap Snapshot) []step {
	var steps []step

	for _, name := range sortedNetworkNames(cs.Networks) {
		if state, exists := snap.Networks[name]; exists {
			steps = append(steps, t.removeNetworkSteps(name, state)...)
		}
	}

	for _, name := range sortedBondNames(cs.Bonds) {
		bond := cs.Bonds[name]
		state, exists := snap.Bonds[name]
		switch {
		case bond.Remove && exists:
			steps = append(steps, t.removeBondSteps(name, state)...)
		case !bond.Remove && exists:
			steps = append(steps, t.editBondSteps(name, bond, state)...)
		case !bond.Remove && !exists:
			steps = append(steps, t.addBondSteps(name, bond)...)
		}
	}

	for _, name := range sortedNetworkNames(cs.Networks) {
		network := cs.Networks[name]
		if network.Remove {
			continue
		}
		steps = append(steps, t.addNetworkSteps(name, network)...)
	}

	return steps
}

func (t *Transaction) addNetworkSteps(name string, n NetworkSpec) []step {
	var steps []step
	southbound := n.Southbound()
	tagged := n.TaggedDevice()
	top := n.TopDevice()

	if southbound != "" {
		steps = append(steps, step{
			desc: fmt.Sprintf("up %s for network %s", southbound, name),
			run:  func() error { return t.links.Up(southbound, true, false) },
		})
		if n.MTU > 0 {
			steps = append(steps, step{
				desc: fmt.Sprintf("set mtu %d on %s", n.MTU, southbound),
				run:  func() error { return t.drv.SetMTU(southbound, n.MTU) },
			})
		}
	}

	if n.VLAN != nil {
		tag := *n.VLAN
		steps = append(steps, step{
			desc: fmt.Sprintf("create vlan %s", tagged),
			run:  func() error { return t.drv.CreateVLAN(southbound, tag) },
			undo: func() error { return t.drv.DeleteVLAN(southbound, tag) },
		})
		steps = append(steps, step{
			desc: fmt.Sprintf("up %s", tagged),
			run:  func() error { return t.links.Up(tagged, false, false) },
		})
	}

	if n.Bridged {
		steps = append(steps, step{
			desc: fmt.Sprintf("create bridge %s", name),
			run:  func() error { return t.drv.CreateBridge(name, n.STP) },
			undo: func() error { return t.drv.DeleteBridge(name) },
		})
		if tagged != "" {
			steps = append(steps, step{
				desc: fmt.Sprintf("attach %s to bridge %s", tagged, name),
				run:  func() error { return t.drv.Enslave(name, tagged) },
				undo: func() error { return t.drv.Release(tagged) },
			})
		}
		if n.MTU > 0 {
			steps = append(steps, step{
				desc: fmt.Sprintf("set mtu %d on %s", n.MTU, name),
				run:  func() error { return t.drv.SetMTU(name, n.MTU) },
			})
		}
		steps = append(steps, step{
			desc: fmt.Sprintf("up bridge %s", name),
			run:  func() error { return t.links.Up(name, true, false) },
		})
	}

	if n.Addressing.Static() {
		addr, mask := n.Addressing.Address, n.Addressing.Netmask
		steps = append(steps, step{
			desc: fmt.Sprintf("address %s/%s on %s", addr, mask, top),
			run:  func() error { return t.drv.AddAddress(top, addr, mask) },
			undo: func() error { return t.drv.DelAddress(top, addr, mask) },
		})
		if gw := n.Addressing.Gateway; gw != "" && !n.Addressing.DefaultRoute {
			steps = append(steps, step{
				desc: fmt.Sprintf("source route for %s via %s", top, gw),
				run:  func() error { return t.routes.Configure(top, addr, mask, gw) },
				undo: func() error { return t.routes.Remove(top) },
			})
		}
	}

	return steps
}

func (t *Transaction) removeNetworkSteps(name string, state NetworkState) []step {
	var steps []step
	southbound := state.Southbound()
	tagged := state.TaggedDevice()
	top := state.TopDevice()
	addressing := state.Addressing

	if addressing.Static() && addressing.Gateway != "" && !addressing.DefaultRoute {
		steps = append(steps, step{
			desc: fmt.Sprintf("remove source route of %s", top),
			run:  func() error { return t.routes.Remove(top) },
			undo: func() error {
				return t.routes.Configure(top, addressing.Address, addressing.Netmask, addressing.Gateway)
			},
		})
	}

	if addressing.Static() {
		steps = append(steps, step{
			desc: fmt.Sprintf("remove address %s from %s", addressing.Address, top),
			run:  func() error { return t.drv.DelAddress(top, addressing.Address, addressing.Netmask) },
			undo: func() error { return t.drv.AddAddress(top, addressing.Address, addressing.Netmask) },
		})
	}

	if state.Bridged {
		if tagged != "" {
			steps = append(steps, step{
				desc: fmt.Sprintf("detach %s from bridge %s", tagged, name),
				run:  func() error { return t.drv.Release(tagged) },
				undo: func() error { return t.drv.Enslave(name, tagged) },
			})
		}
		stp := state.STP
		steps = append(steps, step{
			desc: fmt.Sprintf("delete bridge %s", name),
			run:  func() error { return t.drv.DeleteBridge(name) },
			undo: func() error { return t.drv.CreateBridge(name, stp) },
		})
	}

	if state.VLAN != nil {
		tag := *state.VLAN
		steps = append(steps, step{
			desc: fmt.Sprintf("delete vlan %s", tagged),
			run:  func() error { return t.drv.DeleteVLAN(southbound, tag) },
			undo: func() error { return t.drv.CreateVLAN(southbound, tag) },
		})
	}

	return steps
}

func (t *Transaction) addBondSteps(name string, b BondSpec) []step {
	steps := []step{{
		desc: fmt.Sprintf("create bond %s", name),
		run:  func() error { return t.drv.CreateBond(name, b.Options) },
		undo: func() error { return t.drv.DeleteBond(name) },
	}}
	for _, member := range b.Members {
		member := member
		steps = append(steps, step{
			// Slaves must be down before enslaving.
			desc: fmt.Sprintf("down %s before enslaving", member),
			run:  func() error { return t.links.Down(member) },
		})
		steps = append(steps, step{
			desc: fmt.Sprintf("enslave %s to %s", member, name),
			run:  func() error { return t.drv.Enslave(name, member) },
			undo: func() error { return t.drv.Release(member) },
		})
	}
	steps = append(steps, step{
		desc: fmt.Sprintf("up bond %s", name),
		run:  func() error { return t.links.Up(name, true, false) },
	})
	for _, member := range b.Members {
		member := member
		steps = append(steps, step{
			desc: fmt.Sprintf("up member %s", member),
			run:  func() error { return t.links.Up(member, false, false) },
		})
	}
	return steps
}

// editBondSteps reconciles membership of an existing bond. Option changes
// are not applied in place; callers that need different options remove and
// re-create the bond.
func (t *Transaction) editBondSteps(name string, b BondSpec, state BondState) []step {
	wanted := make(map[string]bool, len(b.Members))
	for _, member := range b.Members {
		wanted[member] = true
	}
	current := make(map[string]bool, len(state.Members))
	for _, member := range state.Members {
		current[member] = true
	}

	var steps []step
	for _, member := range state.Members {
		if wanted[member] {
			continue
		}
		member := member
		steps = append(steps, step{
			desc: fmt.Sprintf("release %s from %s", member, name),
			run:  func() error { return t.drv.Release(member) },
			undo: func() error { return t.drv.Enslave(name, member) },
		})
	}
	for _, member := range b.Members {
		if current[member] {
			continue
		}
		member := member
		steps = append(steps, step{
			desc: fmt.Sprintf("down %s before enslaving", member),
			run:  func() error { return t.links.Down(member) },
		})
		steps = append(steps, step{
			desc: fmt.Sprintf("enslave %s to %s", member, name),
			run:  func() error { return t.drv.Enslave(name, member) },
			undo: func() error { return t.drv.Release(member) },
		})
		steps = append(steps, step{
			desc: fmt.Sprintf("up member %s", member),
			run:  func() error { return t.links.Up(member, false, false) },
		})
	}
	return steps
}

func (t *Transaction) removeBondSteps(name string, state BondState) []step {
	var steps []step
	options := ParseBondOptions(state.Options)
	for _, member := range state.Members {
		member := member
		steps = append(steps, step{
			desc: fmt.Sprintf("release %s from %s", member, name),
			run:  func() error { return t.drv.Release(member) },
			undo: func() error { return t.drv.Enslave(name, member) },
		})
	}
	steps = append(steps, step{
		desc: fmt.Sprintf("delete bond %s", name),
		run:  func() error { return t.drv.DeleteBond(name) },
		undo: func() error { return t.drv.CreateBond(name, options) },
	})
	return steps
}

// ParseBondOptions splits a kernel-reported option string such as
// "mode=4 miimon=100" into key=value pairs. Malformed tokens are kept
// under their full text with an empty value rather than dropped.
func ParseBondOptions(s string) map[string]string {
	options := make(map[string]string)
	for _, token := range strings.Fields(s) {
		key, value, found := strings.Cut(token, "=")
		if !found {
			options[token] = ""
			continue
		}
		options[key] = value
	}
	return options
}
