//go:build linux
// +build linux

package nldriver

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/hostnet/internal/sourceroute"
	"grimm.is/hostnet/internal/topology"
)

// TopologyDriver implements topology.Driver on netlink, with sysfs for the
// bridge and bonding knobs netlink does not expose uniformly.
type TopologyDriver struct{}

// NewTopologyDriver builds the netlink-backed topology driver.
func NewTopologyDriver() *TopologyDriver {
	return &TopologyDriver{}
}

func (d *TopologyDriver) CreateBridge(name string, stp bool) error {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	if err := netlink.LinkAdd(&netlink.Bridge{LinkAttrs: attrs}); err != nil {
		return fmt.Errorf("create bridge %s: %w", name, err)
	}
	stpState := "0"
	if stp {
		stpState = "1"
	}
	if err := writeSysfs("/sys/class/net/"+name+"/bridge/stp_state", stpState); err != nil {
		return fmt.Errorf("set stp on %s: %w", name, err)
	}
	return nil
}

func (d *TopologyDriver) DeleteBridge(name string) error {
	return deleteLink(name)
}

func (d *TopologyDriver) CreateVLAN(device string, tag int) error {
	parent, err := netlink.LinkByName(device)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", device, err)
	}
	attrs := netlink.NewLinkAttrs()
	attrs.Name = fmt.Sprintf("%s.%d", device, tag)
	attrs.ParentIndex = parent.Attrs().Index
	return netlink.LinkAdd(&netlink.Vlan{LinkAttrs: attrs, VlanId: tag})
}

func (d *TopologyDriver) DeleteVLAN(device string, tag int) error {
	return deleteLink(fmt.Sprintf("%s.%d", device, tag))
}

func (d *TopologyDriver) CreateBond(name string, options map[string]string) error {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	bond := netlink.NewLinkBond(attrs)

	handled := map[string]bool{}
	if mode, ok := options["mode"]; ok {
		bond.Mode = netlink.StringToBondMode(mode)
		handled["mode"] = true
	}
	if miimon, ok := options["miimon"]; ok {
		v, err := strconv.Atoi(miimon)
		if err != nil {
			return fmt.Errorf("bond %s: bad miimon %q", name, miimon)
		}
		bond.Miimon = v
		handled["miimon"] = true
	}

	if err := netlink.LinkAdd(bond); err != nil {
		return fmt.Errorf("create bond %s: %w", name, err)
	}

	// Remaining options go through the bonding sysfs directory, which
	// accepts every option the kernel module knows about.
	keys := make([]string, 0, len(options))
	for key := range options {
		if !handled[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := "/sys/class/net/" + name + "/bonding/" + key
		if err := writeSysfs(path, options[key]); err != nil {
			return fmt.Errorf("set bond option %s=%s on %s: %w", key, options[key], name, err)
		}
	}
	return nil
}

func (d *TopologyDriver) DeleteBond(name string) error {
	return deleteLink(name)
}

func (d *TopologyDriver) Enslave(master, slave string) error {
	masterLink, err := netlink.LinkByName(master)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", master, err)
	}
	slaveLink, err := netlink.LinkByName(slave)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", slave, err)
	}
	return netlink.LinkSetMaster(slaveLink, masterLink)
}

func (d *TopologyDriver) Release(slave string) error {
	slaveLink, err := netlink.LinkByName(slave)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", slave, err)
	}
	return netlink.LinkSetNoMaster(slaveLink)
}

func (d *TopologyDriver) SetMTU(device string, mtu int) error {
	l, err := netlink.LinkByName(device)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", device, err)
	}
	return netlink.LinkSetMTU(l, mtu)
}

func (d *TopologyDriver) AddAddress(device, address, netmask string) error {
	addr, err := parseAddr(address, netmask)
	if err != nil {
		return err
	}
	l, err := netlink.LinkByName(device)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", device, err)
	}
	return netlink.AddrAdd(l, addr)
}

func (d *TopologyDriver) DelAddress(device, address, netmask string) error {
	addr, err := parseAddr(address, netmask)
	if err != nil {
		return err
	}
	l, err := netlink.LinkByName(device)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", device, err)
	}
	return netlink.AddrDel(l, addr)
}

func parseAddr(address, netmask string) (*netlink.Addr, error) {
	maskIP := net.ParseIP(netmask)
	if maskIP == nil || maskIP.To4() == nil {
		return nil, fmt.Errorf("parse netmask %q", netmask)
	}
	ones, _ := net.IPMask(maskIP.To4()).Size()
	addr, err := netlink.ParseAddr(fmt.Sprintf("%s/%d", address, ones))
	if err != nil {
		return nil, fmt.Errorf("parse address %s/%d: %w", address, ones, err)
	}
	return addr, nil
}

// Snapshot walks the live link table and reconstructs the managed view.
// Networks are keyed by bridge name; a bridgeless network cannot be told
// apart from a plain addressed device without the running config, so only
// bridged networks appear here. The comparator reconciles the rest against
// the persisted record.
func (d *TopologyDriver) Snapshot() (topology.Snapshot, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return topology.Snapshot{}, fmt.Errorf("list links: %w", err)
	}

	byIndex := make(map[int]netlink.Link, len(links))
	for _, l := range links {
		byIndex[l.Attrs().Index] = l
	}

	snap := topology.Snapshot{
		Networks: make(map[string]topology.NetworkState),
		Bonds:    make(map[string]topology.BondState),
	}

	bondMembers := make(map[int][]string)
	for _, l := range links {
		master := l.Attrs().MasterIndex
		if master == 0 {
			continue
		}
		if _, ok := byIndex[master].(*netlink.Bond); ok {
			bondMembers[master] = append(bondMembers[master], l.Attrs().Name)
		}
	}

	for _, l := range links {
		switch typed := l.(type) {
		case *netlink.Bridge:
			name := typed.Attrs().Name
			snap.Bridges = append(snap.Bridges, name)
			state, err := d.bridgeNetworkState(typed, links, byIndex)
			if err != nil {
				return topology.Snapshot{}, err
			}
			snap.Networks[name] = state
		case *netlink.Bond:
			name := typed.Attrs().Name
			members := bondMembers[typed.Attrs().Index]
			sort.Strings(members)
			snap.Bonds[name] = topology.BondState{
				Name:    name,
				Members: members,
				Options: readBondOptions(name),
				Switch:  topology.SwitchLegacy,
			}
		case *netlink.Device:
			snap.NICs = append(snap.NICs, typed.Attrs().Name)
		}
	}
	sort.Strings(snap.NICs)
	sort.Strings(snap.Bridges)
	return snap, nil
}

func (d *TopologyDriver) bridgeNetworkState(bridge *netlink.Bridge, links []netlink.Link, byIndex map[int]netlink.Link) (topology.NetworkState, error) {
	name := bridge.Attrs().Name
	state := topology.NetworkState{
		Name:    name,
		Bridged: true,
		MTU:     strconv.Itoa(bridge.Attrs().MTU),
		Switch:  topology.SwitchLegacy,
		STP:     readSysfs("/sys/class/net/"+name+"/bridge/stp_state") == "1",
	}

	// Identify the bridge port and whatever is stacked under it.
	for _, l := range links {
		if l.Attrs().MasterIndex != bridge.Attrs().Index {
			continue
		}
		if vlan, ok := l.(*netlink.Vlan); ok {
			tag := vlan.VlanId
			state.VLAN = &tag
			if parent, ok := byIndex[vlan.Attrs().ParentIndex]; ok {
				assignSouthbound(&state, parent)
			}
		} else {
			assignSouthbound(&state, l)
		}
		break
	}

	addrs, err := netlink.AddrList(bridge, unix.AF_INET)
	if err != nil {
		return state, fmt.Errorf("list addresses of %s: %w", name, err)
	}
	state.Addressing.BootProto = topology.BootProtoNone
	if len(addrs) > 0 {
		addr := addrs[0]
		state.Addressing.Address = addr.IP.String()
		state.Addressing.Netmask = net.IP(addr.Mask).String()
		// A lease-managed address is installed without the permanent
		// flag; statically configured ones carry it.
		if addr.Flags&unix.IFA_F_PERMANENT == 0 {
			state.Addressing.BootProto = topology.BootProtoDHCP
		}
		gateway, isDefault, err := gatewayOf(bridge, addr)
		if err != nil {
			return state, err
		}
		state.Addressing.Gateway = gateway
		state.Addressing.DefaultRoute = isDefault
	}
	return state, nil
}

func assignSouthbound(state *topology.NetworkState, l netlink.Link) {
	if _, ok := l.(*netlink.Bond); ok {
		state.Bond = l.Attrs().Name
		return
	}
	state.NIC = l.Attrs().Name
}

// gatewayOf finds the device's gateway: in the main table when the device
// carries the host default route, otherwise in the policy table derived
// from its address.
func gatewayOf(l netlink.Link, addr netlink.Addr) (string, bool, error) {
	routes, err := netlink.RouteList(nil, unix.AF_INET)
	if err != nil {
		return "", false, fmt.Errorf("list main-table routes: %w", err)
	}
	for _, route := range routes {
		if route.Dst == nil && route.Gw != nil && route.LinkIndex == l.Attrs().Index {
			return route.Gw.String(), true, nil
		}
	}

	table, err := sourceroute.TableFor(addr.IP.String())
	if err != nil {
		return "", false, nil
	}
	filter := &netlink.Route{Table: int(table)}
	tableRoutes, err := netlink.RouteListFiltered(unix.AF_INET, filter, netlink.RT_FILTER_TABLE)
	if err != nil {
		return "", false, fmt.Errorf("list table %d routes: %w", table, err)
	}
	for _, route := range tableRoutes {
		if route.Dst == nil && route.Gw != nil {
			return route.Gw.String(), false, nil
		}
	}
	return "", false, nil
}

// readBondOptions reports the options under reconciliation control in the
// kernel's textual form.
func readBondOptions(bond string) string {
	var tokens []string
	if mode := readSysfs("/sys/class/net/" + bond + "/bonding/mode"); mode != "" {
		// The mode file reads like "802.3ad 4"; the numeric form is the
		// canonical one.
		fields := strings.Fields(mode)
		tokens = append(tokens, "mode="+fields[len(fields)-1])
	}
	if miimon := readSysfs("/sys/class/net/" + bond + "/bonding/miimon"); miimon != "" {
		tokens = append(tokens, "miimon="+miimon)
	}
	return strings.Join(tokens, " ")
}

func deleteLink(name string) error {
	l, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", name, err)
	}
	return netlink.LinkDel(l)
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

func readSysfs(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
