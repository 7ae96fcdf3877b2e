// Package sourceroute gives a device's addressed traffic its own routing
// domain: a dedicated table holding a default route via the network's
// gateway plus the local subnet route, selected by policy rules keyed on
// the subnet and the device.
package sourceroute

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Route is one kernel route entry restricted to a policy table.
type Route struct {
	// Destination in CIDR form. "0.0.0.0/0" is the default route.
	Destination string
	// Gateway for next-hop routes; empty for directly connected subnets.
	Gateway string
	// Device the route is bound to.
	Device string
	// Source address hint carried on the subnet route.
	Source string
	// Table the route lives in. Zero means the main table.
	Table uint32
}

// Rule is one policy rule selecting a routing table.
type Rule struct {
	// Src matches the packet source in CIDR form; empty matches all.
	Src string
	// Dst matches the packet destination in CIDR form; empty matches all.
	Dst string
	// IIF matches the inbound device; empty matches all.
	IIF string
	// Table the rule points at.
	Table uint32
	// Priority of the rule. Zero lets the driver pick.
	Priority int
}

// DefaultDestination is the catch-all destination of a default route.
const DefaultDestination = "0.0.0.0/0"

// RouteDriver is the capability that mutates kernel routes and rules.
type RouteDriver interface {
	AddRoute(route Route) error
	DelRoute(route Route) error
	// Routes lists the routes in the given table bound to the device.
	Routes(table uint32, device string) ([]Route, error)
	AddRule(rule Rule) error
	DelRule(rule Rule) error
	// Rules lists all policy rules.
	Rules() ([]Rule, error)
}

// Oracle reports whether the virtualization control plane claims a device.
type Oracle interface {
	IsControlled(device string) (bool, error)
}

// TableFor derives the policy table id for an IPv4 address. The id is the
// numeric value of the address, so re-applying the same configuration always
// lands in the same table and drift detection can recognize "already correct".
func TableFor(address string) (uint32, error) {
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return 0, fmt.Errorf("not an IPv4 address: %s", address)
	}
	return binary.BigEndian.Uint32(ip.To4()), nil
}

// SubnetFor computes the network CIDR covering address under the dotted-quad
// netmask.
func SubnetFor(address, netmask string) (string, error) {
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("not an IPv4 address: %s", address)
	}
	maskIP := net.ParseIP(netmask)
	if maskIP == nil || maskIP.To4() == nil {
		return "", fmt.Errorf("not an IPv4 netmask: %s", netmask)
	}
	mask := net.IPMask(maskIP.To4())
	ones, bits := mask.Size()
	if ones == 0 && bits == 0 {
		return "", fmt.Errorf("non-contiguous netmask: %s", netmask)
	}
	network := ip.To4().Mask(mask)
	return fmt.Sprintf("%s/%d", network, ones), nil
}
