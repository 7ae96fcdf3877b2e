//go:build linux
// +build linux

package nldriver

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/hostnet/internal/sourceroute"
)

// RouteDriver implements sourceroute.RouteDriver on netlink.
type RouteDriver struct{}

// NewRouteDriver builds the netlink-backed route driver.
func NewRouteDriver() *RouteDriver {
	return &RouteDriver{}
}

func (d *RouteDriver) AddRoute(route sourceroute.Route) error {
	nlRoute, err := toNetlinkRoute(route)
	if err != nil {
		return err
	}
	return netlink.RouteAdd(nlRoute)
}

func (d *RouteDriver) DelRoute(route sourceroute.Route) error {
	nlRoute, err := toNetlinkRoute(route)
	if err != nil {
		return err
	}
	return netlink.RouteDel(nlRoute)
}

func toNetlinkRoute(route sourceroute.Route) (*netlink.Route, error) {
	nlRoute := &netlink.Route{Table: int(route.Table)}

	if route.Destination != "" && route.Destination != sourceroute.DefaultDestination {
		_, dst, err := net.ParseCIDR(route.Destination)
		if err != nil {
			return nil, fmt.Errorf("parse destination %q: %w", route.Destination, err)
		}
		nlRoute.Dst = dst
	}
	if route.Gateway != "" {
		gw := net.ParseIP(route.Gateway)
		if gw == nil {
			return nil, fmt.Errorf("parse gateway %q", route.Gateway)
		}
		nlRoute.Gw = gw
	}
	if route.Source != "" {
		src := net.ParseIP(route.Source)
		if src == nil {
			return nil, fmt.Errorf("parse source %q", route.Source)
		}
		nlRoute.Src = src
	}
	if route.Device != "" {
		l, err := netlink.LinkByName(route.Device)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", route.Device, err)
		}
		nlRoute.LinkIndex = l.Attrs().Index
	}
	return nlRoute, nil
}

func (d *RouteDriver) Routes(table uint32, device string) ([]sourceroute.Route, error) {
	filter := &netlink.Route{Table: int(table)}
	filterMask := uint64(netlink.RT_FILTER_TABLE)
	if device != "" {
		l, err := netlink.LinkByName(device)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", device, err)
		}
		filter.LinkIndex = l.Attrs().Index
		filterMask |= netlink.RT_FILTER_OIF
	}

	nlRoutes, err := netlink.RouteListFiltered(unix.AF_INET, filter, filterMask)
	if err != nil {
		return nil, fmt.Errorf("list routes in table %d: %w", table, err)
	}

	routes := make([]sourceroute.Route, 0, len(nlRoutes))
	for _, nlRoute := range nlRoutes {
		route := sourceroute.Route{
			Device: device,
			Table:  uint32(nlRoute.Table),
		}
		if nlRoute.Dst != nil {
			route.Destination = nlRoute.Dst.String()
		} else {
			route.Destination = sourceroute.DefaultDestination
		}
		if nlRoute.Gw != nil {
			route.Gateway = nlRoute.Gw.String()
		}
		if nlRoute.Src != nil {
			route.Source = nlRoute.Src.String()
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func (d *RouteDriver) AddRule(rule sourceroute.Rule) error {
	nlRule, err := toNetlinkRule(rule)
	if err != nil {
		return err
	}
	return netlink.RuleAdd(nlRule)
}

func (d *RouteDriver) DelRule(rule sourceroute.Rule) error {
	nlRule, err := toNetlinkRule(rule)
	if err != nil {
		return err
	}
	return netlink.RuleDel(nlRule)
}

func toNetlinkRule(rule sourceroute.Rule) (*netlink.Rule, error) {
	nlRule := netlink.NewRule()
	nlRule.Table = int(rule.Table)
	nlRule.Family = unix.AF_INET
	if rule.Priority > 0 {
		nlRule.Priority = rule.Priority
	}
	if rule.Src != "" {
		_, src, err := net.ParseCIDR(rule.Src)
		if err != nil {
			return nil, fmt.Errorf("parse rule source %q: %w", rule.Src, err)
		}
		nlRule.Src = src
	}
	if rule.Dst != "" {
		_, dst, err := net.ParseCIDR(rule.Dst)
		if err != nil {
			return nil, fmt.Errorf("parse rule destination %q: %w", rule.Dst, err)
		}
		nlRule.Dst = dst
	}
	if rule.IIF != "" {
		nlRule.IifName = rule.IIF
	}
	return nlRule, nil
}

func (d *RouteDriver) Rules() ([]sourceroute.Rule, error) {
	nlRules, err := netlink.RuleList(unix.AF_INET)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rules := make([]sourceroute.Rule, 0, len(nlRules))
	for _, nlRule := range nlRules {
		rule := sourceroute.Rule{
			IIF:      nlRule.IifName,
			Table:    uint32(nlRule.Table),
			Priority: nlRule.Priority,
		}
		if nlRule.Src != nil {
			rule.Src = nlRule.Src.String()
		}
		if nlRule.Dst != nil {
			rule.Dst = nlRule.Dst.String()
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
