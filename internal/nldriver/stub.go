//go:build !linux
// +build !linux

package nldriver

import (
	"fmt"

	"grimm.is/hostnet/internal/link"
	"grimm.is/hostnet/internal/sourceroute"
	"grimm.is/hostnet/internal/topology"
)

var errUnsupported = fmt.Errorf("netlink drivers require linux")

// LinkDriver is a stub implementation of link.Driver.
type LinkDriver struct{}

func NewLinkDriver(pollModeDevices []string) *LinkDriver { return &LinkDriver{} }

func (d *LinkDriver) SetState(device string, state link.State) error { return errUnsupported }
func (d *LinkDriver) Query(device string) (link.Properties, error) {
	return link.Properties{}, errUnsupported
}
func (d *LinkDriver) Exists(device string) bool { return false }
func (d *LinkDriver) Subscribe(device string) (link.StateWatch, error) {
	return nil, errUnsupported
}
func (d *LinkDriver) SetAddress(device, hwaddr string, vf int) error { return errUnsupported }
func (d *LinkDriver) IsPollMode(device string) bool                  { return false }
func (d *LinkDriver) PollModeDevices() ([]string, error)             { return nil, errUnsupported }
func (d *LinkDriver) PollModeSetState(device string, state link.State) error {
	return errUnsupported
}
func (d *LinkDriver) PollModeQuery(device string) (link.Properties, error) {
	return link.Properties{}, errUnsupported
}
func (d *LinkDriver) PollModeOperUp(device string) (bool, error) { return false, errUnsupported }

// RouteDriver is a stub implementation of sourceroute.RouteDriver.
type RouteDriver struct{}

func NewRouteDriver() *RouteDriver { return &RouteDriver{} }

func (d *RouteDriver) AddRoute(route sourceroute.Route) error { return errUnsupported }
func (d *RouteDriver) DelRoute(route sourceroute.Route) error { return errUnsupported }
func (d *RouteDriver) Routes(table uint32, device string) ([]sourceroute.Route, error) {
	return nil, errUnsupported
}
func (d *RouteDriver) AddRule(rule sourceroute.Rule) error { return errUnsupported }
func (d *RouteDriver) DelRule(rule sourceroute.Rule) error { return errUnsupported }
func (d *RouteDriver) Rules() ([]sourceroute.Rule, error)  { return nil, errUnsupported }

// TopologyDriver is a stub implementation of topology.Driver.
type TopologyDriver struct{}

func NewTopologyDriver() *TopologyDriver { return &TopologyDriver{} }

func (d *TopologyDriver) CreateBridge(name string, stp bool) error { return errUnsupported }
func (d *TopologyDriver) DeleteBridge(name string) error           { return errUnsupported }
func (d *TopologyDriver) CreateVLAN(device string, tag int) error  { return errUnsupported }
func (d *TopologyDriver) DeleteVLAN(device string, tag int) error  { return errUnsupported }
func (d *TopologyDriver) CreateBond(name string, options map[string]string) error {
	return errUnsupported
}
func (d *TopologyDriver) DeleteBond(name string) error                      { return errUnsupported }
func (d *TopologyDriver) Enslave(master, slave string) error                { return errUnsupported }
func (d *TopologyDriver) Release(slave string) error                        { return errUnsupported }
func (d *TopologyDriver) SetMTU(device string, mtu int) error               { return errUnsupported }
func (d *TopologyDriver) AddAddress(device, address, netmask string) error  { return errUnsupported }
func (d *TopologyDriver) DelAddress(device, address, netmask string) error  { return errUnsupported }
func (d *TopologyDriver) Snapshot() (topology.Snapshot, error) {
	return topology.Snapshot{}, errUnsupported
}
