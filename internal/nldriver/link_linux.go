//go:build linux
// +build linux

package nldriver

import (
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"

	"grimm.is/hostnet/internal/link"
)

// LinkDriver implements link.Driver with netlink for kernel devices and an
// in-memory activation table for poll-mode devices, which have no kernel
// representation to flip.
type LinkDriver struct {
	mu       sync.Mutex
	pollMode map[string]bool // device -> active
}

// NewLinkDriver builds a driver. pollModeDevices names the user-space
// devices this host carries; they start deactivated.
func NewLinkDriver(pollModeDevices []string) *LinkDriver {
	pm := make(map[string]bool, len(pollModeDevices))
	for _, dev := range pollModeDevices {
		pm[dev] = false
	}
	return &LinkDriver{pollMode: pm}
}

func (d *LinkDriver) SetState(device string, state link.State) error {
	l, err := netlink.LinkByName(device)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", device, err)
	}
	if state == link.StateUp {
		return netlink.LinkSetUp(l)
	}
	return netlink.LinkSetDown(l)
}

func (d *LinkDriver) Query(device string) (link.Properties, error) {
	l, err := netlink.LinkByName(device)
	if err != nil {
		return link.Properties{}, fmt.Errorf("lookup %s: %w", device, err)
	}
	return propertiesOf(l), nil
}

func propertiesOf(l netlink.Link) link.Properties {
	attrs := l.Attrs()
	props := link.Properties{
		Name:    attrs.Name,
		AdminUp: attrs.Flags&net.FlagUp != 0,
		Promisc: attrs.Promisc != 0,
		MTU:     attrs.MTU,
	}
	if attrs.HardwareAddr != nil {
		props.Address = attrs.HardwareAddr.String()
	}
	switch attrs.OperState {
	case netlink.OperUp:
		props.OperUp = true
	case netlink.OperDown, netlink.OperLowerLayerDown:
		props.OperUp = false
	default:
		// Some drivers report unknown; fall back to ethtool's view.
		props.OperUp = ethtoolLinkUp(attrs.Name)
	}
	return props
}

// ethtoolLinkUp asks the device driver directly whether the link carries
// signal. Errors degrade to "down" since an unqueryable link is not usable.
func ethtoolLinkUp(device string) bool {
	et, err := ethtool.NewEthtool()
	if err != nil {
		return false
	}
	defer et.Close()
	state, err := et.LinkState(device)
	if err != nil {
		return false
	}
	return state == 1
}

func (d *LinkDriver) Exists(device string) bool {
	_, err := os.Stat("/sys/class/net/" + device)
	return err == nil
}

func (d *LinkDriver) Subscribe(device string) (link.StateWatch, error) {
	updates := make(chan netlink.LinkUpdate, 16)
	done := make(chan struct{})
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return nil, fmt.Errorf("subscribe to link updates: %w", err)
	}
	return &linkWatch{device: device, updates: updates, done: done}, nil
}

// linkWatch is an armed subscription to kernel link updates for one device.
type linkWatch struct {
	device  string
	updates chan netlink.LinkUpdate
	done    chan struct{}
	closed  sync.Once
}

func (w *linkWatch) WaitUp(timeout time.Duration, oper bool) error {
	// The state may already have flipped between arming and the command
	// taking effect, so check before consuming any update.
	if up, err := w.currentUp(oper); err == nil && up {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case update, ok := <-w.updates:
			if !ok {
				return fmt.Errorf("link update stream closed")
			}
			if update.Attrs().Name != w.device {
				continue
			}
			if up, err := w.currentUp(oper); err == nil && up {
				return nil
			}
		case <-timer.C:
			return link.ErrWaitTimeout
		}
	}
}

func (w *linkWatch) currentUp(oper bool) (bool, error) {
	l, err := netlink.LinkByName(w.device)
	if err != nil {
		return false, err
	}
	props := propertiesOf(l)
	if !props.AdminUp {
		return false, nil
	}
	if oper && !props.OperUp {
		return false, nil
	}
	return true, nil
}

func (w *linkWatch) Close() {
	w.closed.Do(func() { close(w.done) })
}

func (d *LinkDriver) SetAddress(device, hwaddr string, vf int) error {
	l, err := netlink.LinkByName(device)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", device, err)
	}
	mac, err := net.ParseMAC(hwaddr)
	if err != nil {
		return fmt.Errorf("parse hardware address %q: %w", hwaddr, err)
	}
	if vf >= 0 {
		return netlink.LinkSetVfHardwareAddr(l, vf, mac)
	}
	return netlink.LinkSetHardwareAddr(l, mac)
}

func (d *LinkDriver) IsPollMode(device string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pollMode[device]
	return ok
}

func (d *LinkDriver) PollModeDevices() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	devices := make([]string, 0, len(d.pollMode))
	for dev := range d.pollMode {
		devices = append(devices, dev)
	}
	sort.Strings(devices)
	return devices, nil
}

func (d *LinkDriver) PollModeSetState(device string, state link.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pollMode[device]; !ok {
		return fmt.Errorf("unknown poll-mode device %s", device)
	}
	d.pollMode[device] = state == link.StateUp
	return nil
}

func (d *LinkDriver) PollModeQuery(device string) (link.Properties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	active, ok := d.pollMode[device]
	if !ok {
		return link.Properties{}, fmt.Errorf("unknown poll-mode device %s", device)
	}
	return link.Properties{
		Name:    device,
		AdminUp: active,
		OperUp:  active,
		MTU:     link.DefaultMTU,
	}, nil
}

func (d *LinkDriver) PollModeOperUp(device string) (bool, error) {
	props, err := d.PollModeQuery(device)
	if err != nil {
		return false, err
	}
	return props.OperUp, nil
}
