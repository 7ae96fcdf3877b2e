package topology

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DryRunDriver implements Driver but only records the operations it would
// have performed, against a fixed snapshot. Plug it into a Transaction to
// preview what a change-set does.
type DryRunDriver struct {
	mu   sync.Mutex
	snap Snapshot

	Ops []string
}

// NewDryRunDriver builds a recording driver over the given live view.
func NewDryRunDriver(snap Snapshot) *DryRunDriver {
	return &DryRunDriver{snap: snap}
}

func (d *DryRunDriver) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Ops = append(d.Ops, fmt.Sprintf(format, args...))
}

func (d *DryRunDriver) CreateBridge(name string, stp bool) error {
	d.record("bridge add %s stp=%t", name, stp)
	return nil
}

func (d *DryRunDriver) DeleteBridge(name string) error {
	d.record("bridge del %s", name)
	return nil
}

func (d *DryRunDriver) CreateVLAN(device string, tag int) error {
	d.record("vlan add %s.%d", device, tag)
	return nil
}

func (d *DryRunDriver) DeleteVLAN(device string, tag int) error {
	d.record("vlan del %s.%d", device, tag)
	return nil
}

func (d *DryRunDriver) CreateBond(name string, options map[string]string) error {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+options[k])
	}
	d.record("bond add %s %s", name, strings.Join(pairs, " "))
	return nil
}

func (d *DryRunDriver) DeleteBond(name string) error {
	d.record("bond del %s", name)
	return nil
}

func (d *DryRunDriver) Enslave(master, slave string) error {
	d.record("enslave %s -> %s", slave, master)
	return nil
}

func (d *DryRunDriver) Release(slave string) error {
	d.record("release %s", slave)
	return nil
}

func (d *DryRunDriver) SetMTU(device string, mtu int) error {
	d.record("mtu %s %d", device, mtu)
	return nil
}

func (d *DryRunDriver) AddAddress(device, address, netmask string) error {
	d.record("addr add %s/%s dev %s", address, netmask, device)
	return nil
}

func (d *DryRunDriver) DelAddress(device, address, netmask string) error {
	d.record("addr del %s/%s dev %s", address, netmask, device)
	return nil
}

func (d *DryRunDriver) Snapshot() (Snapshot, error) {
	return d.snap, nil
}

// DryRunLinks implements LinkOps, recording instead of mutating. All
// devices are reported present.
type DryRunLinks struct {
	mu  sync.Mutex
	Ops []string
}

func (l *DryRunLinks) record(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Ops = append(l.Ops, op)
}

func (l *DryRunLinks) Up(device string, adminBlocking, operBlocking bool) error {
	l.record("up " + device)
	return nil
}

func (l *DryRunLinks) Down(device string) error {
	l.record("down " + device)
	return nil
}

func (l *DryRunLinks) Exists(device string) bool {
	return true
}

// DryRunRoutes implements SourceRouter, recording instead of mutating.
type DryRunRoutes struct {
	mu  sync.Mutex
	Ops []string
}

func (r *DryRunRoutes) Configure(device, address, netmask, gateway string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, fmt.Sprintf("source-route add %s %s/%s via %s", device, address, netmask, gateway))
	return nil
}

func (r *DryRunRoutes) Remove(device string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, "source-route del "+device)
	return nil
}
