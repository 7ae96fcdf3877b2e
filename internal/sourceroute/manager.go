package sourceroute

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"grimm.is/hostnet/internal/errors"
	"grimm.is/hostnet/internal/logging"
	"grimm.is/hostnet/internal/metrics"
)

// DefaultAutostartGlob is where autostart network definitions live. The
// fallback heuristic in IsControlled scans these when the oracle is down.
const DefaultAutostartGlob = "/etc/libvirt/qemu/networks/autostart/*.xml"

// record is the in-memory view of one configured source-route domain. It
// only exists between Configure and Remove within one process lifetime;
// removal after a restart goes through kernel discovery instead.
type record struct {
	device string
	table  uint32
	subnet string
	routes []Route
	rules  []Rule
}

// Manager owns the source-route lifecycle for all devices on the host.
type Manager struct {
	drv           RouteDriver
	oracle        Oracle
	autostartGlob string

	mu      sync.Mutex
	records map[string]record

	log *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOracle supplies the control-plane oracle consulted by IsControlled.
func WithOracle(o Oracle) ManagerOption {
	return func(m *Manager) { m.oracle = o }
}

// WithAutostartGlob overrides where the fallback heuristic looks for
// autostart network definitions.
func WithAutostartGlob(glob string) ManagerOption {
	return func(m *Manager) { m.autostartGlob = glob }
}

// NewManager builds a Manager on top of the given route driver.
func NewManager(drv RouteDriver, opts ...ManagerOption) *Manager {
	m := &Manager{
		drv:           drv,
		autostartGlob: DefaultAutostartGlob,
		records:       make(map[string]record),
		log:           logging.WithComponent("sourceroute"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure installs the source-route domain for the device: a default
// route via the gateway and the local subnet route in a table derived from
// the address, selected by a from-subnet rule and a to-subnet-via-device
// rule. Missing gateway or addressing makes the call a logged no-op since
// policy routing without a gateway is meaningless.
func (m *Manager) Configure(device, address, netmask, gateway string) error {
	if gateway == "" || gateway == "0.0.0.0" || address == "" || netmask == "" {
		m.log.Debug("source route not applicable, skipping",
			"device", device, "address", address, "gateway", gateway)
		return nil
	}

	table, err := TableFor(address)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "derive table for %s", device)
	}
	subnet, err := SubnetFor(address, netmask)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "derive subnet for %s", device)
	}

	rec := record{
		device: device,
		table:  table,
		subnet: subnet,
		routes: []Route{
			{Destination: DefaultDestination, Gateway: gateway, Device: device, Table: table},
			{Destination: subnet, Device: device, Source: address, Table: table},
		},
		rules: []Rule{
			{Src: subnet, Table: table},
			{Dst: subnet, IIF: device, Table: table},
		},
	}

	if err := m.install(rec); err != nil {
		// Nothing partial survives a failed install, so there is no
		// record to keep either.
		return err
	}

	m.mu.Lock()
	m.records[device] = rec
	m.mu.Unlock()
	metrics.SourceRoutesActive.Inc()

	m.log.Info("source route configured",
		"device", device, "subnet", subnet, "gateway", gateway, "table", table)
	return nil
}

// install applies a record's routes and rules, unwinding whatever part went
// in if a later part fails.
func (m *Manager) install(rec record) error {
	var applied record
	for _, rt := range rec.routes {
		if err := m.drv.AddRoute(rt); err != nil {
			m.uninstall(applied)
			return errors.Wrapf(err, errors.KindDriver,
				"add route %s table %d on %s", rt.Destination, rt.Table, rec.device)
		}
		applied.routes = append(applied.routes, rt)
	}
	for _, rl := range rec.rules {
		if err := m.drv.AddRule(rl); err != nil {
			m.uninstall(applied)
			return errors.Wrapf(err, errors.KindDriver,
				"add rule table %d for %s", rl.Table, rec.device)
		}
		applied.rules = append(applied.rules, rl)
	}
	return nil
}

// uninstall best-effort removes a record's entries, rules first.
func (m *Manager) uninstall(rec record) {
	for _, rl := range rec.rules {
		if err := m.drv.DelRule(rl); err != nil {
			m.log.Warn("failed to remove rule during unwind",
				"device", rec.device, "table", rl.Table, "error", err)
		}
	}
	for _, rt := range rec.routes {
		if err := m.drv.DelRoute(rt); err != nil {
			m.log.Warn("failed to remove route during unwind",
				"device", rec.device, "destination", rt.Destination, "error", err)
		}
	}
}

// Remove tears down the device's source-route domain. When the record from
// Configure is still held the held configuration drives removal directly;
// otherwise the domain is reconstructed by discovery from the kernel, which
// covers removal after a process restart.
func (m *Manager) Remove(device string) error {
	m.mu.Lock()
	rec, ok := m.records[device]
	if ok {
		delete(m.records, device)
	}
	m.mu.Unlock()

	if ok {
		metrics.SourceRoutesActive.Dec()
		return m.removeStatic(rec)
	}
	return m.removeDynamic(device)
}

func (m *Manager) removeStatic(rec record) error {
	var firstErr error
	for _, rl := range rec.rules {
		if err := m.drv.DelRule(rl); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, errors.KindDriver,
				"remove rule table %d for %s", rl.Table, rec.device)
		}
	}
	for _, rt := range rec.routes {
		if err := m.drv.DelRoute(rt); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, errors.KindDriver,
				"remove route %s table %d on %s", rt.Destination, rt.Table, rec.device)
		}
	}
	if firstErr == nil {
		m.log.Info("source route removed", "device", rec.device, "table", rec.table)
	}
	return firstErr
}

// removeDynamic reconstructs the domain from live kernel state. The rule
// that names the device as inbound qualifier identifies the subnet; the
// companion rule matches that subnet as source; either one carries the
// table. A device with no such rule is already clean and that is success.
func (m *Manager) removeDynamic(device string) error {
	rules, err := m.drv.Rules()
	if err != nil {
		return errors.Wrapf(err, errors.KindDriver, "list rules for %s", device)
	}

	var deviceRule *Rule
	for i := range rules {
		if rules[i].IIF == device && rules[i].Dst != "" {
			deviceRule = &rules[i]
			break
		}
	}
	if deviceRule == nil {
		// Never configured, or already removed. Either way there is
		// nothing to do and nothing to report.
		m.log.Debug("no source-route rules found", "device", device)
		return nil
	}

	subnet := deviceRule.Dst
	var companion *Rule
	for i := range rules {
		if rules[i].Src == subnet && rules[i].IIF == "" {
			companion = &rules[i]
			break
		}
	}

	table := deviceRule.Table
	if table == 0 && companion != nil {
		table = companion.Table
	}

	if table != 0 {
		routes, err := m.drv.Routes(table, device)
		if err != nil {
			return errors.Wrapf(err, errors.KindDriver,
				"list routes in table %d for %s", table, device)
		}
		for _, rt := range routes {
			if err := m.drv.DelRoute(rt); err != nil {
				return errors.Wrapf(err, errors.KindDriver,
					"remove discovered route %s table %d on %s", rt.Destination, table, device)
			}
		}
	} else {
		// Rules exist but point nowhere we can resolve. Remove what is
		// identifiable and report the oddity without failing.
		m.log.Warn("source-route rules found but table unresolvable, removing rules only",
			"device", device, "subnet", subnet)
	}

	if err := m.drv.DelRule(*deviceRule); err != nil {
		return errors.Wrapf(err, errors.KindDriver, "remove discovered rule for %s", device)
	}
	if companion != nil {
		if err := m.drv.DelRule(*companion); err != nil {
			return errors.Wrapf(err, errors.KindDriver,
				"remove discovered companion rule for %s", device)
		}
	}

	m.log.Info("source route removed by discovery",
		"device", device, "subnet", subnet, "table", table)
	return nil
}

// IsControlled reports whether the virtualization control plane claims the
// device. An oracle failure falls back to scanning autostart network
// definitions so that source-route management keeps working while the
// control plane is transiently unreachable.
func (m *Manager) IsControlled(device string) (bool, error) {
	if m.oracle != nil {
		controlled, err := m.oracle.IsControlled(device)
		if err == nil {
			return controlled, nil
		}
		m.log.Warn("oracle query failed, falling back to autostart scan",
			"device", device, "error", err)
	}
	return m.scanAutostart(device)
}

// scanAutostart looks for the device referenced as a bridge or a direct
// interface in the autostart network definitions.
func (m *Manager) scanAutostart(device string) (bool, error) {
	matches, err := filepath.Glob(m.autostartGlob)
	if err != nil {
		return false, errors.Wrapf(err, errors.KindInternal, "bad autostart glob %q", m.autostartGlob)
	}
	needles := []string{
		fmt.Sprintf("bridge name='%s'", device),
		fmt.Sprintf("bridge name=\"%s\"", device),
		fmt.Sprintf("interface dev='%s'", device),
		fmt.Sprintf("interface dev=\"%s\"", device),
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			m.log.Debug("skipping unreadable autostart definition", "path", path, "error", err)
			continue
		}
		text := string(data)
		for _, needle := range needles {
			if strings.Contains(text, needle) {
				return true, nil
			}
		}
	}
	return false, nil
}
