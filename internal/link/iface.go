// Package link drives per-device interface state: bringing devices up and
// down with distinct administrative and operational blocking semantics,
// uniformly across kernel NICs and user-space poll-mode devices.
package link

import (
	stderrors "errors"
	"time"

	"grimm.is/hostnet/internal/clock"
	"grimm.is/hostnet/internal/errors"
	"grimm.is/hostnet/internal/logging"
	"grimm.is/hostnet/internal/metrics"
)

// Iface is a handle on one network device. Handles are constructed on
// demand from a device name and hold no kernel state; every query goes
// back to the driver.
type Iface struct {
	name      string
	vf        int
	kind      Kind
	ops       ifaceOps
	drv       Driver
	upTimeout time.Duration
	log       *logging.Logger
}

// ifaceOps is the kind-specific strategy table. The kind is resolved once
// in New; no operation inspects it again.
type ifaceOps interface {
	up(adminBlocking, operBlocking bool) error
	down() error
	properties() (Properties, error)
	operUp() (bool, error)
	exists() bool
}

// Option configures an Iface handle.
type Option func(*Iface)

// WithVF targets address changes at the given virtual function index
// instead of the device itself.
func WithVF(index int) Option {
	return func(i *Iface) { i.vf = index }
}

// WithUpTimeout overrides the bound on blocking up waits.
func WithUpTimeout(d time.Duration) Option {
	return func(i *Iface) { i.upTimeout = d }
}

// New constructs a handle for the named device, resolving its kind once.
func New(drv Driver, device string, opts ...Option) *Iface {
	i := &Iface{
		name:      device,
		vf:        -1,
		drv:       drv,
		upTimeout: DefaultUpTimeout,
		log:       logging.WithComponent("link"),
	}
	for _, opt := range opts {
		opt(i)
	}
	if drv.IsPollMode(device) {
		i.kind = KindPollMode
		i.ops = &pollModeOps{dev: device, drv: drv}
	} else {
		i.kind = KindKernel
		i.ops = &kernelOps{dev: device, drv: drv, timeout: i.upTimeout}
	}
	return i
}

// Name returns the device name.
func (i *Iface) Name() string { return i.name }

// Kind returns the resolved device kind.
func (i *Iface) Kind() Kind { return i.kind }

// Up enables the device. With adminBlocking the call does not return until
// the administrative flag is observed up; with operBlocking the same wait
// extends to the operational flag, bounded by the handle's timeout.
// Poll-mode devices activate atomically at the driver level and never block.
func (i *Iface) Up(adminBlocking, operBlocking bool) error {
	return i.ops.up(adminBlocking, operBlocking)
}

// Down disables the device unconditionally. Down is synchronous at the
// kernel boundary; there is no blocking variant.
func (i *Iface) Down() error {
	return i.ops.down()
}

// Properties returns a fresh snapshot of the device's link attributes.
func (i *Iface) Properties() (Properties, error) {
	return i.ops.properties()
}

// IsUp reports whether the device is administratively enabled. Operational
// state flaps independently of intent, so "up" deliberately means admin-up.
func (i *Iface) IsUp() (bool, error) {
	return i.IsAdminUp()
}

// IsAdminUp reports the administrative flag.
func (i *Iface) IsAdminUp() (bool, error) {
	props, err := i.ops.properties()
	if err != nil {
		return false, err
	}
	return props.AdminUp, nil
}

// IsOperUp reports the operational flag via the kind-specific path.
func (i *Iface) IsOperUp() (bool, error) {
	return i.ops.operUp()
}

// IsPromisc reports the promiscuous flag.
func (i *Iface) IsPromisc() (bool, error) {
	props, err := i.ops.properties()
	if err != nil {
		return false, err
	}
	return props.Promisc, nil
}

// Exists reports device presence via the kind-specific membership test.
func (i *Iface) Exists() bool {
	return i.ops.exists()
}

// Address returns the device hardware address.
func (i *Iface) Address() (string, error) {
	props, err := i.ops.properties()
	if err != nil {
		return "", err
	}
	return props.Address, nil
}

// SetAddress sets the hardware address, targeting the virtual function
// configured with WithVF when one was supplied.
func (i *Iface) SetAddress(hwaddr string) error {
	if err := i.drv.SetAddress(i.name, hwaddr, i.vf); err != nil {
		return errors.Wrapf(err, errors.KindDriver, "set address %s on %s", hwaddr, i.name)
	}
	return nil
}

// MTU returns the currently reported MTU. No default is substituted.
func (i *Iface) MTU() (int, error) {
	props, err := i.ops.properties()
	if err != nil {
		return 0, err
	}
	return props.MTU, nil
}

// --- kernel devices ---

type kernelOps struct {
	dev     string
	drv     Driver
	timeout time.Duration
}

func (o *kernelOps) up(adminBlocking, operBlocking bool) error {
	if !adminBlocking {
		// Fire and forget.
		if err := o.drv.SetState(o.dev, StateUp); err != nil {
			return errors.Wrapf(err, errors.KindDriver, "link up failed on %s", o.dev)
		}
		return nil
	}

	// Arm the watch before issuing the command so the transition cannot
	// slip through between the two.
	watch, err := o.drv.Subscribe(o.dev)
	if err != nil {
		return errors.Wrapf(err, errors.KindDriver, "subscribe to link state of %s", o.dev)
	}
	defer watch.Close()

	if err := o.drv.SetState(o.dev, StateUp); err != nil {
		return errors.Wrapf(err, errors.KindDriver, "link up failed on %s", o.dev)
	}

	started := clock.Now()
	err = watch.WaitUp(o.timeout, operBlocking)
	metrics.LinkUpWaitSeconds.Observe(clock.Since(started).Seconds())
	if err != nil {
		if stderrors.Is(err, ErrWaitTimeout) {
			return errors.Wrapf(err, errors.KindTimeout, "device %s did not come up within %s", o.dev, o.timeout)
		}
		return errors.Wrapf(err, errors.KindDriver, "waiting for %s to come up", o.dev)
	}
	return nil
}

func (o *kernelOps) down() error {
	if err := o.drv.SetState(o.dev, StateDown); err != nil {
		return errors.Wrapf(err, errors.KindDriver, "link down failed on %s", o.dev)
	}
	return nil
}

func (o *kernelOps) properties() (Properties, error) {
	props, err := o.drv.Query(o.dev)
	if err != nil {
		return Properties{}, errors.Wrapf(err, errors.KindDriver, "query link %s", o.dev)
	}
	return props, nil
}

func (o *kernelOps) operUp() (bool, error) {
	props, err := o.properties()
	if err != nil {
		return false, err
	}
	return props.OperUp, nil
}

func (o *kernelOps) exists() bool {
	return o.drv.Exists(o.dev)
}

// --- poll-mode devices ---

type pollModeOps struct {
	dev string
	drv Driver
}

func (o *pollModeOps) up(adminBlocking, operBlocking bool) error {
	// Activation is atomic at the driver level; blocking flags are moot.
	if err := o.drv.PollModeSetState(o.dev, StateUp); err != nil {
		return errors.Wrapf(err, errors.KindDriver, "poll-mode up failed on %s", o.dev)
	}
	return nil
}

func (o *pollModeOps) down() error {
	if err := o.drv.PollModeSetState(o.dev, StateDown); err != nil {
		return errors.Wrapf(err, errors.KindDriver, "poll-mode down failed on %s", o.dev)
	}
	return nil
}

func (o *pollModeOps) properties() (Properties, error) {
	props, err := o.drv.PollModeQuery(o.dev)
	if err != nil {
		return Properties{}, errors.Wrapf(err, errors.KindDriver, "query poll-mode device %s", o.dev)
	}
	return props, nil
}

func (o *pollModeOps) operUp() (bool, error) {
	up, err := o.drv.PollModeOperUp(o.dev)
	if err != nil {
		return false, errors.Wrapf(err, errors.KindDriver, "query poll-mode oper state of %s", o.dev)
	}
	return up, nil
}

func (o *pollModeOps) exists() bool {
	devices, err := o.drv.PollModeDevices()
	if err != nil {
		return false
	}
	for _, d := range devices {
		if d == o.dev {
			return true
		}
	}
	return false
}

// --- package-level convenience bound to a driver ---

// System provides device operations bound to a driver. A fresh handle is
// constructed per call so no kernel state is reused between calls.
type System struct {
	drv  Driver
	opts []Option
}

// NewSystem binds a driver for repeated per-device operations.
func NewSystem(drv Driver, opts ...Option) *System {
	return &System{drv: drv, opts: opts}
}

// Up brings the named device up. See Iface.Up.
func (s *System) Up(device string, adminBlocking, operBlocking bool) error {
	return New(s.drv, device, s.opts...).Up(adminBlocking, operBlocking)
}

// Down brings the named device down.
func (s *System) Down(device string) error {
	return New(s.drv, device, s.opts...).Down()
}

// Exists reports device presence.
func (s *System) Exists(device string) bool {
	return New(s.drv, device, s.opts...).Exists()
}

// IsOperUp reports the operational flag of the named device.
func (s *System) IsOperUp(device string) (bool, error) {
	return New(s.drv, device, s.opts...).IsOperUp()
}
