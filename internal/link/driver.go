package link

import (
	stderrors "errors"
	"time"
)

// Kind classifies how a device is driven. It is resolved once per handle
// and never changes for a given name within one reconciliation pass.
type Kind string

const (
	// KindKernel is a regular kernel-managed NIC.
	KindKernel Kind = "kernel"
	// KindPollMode is a user-space poll-mode device with no native
	// kernel operational signal path.
	KindPollMode Kind = "poll-mode"
)

// State is the administrative state requested from the driver.
type State string

const (
	StateUp   State = "up"
	StateDown State = "down"
)

// DefaultMTU is the conventional fallback MTU. It is a caller-side
// constant; this package never substitutes it for a reported value.
const DefaultMTU = 1500

// DefaultUpTimeout bounds blocking waits for a link-up transition.
const DefaultUpTimeout = 10 * time.Second

// ErrWaitTimeout is returned by a StateWatch whose bounded wait elapsed
// before the requested transition was observed.
var ErrWaitTimeout = stderrors.New("timed out waiting for link state change")

// Properties is a point-in-time snapshot of a device's link attributes.
// It is never cached; kernel state can change underneath a handle.
type Properties struct {
	Name    string
	AdminUp bool
	OperUp  bool
	Promisc bool
	Address string
	MTU     int
}

// Driver is the capability that inspects and mutates device link state.
// Kernel devices and poll-mode devices have separate query and mutation
// paths; an implementation must never mix the two.
type Driver interface {
	// SetState issues an administrative up/down command for a kernel device.
	SetState(device string, state State) error
	// Query returns a fresh snapshot for a kernel device.
	Query(device string) (Properties, error)
	// Exists reports kernel-device presence (the standard network-device
	// namespace on the host filesystem).
	Exists(device string) bool
	// Subscribe arms a watch for the device's state transitions. The watch
	// must be armed before the mutating command is issued so that no
	// transition can be missed in between.
	Subscribe(device string) (StateWatch, error)
	// SetAddress sets the hardware address. A vf index >= 0 targets that
	// virtual function instead of the device itself.
	SetAddress(device, hwaddr string, vf int) error

	// IsPollMode reports whether the named device is a poll-mode device.
	IsPollMode(device string) bool
	// PollModeDevices enumerates the driver's poll-mode devices.
	PollModeDevices() ([]string, error)
	// PollModeSetState activates or deactivates a poll-mode device. The
	// transition is atomic at the driver level; there is nothing to wait on.
	PollModeSetState(device string, state State) error
	// PollModeQuery returns a fresh snapshot for a poll-mode device.
	PollModeQuery(device string) (Properties, error)
	// PollModeOperUp is the driver-specific equivalent of the operational
	// flag for devices with no kernel signal path.
	PollModeOperUp(device string) (bool, error)
}

// StateWatch is an armed subscription to one device's link state.
type StateWatch interface {
	// WaitUp blocks until the administrative flag is observed up and, when
	// oper is set, until the operational flag is observed up as well.
	// Returns ErrWaitTimeout when the bound elapses first.
	WaitUp(timeout time.Duration, oper bool) error
	// Close releases the subscription.
	Close()
}
