package link

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/hostnet/internal/errors"
)

func kernelDriver(t *testing.T, device string) *MockDriver {
	t.Helper()
	drv := &MockDriver{}
	drv.On("IsPollMode", device).Return(false)
	return drv
}

func TestNewResolvesKind(t *testing.T) {
	drv := &MockDriver{}
	drv.On("IsPollMode", "eth0").Return(false)
	drv.On("IsPollMode", "pmd0").Return(true)

	assert.Equal(t, KindKernel, New(drv, "eth0").Kind())
	assert.Equal(t, KindPollMode, New(drv, "pmd0").Kind())
}

func TestUpNonBlockingDoesNotSubscribe(t *testing.T) {
	drv := kernelDriver(t, "eth0")
	drv.On("SetState", "eth0", StateUp).Return(nil)

	err := New(drv, "eth0").Up(false, false)
	require.NoError(t, err)

	drv.AssertNotCalled(t, "Subscribe", "eth0")
}

func TestUpBlockingArmsWatchBeforeCommand(t *testing.T) {
	var order []string

	watch := &MockStateWatch{}
	watch.On("WaitUp", DefaultUpTimeout, false).Return(nil)
	watch.On("Close").Return()

	drv := kernelDriver(t, "eth0")
	drv.On("Subscribe", "eth0").Run(func(mock.Arguments) {
		order = append(order, "subscribe")
	}).Return(watch, nil)
	drv.On("SetState", "eth0", StateUp).Run(func(mock.Arguments) {
		order = append(order, "set-state")
	}).Return(nil)

	err := New(drv, "eth0").Up(true, false)
	require.NoError(t, err)

	// The watch must already be armed when the command fires, otherwise a
	// fast transition could be missed entirely.
	require.Equal(t, []string{"subscribe", "set-state"}, order)
	watch.AssertCalled(t, "Close")
}

func TestUpBlockingOperPassesThroughToWatch(t *testing.T) {
	watch := &MockStateWatch{}
	watch.On("WaitUp", 3*time.Second, true).Return(nil)
	watch.On("Close").Return()

	drv := kernelDriver(t, "eth0")
	drv.On("Subscribe", "eth0").Return(watch, nil)
	drv.On("SetState", "eth0", StateUp).Return(nil)

	err := New(drv, "eth0", WithUpTimeout(3*time.Second)).Up(true, true)
	require.NoError(t, err)
	watch.AssertExpectations(t)
}

func TestUpBlockingTimeoutKind(t *testing.T) {
	watch := &MockStateWatch{}
	watch.On("WaitUp", DefaultUpTimeout, true).Return(ErrWaitTimeout)
	watch.On("Close").Return()

	drv := kernelDriver(t, "eth0")
	drv.On("Subscribe", "eth0").Return(watch, nil)
	drv.On("SetState", "eth0", StateUp).Return(nil)

	err := New(drv, "eth0").Up(true, true)
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.GetKind(err))
}

func TestUpBlockingWatchFailureIsDriverKind(t *testing.T) {
	watch := &MockStateWatch{}
	watch.On("WaitUp", DefaultUpTimeout, false).Return(fmt.Errorf("socket closed"))
	watch.On("Close").Return()

	drv := kernelDriver(t, "eth0")
	drv.On("Subscribe", "eth0").Return(watch, nil)
	drv.On("SetState", "eth0", StateUp).Return(nil)

	err := New(drv, "eth0").Up(true, false)
	require.Error(t, err)
	assert.Equal(t, errors.KindDriver, errors.GetKind(err))
}

func TestUpCommandFailure(t *testing.T) {
	watch := &MockStateWatch{}
	watch.On("Close").Return()

	drv := kernelDriver(t, "eth0")
	drv.On("Subscribe", "eth0").Return(watch, nil)
	drv.On("SetState", "eth0", StateUp).Return(fmt.Errorf("EPERM"))

	err := New(drv, "eth0").Up(true, false)
	require.Error(t, err)
	assert.Equal(t, errors.KindDriver, errors.GetKind(err))
	// The armed watch is still released on the failure path.
	watch.AssertCalled(t, "Close")
	watch.AssertNotCalled(t, "WaitUp", mock.Anything, mock.Anything)
}

func TestDown(t *testing.T) {
	drv := kernelDriver(t, "eth0")
	drv.On("SetState", "eth0", StateDown).Return(nil)

	require.NoError(t, New(drv, "eth0").Down())
}

func TestIsUpMeansAdminUp(t *testing.T) {
	drv := kernelDriver(t, "eth0")
	drv.On("Query", "eth0").Return(Properties{
		Name:    "eth0",
		AdminUp: true,
		OperUp:  false, // carrier down does not make the device "down"
	}, nil)

	iface := New(drv, "eth0")

	up, err := iface.IsUp()
	require.NoError(t, err)
	assert.True(t, up)

	operUp, err := iface.IsOperUp()
	require.NoError(t, err)
	assert.False(t, operUp)
}

func TestProperties(t *testing.T) {
	drv := kernelDriver(t, "eth2")
	drv.On("Query", "eth2").Return(Properties{
		Name:    "eth2",
		AdminUp: true,
		OperUp:  true,
		Promisc: true,
		Address: "aa:bb:cc:dd:ee:ff",
		MTU:     9000,
	}, nil)

	iface := New(drv, "eth2")

	props, err := iface.Properties()
	require.NoError(t, err)
	assert.Equal(t, 9000, props.MTU)

	addr, err := iface.Address()
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", addr)

	promisc, err := iface.IsPromisc()
	require.NoError(t, err)
	assert.True(t, promisc)
}

func TestSetAddressTargetsVF(t *testing.T) {
	drv := kernelDriver(t, "eth0")
	drv.On("SetAddress", "eth0", "02:00:00:00:00:01", 3).Return(nil)

	err := New(drv, "eth0", WithVF(3)).SetAddress("02:00:00:00:00:01")
	require.NoError(t, err)
	drv.AssertExpectations(t)
}

func TestSetAddressDefaultsToDevice(t *testing.T) {
	drv := kernelDriver(t, "eth0")
	drv.On("SetAddress", "eth0", "02:00:00:00:00:01", -1).Return(nil)

	require.NoError(t, New(drv, "eth0").SetAddress("02:00:00:00:00:01"))
}

func TestPollModeUpNeverWaits(t *testing.T) {
	drv := &MockDriver{}
	drv.On("IsPollMode", "pmd0").Return(true)
	drv.On("PollModeSetState", "pmd0", StateUp).Return(nil)

	// Blocking flags are accepted but have no kernel wait to perform.
	err := New(drv, "pmd0").Up(true, true)
	require.NoError(t, err)

	drv.AssertNotCalled(t, "Subscribe", mock.Anything)
	drv.AssertNotCalled(t, "SetState", mock.Anything, mock.Anything)
}

func TestPollModeQueryPaths(t *testing.T) {
	drv := &MockDriver{}
	drv.On("IsPollMode", "pmd0").Return(true)
	drv.On("PollModeQuery", "pmd0").Return(Properties{Name: "pmd0", AdminUp: true}, nil)
	drv.On("PollModeOperUp", "pmd0").Return(true, nil)

	iface := New(drv, "pmd0")

	up, err := iface.IsAdminUp()
	require.NoError(t, err)
	assert.True(t, up)

	operUp, err := iface.IsOperUp()
	require.NoError(t, err)
	assert.True(t, operUp)

	drv.AssertNotCalled(t, "Query", mock.Anything)
}

func TestPollModeExists(t *testing.T) {
	drv := &MockDriver{}
	drv.On("IsPollMode", mock.Anything).Return(true)
	drv.On("PollModeDevices").Return([]string{"pmd0", "pmd1"}, nil)

	assert.True(t, New(drv, "pmd1").Exists())
	assert.False(t, New(drv, "pmd7").Exists())
	drv.AssertNotCalled(t, "Exists", mock.Anything)
}

func TestKernelExists(t *testing.T) {
	drv := kernelDriver(t, "eth0")
	drv.On("Exists", "eth0").Return(true)

	assert.True(t, New(drv, "eth0").Exists())
}

func TestSystemBuildsFreshHandles(t *testing.T) {
	drv := &MockDriver{}
	drv.On("IsPollMode", "eth0").Return(false)
	drv.On("SetState", "eth0", StateUp).Return(nil)
	drv.On("SetState", "eth0", StateDown).Return(nil)

	sys := NewSystem(drv)
	require.NoError(t, sys.Up("eth0", false, false))
	require.NoError(t, sys.Down("eth0"))

	// The kind is re-resolved per call.
	drv.AssertNumberOfCalls(t, "IsPollMode", 2)
}
