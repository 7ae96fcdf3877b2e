package link

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockDriver is a mock implementation of the Driver interface.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) SetState(device string, state State) error {
	args := m.Called(device, state)
	return args.Error(0)
}

func (m *MockDriver) Query(device string) (Properties, error) {
	args := m.Called(device)
	return args.Get(0).(Properties), args.Error(1)
}

func (m *MockDriver) Exists(device string) bool {
	args := m.Called(device)
	return args.Bool(0)
}

func (m *MockDriver) Subscribe(device string) (StateWatch, error) {
	args := m.Called(device)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(StateWatch), args.Error(1)
}

func (m *MockDriver) SetAddress(device, hwaddr string, vf int) error {
	args := m.Called(device, hwaddr, vf)
	return args.Error(0)
}

func (m *MockDriver) IsPollMode(device string) bool {
	args := m.Called(device)
	return args.Bool(0)
}

func (m *MockDriver) PollModeDevices() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDriver) PollModeSetState(device string, state State) error {
	args := m.Called(device, state)
	return args.Error(0)
}

func (m *MockDriver) PollModeQuery(device string) (Properties, error) {
	args := m.Called(device)
	return args.Get(0).(Properties), args.Error(1)
}

func (m *MockDriver) PollModeOperUp(device string) (bool, error) {
	args := m.Called(device)
	return args.Bool(0), args.Error(1)
}

// MockStateWatch is a mock implementation of the StateWatch interface.
type MockStateWatch struct {
	mock.Mock
}

func (m *MockStateWatch) WaitUp(timeout time.Duration, oper bool) error {
	args := m.Called(timeout, oper)
	return args.Error(0)
}

func (m *MockStateWatch) Close() {
	m.Called()
}
