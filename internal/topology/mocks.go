package topology

import (
	"github.com/stretchr/testify/mock"
)

// MockDriver is a mock implementation of the Driver interface.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) CreateBridge(name string, stp bool) error {
	args := m.Called(name, stp)
	return args.Error(0)
}

func (m *MockDriver) DeleteBridge(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockDriver) CreateVLAN(device string, tag int) error {
	args := m.Called(device, tag)
	return args.Error(0)
}

func (m *MockDriver) DeleteVLAN(device string, tag int) error {
	args := m.Called(device, tag)
	return args.Error(0)
}

func (m *MockDriver) CreateBond(name string, options map[string]string) error {
	args := m.Called(name, options)
	return args.Error(0)
}

func (m *MockDriver) DeleteBond(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockDriver) Enslave(master, slave string) error {
	args := m.Called(master, slave)
	return args.Error(0)
}

func (m *MockDriver) Release(slave string) error {
	args := m.Called(slave)
	return args.Error(0)
}

func (m *MockDriver) SetMTU(device string, mtu int) error {
	args := m.Called(device, mtu)
	return args.Error(0)
}

func (m *MockDriver) AddAddress(device, address, netmask string) error {
	args := m.Called(device, address, netmask)
	return args.Error(0)
}

func (m *MockDriver) DelAddress(device, address, netmask string) error {
	args := m.Called(device, address, netmask)
	return args.Error(0)
}

func (m *MockDriver) Snapshot() (Snapshot, error) {
	args := m.Called()
	return args.Get(0).(Snapshot), args.Error(1)
}

// MockLinkOps is a mock implementation of the LinkOps interface.
type MockLinkOps struct {
	mock.Mock
}

func (m *MockLinkOps) Up(device string, adminBlocking, operBlocking bool) error {
	args := m.Called(device, adminBlocking, operBlocking)
	return args.Error(0)
}

func (m *MockLinkOps) Down(device string) error {
	args := m.Called(device)
	return args.Error(0)
}

func (m *MockLinkOps) Exists(device string) bool {
	args := m.Called(device)
	return args.Bool(0)
}

// MockSourceRouter is a mock implementation of the SourceRouter interface.
type MockSourceRouter struct {
	mock.Mock
}

func (m *MockSourceRouter) Configure(device, address, netmask, gateway string) error {
	args := m.Called(device, address, netmask, gateway)
	return args.Error(0)
}

func (m *MockSourceRouter) Remove(device string) error {
	args := m.Called(device)
	return args.Error(0)
}
