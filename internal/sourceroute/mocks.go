package sourceroute

import (
	"github.com/stretchr/testify/mock"
)

// MockRouteDriver is a mock implementation of the RouteDriver interface.
type MockRouteDriver struct {
	mock.Mock
}

func (m *MockRouteDriver) AddRoute(route Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockRouteDriver) DelRoute(route Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockRouteDriver) Routes(table uint32, device string) ([]Route, error) {
	args := m.Called(table, device)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Route), args.Error(1)
}

func (m *MockRouteDriver) AddRule(rule Rule) error {
	args := m.Called(rule)
	return args.Error(0)
}

func (m *MockRouteDriver) DelRule(rule Rule) error {
	args := m.Called(rule)
	return args.Error(0)
}

func (m *MockRouteDriver) Rules() ([]Rule, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Rule), args.Error(1)
}

// MockOracle is a mock implementation of the Oracle interface.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) IsControlled(device string) (bool, error) {
	args := m.Called(device)
	return args.Bool(0), args.Error(1)
}
