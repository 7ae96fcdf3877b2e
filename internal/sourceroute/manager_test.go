package sourceroute

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTableFor(t *testing.T) {
	table, err := TableFor("192.168.99.1")
	require.NoError(t, err)
	// 192<<24 | 168<<16 | 99<<8 | 1
	assert.Equal(t, uint32(0xC0A86301), table)

	again, err := TableFor("192.168.99.1")
	require.NoError(t, err)
	assert.Equal(t, table, again, "same address must always yield the same table")

	other, err := TableFor("192.168.99.2")
	require.NoError(t, err)
	assert.NotEqual(t, table, other)

	_, err = TableFor("2001:db8::1")
	assert.Error(t, err)
	_, err = TableFor("garbage")
	assert.Error(t, err)
}

func TestSubnetFor(t *testing.T) {
	subnet, err := SubnetFor("192.168.99.10", "255.255.255.0")
	require.NoError(t, err)
	assert.Equal(t, "192.168.99.0/24", subnet)

	subnet, err = SubnetFor("10.1.2.3", "255.254.0.0")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/15", subnet)

	_, err = SubnetFor("10.1.2.3", "255.0.255.0")
	assert.Error(t, err, "non-contiguous netmask")
}

func TestConfigureInstallsTwoRoutesAndTwoRules(t *testing.T) {
	drv := &MockRouteDriver{}
	table := uint32(0xC0A86301)

	drv.On("AddRoute", Route{
		Destination: DefaultDestination,
		Gateway:     "192.168.99.254",
		Device:      "eth1",
		Table:       table,
	}).Return(nil).Once()
	drv.On("AddRoute", Route{
		Destination: "192.168.99.0/24",
		Device:      "eth1",
		Source:      "192.168.99.1",
		Table:       table,
	}).Return(nil).Once()
	drv.On("AddRule", Rule{Src: "192.168.99.0/24", Table: table}).Return(nil).Once()
	drv.On("AddRule", Rule{Dst: "192.168.99.0/24", IIF: "eth1", Table: table}).Return(nil).Once()

	m := NewManager(drv)
	err := m.Configure("eth1", "192.168.99.1", "255.255.255.0", "192.168.99.254")
	require.NoError(t, err)
	drv.AssertExpectations(t)
}

func TestConfigureWithoutGatewayIsNoOp(t *testing.T) {
	drv := &MockRouteDriver{}
	m := NewManager(drv)

	require.NoError(t, m.Configure("eth1", "192.168.99.1", "255.255.255.0", ""))
	require.NoError(t, m.Configure("eth1", "192.168.99.1", "255.255.255.0", "0.0.0.0"))
	require.NoError(t, m.Configure("eth1", "", "", "192.168.99.254"))

	drv.AssertNotCalled(t, "AddRoute", mock.Anything)
	drv.AssertNotCalled(t, "AddRule", mock.Anything)
}

func TestConfigureUnwindsOnFailure(t *testing.T) {
	drv := &MockRouteDriver{}
	drv.On("AddRoute", mock.Anything).Return(nil).Twice()
	drv.On("AddRule", mock.MatchedBy(func(r Rule) bool { return r.IIF == "" })).
		Return(fmt.Errorf("EEXIST")).Once()
	drv.On("DelRoute", mock.Anything).Return(nil).Twice()

	m := NewManager(drv)
	err := m.Configure("eth1", "192.168.99.1", "255.255.255.0", "192.168.99.254")
	require.Error(t, err)
	drv.AssertExpectations(t)

	// The record was discarded, so a subsequent Remove must go through
	// discovery rather than replaying a stale record.
	drv.On("Rules").Return([]Rule{}, nil).Once()
	require.NoError(t, m.Remove("eth1"))
	drv.AssertExpectations(t)
}

func TestRemoveStaticUsesHeldRecord(t *testing.T) {
	drv := &MockRouteDriver{}
	drv.On("AddRoute", mock.Anything).Return(nil)
	drv.On("AddRule", mock.Anything).Return(nil)
	drv.On("DelRule", mock.Anything).Return(nil).Twice()
	drv.On("DelRoute", mock.Anything).Return(nil).Twice()

	m := NewManager(drv)
	require.NoError(t, m.Configure("eth1", "192.168.99.1", "255.255.255.0", "192.168.99.254"))
	require.NoError(t, m.Remove("eth1"))

	// Discovery was never needed.
	drv.AssertNotCalled(t, "Rules")
	drv.AssertExpectations(t)
}

func TestRemoveDynamicDiscoversFromKernel(t *testing.T) {
	table := uint32(0xC0A86301)
	drv := &MockRouteDriver{}
	drv.On("Rules").Return([]Rule{
		{Src: "10.0.0.0/8", Table: 42}, // unrelated
		{Dst: "192.168.99.0/24", IIF: "eth1", Table: table},
		{Src: "192.168.99.0/24", Table: table},
	}, nil).Once()
	drv.On("Routes", table, "eth1").Return([]Route{
		{Destination: DefaultDestination, Gateway: "192.168.99.254", Device: "eth1", Table: table},
		{Destination: "192.168.99.0/24", Device: "eth1", Table: table},
	}, nil).Once()
	drv.On("DelRoute", mock.Anything).Return(nil).Twice()
	drv.On("DelRule", Rule{Dst: "192.168.99.0/24", IIF: "eth1", Table: table}).Return(nil).Once()
	drv.On("DelRule", Rule{Src: "192.168.99.0/24", Table: table}).Return(nil).Once()

	m := NewManager(drv)
	require.NoError(t, m.Remove("eth1"))
	drv.AssertExpectations(t)
}

func TestRemoveDynamicNothingFoundIsClean(t *testing.T) {
	drv := &MockRouteDriver{}
	drv.On("Rules").Return([]Rule{
		{Src: "10.0.0.0/8", Table: 42},
	}, nil).Once()

	m := NewManager(drv)
	require.NoError(t, m.Remove("eth9"))
	drv.AssertNotCalled(t, "Routes", mock.Anything, mock.Anything)
	drv.AssertNotCalled(t, "DelRule", mock.Anything)
}

func TestRemoveDynamicUnresolvableTableRemovesRulesOnly(t *testing.T) {
	drv := &MockRouteDriver{}
	drv.On("Rules").Return([]Rule{
		{Dst: "192.168.99.0/24", IIF: "eth1", Table: 0},
	}, nil).Once()
	drv.On("DelRule", Rule{Dst: "192.168.99.0/24", IIF: "eth1", Table: 0}).Return(nil).Once()

	m := NewManager(drv)
	require.NoError(t, m.Remove("eth1"))
	drv.AssertNotCalled(t, "Routes", mock.Anything, mock.Anything)
	drv.AssertExpectations(t)
}

func TestIsControlledViaOracle(t *testing.T) {
	oracle := &MockOracle{}
	oracle.On("IsControlled", "br0").Return(true, nil)

	m := NewManager(&MockRouteDriver{}, WithOracle(oracle))
	controlled, err := m.IsControlled("br0")
	require.NoError(t, err)
	assert.True(t, controlled)
}

func TestIsControlledFallsBackToAutostartScan(t *testing.T) {
	dir := t.TempDir()
	xml := `<network><forward mode='bridge'/><bridge name='br-prod'/></network>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prod.xml"), []byte(xml), 0o644))

	oracle := &MockOracle{}
	oracle.On("IsControlled", mock.Anything).Return(false, fmt.Errorf("connection refused"))

	m := NewManager(&MockRouteDriver{},
		WithOracle(oracle),
		WithAutostartGlob(filepath.Join(dir, "*.xml")))

	controlled, err := m.IsControlled("br-prod")
	require.NoError(t, err)
	assert.True(t, controlled)

	controlled, err = m.IsControlled("br-other")
	require.NoError(t, err)
	assert.False(t, controlled)
}

func TestIsControlledWithoutOracleScansDirectly(t *testing.T) {
	dir := t.TempDir()
	xml := `<network><forward mode='passthrough'><interface dev='eth3'/></forward></network>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pass.xml"), []byte(xml), 0o644))

	m := NewManager(&MockRouteDriver{},
		WithAutostartGlob(filepath.Join(dir, "*.xml")))

	controlled, err := m.IsControlled("eth3")
	require.NoError(t, err)
	assert.True(t, controlled)
}
