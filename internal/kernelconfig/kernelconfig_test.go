package kernelconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostnet/internal/topology"
)

func intp(v int) *int { return &v }

func desired(nets map[string]topology.NetworkSpec, bonds map[string]topology.BondSpec) Tree {
	return NormalizeDesired(nets, bonds)
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	tree := desired(map[string]topology.NetworkSpec{
		"lan": {Name: "lan", NIC: "eth0"},
	}, nil)

	net := tree.Networks["lan"]
	assert.Equal(t, 1500, net.MTU)
	assert.Equal(t, topology.SwitchLegacy, net.Switch)
	assert.Equal(t, topology.BootProtoNone, net.BootProto)
}

func TestNormalizeCoercesTextualMTU(t *testing.T) {
	running := NormalizeRunning(topology.Snapshot{
		Networks: map[string]topology.NetworkState{
			"lan": {Name: "lan", NIC: "eth0", MTU: " 9000 "},
			"bad": {Name: "bad", NIC: "eth1", MTU: "jumbo"},
		},
	})
	assert.Equal(t, 9000, running.Networks["lan"].MTU)
	assert.Equal(t, 1500, running.Networks["bad"].MTU)
}

func TestNormalizeZeroQoSEqualsAbsentQoS(t *testing.T) {
	withZero := desired(map[string]topology.NetworkSpec{
		"lan": {Name: "lan", NIC: "eth0", QoS: &topology.QoS{M1: 0, D: 0}},
	}, nil)
	without := desired(map[string]topology.NetworkSpec{
		"lan": {Name: "lan", NIC: "eth0"},
	}, nil)

	assert.Equal(t, without.Networks["lan"], withZero.Networks["lan"])
	assert.Empty(t, Compare(withZero, without))
}

func TestNormalizePartialQoSKeepsSetFields(t *testing.T) {
	tree := desired(map[string]topology.NetworkSpec{
		"lan": {Name: "lan", NIC: "eth0", QoS: &topology.QoS{M1: 0, D: 0, M2: 1000000}},
	}, nil)
	assert.Equal(t, map[string]uint64{"m2": 1000000}, tree.Networks["lan"].QoS)
}

func TestBondOptionsComparedAsSets(t *testing.T) {
	want := desired(nil, map[string]topology.BondSpec{
		"bond0": {Name: "bond0",
			Members: []string{"eth1", "eth0"},
			Options: map[string]string{"miimon": "100", "mode": "4"}},
	})
	running := NormalizeRunning(topology.Snapshot{
		Bonds: map[string]topology.BondState{
			// Kernel reports the options and members in its own order.
			"bond0": {Name: "bond0",
				Members: []string{"eth0", "eth1"},
				Options: "mode=4 miimon=100"},
		},
	})
	assert.Empty(t, Compare(want, running))
}

func TestCompareConverged(t *testing.T) {
	nets := map[string]topology.NetworkSpec{
		"prod": {Name: "prod", NIC: "eth0", VLAN: intp(100), Bridged: true, MTU: 9000,
			Addressing: topology.Addressing{
				BootProto: topology.BootProtoNone,
				Address:   "10.1.1.2", Netmask: "255.255.255.0", Gateway: "10.1.1.1",
			}},
	}
	want := desired(nets, nil)
	running := NormalizeRunning(topology.Snapshot{
		Networks: map[string]topology.NetworkState{
			"prod": {Name: "prod", NIC: "eth0", VLAN: intp(100), Bridged: true,
				MTU: "9000", Switch: topology.SwitchLegacy,
				Addressing: topology.Addressing{
					BootProto: topology.BootProtoNone,
					Address:   "10.1.1.2", Netmask: "255.255.255.0", Gateway: "10.1.1.1",
				}},
		},
	})
	assert.Empty(t, Compare(want, running))
}

func TestCompareLocalizesDrift(t *testing.T) {
	want := desired(map[string]topology.NetworkSpec{
		"prod": {Name: "prod", NIC: "eth0", MTU: 9000},
	}, nil)
	running := NormalizeRunning(topology.Snapshot{
		Networks: map[string]topology.NetworkState{
			"prod": {Name: "prod", NIC: "eth0", MTU: "1500"},
		},
	})

	mismatches := Compare(want, running)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "network prod", mismatches[0].Entity)
	assert.Equal(t, "mtu", mismatches[0].Field)
	assert.Equal(t, "9000", mismatches[0].Expected)
	assert.Equal(t, "1500", mismatches[0].Actual)
	assert.Contains(t, mismatches[0].String(), "expected 9000, got 1500")
}

func TestCompareReportsMissingAndUnexpected(t *testing.T) {
	want := desired(map[string]topology.NetworkSpec{
		"prod": {Name: "prod", NIC: "eth0"},
	}, nil)
	running := NormalizeRunning(topology.Snapshot{
		Networks: map[string]topology.NetworkState{
			"stray": {Name: "stray", NIC: "eth1", MTU: "1500"},
		},
	})

	mismatches := Compare(want, running)
	require.Len(t, mismatches, 2)
	assert.Equal(t, Mismatch{"network prod", "presence", "present", "missing"}, mismatches[0])
	assert.Equal(t, Mismatch{"network stray", "presence", "absent", "present"}, mismatches[1])
}

func TestCompareSkipsEntitiesMarkedForRemoval(t *testing.T) {
	want := desired(map[string]topology.NetworkSpec{
		"old": {Name: "old", NIC: "eth0", Remove: true},
	}, nil)
	assert.Empty(t, want.Networks)
}

func TestDiffRendersUnified(t *testing.T) {
	want := desired(map[string]topology.NetworkSpec{
		"prod": {Name: "prod", NIC: "eth0", MTU: 9000},
	}, nil)
	running := NormalizeRunning(topology.Snapshot{
		Networks: map[string]topology.NetworkState{
			"prod": {Name: "prod", NIC: "eth0", MTU: "1500"},
		},
	})

	diff, err := Diff(want, running)
	require.NoError(t, err)
	assert.True(t, strings.Contains(diff, "-"), "diff should mark removed lines")
	assert.Contains(t, diff, "9000")
	assert.Contains(t, diff, "1500")

	same, err := Diff(want, want)
	require.NoError(t, err)
	assert.Empty(t, same)
}
