package running

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostnet/internal/clock"
	"grimm.is/hostnet/internal/topology"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	mock := clock.NewMockClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(Options{
		Path:  filepath.Join(t.TempDir(), "running.db"),
		Clock: mock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpdateAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)

	vlan := 100
	cs := topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{
			"prod": {Name: "prod", Bond: "bond0", VLAN: &vlan, Bridged: true, MTU: 9000,
				Switch: topology.SwitchLegacy,
				Addressing: topology.Addressing{
					BootProto: topology.BootProtoNone,
					Address:   "10.1.1.2", Netmask: "255.255.255.0", Gateway: "10.1.1.1",
				}},
		},
		Bonds: map[string]topology.BondSpec{
			"bond0": {Name: "bond0", Members: []string{"eth0", "eth1"},
				Options: map[string]string{"mode": "4"}, Switch: topology.SwitchLegacy},
		},
	}
	require.NoError(t, store.Update(cs))

	networks, bonds, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, networks, "prod")
	require.Contains(t, bonds, "bond0")

	prod := networks["prod"]
	assert.Equal(t, "bond0", prod.Bond)
	require.NotNil(t, prod.VLAN)
	assert.Equal(t, 100, *prod.VLAN)
	assert.Equal(t, 9000, prod.MTU)
	assert.Equal(t, []string{"eth0", "eth1"}, bonds["bond0"].Members)
}

func TestUpdateRemovesEntities(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Update(topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{
			"lan": {Name: "lan", NIC: "eth0",
				Addressing: topology.Addressing{BootProto: topology.BootProtoDHCP}},
		},
	}))
	require.NoError(t, store.Update(topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{
			"lan": {Name: "lan", Remove: true},
		},
	}))

	networks, _, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, networks, "lan")
}

func TestUpdateUpserts(t *testing.T) {
	store := openTestStore(t)

	spec := topology.NetworkSpec{Name: "lan", NIC: "eth0", MTU: 1500,
		Addressing: topology.Addressing{BootProto: topology.BootProtoDHCP}}
	require.NoError(t, store.Update(topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{"lan": spec},
	}))

	spec.MTU = 9000
	require.NoError(t, store.Update(topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{"lan": spec},
	}))

	networks, _, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, networks["lan"].MTU)
}

func TestHistoryNewestFirst(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Update(topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{
			"lan": {Name: "lan", NIC: "eth0",
				Addressing: topology.Addressing{BootProto: topology.BootProtoDHCP}},
		},
	}))
	require.NoError(t, store.Update(topology.ChangeSet{
		Networks: map[string]topology.NetworkSpec{
			"lan": {Name: "lan", Remove: true},
		},
	}))

	entries, err := store.History(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "remove", entries[0].Action)
	assert.Equal(t, "set", entries[1].Action)
	assert.Equal(t, "lan", entries[0].Name)
}

func TestLoadEmptyStore(t *testing.T) {
	store := openTestStore(t)
	networks, bonds, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, networks)
	assert.Empty(t, bonds)
}
