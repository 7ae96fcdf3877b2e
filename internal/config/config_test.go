package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/hostnet/internal/errors"
	"grimm.is/hostnet/internal/topology"
)

const sampleHCL = `
schema_version = "1"

settings {
  connectivity_check           = true
  connectivity_timeout_seconds = 5
  log_level                    = "debug"
}

bond "bond0" {
  members = ["eth1", "eth0"]
  options = "mode=4 miimon=100"
}

network "prod" {
  bond      = "bond0"
  vlan      = 100
  mtu       = 9000
  bootproto = "none"
  address   = "192.168.5.10"
  prefix    = 24
  gateway   = "192.168.5.1"
}

network "guests" {
  nic       = "eth2"
  bootproto = "dhcp"
}
`

func TestLoadHCL(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)

	require.NotNil(t, cfg.Settings)
	assert.True(t, cfg.Settings.ConnectivityCheck)
	assert.Equal(t, 5, cfg.Settings.ConnectivityTimeoutSeconds)

	require.Len(t, cfg.Networks, 2)
	require.Len(t, cfg.Bonds, 1)
}

func TestCanonicalizeAppliesDefaults(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)

	var guests *NetworkBlock
	for i := range cfg.Networks {
		if cfg.Networks[i].Name == "guests" {
			guests = &cfg.Networks[i]
		}
	}
	require.NotNil(t, guests)
	require.NotNil(t, guests.Bridged)
	assert.True(t, *guests.Bridged, "bridged defaults to true")
	assert.Equal(t, 1500, guests.MTU)
	assert.Equal(t, topology.SwitchLegacy, guests.Switch)
}

func TestCanonicalizeConvertsPrefixToNetmask(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)

	var prod *NetworkBlock
	for i := range cfg.Networks {
		if cfg.Networks[i].Name == "prod" {
			prod = &cfg.Networks[i]
		}
	}
	require.NotNil(t, prod)
	assert.Equal(t, "255.255.255.0", prod.Netmask)
	assert.Nil(t, prod.Prefix)
}

func TestCanonicalizeRejectsPrefixNetmaskConflict(t *testing.T) {
	prefix := 24
	cfg := &Config{Networks: []NetworkBlock{{
		Name:    "lan",
		NIC:     "eth0",
		Address: "10.0.0.2",
		Netmask: "255.255.255.0",
		Prefix:  &prefix,
	}}}
	err := cfg.Canonicalize()
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
	assert.Contains(t, err.Error(), "both prefix and netmask")
}

func TestCanonicalizeRejectsAddressWithoutNetmask(t *testing.T) {
	cfg := &Config{Networks: []NetworkBlock{{
		Name: "lan", NIC: "eth0", Address: "10.0.0.2",
	}}}
	err := cfg.Canonicalize()
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestCanonicalizeRejectsBadBondName(t *testing.T) {
	cfg := &Config{Bonds: []BondBlock{{Name: "jamesbond007", Members: []string{"eth0"}}}}
	err := cfg.Canonicalize()
	require.Error(t, err)
	assert.Equal(t, errors.KindInvalidName, errors.GetKind(err))
}

func TestCanonicalizeRejectsDuplicateBondMember(t *testing.T) {
	cfg := &Config{Bonds: []BondBlock{{Name: "bond0", Members: []string{"eth0", "eth0"}}}}
	err := cfg.Canonicalize()
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestCanonicalizeSortsBondMembers(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "eth1"}, cfg.Bonds[0].Members)
}

func TestChangeSetConversion(t *testing.T) {
	cfg, err := LoadHCL([]byte(sampleHCL), "test.hcl")
	require.NoError(t, err)

	cs := cfg.ChangeSet()
	require.Contains(t, cs.Networks, "prod")
	require.Contains(t, cs.Bonds, "bond0")

	prod := cs.Networks["prod"]
	assert.Equal(t, "bond0", prod.Bond)
	require.NotNil(t, prod.VLAN)
	assert.Equal(t, 100, *prod.VLAN)
	assert.Equal(t, "255.255.255.0", prod.Addressing.Netmask)
	assert.True(t, prod.Bridged)

	bond := cs.Bonds["bond0"]
	assert.Equal(t, map[string]string{"mode": "4", "miimon": "100"}, bond.Options)
}

func TestLoadHCLWithDefaultsReference(t *testing.T) {
	src := `
network "lan" {
  nic = "eth0"
  mtu = defaults.mtu
  bootproto = "dhcp"
}
`
	cfg, err := LoadHCL([]byte(src), "test.hcl")
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.Networks[0].MTU)
}

func TestLoadHCLRejectsUnknownSchemaVersion(t *testing.T) {
	_, err := LoadHCL([]byte(`schema_version = "99"`), "test.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version")
}

func TestLoadHCLParseError(t *testing.T) {
	_, err := LoadHCL([]byte(`network "x" {`), "broken.hcl")
	require.Error(t, err)
}
