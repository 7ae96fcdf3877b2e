package config

import (
	"fmt"
	"net"
	"sort"

	"grimm.is/hostnet/internal/errors"
	"grimm.is/hostnet/internal/link"
	"grimm.is/hostnet/internal/topology"
	"grimm.is/hostnet/internal/validation"
)

// Canonicalize makes defaults explicit and normalizes equivalent spellings
// so that re-applying the same file is idempotent: a prefix length becomes a
// netmask, bond members are sorted, and every optional field that has a
// platform default gets it filled in. Validation of the values happens here
// too, before anything reaches the transaction layer.
func (c *Config) Canonicalize() error {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}

	for i := range c.Networks {
		if err := canonicalizeNetwork(&c.Networks[i]); err != nil {
			return err
		}
	}
	for i := range c.Bonds {
		if err := canonicalizeBond(&c.Bonds[i]); err != nil {
			return err
		}
	}
	return nil
}

func canonicalizeNetwork(n *NetworkBlock) error {
	if err := validation.ValidateIdentifier(n.Name); err != nil {
		return errors.Wrapf(err, errors.KindInvalidName, "network %q", n.Name)
	}
	if n.Remove {
		return nil
	}

	if n.Bridged == nil {
		bridged := true
		n.Bridged = &bridged
	}
	if n.MTU == 0 {
		n.MTU = link.DefaultMTU
	}
	if n.Switch == "" {
		n.Switch = topology.SwitchLegacy
	}
	if n.BootProto == "" {
		n.BootProto = topology.BootProtoNone
	}

	if n.NIC != "" {
		if err := validation.ValidateInterfaceName(n.NIC); err != nil {
			return errors.Wrapf(err, errors.KindInvalidName, "network %q nic", n.Name)
		}
	}
	if n.Bond != "" {
		if err := validation.ValidateBondName(n.Bond); err != nil {
			return errors.Wrapf(err, errors.KindInvalidName, "network %q bond", n.Name)
		}
	}
	if n.VLAN != nil {
		if err := validation.ValidateVLANTag(*n.VLAN); err != nil {
			return errors.Wrapf(err, errors.KindValidation, "network %q", n.Name)
		}
	}

	if n.Prefix != nil {
		if n.Netmask != "" {
			return errors.Errorf(errors.KindValidation,
				"network %q sets both prefix and netmask", n.Name)
		}
		if *n.Prefix < 0 || *n.Prefix > 32 {
			return errors.Errorf(errors.KindValidation,
				"network %q has invalid prefix %d", n.Name, *n.Prefix)
		}
		n.Netmask = net.IP(net.CIDRMask(*n.Prefix, 32)).String()
		n.Prefix = nil
	}

	if n.BootProto == topology.BootProtoNone && n.Address != "" {
		if err := validation.ValidateIPv4Address(n.Address); err != nil {
			return errors.Wrapf(err, errors.KindValidation, "network %q", n.Name)
		}
		if n.Netmask == "" {
			return errors.Errorf(errors.KindValidation,
				"network %q has an address but no netmask or prefix", n.Name)
		}
		if err := validation.ValidateIPv4Netmask(n.Netmask); err != nil {
			return errors.Wrapf(err, errors.KindValidation, "network %q", n.Name)
		}
		if n.Gateway != "" {
			if err := validation.ValidateIPv4Address(n.Gateway); err != nil {
				return errors.Wrapf(err, errors.KindValidation, "network %q gateway", n.Name)
			}
		}
	}

	if n.BootProto != topology.BootProtoNone && n.BootProto != topology.BootProtoDHCP {
		return errors.Errorf(errors.KindValidation,
			"network %q has unknown bootproto %q", n.Name, n.BootProto)
	}

	return nil
}

func canonicalizeBond(b *BondBlock) error {
	if err := validation.ValidateBondName(b.Name); err != nil {
		return errors.Wrapf(err, errors.KindInvalidName, "bond %q", b.Name)
	}
	if b.Remove {
		return nil
	}

	if b.Switch == "" {
		b.Switch = topology.SwitchLegacy
	}
	for _, member := range b.Members {
		if err := validation.ValidateInterfaceName(member); err != nil {
			return errors.Wrapf(err, errors.KindInvalidName,
				"bond %q member %q", b.Name, member)
		}
	}
	// Member order is not meaningful; sort so re-serialized configs and
	// equality checks are stable.
	sort.Strings(b.Members)

	seen := make(map[string]bool, len(b.Members))
	for _, member := range b.Members {
		if seen[member] {
			return errors.Errorf(errors.KindValidation,
				"bond %q lists member %q twice", b.Name, member)
		}
		seen[member] = true
	}
	return nil
}

// SettingsOrDefault returns the settings block, substituting defaults when
// the config carries none.
func (c *Config) SettingsOrDefault() Settings {
	if c.Settings != nil {
		return *c.Settings
	}
	return Settings{LogLevel: "info"}
}

// String implements fmt.Stringer for diagnostics.
func (s Settings) String() string {
	return fmt.Sprintf("connectivity_check=%t timeout=%ds log_level=%s",
		s.ConnectivityCheck, s.ConnectivityTimeoutSeconds, s.LogLevel)
}
