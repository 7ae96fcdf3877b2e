package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Interface name validation
var (
	// Valid interface name: alphanumeric, dash, underscore, dot (for VLANs), max 15 chars
	interfaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,15}$`)

	// Valid identifier: alphanumeric, dash, underscore
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// Bond devices must be named with the fixed prefix and a purely numeric suffix.
	bondNameRegex = regexp.MustCompile(`^bond[0-9]+$`)

	// Dangerous characters that should never appear in identifiers
	dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
)

// BondPrefix is the mandatory name prefix for bond devices.
const BondPrefix = "bond"

// ValidateInterfaceName validates a network interface name
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}

	if len(name) > 15 {
		return fmt.Errorf("interface name too long (max 15 characters): %s", name)
	}

	if !interfaceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid interface name: %s (must be alphanumeric with -_.)", name)
	}

	// Check for dangerous characters
	for _, char := range dangerousChars {
		if strings.Contains(name, char) {
			return fmt.Errorf("interface name contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateBondName validates a bond device name against the platform
// convention: the literal prefix "bond" followed only by digits.
func ValidateBondName(name string) error {
	if !bondNameRegex.MatchString(name) {
		return fmt.Errorf("bond name must match %s<number>: %s", BondPrefix, name)
	}
	return nil
}

// ValidateIdentifier validates a general identifier (network names, etc.)
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if len(id) > 255 {
		return fmt.Errorf("identifier too long (max 255 characters)")
	}

	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid identifier: %s (must be alphanumeric with -_)", id)
	}

	// Check for dangerous characters
	for _, char := range dangerousChars {
		if strings.Contains(id, char) {
			return fmt.Errorf("identifier contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateIPv4Address validates a dotted-quad IPv4 address.
func ValidateIPv4Address(s string) error {
	if s == "" {
		return fmt.Errorf("IPv4 address cannot be empty")
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid IPv4 address: %s", s)
	}
	return nil
}

// ValidateIPv4Netmask validates a dotted-quad netmask (must be contiguous).
func ValidateIPv4Netmask(s string) error {
	if s == "" {
		return fmt.Errorf("netmask cannot be empty")
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid netmask: %s", s)
	}
	mask := net.IPMask(ip.To4())
	if ones, bits := mask.Size(); ones == 0 && bits == 0 {
		return fmt.Errorf("non-contiguous netmask: %s", s)
	}
	return nil
}

// ValidateIPOrCIDR validates an IP address or CIDR range
func ValidateIPOrCIDR(s string) error {
	if s == "" {
		return fmt.Errorf("IP/CIDR cannot be empty")
	}

	// Try parsing as CIDR first
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		if err != nil {
			return fmt.Errorf("invalid CIDR: %w", err)
		}
		return nil
	}

	// Try parsing as IP
	ip := net.ParseIP(s)
	if ip == nil {
		return fmt.Errorf("invalid IP address: %s", s)
	}

	return nil
}

// ValidateVLANTag validates an 802.1Q VLAN tag.
func ValidateVLANTag(tag int) error {
	if tag < 0 || tag > 4094 {
		return fmt.Errorf("invalid VLAN tag: %d (must be 0-4094)", tag)
	}
	return nil
}

// SanitizeString removes dangerous characters from a string (for display purposes)
func SanitizeString(s string) string {
	for _, char := range dangerousChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
