package testutil

import (
	"os"
	"testing"
)

// RequireVM skips the test if the HOSTNET_VM_TEST environment variable is not set.
// This ensures that tests requiring real kernel capabilities (netlink, interfaces)
// are only run in the proper environment.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("HOSTNET_VM_TEST") == "" {
		t.Skip("Skipping test: requires HOSTNET_VM_TEST environment")
	}
}

// RequireRoot skips the test unless running as root. Mutating netlink
// operations need CAP_NET_ADMIN.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}
