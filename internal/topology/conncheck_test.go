package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectivityCheckSkipsWithoutDefaultGateway(t *testing.T) {
	check := ConnectivityCheck(0)

	snap := emptySnapshot()
	require.NoError(t, check(snap))

	// A policy-routed gateway is not the host default route and is not probed.
	snap.Networks["storage"] = NetworkState{
		Name: "storage",
		Addressing: Addressing{
			BootProto: BootProtoNone,
			Address:   "10.9.0.2", Netmask: "255.255.255.0", Gateway: "10.9.0.1",
		},
	}
	require.NoError(t, check(snap))
}
