package topology

import (
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"grimm.is/hostnet/internal/errors"
	"grimm.is/hostnet/internal/logging"
)

// DefaultConnCheckTimeout bounds the post-apply gateway probe.
const DefaultConnCheckTimeout = 10 * time.Second

// ConnectivityCheck returns a verify hook that probes the default-route
// gateway after apply. Losing the default gateway is the one failure mode a
// structurally correct apply cannot detect on its own, so a silent gateway
// fails the transaction and triggers rollback.
//
// Networks without the default-route flag are not probed; their gateways
// only serve policy-routed traffic.
func ConnectivityCheck(timeout time.Duration) func(Snapshot) error {
	if timeout <= 0 {
		timeout = DefaultConnCheckTimeout
	}
	log := logging.WithComponent("conncheck")
	return func(snap Snapshot) error {
		gateway := ""
		for _, network := range snap.Networks {
			if network.Addressing.DefaultRoute && network.Addressing.Gateway != "" {
				gateway = network.Addressing.Gateway
				break
			}
		}
		if gateway == "" {
			log.Debug("no default-route gateway to probe")
			return nil
		}

		pinger, err := probing.NewPinger(gateway)
		if err != nil {
			return errors.Wrapf(err, errors.KindVerification, "probe %s", gateway)
		}
		pinger.Count = 3
		pinger.Interval = 500 * time.Millisecond
		pinger.Timeout = timeout
		pinger.SetPrivileged(true)

		if err := pinger.Run(); err != nil {
			return errors.Wrapf(err, errors.KindVerification, "probe %s", gateway)
		}
		stats := pinger.Statistics()
		if stats.PacketsRecv == 0 {
			return errors.Errorf(errors.KindVerification,
				"gateway %s unreachable after apply (%d probes lost)", gateway, stats.PacketsSent)
		}
		log.Debug("gateway reachable", "gateway", gateway,
			"received", stats.PacketsRecv, "rtt", stats.AvgRtt)
		return nil
	}
}
