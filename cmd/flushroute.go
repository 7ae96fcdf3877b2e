package cmd

import (
	"grimm.is/hostnet/internal/logging"
	"grimm.is/hostnet/internal/nldriver"
	"grimm.is/hostnet/internal/sourceroute"
)

// RunFlushRoute tears down the source-route domain of a device by kernel
// discovery. Useful after a crash left rules behind with no running agent
// holding the record.
func RunFlushRoute(device string) error {
	manager := sourceroute.NewManager(nldriver.NewRouteDriver())
	if err := manager.Remove(device); err != nil {
		return err
	}
	logging.Info("source routes flushed", "device", device)
	return nil
}
