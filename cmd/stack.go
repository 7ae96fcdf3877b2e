// Package cmd implements the CLI subcommands: one-shot operations wired
// over the real netlink drivers.
package cmd

import (
	"fmt"
	"time"

	"grimm.is/hostnet/internal/config"
	"grimm.is/hostnet/internal/kernelconfig"
	"grimm.is/hostnet/internal/link"
	"grimm.is/hostnet/internal/logging"
	"grimm.is/hostnet/internal/nldriver"
	"grimm.is/hostnet/internal/running"
	"grimm.is/hostnet/internal/sourceroute"
	"grimm.is/hostnet/internal/topology"
)

// DefaultConfigPath is the desired-state file consulted when no -config
// flag is given.
const DefaultConfigPath = "/etc/hostnet/hostnet.hcl"

// stack bundles the wired collaborators every subcommand needs.
type stack struct {
	links  *link.System
	routes *sourceroute.Manager
	drv    topology.Driver
	store  *running.Store
	log    *logging.Logger
}

func buildStack(settings config.Settings) (*stack, error) {
	if settings.LogLevel != "" {
		logging.Default().SetLevel(parseLevel(settings.LogLevel))
	}

	storePath := settings.RunningConfigPath
	store, err := running.Open(running.Options{Path: storePath})
	if err != nil {
		return nil, err
	}

	linkDrv := nldriver.NewLinkDriver(nil)
	return &stack{
		links:  link.NewSystem(linkDrv),
		routes: sourceroute.NewManager(nldriver.NewRouteDriver()),
		drv:    nldriver.NewTopologyDriver(),
		store:  store,
		log:    logging.WithComponent("cmd"),
	}, nil
}

func (s *stack) close() {
	if s.store != nil {
		s.store.Close()
	}
}

// transaction assembles a Transaction honoring the config's settings:
// convergence verification always, gateway probing when asked for.
func (s *stack) transaction(cs topology.ChangeSet, settings config.Settings) *topology.Transaction {
	desired := kernelconfig.NormalizeDesired(cs.Networks, cs.Bonds)
	connCheck := func(topology.Snapshot) error { return nil }
	if settings.ConnectivityCheck {
		timeout := time.Duration(settings.ConnectivityTimeoutSeconds) * time.Second
		connCheck = topology.ConnectivityCheck(timeout)
	}

	verify := func(snap topology.Snapshot) error {
		// Only the entities this change-set touches are checked; the
		// full-store drift check is the verify subcommand's job.
		got := kernelconfig.NormalizeRunning(snap)
		pruneUntouched(&got, desired)
		if mismatches := kernelconfig.Compare(desired, got); len(mismatches) > 0 {
			for _, m := range mismatches {
				s.log.Warn("post-apply mismatch", "mismatch", m.String())
			}
			return &driftError{count: len(mismatches)}
		}
		return connCheck(snap)
	}

	return topology.NewTransaction(s.drv, s.links, s.routes, topology.WithVerify(verify))
}

// pruneUntouched drops entities the change-set does not manage so they do
// not show up as unexpected.
func pruneUntouched(got *kernelconfig.Tree, desired kernelconfig.Tree) {
	for name := range got.Networks {
		if _, ok := desired.Networks[name]; !ok {
			delete(got.Networks, name)
		}
	}
	for name := range got.Bonds {
		if _, ok := desired.Bonds[name]; !ok {
			delete(got.Bonds, name)
		}
	}
}

type driftError struct {
	count int
}

func (e *driftError) Error() string {
	return fmt.Sprintf("%d field(s) diverged from the requested configuration", e.count)
}

// liveSnapshotOrEmpty takes the live kernel view for planning purposes,
// degrading to an empty view where the drivers are unavailable so dry runs
// still work on development machines.
func liveSnapshotOrEmpty() topology.Snapshot {
	snap, err := nldriver.NewTopologyDriver().Snapshot()
	if err != nil {
		return topology.Snapshot{
			Networks: map[string]topology.NetworkState{},
			Bonds:    map[string]topology.BondState{},
		}
	}
	return snap
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
