package cmd

import (
	"fmt"
	"os"

	"grimm.is/hostnet/internal/config"
	"grimm.is/hostnet/internal/topology"
)

// RunApply loads the desired-state file, applies it transactionally and,
// on success, records the outcome in the running config store. With dryRun
// the planned operations are printed instead of performed.
func RunApply(configFile string, dryRun bool) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	settings := cfg.SettingsOrDefault()
	cs := cfg.ChangeSet()

	if dryRun {
		return runDryRun(cs)
	}

	s, err := buildStack(settings)
	if err != nil {
		return err
	}
	defer s.close()

	tx := s.transaction(cs, settings)
	if err := tx.Apply(cs); err != nil {
		return err
	}

	if err := s.store.Update(cs); err != nil {
		// The kernel state is already in place; a persistence failure
		// must be visible but does not undo the apply.
		return fmt.Errorf("applied, but failed to persist running config: %w", err)
	}

	s.log.Info("configuration applied",
		"networks", len(cs.Networks), "bonds", len(cs.Bonds))
	return nil
}

func runDryRun(cs topology.ChangeSet) error {
	dry := topology.NewDryRunDriver(liveSnapshotOrEmpty())
	links := &topology.DryRunLinks{}
	routes := &topology.DryRunRoutes{}

	tx := topology.NewTransaction(dry, links, routes)
	if err := tx.Apply(cs); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "planned operations:")
	for _, op := range links.Ops {
		fmt.Fprintln(os.Stdout, "  link", op)
	}
	for _, op := range dry.Ops {
		fmt.Fprintln(os.Stdout, " ", op)
	}
	for _, op := range routes.Ops {
		fmt.Fprintln(os.Stdout, " ", op)
	}
	return nil
}
