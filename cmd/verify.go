package cmd

import (
	"fmt"
	"os"

	"grimm.is/hostnet/internal/config"
	"grimm.is/hostnet/internal/kernelconfig"
	"grimm.is/hostnet/internal/nldriver"
)

// RunVerify diffs the persisted running configuration against the live
// kernel state and reports any drift. Returns an error when drift exists so
// scripted callers get a non-zero exit.
func RunVerify(configFile string, showDiff bool) error {
	settings := config.Settings{}
	if cfg, err := config.LoadFile(configFile); err == nil {
		settings = cfg.SettingsOrDefault()
	}

	s, err := buildStack(settings)
	if err != nil {
		return err
	}
	defer s.close()

	networks, bonds, err := s.store.Load()
	if err != nil {
		return err
	}
	snap, err := nldriver.NewTopologyDriver().Snapshot()
	if err != nil {
		return err
	}

	desired := kernelconfig.NormalizeDesired(networks, bonds)
	live := kernelconfig.NormalizeRunning(snap)

	mismatches := kernelconfig.Compare(desired, live)
	if len(mismatches) == 0 {
		fmt.Println("converged: running configuration matches kernel state")
		return nil
	}

	for _, m := range mismatches {
		fmt.Fprintln(os.Stderr, "drift:", m.String())
	}
	if showDiff {
		diff, err := kernelconfig.Diff(desired, live)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, diff)
	}
	return fmt.Errorf("%d drift(s) detected", len(mismatches))
}
