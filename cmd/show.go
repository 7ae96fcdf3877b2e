package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"grimm.is/hostnet/internal/config"
	"grimm.is/hostnet/internal/nldriver"
)

// RunShow dumps the live kernel topology view as YAML.
func RunShow() error {
	snap, err := nldriver.NewTopologyDriver().Snapshot()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

// RunHistory prints the most recent running-config changes, newest first.
func RunHistory(configFile string, limit int) error {
	settings := config.Settings{}
	if cfg, err := config.LoadFile(configFile); err == nil {
		settings = cfg.SettingsOrDefault()
	}

	s, err := buildStack(settings)
	if err != nil {
		return err
	}
	defer s.close()

	entries, err := s.store.History(limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-7s %-6s %s\n", e.Timestamp, e.Entity, e.Action, e.Name)
	}
	return nil
}
