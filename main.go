package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/hostnet/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "apply":
		applyFlags := flag.NewFlagSet("apply", flag.ExitOnError)
		configFile := applyFlags.String("config", cmd.DefaultConfigPath, "Desired-state configuration file")
		applyFlags.StringVar(configFile, "c", cmd.DefaultConfigPath, "Configuration file (short)")
		dryRun := applyFlags.Bool("dry-run", false, "Print planned operations without applying")
		applyFlags.BoolVar(dryRun, "n", false, "Dry run (short)")
		applyFlags.Parse(os.Args[2:])

		if err := cmd.RunApply(*configFile, *dryRun); err != nil {
			fmt.Fprintf(os.Stderr, "Apply failed: %v\n", err)
			os.Exit(1)
		}

	case "show":
		if err := cmd.RunShow(); err != nil {
			fmt.Fprintf(os.Stderr, "Show failed: %v\n", err)
			os.Exit(1)
		}

	case "verify":
		verifyFlags := flag.NewFlagSet("verify", flag.ExitOnError)
		configFile := verifyFlags.String("config", cmd.DefaultConfigPath, "Desired-state configuration file")
		showDiff := verifyFlags.Bool("diff", false, "Print a unified diff of desired vs running")
		verifyFlags.Parse(os.Args[2:])

		if err := cmd.RunVerify(*configFile, *showDiff); err != nil {
			fmt.Fprintf(os.Stderr, "Verify failed: %v\n", err)
			os.Exit(1)
		}

	case "history":
		historyFlags := flag.NewFlagSet("history", flag.ExitOnError)
		configFile := historyFlags.String("config", cmd.DefaultConfigPath, "Desired-state configuration file")
		limit := historyFlags.Int("limit", 50, "Number of entries to show")
		historyFlags.Parse(os.Args[2:])

		if err := cmd.RunHistory(*configFile, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
			os.Exit(1)
		}

	case "flush-route":
		flushFlags := flag.NewFlagSet("flush-route", flag.ExitOnError)
		flushFlags.Parse(os.Args[2:])
		if flushFlags.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Usage: hostnet flush-route <device>")
			os.Exit(1)
		}

		if err := cmd.RunFlushRoute(flushFlags.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Flush failed: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hostnet - host network topology reconciler

Usage:
  hostnet apply [-config FILE] [-dry-run]   Apply the desired-state config
  hostnet show                              Dump the live topology as YAML
  hostnet verify [-config FILE] [-diff]     Check running config against kernel state
  hostnet history [-limit N]                Show recent running-config changes
  hostnet flush-route <device>              Tear down a device's source routes
  hostnet help                              Show this help`)
}
