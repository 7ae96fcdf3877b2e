package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/hostnet/internal/link"
	"grimm.is/hostnet/internal/topology"
)

// evalContext exposes a few well-known constants to config authors, so a
// file can say `mtu = defaults.mtu` instead of repeating magic numbers.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"defaults": cty.ObjectVal(map[string]cty.Value{
				"mtu":       cty.NumberIntVal(link.DefaultMTU),
				"switch":    cty.StringVal(topology.SwitchLegacy),
				"bootproto": cty.StringVal(topology.BootProtoNone),
			}),
		},
	}
}

// LoadFile loads, parses and canonicalizes a desired-state config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadHCL(data, path)
}

// LoadHCL parses and canonicalizes a config from HCL bytes.
func LoadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("config decode error: %s", diags.Error())
	}

	if cfg.SchemaVersion != "" && cfg.SchemaVersion != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported config schema version %q (supported: %s)",
			cfg.SchemaVersion, CurrentSchemaVersion)
	}

	if err := cfg.Canonicalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
