package kernelconfig

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v2"

	"grimm.is/hostnet/internal/metrics"
)

// Mismatch localizes one drift: which entity, which field, and the two
// values that disagree.
type Mismatch struct {
	Entity   string
	Field    string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s: expected %s, got %s", m.Entity, m.Field, m.Expected, m.Actual)
}

// Compare diffs two canonical trees field by field. An empty result means
// the running state has converged on the desired one.
func Compare(desired, running Tree) []Mismatch {
	var mismatches []Mismatch

	for _, name := range sortedKeys(desired.Networks) {
		want := desired.Networks[name]
		entity := "network " + name
		got, ok := running.Networks[name]
		if !ok {
			mismatches = append(mismatches, Mismatch{entity, "presence", "present", "missing"})
			continue
		}
		mismatches = append(mismatches, compareNetworks(entity, want, got)...)
	}
	for _, name := range sortedKeys(running.Networks) {
		if _, ok := desired.Networks[name]; !ok {
			mismatches = append(mismatches,
				Mismatch{"network " + name, "presence", "absent", "present"})
		}
	}

	for _, name := range sortedKeys(desired.Bonds) {
		want := desired.Bonds[name]
		entity := "bond " + name
		got, ok := running.Bonds[name]
		if !ok {
			mismatches = append(mismatches, Mismatch{entity, "presence", "present", "missing"})
			continue
		}
		mismatches = append(mismatches, compareBonds(entity, want, got)...)
	}
	for _, name := range sortedKeys(running.Bonds) {
		if _, ok := desired.Bonds[name]; !ok {
			mismatches = append(mismatches,
				Mismatch{"bond " + name, "presence", "absent", "present"})
		}
	}

	if len(mismatches) == 0 {
		metrics.DriftChecksTotal.WithLabelValues("converged").Inc()
	} else {
		metrics.DriftChecksTotal.WithLabelValues("drifted").Inc()
	}
	return mismatches
}

func compareNetworks(entity string, want, got Network) []Mismatch {
	var out []Mismatch
	add := func(field string, expected, actual any) {
		out = append(out, Mismatch{
			Entity:   entity,
			Field:    field,
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
		})
	}

	if want.NIC != got.NIC {
		add("nic", want.NIC, got.NIC)
	}
	if want.Bond != got.Bond {
		add("bond", want.Bond, got.Bond)
	}
	if !vlanEqual(want.VLAN, got.VLAN) {
		add("vlan", vlanString(want.VLAN), vlanString(got.VLAN))
	}
	if want.Bridged != got.Bridged {
		add("bridged", want.Bridged, got.Bridged)
	}
	if want.STP != got.STP {
		add("stp", want.STP, got.STP)
	}
	if want.MTU != got.MTU {
		add("mtu", want.MTU, got.MTU)
	}
	if want.Switch != got.Switch {
		add("switch", want.Switch, got.Switch)
	}
	if want.BootProto != got.BootProto {
		add("bootproto", want.BootProto, got.BootProto)
	}
	if want.Address != got.Address {
		add("address", want.Address, got.Address)
	}
	if want.Netmask != got.Netmask {
		add("netmask", want.Netmask, got.Netmask)
	}
	if want.Gateway != got.Gateway {
		add("gateway", want.Gateway, got.Gateway)
	}
	if want.DefaultRoute != got.DefaultRoute {
		add("default_route", want.DefaultRoute, got.DefaultRoute)
	}
	if !reflect.DeepEqual(want.QoS, got.QoS) {
		add("qos", want.QoS, got.QoS)
	}
	return out
}

func compareBonds(entity string, want, got Bond) []Mismatch {
	var out []Mismatch
	if !reflect.DeepEqual(want.Members, got.Members) {
		out = append(out, Mismatch{entity, "members",
			fmt.Sprintf("%v", want.Members), fmt.Sprintf("%v", got.Members)})
	}
	if !reflect.DeepEqual(want.Options, got.Options) {
		out = append(out, Mismatch{entity, "options",
			fmt.Sprintf("%v", want.Options), fmt.Sprintf("%v", got.Options)})
	}
	if want.Switch != got.Switch {
		out = append(out, Mismatch{entity, "switch", want.Switch, got.Switch})
	}
	return out
}

// Diff renders the two trees as a unified diff for human consumption.
func Diff(desired, running Tree) (string, error) {
	wantYAML, err := yaml.Marshal(desired)
	if err != nil {
		return "", fmt.Errorf("marshal desired tree: %w", err)
	}
	gotYAML, err := yaml.Marshal(running)
	if err != nil {
		return "", fmt.Errorf("marshal running tree: %w", err)
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(wantYAML)),
		B:        difflib.SplitLines(string(gotYAML)),
		FromFile: "desired",
		ToFile:   "running",
		Context:  3,
	})
}

func vlanEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func vlanString(v *int) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
