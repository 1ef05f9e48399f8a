// Package scenario defines the benchmarked git workflows. A scenario is a
// stateless descriptor: a one-time Setup that builds a reusable template
// repository and a Measure that performs exactly the operation being timed
// against a fresh copy of that template.
package scenario

import (
	"context"

	"github.com/modebench/modebench/internal/sandbox"
)

// Complexity classifies scenarios purely to pick repetition counts.
type Complexity string

const (
	Basic   Complexity = "basic"
	Complex Complexity = "complex"
)

// Runner is the slice of the execution sandbox scenarios are allowed to use.
type Runner interface {
	RunGit(ctx context.Context, cwd string, args ...string) (sandbox.CmdResult, error)
	RunShim(ctx context.Context, cwd string, args ...string) (sandbox.CmdResult, error)
	InitRepo(ctx context.Context, repoDir string) error
}

// Scenario is one named benchmarked workflow. All mutable state lives in the
// directories handed to Setup and Measure.
type Scenario struct {
	Key         string
	Description string
	Complexity  Complexity

	// Setup constructs the template repository. It runs exactly once per
	// (scenario, variant); its output is read-only template state afterwards.
	Setup func(ctx context.Context, r Runner, templateDir string) error

	// Measure performs the timed operation against a fresh copy of the
	// template. Anything that must happen before timing starts belongs in
	// Setup or the runner's copy step, not here.
	Measure func(ctx context.Context, r Runner, runDir string, runIndex int) error
}

// Filter returns the scenarios matching key, or all of them when key is empty.
func Filter(scenarios []Scenario, key string) []Scenario {
	if key == "" {
		return scenarios
	}
	var filtered []Scenario
	for _, s := range scenarios {
		if s.Key == key {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// FilterKeys returns the scenarios whose keys appear in keys, preserving the
// original order. Empty keys means all scenarios.
func FilterKeys(scenarios []Scenario, keys []string) []Scenario {
	if len(keys) == 0 {
		return scenarios
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var filtered []Scenario
	for _, s := range scenarios {
		if want[s.Key] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// Keys returns the scenario keys in order.
func Keys(scenarios []Scenario) []string {
	keys := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		keys = append(keys, s.Key)
	}
	return keys
}
