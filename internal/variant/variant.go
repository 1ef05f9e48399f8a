// Package variant describes the execution configurations compared by a
// benchmark run: each variant is one shim binary plus a dispatch mode.
package variant

import "fmt"

// Mode selects how a variant's binary is wired into git dispatch.
type Mode string

const (
	// ModeWrapper places the binary in front of git on PATH.
	ModeWrapper Mode = "wrapper"
	// ModeHooks installs the binary as the managed hook set.
	ModeHooks Mode = "hooks"
	// ModeBoth combines wrapper and hooks dispatch.
	ModeBoth Mode = "both"
)

// ParseMode validates a mode tag from config or flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeWrapper, ModeHooks, ModeBoth:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown variant mode %q (want wrapper, hooks or both)", s)
}

// UsesWrapper reports whether the sandbox should install a PATH wrapper.
func (m Mode) UsesWrapper() bool { return m == ModeWrapper || m == ModeBoth }

// UsesHooks reports whether the sandbox should install managed hooks.
func (m Mode) UsesHooks() bool { return m == ModeHooks || m == ModeBoth }

// Variant is one execution configuration under comparison. Immutable once
// constructed; one instance per compared configuration.
type Variant struct {
	Key    string
	Label  string
	Binary string
	Mode   Mode
}

// ManagedHooks is the fixed set of hook names a hooks or both mode variant
// installs into its private hooks directory. Every entry dispatches to the
// variant binary, which self-detects the hook it is acting as.
var ManagedHooks = []string{
	"pre-commit",
	"prepare-commit-msg",
	"post-commit",
	"pre-rebase",
	"post-checkout",
	"post-merge",
	"pre-push",
	"post-rewrite",
	"reference-transaction",
}

// DefaultBaselineKey names the variant the regression gate compares against
// unless configured otherwise.
const DefaultBaselineKey = "baseline_wrapper"

// DefaultSet builds the standard four-way comparison: the baseline binary in
// wrapper mode against the candidate binary in all three dispatch modes.
func DefaultSet(baselineBin, candidateBin string) []Variant {
	return []Variant{
		{Key: DefaultBaselineKey, Label: "baseline(wrapper)", Binary: baselineBin, Mode: ModeWrapper},
		{Key: "candidate_wrapper", Label: "candidate(wrapper)", Binary: candidateBin, Mode: ModeWrapper},
		{Key: "candidate_hooks", Label: "candidate(hooks)", Binary: candidateBin, Mode: ModeHooks},
		{Key: "candidate_both", Label: "candidate(wrapper+hooks)", Binary: candidateBin, Mode: ModeBoth},
	}
}

// Filter returns the variants matching key, or all of them when key is empty.
func Filter(variants []Variant, key string) []Variant {
	if key == "" {
		return variants
	}
	var filtered []Variant
	for _, v := range variants {
		if v.Key == key {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// FilterKeys returns the variants whose keys appear in keys, preserving the
// original order. Empty keys means all variants.
func FilterKeys(variants []Variant, keys []string) []Variant {
	if len(keys) == 0 {
		return variants
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var filtered []Variant
	for _, v := range variants {
		if want[v.Key] {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// Keys returns the variant keys in order.
func Keys(variants []Variant) []string {
	keys := make([]string, 0, len(variants))
	for _, v := range variants {
		keys = append(keys, v.Key)
	}
	return keys
}
