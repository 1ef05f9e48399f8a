// Package config loads the benchmark configuration: YAML file first,
// MODEBENCH_* environment variables layered on top, then defaults and
// struct validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/modebench/modebench/internal/buildtool"
	"github.com/modebench/modebench/internal/variant"
)

// EnvPrefix namespaces the environment overrides, e.g. MODEBENCH_WORK_ROOT.
const EnvPrefix = "modebench"

// Duration is a time.Duration that unmarshals from strings like "15m"
// in both YAML and environment overrides.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.Decode(raw)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(raw string) error {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full benchmark configuration.
type Config struct {
	WorkRoot       string     `yaml:"work_root"`
	LogLevel       string     `yaml:"log_level" validate:"omitempty,oneof=trace debug info warning error"`
	Iterations     Iterations `yaml:"iterations"`
	Margin         Margin     `yaml:"margin"`
	Binaries       Binaries   `yaml:"binaries"`
	GitBinary      string     `yaml:"git_binary"`
	Scenarios      []string   `yaml:"scenarios"`
	Variants       []string   `yaml:"variants"`
	CommandTimeout Duration   `yaml:"command_timeout"`
	KeepArtifacts  bool       `yaml:"keep_artifacts"`
	Script         *Script    `yaml:"script"`
	Metrics        Metrics    `yaml:"metrics"`
}

// Iterations sets the repetition count per complexity tier.
type Iterations struct {
	Basic   int `yaml:"basic" validate:"gte=1"`
	Complex int `yaml:"complex" validate:"gte=1"`
}

// Margin configures the regression gate. An explicit pct of 0 is valid and
// means no slowdown is tolerated, so presence is tracked separately from the
// value to keep it from being mistaken for "use the default".
type Margin struct {
	Pct      float64 `yaml:"pct" validate:"gte=0"`
	Baseline string  `yaml:"baseline"`
	Enforce  bool    `yaml:"enforce"`

	pctSet bool
}

func (m *Margin) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Pct      *float64 `yaml:"pct"`
		Baseline string   `yaml:"baseline"`
		Enforce  bool     `yaml:"enforce"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Pct != nil {
		m.Pct = *raw.Pct
		m.pctSet = true
	}
	m.Baseline = raw.Baseline
	m.Enforce = raw.Enforce
	return nil
}

// SetPct records an explicit margin, including zero.
func (m *Margin) SetPct(pct float64) {
	m.Pct = pct
	m.pctSet = true
}

// Binaries describes where the baseline and candidate shim binaries come
// from: prebuilt paths, or a build recipe run against a git checkout.
type Binaries struct {
	BaselinePath  string `yaml:"baseline_path"`
	CandidatePath string `yaml:"candidate_path"`
	Build         *Build `yaml:"build"`
}

// Build compiles the candidate from repo_root and the baseline from a
// detached worktree at baseline_ref.
type Build struct {
	RepoRoot    string         `yaml:"repo_root" validate:"required"`
	BaselineRef string         `yaml:"baseline_ref"`
	Tool        buildtool.Spec `yaml:"tool"`
}

// Script configures the external-script benchmark family. Nil disables it.
type Script struct {
	Path        string   `yaml:"path" validate:"required"`
	Args        []string `yaml:"args"`
	Repetitions int      `yaml:"repetitions" validate:"gte=1"`
	Complexity  string   `yaml:"complexity" validate:"omitempty,oneof=basic complex"`
	Variants    []string `yaml:"variants"`
}

// Metrics configures the optional Pushgateway publisher. An empty URL
// disables publishing.
type Metrics struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job"`
}

// envOverlay is the flat set of environment overrides. Pointer fields
// distinguish "unset" from an explicit false.
type envOverlay struct {
	WorkRoot          string   `envconfig:"WORK_ROOT"`
	LogLevel          string   `envconfig:"LOG_LEVEL"`
	IterationsBasic   int      `envconfig:"ITERATIONS_BASIC"`
	IterationsComplex int      `envconfig:"ITERATIONS_COMPLEX"`
	MarginPct         *float64 `envconfig:"MARGIN_PCT"`
	MarginBaseline    string   `envconfig:"MARGIN_BASELINE"`
	EnforceMargin     *bool    `envconfig:"ENFORCE_MARGIN"`
	BaselineBinary    string   `envconfig:"BASELINE_BINARY"`
	CandidateBinary   string   `envconfig:"CANDIDATE_BINARY"`
	RepoRoot          string   `envconfig:"REPO_ROOT"`
	BaselineRef       string   `envconfig:"BASELINE_REF"`
	GitBinary         string   `envconfig:"GIT_BINARY"`
	Scenarios         []string `envconfig:"SCENARIOS"`
	Variants          []string `envconfig:"VARIANTS"`
	CommandTimeout    Duration `envconfig:"COMMAND_TIMEOUT"`
	KeepArtifacts     *bool    `envconfig:"KEEP_ARTIFACTS"`
	PushgatewayURL    string   `envconfig:"PUSHGATEWAY_URL"`
	MetricsJob        string   `envconfig:"METRICS_JOB"`
}

// Default returns the configuration used when no file and no overrides are
// given. The iteration counts and margin mirror the usual local invocation.
func Default() *Config {
	return &Config{
		WorkRoot: "bench-workdir",
		LogLevel: "info",
		Iterations: Iterations{
			Basic:   5,
			Complex: 3,
		},
		Margin: Margin{
			Pct:      25,
			Baseline: variant.DefaultBaselineKey,
		},
		CommandTimeout: Duration(15 * time.Minute),
		Metrics: Metrics{
			Job: "modebench",
		},
	}
}

// Load reads path, overlays MODEBENCH_* environment variables, fills
// defaults, and validates. An empty path skips the file and uses only the
// environment and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	var env envOverlay
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("processing environment overrides: %w", err)
	}
	applyOverlay(cfg, &env)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		if path == "" {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, env *envOverlay) {
	if env.WorkRoot != "" {
		cfg.WorkRoot = env.WorkRoot
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.IterationsBasic > 0 {
		cfg.Iterations.Basic = env.IterationsBasic
	}
	if env.IterationsComplex > 0 {
		cfg.Iterations.Complex = env.IterationsComplex
	}
	if env.MarginPct != nil {
		cfg.Margin.SetPct(*env.MarginPct)
	}
	if env.MarginBaseline != "" {
		cfg.Margin.Baseline = env.MarginBaseline
	}
	if env.EnforceMargin != nil {
		cfg.Margin.Enforce = *env.EnforceMargin
	}
	if env.BaselineBinary != "" {
		cfg.Binaries.BaselinePath = env.BaselineBinary
	}
	if env.CandidateBinary != "" {
		cfg.Binaries.CandidatePath = env.CandidateBinary
	}
	if env.RepoRoot != "" && cfg.Binaries.Build != nil {
		cfg.Binaries.Build.RepoRoot = env.RepoRoot
	}
	if env.BaselineRef != "" && cfg.Binaries.Build != nil {
		cfg.Binaries.Build.BaselineRef = env.BaselineRef
	}
	if env.GitBinary != "" {
		cfg.GitBinary = env.GitBinary
	}
	if len(env.Scenarios) > 0 {
		cfg.Scenarios = env.Scenarios
	}
	if len(env.Variants) > 0 {
		cfg.Variants = env.Variants
	}
	if env.CommandTimeout > 0 {
		cfg.CommandTimeout = env.CommandTimeout
	}
	if env.KeepArtifacts != nil {
		cfg.KeepArtifacts = *env.KeepArtifacts
	}
	if env.PushgatewayURL != "" {
		cfg.Metrics.PushgatewayURL = env.PushgatewayURL
	}
	if env.MetricsJob != "" {
		cfg.Metrics.Job = env.MetricsJob
	}
}

func applyDefaults(cfg *Config) {
	base := Default()
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = base.WorkRoot
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = base.LogLevel
	}
	if cfg.Iterations.Basic == 0 {
		cfg.Iterations.Basic = base.Iterations.Basic
	}
	if cfg.Iterations.Complex == 0 {
		cfg.Iterations.Complex = base.Iterations.Complex
	}
	if !cfg.Margin.pctSet && cfg.Margin.Pct == 0 {
		cfg.Margin.Pct = base.Margin.Pct
	}
	if cfg.Margin.Baseline == "" {
		cfg.Margin.Baseline = base.Margin.Baseline
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = base.CommandTimeout
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = base.Metrics.Job
	}
	if b := cfg.Binaries.Build; b != nil && b.BaselineRef == "" {
		b.BaselineRef = "origin/main"
	}
	if s := cfg.Script; s != nil {
		if s.Repetitions == 0 {
			s.Repetitions = 1
		}
		if s.Complexity == "" {
			s.Complexity = "complex"
		}
	}
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return err
	}

	if b := cfg.Binaries.Build; b != nil && len(b.Tool.Command) == 0 {
		return fmt.Errorf("binaries.build.tool: command is required")
	}

	knownKeys := variant.Keys(variant.DefaultSet("", ""))
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	for _, k := range cfg.Variants {
		if !known[k] {
			return fmt.Errorf("unknown variant %q (known: %s)", k, strings.Join(knownKeys, ", "))
		}
	}
	if !known[cfg.Margin.Baseline] {
		return fmt.Errorf("margin baseline %q is not a known variant", cfg.Margin.Baseline)
	}
	if len(cfg.Variants) > 0 {
		found := false
		for _, k := range cfg.Variants {
			if k == cfg.Margin.Baseline {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("variant filter %v excludes the margin baseline %q", cfg.Variants, cfg.Margin.Baseline)
		}
	}
	if s := cfg.Script; s != nil {
		for _, k := range s.Variants {
			if !known[k] {
				return fmt.Errorf("script: unknown variant %q", k)
			}
		}
	}
	return nil
}
