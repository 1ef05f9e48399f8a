package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modebench/modebench/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/gitshim-main", cfg.Binaries.BaselinePath)
	assert.Equal(t, "/usr/local/bin/gitshim-dev", cfg.Binaries.CandidatePath)

	// everything else comes from defaults
	assert.Equal(t, "bench-workdir", cfg.WorkRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Iterations.Basic)
	assert.Equal(t, 3, cfg.Iterations.Complex)
	assert.Equal(t, 25.0, cfg.Margin.Pct)
	assert.Equal(t, "baseline_wrapper", cfg.Margin.Baseline)
	assert.False(t, cfg.Margin.Enforce)
	assert.Equal(t, 15*time.Minute, cfg.CommandTimeout.Std())
	assert.Equal(t, "modebench", cfg.Metrics.Job)
	assert.Nil(t, cfg.Script)
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/modebench-work", cfg.WorkRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Iterations.Basic)
	assert.Equal(t, 4, cfg.Iterations.Complex)
	assert.Equal(t, 20.0, cfg.Margin.Pct)
	assert.True(t, cfg.Margin.Enforce)
	assert.Equal(t, 10*time.Minute, cfg.CommandTimeout.Std())
	assert.True(t, cfg.KeepArtifacts)

	require.NotNil(t, cfg.Binaries.Build)
	assert.Equal(t, "/src/gitshim", cfg.Binaries.Build.RepoRoot)
	assert.Equal(t, "origin/main", cfg.Binaries.Build.BaselineRef)
	assert.Equal(t, []string{"cargo", "build", "--release", "--bin", "gitshim"}, cfg.Binaries.Build.Tool.Command)
	assert.Equal(t, "CARGO_TARGET_DIR", cfg.Binaries.Build.Tool.TargetDirEnv)
	assert.Equal(t, "release/gitshim", cfg.Binaries.Build.Tool.Binary)

	assert.Equal(t, []string{"commit_human", "rebase_linear"}, cfg.Scenarios)
	assert.Equal(t, []string{"baseline_wrapper", "candidate_wrapper", "candidate_hooks"}, cfg.Variants)

	require.NotNil(t, cfg.Script)
	assert.Equal(t, "scripts/nasty_history.sh", cfg.Script.Path)
	assert.Equal(t, []string{"--rounds", "2"}, cfg.Script.Args)
	assert.Equal(t, 2, cfg.Script.Repetitions)
	assert.Equal(t, "complex", cfg.Script.Complexity)

	assert.Equal(t, "http://pushgateway.local:9091", cfg.Metrics.PushgatewayURL)
	assert.Equal(t, "gitshim-bench", cfg.Metrics.Job)
}

func TestLoadInvalidBaseline(t *testing.T) {
	_, err := config.Load("../../testdata/invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_variant")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binaries: [not: a map"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "bench-workdir", cfg.WorkRoot)
	assert.Empty(t, cfg.Binaries.BaselinePath, "binary sources are resolved at run time")
}

func TestLoadMarginPctZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
binaries:
  baseline_path: /b
  candidate_path: /c
margin:
  pct: 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Margin.Pct, "explicit zero margin must survive defaulting")
}

func TestEnvMarginPctZero(t *testing.T) {
	t.Setenv("MODEBENCH_MARGIN_PCT", "0")

	cfg, err := config.Load("../../testdata/minimal.yaml")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Margin.Pct)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MODEBENCH_WORK_ROOT", "/tmp/env-root")
	t.Setenv("MODEBENCH_ITERATIONS_BASIC", "9")
	t.Setenv("MODEBENCH_MARGIN_PCT", "12.5")
	t.Setenv("MODEBENCH_COMMAND_TIMEOUT", "90s")
	t.Setenv("MODEBENCH_ENFORCE_MARGIN", "true")

	cfg, err := config.Load("../../testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env-root", cfg.WorkRoot)
	assert.Equal(t, 9, cfg.Iterations.Basic)
	assert.Equal(t, 12.5, cfg.Margin.Pct)
	assert.Equal(t, 90*time.Second, cfg.CommandTimeout.Std())
	assert.True(t, cfg.Margin.Enforce)
}

func TestEnvPrebuiltBinaries(t *testing.T) {
	t.Setenv("MODEBENCH_BASELINE_BINARY", "/opt/base")
	t.Setenv("MODEBENCH_CANDIDATE_BINARY", "/opt/cand")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/base", cfg.Binaries.BaselinePath)
	assert.Equal(t, "/opt/cand", cfg.Binaries.CandidatePath)
}

func TestVariantFilterMustKeepBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
binaries:
  baseline_path: /b
  candidate_path: /c
variants:
  - candidate_wrapper
  - candidate_hooks
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excludes the margin baseline")
}

func TestUnknownVariantRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
binaries:
  baseline_path: /b
  candidate_path: /c
variants:
  - baseline_wrapper
  - warp_drive
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warp_drive")
}

func TestBadLogLevelRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
log_level: chatty
binaries:
  baseline_path: /b
  candidate_path: /c
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestScriptDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
binaries:
  baseline_path: /b
  candidate_path: /c
script:
  path: run.sh
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Script)
	assert.Equal(t, 1, cfg.Script.Repetitions)
	assert.Equal(t, "complex", cfg.Script.Complexity)
}

func TestBuildDefaultsBaselineRef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := `
binaries:
  build:
    repo_root: /src/gitshim
    tool:
      command: [make, release]
      binary: gitshim
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Binaries.Build)
	assert.Equal(t, "origin/main", cfg.Binaries.Build.BaselineRef)
}
