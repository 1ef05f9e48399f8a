// Package results holds the raw sample type produced by the matrix runner and
// the on-disk layout for a benchmark invocation's artifacts.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunResult is one raw sample: a single timed execution of a scenario's
// measured operation for one variant. Produced exactly once per
// (scenario, variant, repetition) triple.
type RunResult struct {
	Scenario   string        `json:"scenario"`
	Complexity string        `json:"complexity"`
	Variant    string        `json:"variant"`
	RunIndex   int           `json:"run_index"`
	Duration   time.Duration `json:"duration_ns"`
}

// Milliseconds returns the sample duration as fractional milliseconds, the
// unit used throughout summaries and reports.
func (r RunResult) Milliseconds() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}

// CreateArtifactsDir creates a timestamped artifacts directory under
// baseDir/artifacts and repoints the sibling "latest" symlink at it. The
// symlink is what argument-less report and check invocations resolve.
func CreateArtifactsDir(baseDir string) (string, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	dir := filepath.Join(baseDir, "artifacts", stamp)
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving artifacts dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifacts dir: %w", err)
	}
	latest := LatestLink(baseDir)
	os.Remove(latest)
	if err := os.Symlink(dir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return dir, nil
}

// LatestLink is the symlink that always points at the most recent run's
// artifacts directory.
func LatestLink(baseDir string) string {
	return filepath.Join(baseDir, "artifacts", "latest")
}

// TemplateDir is the per-(scenario, variant) sandbox root holding the
// reusable template repository.
func TemplateDir(workRoot, scenario, variant string) string {
	return filepath.Join(workRoot, "templates", scenario, variant)
}

// RunDir is the scratch directory for one repetition.
func RunDir(workRoot, scenario, variant string, runIndex int) string {
	return filepath.Join(workRoot, "runs", scenario, variant, fmt.Sprintf("run_%02d", runIndex))
}
