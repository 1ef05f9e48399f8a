// Package runner drives the scenario × variant × repetition cross-product.
// Two sample sources exist: the in-process timed matrix and the
// external-script family; both produce raw RunResults and abort the whole run
// on any failure so a partial, silently-incomplete report is never emitted.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	retry "github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"github.com/modebench/modebench/internal/results"
	"github.com/modebench/modebench/internal/sandbox"
	"github.com/modebench/modebench/internal/scenario"
	"github.com/modebench/modebench/internal/variant"
)

// Source yields raw samples. The matrix runner and the external-script family
// both implement it.
type Source interface {
	Collect(ctx context.Context) ([]results.RunResult, error)
}

// MatrixOpts configures an in-process timed matrix run.
type MatrixOpts struct {
	Variants          []variant.Variant
	Scenarios         []scenario.Scenario
	IterationsBasic   int
	IterationsComplex int
	WorkRoot          string
	RealGit           string
	CommandTimeout    time.Duration
	KeepArtifacts     bool
}

// Matrix runs every scenario against every variant for the configured number
// of repetitions, strictly sequentially. Timing measurements of an external
// process must not share CPU or IO contention with sibling measurements, so
// there is deliberately no parallelism here.
type Matrix struct {
	opts MatrixOpts
}

// NewMatrix validates and wraps the options.
func NewMatrix(opts MatrixOpts) (*Matrix, error) {
	if opts.IterationsBasic < 1 || opts.IterationsComplex < 1 {
		return nil, fmt.Errorf("iterations must be at least 1 (basic=%d complex=%d)",
			opts.IterationsBasic, opts.IterationsComplex)
	}
	if len(opts.Variants) == 0 {
		return nil, fmt.Errorf("no variants to run")
	}
	if len(opts.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios to run")
	}
	return &Matrix{opts: opts}, nil
}

func (m *Matrix) iterations(c scenario.Complexity) int {
	if c == scenario.Complex {
		return m.opts.IterationsComplex
	}
	return m.opts.IterationsBasic
}

// Collect executes the full matrix. Any command failure is fatal to the whole
// run: it is not retried, not skipped, and the error carries the full command
// context. Cancellation is honored between repetitions only.
func (m *Matrix) Collect(ctx context.Context) ([]results.RunResult, error) {
	var raw []results.RunResult
	for _, scen := range m.opts.Scenarios {
		iterations := m.iterations(scen.Complexity)
		for _, v := range m.opts.Variants {
			collected, err := m.runCell(ctx, scen, v, iterations)
			if err != nil {
				return nil, fmt.Errorf("scenario %s variant %s: %w", scen.Key, v.Key, err)
			}
			raw = append(raw, collected...)
		}
	}
	return raw, nil
}

// runCell is the per-(scenario, variant) state machine: build sandbox, set up
// the template once, then copy-measure-record N times.
func (m *Matrix) runCell(ctx context.Context, scen scenario.Scenario, v variant.Variant, iterations int) ([]results.RunResult, error) {
	root := results.TemplateDir(m.opts.WorkRoot, scen.Key, v.Key)
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("clearing template root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating template root: %w", err)
	}

	var opts []sandbox.Option
	if m.opts.CommandTimeout > 0 {
		opts = append(opts, sandbox.WithCommandTimeout(m.opts.CommandTimeout))
	}
	sb, err := sandbox.New(v, root, m.opts.RealGit, opts...)
	if err != nil {
		return nil, err
	}

	template := filepath.Join(root, "repo-template")
	log.WithFields(log.Fields{"scenario": scen.Key, "variant": v.Key}).Info("setting up template")
	if err := scen.Setup(ctx, sb, template); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	collected := make([]results.RunResult, 0, iterations)
	for runIndex := 1; runIndex <= iterations; runIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled before repetition %d: %w", runIndex, err)
		}

		runDir := results.RunDir(m.opts.WorkRoot, scen.Key, v.Key, runIndex)
		if err := os.RemoveAll(runDir); err != nil {
			return nil, fmt.Errorf("clearing run dir: %w", err)
		}
		runRepo := filepath.Join(runDir, "repo")
		if err := copyTree(template, runRepo); err != nil {
			return nil, fmt.Errorf("copying template: %w", err)
		}
		if v.Mode.UsesHooks() {
			if err := sb.VerifyHooks(ctx, runRepo); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		if err := scen.Measure(ctx, sb, runRepo, runIndex); err != nil {
			return nil, fmt.Errorf("measure repetition %d: %w", runIndex, err)
		}
		elapsed := time.Since(start)

		collected = append(collected, results.RunResult{
			Scenario:   scen.Key,
			Complexity: string(scen.Complexity),
			Variant:    v.Key,
			RunIndex:   runIndex,
			Duration:   elapsed,
		})
		log.WithFields(log.Fields{
			"scenario": scen.Key,
			"variant":  v.Key,
			"run":      fmt.Sprintf("%d/%d", runIndex, iterations),
			"ms":       fmt.Sprintf("%.3f", float64(elapsed)/float64(time.Millisecond)),
		}).Info("repetition measured")

		if !m.opts.KeepArtifacts {
			if err := removeAllRetry(ctx, runDir); err != nil {
				return nil, fmt.Errorf("removing run dir: %w", err)
			}
		}
	}
	return collected, nil
}

// removeAllRetry deletes a run directory, retrying briefly: the shim may
// still be releasing files it touched during the measured operation.
func removeAllRetry(ctx context.Context, dir string) error {
	backoff := retry.WithMaxRetries(5, retry.NewConstant(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := os.RemoveAll(dir); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
