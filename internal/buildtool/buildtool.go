// Package buildtool wraps the external build collaborator that turns a
// source checkout into a shim binary, plus the scoped git worktree used to
// obtain the baseline checkout.
package buildtool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultBuildTimeout bounds a single build invocation.
const DefaultBuildTimeout = time.Hour

// Spec describes how to build the shim binary from a checkout. TargetDirEnv
// names the environment variable the build tool reads its output directory
// from; Binary is the produced binary's path relative to that directory.
type Spec struct {
	Command      []string `yaml:"command"`
	TargetDirEnv string   `yaml:"target_dir_env"`
	Binary       string   `yaml:"binary"`
}

// Build runs the build command in repoDir with targetDir as the private
// output directory and returns the absolute path of the produced binary. A
// failed build or a missing binary is fatal and carries the full captured
// output.
func Build(ctx context.Context, spec Spec, repoDir, targetDir string, timeout time.Duration) (string, error) {
	if len(spec.Command) == 0 {
		return "", fmt.Errorf("no build command configured")
	}
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("creating target dir: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = repoDir
	cmd.Env = os.Environ()
	if spec.TargetDirEnv != "" {
		cmd.Env = append(cmd.Env, spec.TargetDirEnv+"="+targetDir)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{"cmd": strings.Join(spec.Command, " "), "repo": repoDir}).Info("building shim binary")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed in %s: %w\nstdout:\n%s\nstderr:\n%s",
			repoDir, err, stdout.String(), stderr.String())
	}

	binary := filepath.Join(targetDir, spec.Binary)
	if _, err := os.Stat(binary); err != nil {
		return "", fmt.Errorf("expected binary not found at %s: %w", binary, err)
	}
	return binary, nil
}

// GitOutput runs git in repoDir with the ambient environment and returns
// trimmed stdout. Used for metadata (branch names, SHAs), not for sandboxed
// measurement.
func GitOutput(ctx context.Context, repoDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// WithBaselineWorktree checks out ref into a detached worktree under dir,
// runs fn against it, and removes the worktree on every exit path. The
// worktree is borrowed ambient state; leaving it behind would poison the next
// invocation's fetch.
func WithBaselineWorktree(ctx context.Context, repoRoot, ref, dir string, fn func(worktree string) error) (err error) {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing worktree dir: %w", err)
	}
	if remote, _, found := strings.Cut(ref, "/"); found {
		if _, err := GitOutput(ctx, repoRoot, "fetch", "--quiet", remote, strings.TrimPrefix(ref, remote+"/")); err != nil {
			return fmt.Errorf("fetching baseline ref: %w", err)
		}
	}
	if _, err := GitOutput(ctx, repoRoot, "worktree", "add", "--detach", dir, ref); err != nil {
		return fmt.Errorf("adding baseline worktree: %w", err)
	}
	defer func() {
		if _, rmErr := GitOutput(context.WithoutCancel(ctx), repoRoot, "worktree", "remove", "--force", dir); rmErr != nil {
			log.WithError(rmErr).Warn("failed to remove baseline worktree")
			if err == nil {
				err = rmErr
			}
		}
	}()
	return fn(dir)
}
