package sandbox_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modebench/modebench/internal/sandbox"
	"github.com/modebench/modebench/internal/variant"
)

func fakeShim(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitshim")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func requireGit(t *testing.T) string {
	t.Helper()
	git, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git not installed")
	}
	return git
}

func TestNewWrapperLayout(t *testing.T) {
	shim := fakeShim(t)
	root := t.TempDir()
	v := variant.Variant{Key: "candidate_wrapper", Binary: shim, Mode: variant.ModeWrapper}

	sb, err := sandbox.New(v, root, "/usr/bin/git")
	require.NoError(t, err)

	assert.DirExists(t, sb.HomeDir)
	assert.DirExists(t, sb.BinDir)
	assert.Equal(t, filepath.Join(sb.BinDir, "git"), sb.GitBinary())

	target, err := filepath.EvalSymlinks(sb.GitBinary())
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(shim)
	require.NoError(t, err)
	assert.Equal(t, resolved, target)

	// Wrapper-only mode installs no hooks.
	assert.NoDirExists(t, sb.HooksDir)
}

func TestNewHooksLayout(t *testing.T) {
	shim := fakeShim(t)
	root := t.TempDir()
	v := variant.Variant{Key: "candidate_hooks", Binary: shim, Mode: variant.ModeHooks}

	sb, err := sandbox.New(v, root, "/usr/bin/git")
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/git", sb.GitBinary(), "hooks mode dispatches to real git")

	entries, err := os.ReadDir(sb.HooksDir)
	require.NoError(t, err)
	require.Len(t, entries, len(variant.ManagedHooks))

	data, err := os.ReadFile(filepath.Join(sb.HomeDir, ".gitconfig"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hooksPath = "+sb.HooksDir)
}

func TestSandboxEnvIsolation(t *testing.T) {
	shim := fakeShim(t)
	sb, err := sandbox.New(
		variant.Variant{Key: "v", Binary: shim, Mode: variant.ModeWrapper},
		t.TempDir(), "/usr/bin/git")
	require.NoError(t, err)

	env := map[string]string{}
	for _, kv := range sb.Env() {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	assert.Equal(t, sb.HomeDir, env["HOME"])
	assert.Equal(t, "0", env["GIT_TERMINAL_PROMPT"])
	assert.True(t, strings.HasPrefix(env["PATH"], sb.BinDir+string(os.PathListSeparator)))

	// Ambient process env must be untouched.
	assert.NotEqual(t, sb.HomeDir, os.Getenv("HOME"))
}

func TestTwoSandboxesDoNotShareState(t *testing.T) {
	shimA := fakeShim(t)
	shimB := fakeShim(t)
	sa, err := sandbox.New(variant.Variant{Key: "a", Binary: shimA, Mode: variant.ModeBoth}, t.TempDir(), "/usr/bin/git")
	require.NoError(t, err)
	sb, err := sandbox.New(variant.Variant{Key: "b", Binary: shimB, Mode: variant.ModeBoth}, t.TempDir(), "/usr/bin/git")
	require.NoError(t, err)

	marker := filepath.Join(sa.HomeDir, "marker.txt")
	require.NoError(t, os.WriteFile(marker, []byte("a"), 0o644))
	assert.NoFileExists(t, filepath.Join(sb.HomeDir, "marker.txt"))

	targetA, err := filepath.EvalSymlinks(filepath.Join(sa.HooksDir, "pre-commit"))
	require.NoError(t, err)
	targetB, err := filepath.EvalSymlinks(filepath.Join(sb.HooksDir, "pre-commit"))
	require.NoError(t, err)
	assert.NotEqual(t, targetA, targetB)
}

func TestInitRepoAndVerifyHooks(t *testing.T) {
	git := requireGit(t)
	shim := fakeShim(t)
	root := t.TempDir()
	sb, err := sandbox.New(
		variant.Variant{Key: "candidate_hooks", Binary: shim, Mode: variant.ModeHooks},
		root, git)
	require.NoError(t, err)

	repo := filepath.Join(root, "repo")
	require.NoError(t, sb.InitRepo(context.Background(), repo))
	assert.DirExists(t, filepath.Join(repo, ".git"))
	require.NoError(t, sb.VerifyHooks(context.Background(), repo))
}

func TestVerifyHooksDetectsMissingHook(t *testing.T) {
	git := requireGit(t)
	shim := fakeShim(t)
	root := t.TempDir()
	sb, err := sandbox.New(
		variant.Variant{Key: "candidate_hooks", Binary: shim, Mode: variant.ModeHooks},
		root, git)
	require.NoError(t, err)

	repo := filepath.Join(root, "repo")
	require.NoError(t, sb.InitRepo(context.Background(), repo))

	require.NoError(t, os.Remove(filepath.Join(sb.HooksDir, "pre-push")))
	err = sb.VerifyHooks(context.Background(), repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-push")
}

func TestVerifyHooksDetectsExtraHook(t *testing.T) {
	git := requireGit(t)
	shim := fakeShim(t)
	root := t.TempDir()
	sb, err := sandbox.New(
		variant.Variant{Key: "candidate_hooks", Binary: shim, Mode: variant.ModeHooks},
		root, git)
	require.NoError(t, err)

	repo := filepath.Join(root, "repo")
	require.NoError(t, sb.InitRepo(context.Background(), repo))

	rogue := filepath.Join(sb.HooksDir, "commit-msg")
	require.NoError(t, os.WriteFile(rogue, []byte("#!/bin/sh\n"), 0o755))
	err = sb.VerifyHooks(context.Background(), repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit-msg")
}

func TestRunGitFailureCarriesFullContext(t *testing.T) {
	git := requireGit(t)
	shim := fakeShim(t)
	root := t.TempDir()
	sb, err := sandbox.New(
		variant.Variant{Key: "v", Binary: shim, Mode: variant.ModeHooks},
		root, git)
	require.NoError(t, err)

	cwd := t.TempDir()
	_, err = sb.RunGit(context.Background(), cwd, "rev-parse", "HEAD")
	require.Error(t, err)

	var cerr *sandbox.CmdError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, cwd, cerr.Dir)
	assert.NotZero(t, cerr.ExitCode)
	assert.False(t, cerr.TimedOut)
	assert.Contains(t, cerr.Error(), "rev-parse")
	assert.Contains(t, cerr.Error(), "stderr:")
}
