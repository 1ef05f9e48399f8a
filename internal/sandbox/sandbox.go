// Package sandbox builds the isolated runtime environment one variant runs
// in: a private home directory, a private bin directory prepended to PATH and,
// for hook-dispatch modes, a private managed hooks directory. Nothing in the
// ambient environment is mutated.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/modebench/modebench/internal/variant"
)

// DefaultCommandTimeout bounds every sandboxed command. A timeout is a fatal
// error, not a soft signal.
const DefaultCommandTimeout = 15 * time.Minute

// Sandbox is the isolated execution environment for one variant. Repetitions
// of the same (scenario, variant) pair may reuse it; distinct variants never
// share one.
type Sandbox struct {
	Variant  variant.Variant
	Root     string
	HomeDir  string
	BinDir   string
	HooksDir string

	realGit string
	wrapper string
	env     []string
	timeout time.Duration
}

// Option adjusts sandbox construction.
type Option func(*Sandbox)

// WithCommandTimeout overrides the per-command timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.timeout = d }
}

// New constructs the sandbox directory tree for v under root. For wrapper and
// both modes the variant binary is installed at the position the git client
// occupies on PATH; for hooks and both modes every managed hook name is
// entered in the private hooks directory, pointing at the variant binary, and
// the sandbox's global git config routes core.hooksPath there.
func New(v variant.Variant, root, realGit string, opts ...Option) (*Sandbox, error) {
	home := filepath.Join(root, "home")
	bin := filepath.Join(root, "bin")
	s := &Sandbox{
		Variant:  v,
		Root:     root,
		HomeDir:  home,
		BinDir:   bin,
		HooksDir: filepath.Join(home, ".gitshim", "hooks"),
		realGit:  realGit,
		wrapper:  filepath.Join(bin, gitExeName()),
		timeout:  DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{home, bin} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sandbox dir: %w", err)
		}
	}

	if v.Mode.UsesWrapper() {
		if err := linkOrCopy(v.Binary, s.wrapper); err != nil {
			return nil, fmt.Errorf("installing wrapper: %w", err)
		}
	}

	if v.Mode.UsesHooks() {
		if err := os.MkdirAll(s.HooksDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating hooks dir: %w", err)
		}
		for _, hook := range variant.ManagedHooks {
			if err := linkOrCopy(v.Binary, filepath.Join(s.HooksDir, hook)); err != nil {
				return nil, fmt.Errorf("installing hook %s: %w", hook, err)
			}
		}
		gitconfig := fmt.Sprintf("[core]\n\thooksPath = %s\n", s.HooksDir)
		if err := os.WriteFile(filepath.Join(home, ".gitconfig"), []byte(gitconfig), 0o644); err != nil {
			return nil, fmt.Errorf("writing sandbox gitconfig: %w", err)
		}
	}

	s.env = buildEnv(home, bin)
	log.WithFields(log.Fields{"variant": v.Key, "mode": v.Mode, "root": root}).Debug("sandbox built")
	return s, nil
}

// Env returns a copy of the sandbox environment.
func (s *Sandbox) Env() []string {
	env := make([]string, len(s.env))
	copy(env, s.env)
	return env
}

// GitBinary is the git entry point RunGit dispatches to: the wrapper for
// wrapper and both modes, the unmodified system git otherwise.
func (s *Sandbox) GitBinary() string {
	if s.Variant.Mode.UsesWrapper() {
		return s.wrapper
	}
	return s.realGit
}

// RunGit invokes the sandbox's git entry point.
func (s *Sandbox) RunGit(ctx context.Context, cwd string, args ...string) (CmdResult, error) {
	return runCommand(ctx, append([]string{s.GitBinary()}, args...), cwd, s.env, s.timeout)
}

// RunShim invokes the variant binary directly.
func (s *Sandbox) RunShim(ctx context.Context, cwd string, args ...string) (CmdResult, error) {
	return runCommand(ctx, append([]string{s.Variant.Binary}, args...), cwd, s.env, s.timeout)
}

// Run executes an arbitrary command inside the sandbox environment. Used by
// the external-script scenario family.
func (s *Sandbox) Run(ctx context.Context, cwd string, argv ...string) (CmdResult, error) {
	return runCommand(ctx, argv, cwd, s.env, s.timeout)
}

// InitRepo initializes a git repository at repoDir with a main branch and a
// fixed benchmark identity. Hook-dispatch modes verify the managed hook
// surface afterwards.
func (s *Sandbox) InitRepo(ctx context.Context, repoDir string) error {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return fmt.Errorf("creating repo dir: %w", err)
	}
	// Init with the real git so wrapper overhead never leaks into setup of
	// the default branch; older gits lack -b.
	if _, err := runCommand(ctx, []string{s.realGit, "init", "-q", "-b", "main"}, repoDir, s.env, s.timeout); err != nil {
		if _, err := s.RunGit(ctx, repoDir, "init", "-q"); err != nil {
			return err
		}
		if _, err := s.RunGit(ctx, repoDir, "checkout", "-q", "-b", "main"); err != nil {
			return err
		}
	}
	if _, err := s.RunGit(ctx, repoDir, "config", "user.name", "Benchmark Bot"); err != nil {
		return err
	}
	if _, err := s.RunGit(ctx, repoDir, "config", "user.email", "benchmark@modebench.local"); err != nil {
		return err
	}
	if s.Variant.Mode.UsesHooks() {
		if err := s.VerifyHooks(ctx, repoDir); err != nil {
			return err
		}
	}
	return nil
}

// VerifyHooks asserts that the git client configured by this sandbox reports
// its hooks path as the private managed hooks directory and that the
// installed hook set matches the managed set exactly. Any mismatch is a fatal
// sandbox error.
func (s *Sandbox) VerifyHooks(ctx context.Context, repoDir string) error {
	out, err := s.RunGit(ctx, repoDir, "config", "--get", "core.hooksPath")
	if err != nil {
		return fmt.Errorf("reading core.hooksPath: %w", err)
	}
	hooksPath := strings.TrimSpace(out.Stdout)
	if hooksPath == "" {
		return fmt.Errorf("expected core.hooksPath to be configured, found empty")
	}
	if !filepath.IsAbs(hooksPath) {
		hooksPath = filepath.Join(repoDir, hooksPath)
	}
	resolved, err := filepath.EvalSymlinks(hooksPath)
	if err != nil {
		return fmt.Errorf("resolving hooks path %s: %w", hooksPath, err)
	}
	want, err := filepath.EvalSymlinks(s.HooksDir)
	if err != nil {
		return fmt.Errorf("resolving managed hooks dir: %w", err)
	}
	if resolved != want {
		return fmt.Errorf("hooks path mismatch: expected %s, git reports %s", want, resolved)
	}

	entries, err := os.ReadDir(s.HooksDir)
	if err != nil {
		return fmt.Errorf("listing managed hooks dir: %w", err)
	}
	installed := map[string]bool{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		installed[entry.Name()] = true
	}
	var missing, extras []string
	expected := map[string]bool{}
	for _, hook := range variant.ManagedHooks {
		expected[hook] = true
		if !installed[hook] {
			missing = append(missing, hook)
		}
	}
	for name := range installed {
		if !expected[name] {
			extras = append(extras, name)
		}
	}
	if len(missing) > 0 || len(extras) > 0 {
		sort.Strings(missing)
		sort.Strings(extras)
		return fmt.Errorf("unexpected managed hook surface in %s: missing=%v extras=%v", s.HooksDir, missing, extras)
	}
	return nil
}

// buildEnv derives the sandbox environment from the ambient one, overriding
// HOME, the global git config location and PATH. The ambient process
// environment is never modified.
func buildEnv(home, bin string) []string {
	overrides := map[string]string{
		"HOME":                  home,
		"GIT_CONFIG_GLOBAL":     filepath.Join(home, ".gitconfig"),
		"GIT_TERMINAL_PROMPT":   "0",
		"GITSHIM_DEBUG":         "0",
		"GITSHIM_DEBUG_TIMINGS": "0",
	}
	var env []string
	ambientPath := ""
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if key == "PATH" {
			ambientPath = val
			continue
		}
		if _, replaced := overrides[key]; replaced {
			continue
		}
		env = append(env, kv)
	}
	for key, val := range overrides {
		env = append(env, key+"="+val)
	}
	env = append(env, "PATH="+bin+string(os.PathListSeparator)+ambientPath)
	sort.Strings(env)
	return env
}

// linkOrCopy enters target at linkPath, preferring a symlink and falling back
// to a full copy where symlinks are unsupported.
func linkOrCopy(target, linkPath string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(linkPath); err == nil {
		if err := os.RemoveAll(linkPath); err != nil {
			return err
		}
	}
	if err := os.Symlink(target, linkPath); err == nil {
		return nil
	}
	src, err := os.Open(target)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(linkPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func gitExeName() string {
	if runtime.GOOS == "windows" {
		return "git.exe"
	}
	return "git"
}
