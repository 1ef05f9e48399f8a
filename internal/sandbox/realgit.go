package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"
)

// minHooksPathGit is the first release supporting core.hooksPath, which the
// hook-dispatch modes depend on.
const minHooksPathGit = "v2.9.0"

var preferredGitPaths = []string{
	"/usr/bin/git",
	"/opt/homebrew/bin/git",
	"/usr/local/bin/git",
	"/bin/git",
}

// ResolveRealGit locates the unmodified system git binary. It refuses a PATH
// entry that resolves to a shim wrapper masquerading as git, since timing a
// wrapper against itself would make every comparison meaningless.
func ResolveRealGit() (string, error) {
	for _, candidate := range preferredGitPaths {
		if info, err := os.Stat(candidate); err == nil && info.Mode()&0o111 != 0 {
			return filepath.EvalSymlinks(candidate)
		}
	}
	fallback, err := exec.LookPath("git")
	if err != nil {
		return "", fmt.Errorf("unable to resolve system git from PATH: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(fallback)
	if err != nil {
		return "", fmt.Errorf("resolving git path: %w", err)
	}
	base := strings.ToLower(filepath.Base(resolved))
	if strings.Contains(base, "shim") || strings.Contains(base, "modebench") {
		return "", fmt.Errorf("resolved git %s points at a shim wrapper, not the real git binary; install git or pass a clean PATH", resolved)
	}
	return resolved, nil
}

var gitVersionRe = regexp.MustCompile(`git version (\d+\.\d+(?:\.\d+)?)`)

// CheckGitVersion probes the resolved git binary once per invocation and
// warns if it predates core.hooksPath support. Probe failures are warnings,
// not fatal setup errors.
func CheckGitVersion(ctx context.Context, gitBin string) {
	out, err := runCommand(ctx, []string{gitBin, "--version"}, "", os.Environ(), DefaultCommandTimeout)
	if err != nil {
		log.WithError(err).Warn("could not probe git version")
		return
	}
	m := gitVersionRe.FindStringSubmatch(out.Stdout)
	if m == nil {
		log.WithField("output", strings.TrimSpace(out.Stdout)).Warn("unrecognized git version output")
		return
	}
	version := "v" + m[1]
	if semver.Compare(version, minHooksPathGit) < 0 {
		log.WithFields(log.Fields{"version": version, "required": minHooksPathGit}).
			Warn("git predates core.hooksPath; hook-dispatch variants will not work")
	}
}
