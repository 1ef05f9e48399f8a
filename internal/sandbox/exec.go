package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// CmdResult carries the captured output of a successful sandboxed command.
type CmdResult struct {
	Stdout string
	Stderr string
}

// CmdError is a fatal command failure. It carries everything needed to report
// the failure without re-running anything: argv, working directory, exit code
// and full captured output. A timeout is recorded but follows the same fatal
// path as a non-zero exit.
type CmdError struct {
	Argv     []string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CmdError) Error() string {
	var b strings.Builder
	if e.TimedOut {
		b.WriteString("command timed out\n")
	} else {
		b.WriteString("command failed\n")
	}
	fmt.Fprintf(&b, "cmd: %s\n", strings.Join(e.Argv, " "))
	fmt.Fprintf(&b, "cwd: %s\n", e.Dir)
	fmt.Fprintf(&b, "exit: %d\n", e.ExitCode)
	fmt.Fprintf(&b, "stdout:\n%s\n", e.Stdout)
	fmt.Fprintf(&b, "stderr:\n%s", e.Stderr)
	return b.String()
}

func (e *CmdError) Unwrap() error { return e.Err }

// runCommand executes argv in dir with the given environment, capturing
// stdout and stderr. Non-zero exit and timeout are both returned as a
// *CmdError; the caller treats either as fatal.
func runCommand(ctx context.Context, argv []string, dir string, env []string, timeout time.Duration) (CmdResult, error) {
	cctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.WithFields(log.Fields{"cmd": strings.Join(argv, " "), "cwd": dir}).Debug("running command")

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CmdResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	cerr := &CmdError{
		Argv:     argv,
		Dir:      dir,
		ExitCode: -1,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		TimedOut: errors.Is(cctx.Err(), context.DeadlineExceeded),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return res, cerr
}
