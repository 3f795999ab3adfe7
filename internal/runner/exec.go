// Package runner executes trust store utilities such as certutil, security and
// update-ca-certificates.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/smallstep/truststore"
	"go.uber.org/zap"
)

// Command is one invocation of a trust store utility.
type Command struct {
	Name string
	Args []string
	// Elevated runs the command through sudo unless the process is already
	// privileged.
	Elevated bool
}

// String renders the command line, quoting path-like arguments.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if looksLikePath(a) {
			a = `"` + a + `"`
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\. `)
}

// Result is what a finished command produced.
type Result struct {
	ExitCode int
	Stdout   []byte
}

// Runner executes commands. A nonzero exit is reported as an error.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Func adapts a plain function to Runner.
type Func func(ctx context.Context, cmd Command) (Result, error)

func (f Func) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// Exec runs commands as child processes.
type Exec struct {
	Logger *zap.Logger
}

// geteuid is a var so tests can pretend to be root or not.
var geteuid = os.Geteuid

func (e Exec) Run(ctx context.Context, c Command) (Result, error) {
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	name, args := c.Name, c.Args
	if needsSudo(c) {
		name, args = "sudo", append([]string{c.Name}, c.Args...)
	}

	log.Debug("running command", zap.Stringer("command", c), zap.Bool("sudo", name == "sudo"))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if name == "sudo" {
		// sudo may need to prompt for a password.
		cmd.Stdin = os.Stdin
	}

	err := cmd.Run()
	res := Result{ExitCode: exitCode(cmd, err), Stdout: stdout.Bytes()}
	if err != nil {
		log.Debug("command failed",
			zap.Stringer("command", c),
			zap.Int("exit_code", res.ExitCode),
			zap.ByteString("stderr", stderr.Bytes()))
		return res, truststore.NewCmdError(err, cmd, append(stdout.Bytes(), stderr.Bytes()...))
	}
	return res, nil
}

func needsSudo(c Command) bool {
	return c.Elevated && runtime.GOOS != "windows" && geteuid() != 0
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}
