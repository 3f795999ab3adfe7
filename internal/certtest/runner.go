package certtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/octopilot/certstore/internal/runner"
)

// ErrCommandFailed is what FakeRunner returns for commands scripted to fail.
var ErrCommandFailed = errors.New("command failed")

// FakeRunner records every command and answers from a script. Commands with no
// script entry get Default, which succeeds with empty output unless set.
type FakeRunner struct {
	Default Reply

	mu      sync.Mutex
	calls   []runner.Command
	replies map[string]Reply
	// OnRun, if set, is called for every command before the scripted reply is
	// returned. Tests use it to inspect files that exist only during the call.
	OnRun func(runner.Command)
}

// Reply is the scripted outcome of one command line.
type Reply struct {
	Stdout   string
	ExitCode int
}

var _ runner.Runner = (*FakeRunner)(nil)

// On scripts the reply for the exact command line cmd.String().
func (f *FakeRunner) On(cmdLine string, r Reply) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies == nil {
		f.replies = make(map[string]Reply)
	}
	f.replies[cmdLine] = r
	return f
}

func (f *FakeRunner) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	r, ok := f.replies[cmd.String()]
	if !ok {
		r = f.Default
	}
	hook := f.OnRun
	f.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}

	res := runner.Result{ExitCode: r.ExitCode, Stdout: []byte(r.Stdout)}
	if r.ExitCode != 0 {
		return res, fmt.Errorf("%s: exit status %d: %w", cmd, r.ExitCode, ErrCommandFailed)
	}
	return res, nil
}

// Calls returns the command lines run so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Commands returns the commands run so far.
func (f *FakeRunner) Commands() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}
