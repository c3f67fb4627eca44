// Package targettest provides a scripted target.Runner for tests.
package targettest

import (
	"context"
	"sync"

	"github.com/kvesta/vigil/pkg/target"
)

// Runner answers commands from a table. Commands missing from the table
// behave like a missing binary.
type Runner struct {
	T         target.Target
	Responses map[string]target.Result
	PingErr   error

	mu    sync.Mutex
	calls map[string]int
}

func New(t target.Target, responses map[string]target.Result) *Runner {
	return &Runner{T: t, Responses: responses}
}

// Out is a successful command printing stdout.
func Out(stdout string) target.Result {
	return target.Result{Stdout: stdout}
}

// Exit is a command failing with code.
func Exit(code int, stderr string) target.Result {
	return target.Result{ExitCode: code, Stderr: stderr}
}

func (r *Runner) Target() target.Target {
	return r.T
}

func (r *Runner) Ping(ctx context.Context) error {
	return r.PingErr
}

func (r *Runner) Run(ctx context.Context, command string) target.Result {
	r.mu.Lock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[command]++
	r.mu.Unlock()

	if res, ok := r.Responses[command]; ok {
		return res
	}
	return target.Result{ExitCode: 127, Stderr: "sh: 1: " + command + ": not found"}
}

// Calls reports how many times command ran.
func (r *Runner) Calls(command string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[command]
}

// Total reports how many commands ran.
func (r *Runner) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}
