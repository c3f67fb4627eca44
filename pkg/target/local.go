package target

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// LocalRunner executes commands on the machine vigil runs on.
type LocalRunner struct {
	Timeout time.Duration
}

func (l *LocalRunner) Target() Target {
	return LocalHost()
}

func (l *LocalRunner) Ping(ctx context.Context) error {
	return nil
}

func (l *LocalRunner) Run(ctx context.Context, command string) Result {
	ctx, cancel := withTimeout(ctx, l.Timeout)
	defer cancel()

	log.Debugf("run on host: %s", command)

	args := shell(command)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	// children of the shell may keep the pipes open after it is killed
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{}
	err := cmd.Run()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Err = errors.Wrapf(ErrTimeout, "%q after %s", command, l.Timeout)
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Err = errors.Wrapf(err, "run %q", command)
		}
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	log.Debugf("exit %d, stdout: %q, stderr: %q", res.ExitCode, res.Stdout, res.Stderr)

	return res
}
