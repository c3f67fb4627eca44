package target

import (
	"bytes"
	"context"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DockerApi is the subset of the docker client used for exec.
type DockerApi interface {
	ContainerInspectWithRaw(ctx context.Context, container string, getSize bool) (types.ContainerJSON, []byte, error)
	ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)
}

// DockerRunner executes commands inside a running container
// through the engine exec API.
type DockerRunner struct {
	DCli    DockerApi
	Name    string
	Timeout time.Duration
}

func NewDockerRunner(t Target, timeout time.Duration) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		log.Printf("init docker environment failed: %v", err)
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}

	return &DockerRunner{
		DCli:    cli,
		Name:    t.Name,
		Timeout: timeout,
	}, nil
}

func (d *DockerRunner) Target() Target {
	return Container(d.Name)
}

// Ping checks that the container exists and is running.
func (d *DockerRunner) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, d.Timeout)
	defer cancel()

	_, raw, err := d.DCli.ContainerInspectWithRaw(ctx, d.Name, false)
	if err != nil {
		if client.IsErrNotFound(err) {
			return errors.Wrapf(ErrUnreachable, "no such container %s", d.Name)
		}
		return errors.Wrapf(ErrUnreachable, "inspect %s: %v", d.Name, err)
	}

	state := gjson.GetBytes(raw, "State")
	if !state.Get("Running").Bool() || state.Get("Paused").Bool() {
		return errors.Wrapf(ErrUnreachable, "container %s is %s", d.Name, state.Get("Status").String())
	}

	log.Debugf("container %s is running with pid %d", d.Name, state.Get("Pid").Int())

	return nil
}

func (d *DockerRunner) Run(ctx context.Context, command string) Result {
	ctx, cancel := withTimeout(ctx, d.Timeout)
	defer cancel()

	log.Debugf("run in container %s: %s", d.Name, command)

	exec, err := d.DCli.ContainerExecCreate(ctx, d.Name, types.ExecConfig{
		Cmd:          shell(command),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return Result{Err: errors.Wrapf(err, "exec create %q", command)}
	}

	resp, err := d.DCli.ContainerExecAttach(ctx, exec.ID, types.ExecStartCheck{})
	if err != nil {
		return Result{Err: errors.Wrapf(err, "exec attach %q", command)}
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
		done <- err
	}()

	select {
	case <-ctx.Done():
		resp.Close()
		<-done
		return Result{Err: errors.Wrapf(ErrTimeout, "%q after %s", command, d.Timeout)}
	case err = <-done:
		if err != nil {
			return Result{Err: errors.Wrapf(err, "read output of %q", command)}
		}
	}

	ins, err := d.DCli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return Result{Err: errors.Wrapf(err, "exec inspect %q", command)}
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: ins.ExitCode,
	}

	log.Debugf("exit %d, stdout: %q, stderr: %q", res.ExitCode, res.Stdout, res.Stderr)

	return res
}
