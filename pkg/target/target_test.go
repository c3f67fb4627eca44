package target

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	utilexec "k8s.io/client-go/util/exec"
)

func TestKubePod(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		container string
		want      Target
	}{
		{
			name: "namespaced",
			ref:  "web/api-0",
			want: Target{Kind: Pod, Namespace: "web", Name: "api-0"},
		},
		{
			name:      "defaultNamespace",
			ref:       "api-0",
			container: "app",
			want:      Target{Kind: Pod, Namespace: "default", Name: "api-0", Container: "app"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, KubePod(tt.ref, tt.container))
		})
	}
}

func TestResultNotFound(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{name: "exit127", res: Result{ExitCode: 127}, want: true},
		{name: "dash", res: Result{ExitCode: 2, Stderr: "sh: 1: version.sh: not found\n"}, want: true},
		{name: "stdout", res: Result{Stdout: "version.sh not found\n"}, want: true},
		{name: "failure", res: Result{ExitCode: 1, Stderr: "permission denied"}, want: false},
		{name: "timeout", res: Result{Err: ErrTimeout, ExitCode: 127}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.res.NotFound())
		})
	}
}

func TestLocalRunner(t *testing.T) {
	l := &LocalRunner{Timeout: 5 * time.Second}
	ctx := context.Background()

	res := l.Run(ctx, "echo hello; echo oops >&2; exit 3")
	require.NoError(t, res.Err)
	require.Equal(t, "hello\n", res.Stdout)
	require.Equal(t, "oops\n", res.Stderr)
	require.Equal(t, 3, res.ExitCode)
	require.False(t, res.OK())

	res = l.Run(ctx, "vigil-command-that-does-not-exist")
	require.True(t, res.NotFound())

	l.Timeout = 100 * time.Millisecond
	res = l.Run(ctx, "sleep 5")
	require.True(t, errors.Is(res.Err, ErrTimeout))
}

type fakeDocker struct {
	raw      []byte
	inspect  error
	stdout   string
	stderr   string
	exitCode int
	cmds     [][]string
	hang     bool
}

func (f *fakeDocker) ContainerInspectWithRaw(ctx context.Context, container string, getSize bool) (types.ContainerJSON, []byte, error) {
	if f.hang {
		<-ctx.Done()
		return types.ContainerJSON{}, nil, ctx.Err()
	}
	return types.ContainerJSON{}, f.raw, f.inspect
}

func (f *fakeDocker) ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error) {
	f.cmds = append(f.cmds, config.Cmd)
	return types.IDResponse{ID: "exec1"}, nil
}

func (f *fakeDocker) ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error) {
	var buf bytes.Buffer
	stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))

	conn, _ := net.Pipe()
	return types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDocker) ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error) {
	return types.ContainerExecInspect{ExecID: execID, ExitCode: f.exitCode}, nil
}

func TestDockerRunnerRun(t *testing.T) {
	f := &fakeDocker{stdout: "Linux\n", stderr: "warn\n", exitCode: 0}
	d := &DockerRunner{DCli: f, Name: "web", Timeout: time.Second}

	res := d.Run(context.Background(), "uname -s")
	require.NoError(t, res.Err)
	require.Equal(t, "Linux\n", res.Stdout)
	require.Equal(t, "warn\n", res.Stderr)
	require.Equal(t, [][]string{{"sh", "-c", "uname -s"}}, f.cmds)
	require.Equal(t, Container("web"), d.Target())
}

func TestDockerRunnerPing(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "running", raw: `{"State":{"Status":"running","Running":true,"Pid":42}}`},
		{name: "exited", raw: `{"State":{"Status":"exited","Running":false}}`, wantErr: true},
		{name: "paused", raw: `{"State":{"Status":"paused","Running":true,"Paused":true}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DockerRunner{DCli: &fakeDocker{raw: []byte(tt.raw)}, Name: "web"}
			err := d.Ping(context.Background())
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrUnreachable))
				return
			}
			require.NoError(t, err)
		})
	}

	d := &DockerRunner{DCli: &fakeDocker{inspect: errors.New("daemon down")}, Name: "web"}
	require.True(t, errors.Is(d.Ping(context.Background()), ErrUnreachable))
}

func TestDockerRunnerPingTimeout(t *testing.T) {
	d := &DockerRunner{DCli: &fakeDocker{hang: true}, Name: "web", Timeout: 50 * time.Millisecond}

	start := time.Now()
	err := d.Ping(context.Background())

	require.True(t, errors.Is(err, ErrUnreachable))
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestKubeRunnerPing(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "api-0", Namespace: "web"},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}}},
				{Name: "sidecar", State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{}}},
			},
		},
	}
	cli := fake.NewSimpleClientset(pod)

	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{name: "anyContainer", target: KubePod("web/api-0", "")},
		{name: "running", target: KubePod("web/api-0", "app")},
		{name: "waiting", target: KubePod("web/api-0", "sidecar"), wantErr: true},
		{name: "missingContainer", target: KubePod("web/api-0", "db"), wantErr: true},
		{name: "missingPod", target: KubePod("web/api-1", ""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := &KubeRunner{KClient: cli, Pod: tt.target}
			err := k.Ping(context.Background())
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrUnreachable))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestKubeRunnerRun(t *testing.T) {
	k := &KubeRunner{Pod: KubePod("web/api-0", "app"), Timeout: time.Second}

	k.stream = func(ctx context.Context, command string, stdout, stderr *bytes.Buffer) error {
		stdout.WriteString("12\n")
		return utilexec.CodeExitError{Err: errors.New("exit"), Code: 1}
	}
	res := k.Run(context.Background(), "pgrep -x java")
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.ExitCode)
	require.Equal(t, "12\n", res.Stdout)

	k.Timeout = 50 * time.Millisecond
	k.stream = func(ctx context.Context, command string, stdout, stderr *bytes.Buffer) error {
		time.Sleep(time.Second)
		return nil
	}
	res = k.Run(context.Background(), "sleep 5")
	require.True(t, errors.Is(res.Err, ErrTimeout))
}
