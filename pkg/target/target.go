package target

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout marks a command that did not finish in time.
	ErrTimeout = errors.New("command timed out")
	// ErrUnreachable marks a target that cannot run commands at all.
	ErrUnreachable = errors.New("target unreachable")
)

// DefaultTimeout bounds every command when no timeout is configured.
const DefaultTimeout = 60 * time.Second

type Kind int8

const (
	Host Kind = iota
	Docker
	Pod
)

func (k Kind) String() string {
	switch k {
	case Docker:
		return "docker"
	case Pod:
		return "pod"
	default:
		return "host"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Target is where evidence is gathered. It does not change during a scan.
type Target struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Container string `json:"container,omitempty"`
}

func LocalHost() Target {
	return Target{Kind: Host}
}

func Container(name string) Target {
	return Target{Kind: Docker, Name: name}
}

// KubePod accepts "namespace/name" or a bare name in the default namespace.
func KubePod(ref, container string) Target {
	ns, name := "default", ref
	if index := strings.Index(ref, "/"); index > -1 {
		ns, name = ref[:index], ref[index+1:]
	}

	return Target{Kind: Pod, Name: name, Namespace: ns, Container: container}
}

func (t Target) IsHost() bool {
	return t.Kind == Host
}

func (t Target) String() string {
	switch t.Kind {
	case Docker:
		return fmt.Sprintf("container %s", t.Name)
	case Pod:
		if t.Container != "" {
			return fmt.Sprintf("pod %s/%s (%s)", t.Namespace, t.Name, t.Container)
		}
		return fmt.Sprintf("pod %s/%s", t.Namespace, t.Name)
	default:
		return "host"
	}
}

// Result of one command. A non-zero exit is not an error; Err is only
// set when the command could not run to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// NotFound reports the shell's "command not found" sentinel.
func (r Result) NotFound() bool {
	if r.Err != nil {
		return false
	}
	if r.ExitCode == 127 {
		return true
	}

	for _, out := range []string{r.Stdout, r.Stderr} {
		if strings.HasSuffix(strings.TrimSpace(out), "not found") {
			return true
		}
	}

	return false
}

// Runner executes shell commands on exactly one target.
type Runner interface {
	Run(ctx context.Context, command string) Result
	// Ping fails with ErrUnreachable when no command can be executed.
	Ping(ctx context.Context) error
	Target() Target
}

type Options struct {
	Timeout    time.Duration
	Kubeconfig string
}

// NewRunner picks the execution mechanism for the target kind.
func NewRunner(ctx context.Context, t Target, opts Options) (Runner, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	switch t.Kind {
	case Host:
		return &LocalRunner{Timeout: opts.Timeout}, nil
	case Docker:
		return NewDockerRunner(t, opts.Timeout)
	case Pod:
		return NewKubeRunner(t, opts.Kubeconfig, opts.Timeout)
	default:
		return nil, errors.Errorf("unknown target kind %d", t.Kind)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func shell(command string) []string {
	return []string{"sh", "-c", command}
}
