package target

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"
	"k8s.io/client-go/util/homedir"
)

// KubeRunner executes commands in one container of a pod via pods/exec.
type KubeRunner struct {
	KClient kubernetes.Interface
	KConfig *restclient.Config
	Pod     Target
	Timeout time.Duration

	// stream is replaced in tests
	stream func(ctx context.Context, command string, stdout, stderr *bytes.Buffer) error
}

func NewKubeRunner(t Target, kubeconfig string, timeout time.Duration) (*KubeRunner, error) {
	kconfig, err := clientcmd.BuildConfigFromFlags("", resolveKubeconfig(kubeconfig))
	if err != nil {
		log.Printf("Cannot initialize kubernetes environment, error: %v", err)
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}

	clientset, err := kubernetes.NewForConfig(kconfig)
	if err != nil {
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}

	k := &KubeRunner{
		KClient: clientset,
		KConfig: kconfig,
		Pod:     t,
		Timeout: timeout,
	}
	k.stream = k.spdyStream

	return k, nil
}

// resolveKubeconfig follows the usual lookup order: explicit path,
// ~/.kube/config, then k3s and k0s defaults. An empty result lets
// client-go fall back to the in-cluster configuration.
func resolveKubeconfig(kubeconfig string) string {
	if kubeconfig != "" && kubeconfig != "default" {
		return kubeconfig
	}

	candidates := []string{"/etc/rancher/k3s/k3s.yaml", "/etc/k0s/k0s.yaml"}
	if home := homedir.HomeDir(); home != "" {
		candidates = append([]string{filepath.Join(home, ".kube", "config")}, candidates...)
	}

	for _, c := range candidates {
		if exists(c) {
			return c
		}
	}

	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (k *KubeRunner) Target() Target {
	return k.Pod
}

func (k *KubeRunner) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, k.Timeout)
	defer cancel()

	pod, err := k.KClient.CoreV1().Pods(k.Pod.Namespace).Get(ctx, k.Pod.Name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return errors.Wrapf(ErrUnreachable, "no such pod %s/%s", k.Pod.Namespace, k.Pod.Name)
		}
		return errors.Wrapf(ErrUnreachable, "get pod: %v", err)
	}

	if pod.Status.Phase != corev1.PodRunning {
		return errors.Wrapf(ErrUnreachable, "pod %s/%s is %s", k.Pod.Namespace, k.Pod.Name, pod.Status.Phase)
	}

	if k.Pod.Container == "" {
		return nil
	}

	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Name == k.Pod.Container {
			if cs.State.Running == nil {
				return errors.Wrapf(ErrUnreachable, "container %s is not running", cs.Name)
			}
			return nil
		}
	}

	return errors.Wrapf(ErrUnreachable, "pod %s/%s has no container %s", k.Pod.Namespace, k.Pod.Name, k.Pod.Container)
}

func (k *KubeRunner) Run(ctx context.Context, command string) Result {
	ctx, cancel := withTimeout(ctx, k.Timeout)
	defer cancel()

	log.Debugf("run in %s: %s", k.Pod, command)

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- k.stream(ctx, command, &stdout, &stderr)
	}()

	var err error
	select {
	case <-ctx.Done():
		return Result{Err: errors.Wrapf(ErrTimeout, "%q after %s", command, k.Timeout)}
	case err = <-done:
	}

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr utilexec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
		} else {
			res.Err = errors.Wrapf(err, "exec %q", command)
		}
	}

	log.Debugf("exit %d, stdout: %q, stderr: %q", res.ExitCode, res.Stdout, res.Stderr)

	return res
}

// spdyStream does not observe ctx; Run abandons it on timeout and the
// buffers are never read again.
func (k *KubeRunner) spdyStream(ctx context.Context, command string, stdout, stderr *bytes.Buffer) error {
	req := k.KClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(k.Pod.Name).
		Namespace(k.Pod.Namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: k.Pod.Container,
			Command:   shell(command),
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(k.KConfig, "POST", req.URL())
	if err != nil {
		return err
	}

	return executor.Stream(remotecommand.StreamOptions{
		Stdout: stdout,
		Stderr: stderr,
	})
}
