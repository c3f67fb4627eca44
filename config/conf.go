package config

import (
	"context"
	"runtime"
	"time"

	"github.com/fatih/color"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Pink   = color.New(color.FgMagenta).SprintFunc()

	Ctx = context.Background()

	DefaultTimeout = 60 * time.Second
	DefaultWorkers = runtime.NumCPU()
)

// Options carries the command line of one validate run.
type Options struct {
	Describe     bool
	Graph        bool
	GraphDir     string
	Debug        bool
	Container    string
	Pod          string
	PodContainer string
	Kubeconfig   string
	Timeout      time.Duration
	Workers      int
	Output       string
}

type optionsKey struct{}

func WithOptions(ctx context.Context, o Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, o)
}

// OptionsFrom returns the options stored in ctx, or the defaults.
func OptionsFrom(ctx context.Context) Options {
	if o, ok := ctx.Value(optionsKey{}).(Options); ok {
		return o
	}

	return Options{Timeout: DefaultTimeout, Workers: DefaultWorkers}
}
