package cves

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/verdict"
	"github.com/kvesta/vigil/pkg/version"
)

// kernelModule serves the kernel CVEs: Dirty Pipe and Dirty COW.
func kernelModule(e *catalog.Entry) (*Module, error) {
	if e.Kernel == nil {
		return nil, errors.New("kernel CVE without kernel versions")
	}

	tree := isLinux(&engine.Gate{
		Question: "Is the kernel version affected?",
		Check:    kernelAffected(e.Kernel),
		Yes:      engine.Vulnerable(""),
		No:       engine.NotVulnerable(""),
	})

	return &Module{Entry: e, Tree: tree, HostOnly: true}, nil
}

// kernelAffected looks the distribution up in the fixed table, the AWS
// one on AWS kernels, and compares the running kernel package with it.
func kernelAffected(k *catalog.Kernel) engine.Check {
	return func(ctx context.Context, s *engine.Scope) verdict.Result {
		osv, r := s.Release(ctx)
		if r != verdict.True {
			s.Explain("Unsupported os release")
			return verdict.Unsupported
		}

		kv, r := s.KernelVersion(ctx)
		if r != verdict.True {
			s.Explain("Unsupported kernel version")
			return verdict.Unsupported
		}

		table := k.Table(s.IsAWS(ctx) == verdict.True)

		key, fixed := "", ""
		for _, candidate := range osv.Keys() {
			if f, ok := table.Lookup(candidate); ok {
				key, fixed = candidate, f
				break
			}
		}
		if key == "" {
			s.Explain("No fixed kernel version is known for %s", osv.Key())
			return verdict.Unsupported
		}

		if kv.Package == "" && osv.PackagedKernel() {
			s.Explain("The package version of the running kernel %s is unknown", kv.Release)
			return verdict.Unsupported
		}

		running := kv.Version()
		if k.Min != "" {
			c, err := table.Scheme.Compare(running, k.Min)
			if err != nil {
				s.Explain("Unsupported kernel version %s", running)
				return verdict.Unsupported
			}
			if c < 0 {
				s.Explain("The minimum affected kernel version is: %s, the running kernel %s is not affected", k.Min, running)
				return verdict.False
			}
		}

		patched := version.IsPatched(running, table, key)
		switch patched {
		case verdict.True:
			s.Explain("The fixed kernel version for %s is: %s, the running kernel %s is not affected", key, fixed, running)
		case verdict.False:
			s.Explain("The fixed kernel version for %s is: %s, the running kernel %s is affected", key, fixed, running)
		default:
			s.Explain("Unsupported kernel version %s", running)
		}

		return patched.Not()
	}
}
