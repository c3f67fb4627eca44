package cves

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/verdict"
	"github.com/kvesta/vigil/pkg/version"
)

// spring4Shell needs a JDK 9+ process with Spring webmvc or webflux loaded.
func spring4Shell(e *catalog.Entry) (*Module, error) {
	if e.Runtime == nil || len(e.Classes) == 0 {
		return nil, errors.New("needs a runtime and classes")
	}

	each := javaVersionAffected(e.Runtime.MinMajor,
		usesClasses("Does the process use "+labels(e.Classes)+" dependencies?", e.Classes, engine.Vulnerable("")))

	return &Module{Entry: e, Tree: isLinux(javaProcesses(e.Runtime, each))}, nil
}

// log4Shell needs JndiLookup loaded from an unpatched log4j-core jar.
func log4Shell(e *catalog.Entry) (*Module, error) {
	if e.Runtime == nil || len(e.Classes) == 0 || e.Library == nil {
		return nil, errors.New("needs a runtime, classes and a library")
	}

	lib := e.Library
	jar := &engine.Gate{
		Question: "Is the " + lib.Name + " version affected?",
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			v, r := s.JarVersion(ctx, s.PID, lib.Name)
			if r != verdict.True {
				// shaded into an application jar or unreadable fds
				s.Explain("Could not find the %s jar of process %d", lib.Name, s.PID)
				return verdict.Unsupported
			}

			patched := version.IsPatchedSeries(v, lib.Patched, lib.Scheme)
			switch patched {
			case verdict.True:
				s.Explain("The %d process uses %s %s which is patched", s.PID, lib.Name, v)
			case verdict.False:
				s.Explain("The %d process uses %s %s which is affected", s.PID, lib.Name, v)
			}

			return patched.Not()
		},
		Yes: engine.Vulnerable(""),
		No:  engine.NotVulnerable(""),
	}

	each := usesClasses("Is the JndiLookup class loaded?", e.Classes, jar)

	return &Module{Entry: e, Tree: isLinux(javaProcesses(e.Runtime, each))}, nil
}
