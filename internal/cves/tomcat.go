package cves

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/verdict"
	"github.com/kvesta/vigil/pkg/version"
)

// ghostcat needs an unpatched Tomcat with the AJP connector enabled.
func ghostcat(e *catalog.Entry) (*Module, error) {
	if e.Product == nil {
		return nil, errors.New("needs a product")
	}
	product := e.Product

	ajp := &engine.Gate{
		Question: "Is the AJP connector enabled?",
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			tc, r := s.TomcatVersion(ctx)
			if r != verdict.True {
				return verdict.Unsupported
			}

			enabled := s.AJPEnabled(ctx, tc.Home)
			if enabled == verdict.False {
				s.Explain("No AJP connector is configured in %s/conf/server.xml", tc.Home)
			}
			return enabled
		},
		Yes: engine.Vulnerable(""),
		No:  engine.NotVulnerable(""),
	}

	affected := &engine.Gate{
		Question: "Is the Tomcat version affected?",
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			tc, r := s.TomcatVersion(ctx)
			if r != verdict.True {
				return verdict.Unsupported
			}

			patched := version.IsPatchedSeries(tc.Version, product.Patched, product.Scheme)
			switch patched {
			case verdict.True:
				s.Explain("Tomcat %s is patched", tc.Version)
			case verdict.False:
				s.Explain("Tomcat %s is affected, the patched versions are: %v", tc.Version, product.Patched)
			}

			return patched.Not()
		},
		Yes: ajp,
		No:  engine.NotVulnerable(""),
	}

	installed := &engine.Gate{
		Question: "Is it Tomcat?",
		Check: func(ctx context.Context, s *engine.Scope) verdict.Result {
			_, r := s.TomcatVersion(ctx)
			if r == verdict.Unsupported {
				s.Explain("Unsupported version.sh output")
			}
			return r
		},
		Yes: affected,
		No:  engine.NotVulnerable("Tomcat is not installed"),
	}

	return &Module{Entry: e, Tree: isLinux(installed)}, nil
}
