package cves

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/probe"
	"github.com/kvesta/vigil/pkg/verdict"
)

// Module is one CVE: its catalog entry and the tree deciding it.
// HostOnly modules are kernel bugs, a container never carries them.
type Module struct {
	Entry    *catalog.Entry
	Tree     engine.Node
	HostOnly bool
}

type builder func(e *catalog.Entry) (*Module, error)

var builders = map[string]builder{
	"CVE-2016-5195":  kernelModule,
	"CVE-2020-1938":  ghostcat,
	"CVE-2021-44228": log4Shell,
	"CVE-2022-0847":  kernelModule,
	"CVE-2022-22965": spring4Shell,
}

// IDs lists the CVEs with a module, sorted.
func IDs() []string {
	ids := make([]string, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load builds the modules for ids, or for every CVE when ids is empty.
// Any failure is a configuration error.
func Load(cat *catalog.Catalog, ids []string) ([]*Module, error) {
	if len(ids) == 0 {
		ids = IDs()
	}

	var modules []*Module
	seen := map[string]bool{}
	for _, id := range ids {
		e, err := cat.Get(id)
		if err != nil {
			return nil, err
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		build, ok := builders[e.ID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrConfiguration, "no validation for %s", e.ID)
		}

		m, err := build(e)
		if err != nil {
			return nil, errors.Wrapf(catalog.ErrConfiguration, "%s: %v", e.ID, err)
		}

		if err := engine.Validate(m.Tree); err != nil {
			return nil, errors.Wrapf(catalog.ErrConfiguration, "%s: %v", e.ID, err)
		}

		modules = append(modules, m)
	}

	return modules, nil
}

func (m *Module) Evaluate(ctx context.Context, c *probe.Collector, opts ...engine.Option) *engine.Outcome {
	if m.HostOnly && !c.Target().IsHost() {
		return &engine.Outcome{
			Verdict:   verdict.NotVulnerable,
			Rationale: []string{"Containers are not affected by kernel vulnerabilities"},
		}
	}

	return engine.Evaluate(ctx, m.Tree, c, opts...)
}
