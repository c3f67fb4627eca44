package internal

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/internal/cves"
	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/graph"
	"github.com/kvesta/vigil/pkg/target"
)

// selectTarget turns --container and --pod into a target, the local host
// when neither is given.
func selectTarget(opts config.Options) (target.Target, error) {
	switch {
	case opts.Container != "" && opts.Pod != "":
		return target.Target{}, errors.Wrap(catalog.ErrConfiguration, "--container and --pod are exclusive")
	case opts.Container != "":
		return target.Container(opts.Container), nil
	case opts.Pod != "":
		return target.KubePod(opts.Pod, opts.PodContainer), nil
	default:
		return target.LocalHost(), nil
	}
}

// DrawGraph writes the flow chart of m into dir.
func DrawGraph(m *cves.Module, dir string) (string, error) {
	g := graph.Build(m.Entry.ID+" - "+m.Entry.Name, m.Tree)

	path, err := graph.WriteFile(dir, m.Entry.ID, g)
	if err != nil {
		return "", err
	}

	log.Printf("Flow chart is saved in: %s", config.Yellow(path))
	return path, nil
}
