package probe

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"

	"github.com/kvesta/vigil/pkg/target"
)

// ProcessSource lists the pids of processes with an exact name.
type ProcessSource interface {
	Pids(ctx context.Context, name string) ([]int32, error)
}

// psutilSource reads the local process table.
type psutilSource struct{}

func (psutilSource) Pids(ctx context.Context, name string) ([]int32, error) {
	processes, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrProbeUnavailable, err.Error())
	}

	var pids []int32
	for _, ps := range processes {
		n, err := ps.NameWithContext(ctx)
		if err != nil {
			// the process may have exited meanwhile
			continue
		}
		if n == name {
			pids = append(pids, ps.Pid)
		}
	}

	return pids, nil
}

// commandSource asks the target itself, merging pgrep and pidof so that
// images shipping only one of them still answer. ps is the last resort.
type commandSource struct {
	runner target.Runner
}

func (cs commandSource) Pids(ctx context.Context, name string) ([]int32, error) {
	var pids []int32
	answered := false

	for _, cmd := range []string{"pgrep -x " + quote(name), "pidof " + quote(name)} {
		res := cs.runner.Run(ctx, cmd)
		if res.Err != nil {
			return nil, res.Err
		}
		if res.NotFound() {
			continue
		}

		// exit 1 means no match for both tools
		if res.ExitCode != 0 && res.ExitCode != 1 {
			continue
		}

		answered = true
		pids = append(pids, parsePids(res.Stdout)...)
	}

	if answered {
		return pids, nil
	}

	res := cs.runner.Run(ctx, "ps -eo pid=,comm=")
	if res.Err != nil {
		return nil, res.Err
	}
	if !res.OK() {
		return nil, errors.Wrap(ErrProbeUnavailable, "no pgrep, pidof or ps on target")
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != name {
			continue
		}
		pids = append(pids, parsePids(fields[0])...)
	}

	return pids, nil
}

func parsePids(out string) []int32 {
	var pids []int32
	for _, f := range strings.Fields(out) {
		pid, err := strconv.ParseInt(f, 10, 32)
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids
}

func consolidate(pids []int32) []int32 {
	seen := map[int32]bool{}
	out := []int32{}
	for _, pid := range pids {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
