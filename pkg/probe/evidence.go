package probe

import (
	"sort"
	"sync"

	"github.com/kvesta/vigil/pkg/verdict"
)

// ProcessInfo is filled in as gates ask about a process.
type ProcessInfo struct {
	PID     int32  `json:"pid"`
	Runtime string `json:"runtime,omitempty"`
	Module  string `json:"module,omitempty"`
	Library string `json:"library,omitempty"`
}

// Evidence holds the facts of one scan of one target. Each fact is
// fetched at most once, Unsupported answers included.
type Evidence struct {
	mu    sync.Mutex
	memo  map[string]interface{}
	facts map[string]string
	procs map[int32]*ProcessInfo
}

func newEvidence() *Evidence {
	return &Evidence{
		memo:  map[string]interface{}{},
		facts: map[string]string{},
		procs: map[int32]*ProcessInfo{},
	}
}

type memoEntry[T any] struct {
	once   sync.Once
	value  T
	result verdict.Result
}

// remember runs fetch once per key. Different keys are fetched
// concurrently, the same key waits for the first fetch.
func remember[T any](e *Evidence, key string, fetch func() (T, verdict.Result)) (T, verdict.Result) {
	e.mu.Lock()
	raw, ok := e.memo[key]
	if !ok {
		raw = &memoEntry[T]{}
		e.memo[key] = raw
	}
	e.mu.Unlock()

	entry := raw.(*memoEntry[T])
	entry.once.Do(func() {
		entry.value, entry.result = fetch()
	})

	return entry.value, entry.result
}

func (e *Evidence) setFact(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.facts[name] = value
}

func (e *Evidence) updateProcess(pid int32, update func(p *ProcessInfo)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.procs[pid]
	if !ok {
		p = &ProcessInfo{PID: pid}
		e.procs[pid] = p
	}
	update(p)
}

// Facts is a copy of the target level facts gathered so far.
func (e *Evidence) Facts() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	facts := make(map[string]string, len(e.facts))
	for k, v := range e.facts {
		facts[k] = v
	}
	return facts
}

func (e *Evidence) Process(pid int32) (ProcessInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.procs[pid]
	if !ok {
		return ProcessInfo{PID: pid}, false
	}
	return *p, true
}

func (e *Evidence) Processes() []ProcessInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps := make([]ProcessInfo, 0, len(e.procs))
	for _, p := range e.procs {
		ps = append(ps, *p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].PID < ps[j].PID })
	return ps
}
