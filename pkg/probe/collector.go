package probe

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/osrelease"
	"github.com/kvesta/vigil/pkg/target"
	"github.com/kvesta/vigil/pkg/verdict"
)

var (
	// ErrProbeUnavailable means a required tool is missing on the target.
	ErrProbeUnavailable = errors.New("probe unavailable")
	// ErrMalformedEvidence means a tool answered in an unexpected shape.
	ErrMalformedEvidence = errors.New("malformed evidence")
)

type Family int8

const (
	Other Family = iota
	Linux
)

func (f Family) String() string {
	if f == Linux {
		return "Linux"
	}
	return "Other"
}

// Collector gathers evidence about one target. Every probe answers with a
// verdict.Result; failures never escape as errors.
type Collector struct {
	runner   target.Runner
	procs    ProcessSource
	evidence *Evidence
}

type Option func(*Collector)

func WithProcessSource(ps ProcessSource) Option {
	return func(c *Collector) {
		c.procs = ps
	}
}

func NewCollector(r target.Runner, opts ...Option) *Collector {
	c := &Collector{
		runner:   r,
		evidence: newEvidence(),
	}

	if r.Target().IsHost() {
		c.procs = psutilSource{}
	} else {
		c.procs = commandSource{runner: r}
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Collector) Target() target.Target {
	return c.runner.Target()
}

func (c *Collector) Evidence() *Evidence {
	return c.evidence
}

// Reachable fails with target.ErrUnreachable when nothing can be run.
func (c *Collector) Reachable(ctx context.Context) error {
	return c.runner.Ping(ctx)
}

func (c *Collector) unsupported(probe string, err error) verdict.Result {
	log.Debugf("%s on %s: %v", probe, c.Target(), err)
	return verdict.Unsupported
}

// OSFamily asks the target kernel name.
func (c *Collector) OSFamily(ctx context.Context) (Family, verdict.Result) {
	return remember(c.evidence, "os", func() (Family, verdict.Result) {
		res := c.runner.Run(ctx, "uname -s")
		if res.Err != nil {
			return Other, c.unsupported("os family", res.Err)
		}
		if !res.OK() || strings.TrimSpace(res.Stdout) == "" {
			return Other, c.unsupported("os family", ErrProbeUnavailable)
		}

		family := Other
		if strings.TrimSpace(res.Stdout) == "Linux" {
			family = Linux
		}
		c.evidence.setFact("os", family.String())

		return family, verdict.True
	})
}

func (c *Collector) IsLinux(ctx context.Context) verdict.Result {
	family, r := c.OSFamily(ctx)
	if r == verdict.Unsupported {
		return r
	}
	return verdict.FromBool(family == Linux)
}

// Release identifies the distribution from the os-release files.
func (c *Collector) Release(ctx context.Context) (osrelease.OsVersion, verdict.Result) {
	return remember(c.evidence, "release", func() (osrelease.OsVersion, verdict.Result) {
		for _, p := range osrelease.Paths {
			res := c.runner.Run(ctx, "cat "+p)
			if res.Err != nil {
				return osrelease.OsVersion{}, c.unsupported("os release", res.Err)
			}
			if !res.OK() || strings.TrimSpace(res.Stdout) == "" {
				continue
			}

			osv := osrelease.GetOs(res.Stdout, p)
			if osv.Key() == "" {
				return *osv, c.unsupported("os release", errors.Wrapf(ErrMalformedEvidence, "%s", p))
			}
			c.evidence.setFact("release", osv.Key())

			return *osv, verdict.True
		}

		return osrelease.OsVersion{}, c.unsupported("os release", ErrProbeUnavailable)
	})
}

// KernelVersion prefers the distribution package version of the running
// kernel: /proc/version_signature on Ubuntu, `uname -v` on Debian and on
// Ubuntu without the signature file. Package stays empty when neither
// source names it.
func (c *Collector) KernelVersion(ctx context.Context) (osrelease.KernelVersion, verdict.Result) {
	return remember(c.evidence, "kernel", func() (osrelease.KernelVersion, verdict.Result) {
		res := c.runner.Run(ctx, "cat /proc/version_signature")
		if res.Err != nil {
			return osrelease.KernelVersion{}, c.unsupported("kernel version", res.Err)
		}
		if res.OK() {
			if k, ok := osrelease.ParseVersionSignature(res.Stdout); ok {
				c.evidence.setFact("kernel", k.Version())
				return k, verdict.True
			}
		}

		release := ""
		res = c.runner.Run(ctx, "uname -r")
		if res.Err != nil {
			return osrelease.KernelVersion{}, c.unsupported("kernel version", res.Err)
		}
		if res.OK() {
			release = strings.TrimSpace(res.Stdout)
		} else {
			res = c.runner.Run(ctx, "cat /proc/version")
			if res.OK() {
				release = osrelease.KernelParse(res.Stdout)
			}
		}
		if release == "" {
			return osrelease.KernelVersion{}, c.unsupported("kernel version", ErrProbeUnavailable)
		}

		k := osrelease.ParseRelease(release)

		res = c.runner.Run(ctx, "uname -v")
		if res.OK() {
			if pkg, ok := osrelease.ParseUnameVersion(res.Stdout); ok {
				k.Package = pkg
			} else if pkg, ok := osrelease.ParseUbuntuUnameVersion(k.Release, res.Stdout); ok {
				k.Package = pkg
			}
		}
		c.evidence.setFact("kernel", k.Version())

		return k, verdict.True
	})
}

func (c *Collector) IsAWS(ctx context.Context) verdict.Result {
	k, r := c.KernelVersion(ctx)
	if r != verdict.True {
		return verdict.Unsupported
	}
	return verdict.FromBool(strings.HasPrefix(k.Flavour, "aws"))
}

// Processes returns the sorted, deduplicated pids named name.
// An empty list is a definite answer.
func (c *Collector) Processes(ctx context.Context, name string) ([]int32, verdict.Result) {
	return remember(c.evidence, "pids:"+name, func() ([]int32, verdict.Result) {
		pids, err := c.procs.Pids(ctx, name)
		if err != nil {
			return nil, c.unsupported("process list", err)
		}

		pids = consolidate(pids)
		c.evidence.setFact("processes:"+name, fmt.Sprint(pids))

		return pids, verdict.True
	})
}

// jcmd must match the JVM of the process, so the one next to its java
// binary wins over whatever is on PATH.
func (c *Collector) jcmd(ctx context.Context, pid int32) (string, verdict.Result) {
	return remember(c.evidence, fmt.Sprintf("jcmd:%d", pid), func() (string, verdict.Result) {
		res := c.runner.Run(ctx, fmt.Sprintf("readlink /proc/%d/exe", pid))
		if res.Err != nil {
			return "", c.unsupported("jcmd", res.Err)
		}
		if res.OK() {
			exe := strings.TrimSpace(res.Stdout)
			if exe != "" {
				candidate := path.Join(path.Dir(exe), "jcmd")
				if c.runner.Run(ctx, "test -x "+quote(candidate)).OK() {
					return candidate, verdict.True
				}
			}
		}

		if c.runner.Run(ctx, "command -v jcmd").OK() {
			return "jcmd", verdict.True
		}

		return "", c.unsupported("jcmd", ErrProbeUnavailable)
	})
}

func (c *Collector) runJcmd(ctx context.Context, pid int32, command string) (string, verdict.Result) {
	jcmd, r := c.jcmd(ctx, pid)
	if r != verdict.True {
		return "", verdict.Unsupported
	}

	res := c.runner.Run(ctx, fmt.Sprintf("%s %d %s", quote(jcmd), pid, command))
	if res.Err != nil {
		return "", c.unsupported(command, res.Err)
	}
	if !res.OK() || strings.TrimSpace(res.Stdout) == "" {
		return "", c.unsupported(command, errors.Wrapf(ErrProbeUnavailable, "exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}

	return res.Stdout, verdict.True
}

// RuntimeVersion reads the JDK version of a JVM from `jcmd VM.version`.
func (c *Collector) RuntimeVersion(ctx context.Context, pid int32) (string, verdict.Result) {
	return remember(c.evidence, fmt.Sprintf("runtime:%d", pid), func() (string, verdict.Result) {
		out, r := c.runJcmd(ctx, pid, "VM.version")
		if r != verdict.True {
			return "", r
		}

		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "JDK ") {
				continue
			}

			fields := strings.Fields(line)
			v := fields[len(fields)-1]
			c.evidence.updateProcess(pid, func(p *ProcessInfo) { p.Runtime = v })

			return v, verdict.True
		}

		return "", c.unsupported("VM.version", ErrMalformedEvidence)
	})
}

func (c *Collector) classHierarchy(ctx context.Context, pid int32) (string, verdict.Result) {
	return remember(c.evidence, fmt.Sprintf("classes:%d", pid), func() (string, verdict.Result) {
		return c.runJcmd(ctx, pid, "VM.class_hierarchy")
	})
}

// LoadedModules returns the label of the first loaded class that matches
// one of the candidates, scanning the listing in order. False means none
// matched, Unsupported that the listing could not be read.
func (c *Collector) LoadedModules(ctx context.Context, pid int32, candidates []catalog.Class) (string, verdict.Result) {
	listing, r := c.classHierarchy(ctx, pid)
	if r != verdict.True {
		return "", verdict.Unsupported
	}

	for _, line := range strings.Split(listing, "\n") {
		for _, cand := range candidates {
			if strings.Contains(line, cand.ID) {
				c.evidence.updateProcess(pid, func(p *ProcessInfo) { p.Module = cand.Label })
				return cand.Label, verdict.True
			}
		}
	}

	return "", verdict.False
}

func (c *Collector) openFiles(ctx context.Context, pid int32) (string, verdict.Result) {
	return remember(c.evidence, fmt.Sprintf("fd:%d", pid), func() (string, verdict.Result) {
		res := c.runner.Run(ctx, fmt.Sprintf("ls -l /proc/%d/fd", pid))
		if res.Err != nil {
			return "", c.unsupported("open files", res.Err)
		}
		if !res.OK() {
			return "", c.unsupported("open files", errors.Wrapf(ErrProbeUnavailable, "exit %d", res.ExitCode))
		}
		return res.Stdout, verdict.True
	})
}

var jarPatterns sync.Map

// jarPattern compiles the jar name pattern of an artifact once.
func jarPattern(artifact string) *regexp.Regexp {
	if re, ok := jarPatterns.Load(artifact); ok {
		return re.(*regexp.Regexp)
	}

	re, _ := jarPatterns.LoadOrStore(artifact, regexp.MustCompile(regexp.QuoteMeta(artifact)+`-(\d[^/\s]*)\.jar`))
	return re.(*regexp.Regexp)
}

// JarVersion looks for an open <artifact>-<version>.jar of the process.
// False means no such jar is open, for example in a shaded jar.
func (c *Collector) JarVersion(ctx context.Context, pid int32, artifact string) (string, verdict.Result) {
	files, r := c.openFiles(ctx, pid)
	if r != verdict.True {
		return "", verdict.Unsupported
	}

	match := jarPattern(artifact).FindStringSubmatch(files)
	if len(match) < 2 {
		return "", verdict.False
	}

	c.evidence.updateProcess(pid, func(p *ProcessInfo) { p.Library = artifact + " " + match[1] })

	return match[1], verdict.True
}

const tomcatVersionCmd = `version.sh 2>/dev/null || "${CATALINA_HOME:-/usr/local/tomcat}/bin/version.sh"`

type Tomcat struct {
	Version string
	Home    string
}

// TomcatVersion runs version.sh. False means Tomcat is not installed.
func (c *Collector) TomcatVersion(ctx context.Context) (Tomcat, verdict.Result) {
	return remember(c.evidence, "tomcat", func() (Tomcat, verdict.Result) {
		res := c.runner.Run(ctx, tomcatVersionCmd)
		if res.Err != nil {
			return Tomcat{}, c.unsupported("tomcat version", res.Err)
		}
		if res.NotFound() {
			return Tomcat{}, verdict.False
		}

		tc := Tomcat{}
		for _, field := range strings.Split(res.Stdout, "\n") {
			field = strings.TrimSpace(field)
			switch {
			case strings.HasPrefix(field, "Server version: "):
				parts := strings.Split(field, "/")
				tc.Version = strings.TrimSpace(parts[len(parts)-1])
			case strings.HasPrefix(field, "Using CATALINA_HOME:"):
				tc.Home = strings.TrimSpace(strings.TrimPrefix(field, "Using CATALINA_HOME:"))
			}
		}

		if tc.Version == "" || strings.Contains(tc.Version, " ") {
			return Tomcat{}, c.unsupported("tomcat version", ErrMalformedEvidence)
		}
		c.evidence.setFact("tomcat", tc.Version)

		return tc, verdict.True
	})
}

var (
	xmlComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	ajpConnector = regexp.MustCompile(`(?i)<Connector[^>]*protocol="(AJP/1\.3|org\.apache\.coyote\.ajp\.[A-Za-z0-9]+)"`)
)

// AJPEnabled looks for an uncommented AJP connector in server.xml.
func (c *Collector) AJPEnabled(ctx context.Context, home string) verdict.Result {
	if home == "" {
		return c.unsupported("server.xml", errors.Wrap(ErrMalformedEvidence, "unknown CATALINA_HOME"))
	}

	_, r := remember(c.evidence, "ajp:"+home, func() (bool, verdict.Result) {
		res := c.runner.Run(ctx, "cat "+quote(path.Join(home, "conf", "server.xml")))
		if res.Err != nil {
			return false, c.unsupported("server.xml", res.Err)
		}
		if !res.OK() {
			return false, c.unsupported("server.xml", ErrProbeUnavailable)
		}

		config := xmlComment.ReplaceAllString(res.Stdout, "")
		return false, verdict.FromBool(ajpConnector.MatchString(config))
	})

	return r
}
