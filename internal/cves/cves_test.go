package cves

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/probe"
	"github.com/kvesta/vigil/pkg/target"
	"github.com/kvesta/vigil/pkg/target/targettest"
	"github.com/kvesta/vigil/pkg/verdict"
)

func module(t *testing.T, id string) *Module {
	cat, err := catalog.Load()
	require.NoError(t, err)

	modules, err := Load(cat, []string{id})
	require.NoError(t, err)
	require.Len(t, modules, 1)

	return modules[0]
}

func TestLoad(t *testing.T) {
	cat, err := catalog.Load()
	require.NoError(t, err)

	modules, err := Load(cat, nil)
	require.NoError(t, err)
	require.Len(t, modules, len(IDs()))
	assert.Equal(t, cat.IDs(), IDs())

	for _, m := range modules {
		assert.NoError(t, engine.Validate(m.Tree), m.Entry.ID)
	}

	modules, err = Load(cat, []string{"cve-2022-0847", "CVE-2022-0847"})
	require.NoError(t, err)
	assert.Len(t, modules, 1)

	_, err = Load(cat, []string{"CVE-1999-0001"})
	assert.True(t, errors.Is(err, catalog.ErrConfiguration))
}

func TestBrokenEntry(t *testing.T) {
	e := &catalog.Entry{ID: "CVE-2022-0847", Name: "Dirty Pipe"}

	_, err := kernelModule(e)
	assert.Error(t, err)

	_, err = spring4Shell(e)
	assert.Error(t, err)
}

func kernelHost(release, unameR, unameV string) *targettest.Runner {
	return targettest.New(target.LocalHost(), map[string]target.Result{
		"uname -s":            targettest.Out("Linux\n"),
		"cat /etc/os-release": targettest.Out(release),
		"uname -r":            targettest.Out(unameR),
		"uname -v":            targettest.Out(unameV),
	})
}

const (
	bullseye = "ID=debian\nVERSION_ID=\"11\"\n"
	focal    = "ID=ubuntu\nVERSION_ID=\"20.04\"\n"
	impish   = "ID=ubuntu\nVERSION_ID=\"21.10\"\n"
)

func TestDirtyPipe(t *testing.T) {
	m := module(t, "CVE-2022-0847")

	tests := []struct {
		name   string
		runner *targettest.Runner
		want   verdict.Verdict
	}{
		{"debian 11 unpatched", kernelHost(bullseye, "5.10.0-13-amd64", "#1 SMP Debian 5.10.100-1 (2022-02-26)"), verdict.Vulnerable},
		{"debian 11 patched", kernelHost(bullseye, "5.10.0-19-amd64", "#1 SMP Debian 5.10.150-1 (2022-11-01)"), verdict.NotVulnerable},
		{"ubuntu 20.04 unknown", kernelHost(focal, "5.4.0-1-generic", "#1 SMP"), verdict.NotDetermined},
		{"ubuntu 21.10 patched without signature", kernelHost(impish, "5.13.0-35-generic", "#40-Ubuntu SMP Mon Mar 7 08:03:38 UTC 2022"), verdict.NotVulnerable},
		{"ubuntu 21.10 unpatched without signature", kernelHost(impish, "5.13.0-30-generic", "#33-Ubuntu SMP Fri Feb 4 17:03:31 UTC 2022"), verdict.Vulnerable},
		{"ubuntu 21.10 without package version", kernelHost(impish, "5.13.0-35-generic", "#1 SMP"), verdict.NotDetermined},
		{"debian 11 without package version", kernelHost(bullseye, "5.10.0-19-amd64", "#1 SMP"), verdict.NotDetermined},
		{"below first affected", kernelHost(bullseye, "4.19.0-1-amd64", "#1 SMP Debian 4.19.1-1 (2019-01-01)"), verdict.NotVulnerable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.Evaluate(context.Background(), probe.NewCollector(tt.runner))
			assert.Equal(t, tt.want, out.Verdict, out.Rationale)
		})
	}
}

func TestDirtyPipeAWS(t *testing.T) {
	m := module(t, "CVE-2022-0847")

	r := targettest.New(target.LocalHost(), map[string]target.Result{
		"uname -s":                    targettest.Out("Linux\n"),
		"cat /etc/os-release":         targettest.Out("ID=ubuntu\nVERSION_ID=\"21.10\"\n"),
		"cat /proc/version_signature": targettest.Out("Ubuntu 5.13.0-1017.19-aws 5.13.19\n"),
	})

	out := m.Evaluate(context.Background(), probe.NewCollector(r))
	assert.Equal(t, verdict.NotVulnerable, out.Verdict, out.Rationale)
}

func TestDirtyCOW(t *testing.T) {
	m := module(t, "CVE-2016-5195")

	centos := "NAME=\"CentOS Linux\"\nID=\"centos\"\nVERSION_ID=\"7\"\n"
	out := m.Evaluate(context.Background(), probe.NewCollector(kernelHost(centos, "3.10.0-327.el7.x86_64", "#1 SMP Thu Nov 19 22:10:57 UTC 2015")))
	assert.Equal(t, verdict.Vulnerable, out.Verdict, out.Rationale)

	out = m.Evaluate(context.Background(), probe.NewCollector(kernelHost(centos, "3.10.0-1160.el7.x86_64", "#1 SMP")))
	assert.Equal(t, verdict.NotVulnerable, out.Verdict, out.Rationale)
}

func TestNonLinux(t *testing.T) {
	for _, id := range IDs() {
		r := targettest.New(target.LocalHost(), map[string]target.Result{"uname -s": targettest.Out("Darwin\n")})

		out := module(t, id).Evaluate(context.Background(), probe.NewCollector(r))
		assert.Equal(t, verdict.NotVulnerable, out.Verdict, id)
		assert.Equal(t, 1, r.Total(), id)
	}
}

func TestKernelInContainer(t *testing.T) {
	r := targettest.New(target.Container("web"), nil)

	out := module(t, "CVE-2022-0847").Evaluate(context.Background(), probe.NewCollector(r))
	assert.Equal(t, verdict.NotVulnerable, out.Verdict)
	assert.Equal(t, 0, r.Total())
}

const jcmd = "'/opt/java/bin/jcmd'"

func javaContainer(extra map[string]target.Result) *targettest.Runner {
	responses := map[string]target.Result{
		"uname -s":        targettest.Out("Linux\n"),
		"pgrep -x 'java'": targettest.Out("7\n9\n"),
	}
	for _, pid := range []string{"7", "9"} {
		responses["readlink /proc/"+pid+"/exe"] = targettest.Out("/opt/java/bin/java\n")
	}
	responses["test -x "+jcmd] = targettest.Out("")

	for k, v := range extra {
		responses[k] = v
	}
	return targettest.New(target.Container("app"), responses)
}

const (
	springMVC = "java.lang.Object/null\n|--org.springframework.web.servlet.mvc.method.annotation.ServletModelAttributeMethodProcessor/0x1\n"
	jndi      = "java.lang.Object/null\n|--org.apache.logging.log4j.core.lookup.JndiLookup/0x1\n"
)

func TestSpring4Shell(t *testing.T) {
	m := module(t, "CVE-2022-22965")

	tests := []struct {
		name      string
		responses map[string]target.Result
		want      verdict.Verdict
		each      []verdict.Verdict
	}{
		{
			name: "one vulnerable process",
			responses: map[string]target.Result{
				jcmd + " 7 VM.version":         targettest.Out("7:\nOpenJDK 64-Bit Server VM version 11.0.16+8\nJDK 11.0.16\n"),
				jcmd + " 7 VM.class_hierarchy": targettest.Out(springMVC),
				jcmd + " 9 VM.version":         targettest.Out("9:\nOpenJDK 64-Bit Server VM version 25.345-b01\nJDK 1.8.0_345\n"),
			},
			want: verdict.Vulnerable,
			each: []verdict.Verdict{verdict.Vulnerable, verdict.NotVulnerable},
		},
		{
			name: "one undetermined process",
			responses: map[string]target.Result{
				jcmd + " 7 VM.version":         targettest.Out("7:\nJDK 17.0.4\n"),
				jcmd + " 7 VM.class_hierarchy": targettest.Out("java.lang.Object/null\n"),
				jcmd + " 9 VM.version":         targettest.Exit(1, "com.sun.tools.attach.AttachNotSupportedException"),
			},
			want: verdict.NotDetermined,
			each: []verdict.Verdict{verdict.NotVulnerable, verdict.NotDetermined},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.Evaluate(context.Background(), probe.NewCollector(javaContainer(tt.responses)), engine.WithWorkers(2))
			require.Equal(t, tt.want, out.Verdict, out.Rationale)

			var each []verdict.Verdict
			for _, p := range out.Processes {
				each = append(each, p.Verdict)
			}
			assert.Equal(t, tt.each, each)
		})
	}
}

func TestNoJavaProcess(t *testing.T) {
	r := javaContainer(map[string]target.Result{"pgrep -x 'java'": targettest.Exit(1, "")})

	for _, id := range []string{"CVE-2022-22965", "CVE-2021-44228"} {
		out := module(t, id).Evaluate(context.Background(), probe.NewCollector(r))
		assert.Equal(t, verdict.NotVulnerable, out.Verdict, id)
		assert.Empty(t, out.Processes, id)
	}
}

func TestLog4Shell(t *testing.T) {
	m := module(t, "CVE-2021-44228")

	r := javaContainer(map[string]target.Result{
		jcmd + " 7 VM.class_hierarchy": targettest.Out(jndi),
		"ls -l /proc/7/fd":             targettest.Out("lr-x------ 1 app app 64 Dec 10 10:00 12 -> /app/lib/log4j-core-2.14.1.jar\n"),
		jcmd + " 9 VM.class_hierarchy": targettest.Out(jndi),
		"ls -l /proc/9/fd":             targettest.Out("lr-x------ 1 app app 64 Dec 10 10:00 12 -> /app/lib/log4j-core-2.17.1.jar\n"),
	})

	out := m.Evaluate(context.Background(), probe.NewCollector(r))
	require.Equal(t, verdict.Vulnerable, out.Verdict, out.Rationale)
	require.Len(t, out.Processes, 2)
	assert.Equal(t, verdict.Vulnerable, out.Processes[0].Verdict)
	assert.Equal(t, "log4j-core 2.14.1", out.Processes[0].Info.Library)
	assert.Equal(t, verdict.NotVulnerable, out.Processes[1].Verdict)
}

const (
	tomcatVersion = `version.sh 2>/dev/null || "${CATALINA_HOME:-/usr/local/tomcat}/bin/version.sh"`
	catServerXML  = "cat '/usr/local/tomcat/conf/server.xml'"
)

func TestGhostcat(t *testing.T) {
	m := module(t, "CVE-2020-1938")

	versionSh := "Using CATALINA_HOME:   /usr/local/tomcat\nServer version: Apache Tomcat/%s\n"
	enabled := `<Server><Connector port="8009" protocol="AJP/1.3" redirectPort="8443" /></Server>`
	disabled := `<Server><!-- <Connector port="8009" protocol="AJP/1.3" /> --></Server>`

	tests := []struct {
		name    string
		version string
		config  string
		want    verdict.Verdict
	}{
		{"unpatched with ajp", "9.0.30", enabled, verdict.Vulnerable},
		{"unpatched without ajp", "9.0.30", disabled, verdict.NotVulnerable},
		{"patched", "9.0.31", enabled, verdict.NotVulnerable},
		{"old branch", "6.0.53", enabled, verdict.Vulnerable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := targettest.New(target.Container("tomcat"), map[string]target.Result{
				"uname -s":    targettest.Out("Linux\n"),
				tomcatVersion: targettest.Out(fmt.Sprintf(versionSh, tt.version)),
				catServerXML:  targettest.Out(tt.config),
			})

			out := m.Evaluate(context.Background(), probe.NewCollector(r))
			assert.Equal(t, tt.want, out.Verdict, out.Rationale)
			assert.Equal(t, 1, r.Calls(tomcatVersion))
		})
	}

	r := targettest.New(target.Container("nginx"), map[string]target.Result{"uname -s": targettest.Out("Linux\n")})
	assert.Equal(t, verdict.NotVulnerable, m.Evaluate(context.Background(), probe.NewCollector(r)).Verdict)
}
