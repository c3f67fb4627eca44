package internal

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/internal/cves"
	"github.com/kvesta/vigil/pkg/catalog"
	"github.com/kvesta/vigil/pkg/target"
	"github.com/kvesta/vigil/pkg/target/targettest"
	"github.com/kvesta/vigil/pkg/verdict"
)

func allModules(t *testing.T) []*cves.Module {
	cat, err := catalog.Load()
	require.NoError(t, err)

	modules, err := cves.Load(cat, nil)
	require.NoError(t, err)
	return modules
}

func TestValidateUnreachable(t *testing.T) {
	r := targettest.New(target.Container("gone"), nil)
	r.PingErr = errors.Wrap(target.ErrUnreachable, "no such container gone")

	results := Validate(context.Background(), allModules(t), r, 2)
	require.Len(t, results, len(cves.IDs()))

	for _, res := range results {
		assert.Equal(t, verdict.NotDetermined, res.Outcome.Verdict, res.Entry.ID)
		assert.Equal(t, reachability, res.Outcome.Undetermined)
	}
	assert.Equal(t, 0, r.Total())
}

func TestValidateNonLinux(t *testing.T) {
	r := targettest.New(target.Container("bsd"), map[string]target.Result{"uname -s": targettest.Out("FreeBSD\n")})

	results := Validate(context.Background(), allModules(t), r, 2)
	for _, res := range results {
		assert.Equal(t, verdict.NotVulnerable, res.Outcome.Verdict, res.Entry.ID)
	}

	// kernel modules skip containers, the others share one uname call
	assert.Equal(t, 1, r.Calls("uname -s"))
	assert.Equal(t, "Other", results[len(results)-1].Facts["os"])
}

func TestSelectTarget(t *testing.T) {
	tests := []struct {
		opts    config.Options
		want    target.Target
		wantErr bool
	}{
		{config.Options{}, target.LocalHost(), false},
		{config.Options{Container: "web"}, target.Container("web"), false},
		{config.Options{Pod: "prod/api", PodContainer: "app"}, target.KubePod("prod/api", "app"), false},
		{config.Options{Pod: "api", Container: "web"}, target.Target{}, true},
	}

	for _, tt := range tests {
		got, err := selectTarget(tt.opts)
		if (err != nil) != tt.wantErr {
			t.Errorf("selectTarget() error = %v, wantErr %v", err, tt.wantErr)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("selectTarget() got = %v, want %v", got, tt.want)
		}
	}
}

func TestDrawGraph(t *testing.T) {
	dir := t.TempDir()

	for _, m := range allModules(t) {
		path, err := DrawGraph(m, dir)
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "Is it Linux?")
	}
}

func TestDoValidateUnknownCVE(t *testing.T) {
	err := DoValidate(context.Background(), []string{"CVE-0000-0000"})
	assert.True(t, errors.Is(err, catalog.ErrConfiguration))
}
