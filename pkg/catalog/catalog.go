package catalog

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kvesta/vigil/pkg/version"
)

// ErrConfiguration covers unknown CVE ids and bad catalog data.
// It is the only error class allowed to abort a run.
var ErrConfiguration = errors.New("configuration error")

//go:embed data/*.yaml
var data embed.FS

type Entry struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	CVSS        float64  `yaml:"cvss" json:"cvss"`
	Summary     string   `yaml:"description" json:"description"`
	Links       []string `yaml:"links" json:"links,omitempty"`
	Remediation string   `yaml:"remediation" json:"remediation,omitempty"`
	Mitigation  string   `yaml:"mitigation" json:"mitigation,omitempty"`

	Kernel  *Kernel  `yaml:"kernel" json:"-"`
	Runtime *Runtime `yaml:"runtime" json:"-"`
	Classes []Class  `yaml:"classes" json:"-"`
	Library *Product `yaml:"library" json:"-"`
	Product *Product `yaml:"product" json:"-"`
}

// Kernel holds the fixed kernel package per distribution. FixedAWS is
// used instead of Fixed when the running kernel is an AWS flavour.
type Kernel struct {
	Min      string            `yaml:"min"`
	Scheme   version.Scheme    `yaml:"scheme"`
	Fixed    map[string]string `yaml:"fixed"`
	FixedAWS map[string]string `yaml:"fixed_aws"`
}

func (k *Kernel) Table(aws bool) version.PatchTable {
	if aws && len(k.FixedAWS) > 0 {
		return version.PatchTable{Scheme: k.Scheme, Entries: k.FixedAWS}
	}
	return version.PatchTable{Scheme: k.Scheme, Entries: k.Fixed}
}

// Runtime selects the processes a process scoped CVE looks at.
type Runtime struct {
	Process  string `yaml:"process"`
	MinMajor int    `yaml:"min_major"`
}

// Class is a loaded class name and the dependency it identifies.
type Class struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Product is a piece of software with one fixed release per branch.
type Product struct {
	Name    string         `yaml:"name"`
	Scheme  version.Scheme `yaml:"scheme"`
	Patched []string       `yaml:"patched"`
}

// Describe renders the long description shown by --describe.
func (e *Entry) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n\n", e.ID, e.Name)
	fmt.Fprintf(&b, "CVSS Score: %.1f\n", e.CVSS)
	fmt.Fprintf(&b, "NVD Link: https://nvd.nist.gov/vuln/detail/%s\n\n", e.ID)
	b.WriteString(strings.TrimSpace(e.Summary))
	b.WriteString("\n")

	if len(e.Links) > 0 {
		b.WriteString("\nRelated Links:\n")
		for _, l := range e.Links {
			b.WriteString(l + "\n")
		}
	}

	return b.String()
}

type Catalog struct {
	entries map[string]*Entry
}

// Load parses every embedded entry.
func Load() (*Catalog, error) {
	files, err := data.ReadDir("data")
	if err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}

	c := &Catalog{entries: map[string]*Entry{}}
	for _, f := range files {
		if f.IsDir() || path.Ext(f.Name()) != ".yaml" {
			continue
		}

		raw, err := data.ReadFile(path.Join("data", f.Name()))
		if err != nil {
			return nil, errors.Wrapf(ErrConfiguration, "read %s: %v", f.Name(), err)
		}

		e, err := Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", f.Name())
		}

		if _, ok := c.entries[e.ID]; ok {
			return nil, errors.Wrapf(ErrConfiguration, "duplicate entry %s", e.ID)
		}
		c.entries[e.ID] = e
	}

	return c, nil
}

// Parse decodes and validates a single entry.
func Parse(raw []byte) (*Entry, error) {
	e := &Entry{}
	if err := yaml.Unmarshal(raw, e); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "decode: %v", err)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}

	return e, nil
}

func (c *Catalog) Get(id string) (*Entry, error) {
	e, ok := c.entries[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration, "unknown CVE %q", id)
	}
	return e, nil
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Entry) validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrConfiguration, "%s: %s", e.ID, fmt.Sprintf(format, args...))
	}

	if !strings.HasPrefix(e.ID, "CVE-") {
		return errors.Wrapf(ErrConfiguration, "bad id %q", e.ID)
	}
	if e.Name == "" {
		return invalid("missing name")
	}

	if k := e.Kernel; k != nil {
		sc, err := version.ParseScheme(string(k.Scheme))
		if err != nil {
			return invalid("%v", err)
		}
		k.Scheme = sc

		if len(k.Fixed) == 0 {
			return invalid("kernel without fixed versions")
		}
		for _, table := range []map[string]string{k.Fixed, k.FixedAWS} {
			for distro, v := range table {
				if _, err := sc.Compare(v, v); err != nil {
					return invalid("fixed kernel for %s: %v", distro, err)
				}
			}
		}
		if k.Min != "" {
			if _, err := sc.Compare(k.Min, k.Min); err != nil {
				return invalid("min kernel: %v", err)
			}
		}
	}

	if r := e.Runtime; r != nil && r.Process == "" {
		return invalid("runtime without process name")
	}

	for _, cl := range e.Classes {
		if cl.ID == "" || cl.Label == "" {
			return invalid("class entries need id and label")
		}
	}

	for _, p := range []*Product{e.Library, e.Product} {
		if p == nil {
			continue
		}

		sc, err := version.ParseScheme(string(p.Scheme))
		if err != nil {
			return invalid("%v", err)
		}
		p.Scheme = sc

		if p.Name == "" || len(p.Patched) == 0 {
			return invalid("product needs a name and patched releases")
		}
		for _, v := range p.Patched {
			if _, err := sc.Compare(v, v); err != nil {
				return invalid("patched %s: %v", p.Name, err)
			}
		}
	}

	return nil
}
