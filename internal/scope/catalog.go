package scope

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/olehluchkiv/scopescan/internal/restriction"
	"github.com/olehluchkiv/scopescan/internal/universe"
)

// Embedded default catalog of Go API scopes.
//
//go:embed default_scopes.toml
var defaultCatalogData []byte

// Catalog is an ordered collection of named scope definitions together with
// the default restriction settings that accompany them.
type Catalog struct {
	scopes       []*Definition
	byName       map[string]*Definition
	Restrictions RestrictionConfig
}

// RestrictionConfig is the file form of a restriction policy.
type RestrictionConfig struct {
	PublicOnly bool     `toml:"public_only" yaml:"public_only"`
	Exclude    []string `toml:"exclude" yaml:"exclude"`
}

// Policy converts the configuration into a restriction policy.
func (rc RestrictionConfig) Policy() *restriction.Policy {
	opts := []restriction.Option{restriction.WithExclusions(rc.Exclude...)}
	if rc.PublicOnly {
		opts = append(opts, restriction.WithModifier(universe.Public))
	}
	return restriction.New(opts...)
}

type catalogFile struct {
	Restrictions RestrictionConfig `toml:"restrictions" yaml:"restrictions"`
	Scopes       []scopeEntry      `toml:"scope" yaml:"scopes"`
}

type scopeEntry struct {
	Name       string           `toml:"name" yaml:"name"`
	Containers []containerEntry `toml:"container" yaml:"containers"`
}

type containerEntry struct {
	Name    string   `toml:"name" yaml:"name"`
	Methods []string `toml:"methods" yaml:"methods"`
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*Definition)}
}

// Add registers d. Scope names must be unique.
func (c *Catalog) Add(d *Definition) error {
	if d.Name() == "" {
		return fmt.Errorf("scope without a name")
	}
	if _, dup := c.byName[d.Name()]; dup {
		return fmt.Errorf("duplicate scope %q", d.Name())
	}
	c.scopes = append(c.scopes, d)
	c.byName[d.Name()] = d
	return nil
}

// Get returns the scope called name.
func (c *Catalog) Get(name string) (*Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Names returns scope names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.scopes))
	for i, d := range c.scopes {
		names[i] = d.Name()
	}
	return names
}

// Definitions returns all scopes in catalog order.
func (c *Catalog) Definitions() []*Definition {
	return append([]*Definition(nil), c.scopes...)
}

// Select returns the named scopes in the order given. With no names it
// returns every scope.
func (c *Catalog) Select(names ...string) ([]*Definition, error) {
	if len(names) == 0 {
		return c.Definitions(), nil
	}
	out := make([]*Definition, 0, len(names))
	for _, n := range names {
		d, ok := c.byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scope %q (available: %s)", n, strings.Join(c.Names(), ", "))
		}
		out = append(out, d)
	}
	return out, nil
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	c, err := ParseCatalogTOML(defaultCatalogData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}
	return c, nil
}

// LoadCatalogFile reads a catalog from a .toml, .yaml or .yml file.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %q: %w", path, err)
	}
	var c *Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		c, err = ParseCatalogTOML(data)
	case ".yaml", ".yml":
		c, err = ParseCatalogYAML(data)
	default:
		return nil, fmt.Errorf("catalog %q: unsupported extension (want .toml, .yaml or .yml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	return c, nil
}

// ParseCatalogTOML decodes a TOML catalog.
func ParseCatalogTOML(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return f.build()
}

// ParseCatalogYAML decodes a YAML catalog.
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.build()
}

func (f catalogFile) build() (*Catalog, error) {
	c := NewCatalog()
	c.Restrictions = f.Restrictions
	for _, s := range f.Scopes {
		d := NewDefinition(s.Name)
		for _, ce := range s.Containers {
			if ce.Name == "" {
				return nil, fmt.Errorf("scope %q: container without a name", s.Name)
			}
			if len(ce.Methods) == 0 {
				return nil, fmt.Errorf("scope %q: container %s declares no methods", s.Name, ce.Name)
			}
			for _, m := range ce.Methods {
				d.AddMethod(ce.Name, m)
			}
		}
		if err := c.Add(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}
