package universe

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is the YAML form of a Memory universe, typically exported from a
// running system that cannot be analysed in-process.
type Snapshot struct {
	Types []SnapshotType `yaml:"types"`
}

// SnapshotType is one type entry of a Snapshot.
type SnapshotType struct {
	Name       string           `yaml:"name"`
	Kind       string           `yaml:"kind"`
	Visibility string           `yaml:"visibility"`
	Abstract   bool             `yaml:"abstract"`
	Synthetic  bool             `yaml:"synthetic"`
	Anonymous  bool             `yaml:"anonymous"`
	Supertypes []string         `yaml:"supertypes"`
	Methods    []SnapshotMethod `yaml:"methods"`
}

// SnapshotMethod is one method entry. Interface methods are abstract unless
// Default is set.
type SnapshotMethod struct {
	Signature string `yaml:"signature"`
	Abstract  bool   `yaml:"abstract"`
	Default   bool   `yaml:"default"`
}

// LoadSnapshot reads a YAML snapshot file and builds a Memory universe.
func LoadSnapshot(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %q: %w", path, err)
	}
	m, err := ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", path, err)
	}
	return m, nil
}

// ParseSnapshot decodes YAML snapshot data.
func ParseSnapshot(data []byte) (*Memory, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	specs, err := snap.Specs()
	if err != nil {
		return nil, err
	}
	return NewMemory(specs...)
}

// Specs converts the snapshot into type specs.
func (s Snapshot) Specs() ([]TypeSpec, error) {
	specs := make([]TypeSpec, 0, len(s.Types))
	for _, st := range s.Types {
		var kind Kind
		switch strings.ToLower(st.Kind) {
		case "", "class":
			kind = Class
		case "interface":
			kind = Interface
		default:
			return nil, fmt.Errorf("type %s: unknown kind %q", st.Name, st.Kind)
		}
		vis, err := ParseVisibility(st.Visibility)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", st.Name, err)
		}
		spec := TypeSpec{
			Name:       st.Name,
			Kind:       kind,
			Abstract:   st.Abstract,
			Synthetic:  st.Synthetic,
			Anonymous:  st.Anonymous,
			Visibility: vis,
			Supertypes: st.Supertypes,
		}
		for _, sm := range st.Methods {
			spec.Methods = append(spec.Methods, MethodSpec{
				Pattern:  sm.Signature,
				Abstract: sm.Abstract || (kind == Interface && !sm.Default),
			})
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
