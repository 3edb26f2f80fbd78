package registry

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/completeness-cli/internal/model"
)

// schemaFile is the on-disk expectation format schema owners maintain.
type schemaFile struct {
	EntityTypes []model.EntityType `yaml:"entity_types"`
}

// LoadYAML reads entity type expectations from a YAML document and returns a
// populated registry. Duplicate field specs and malformed conditions fail
// the load.
func LoadYAML(r io.Reader) (*Registry, error) {
	var f schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, eris.Wrap(err, "registry: decode schema yaml")
	}

	if len(f.EntityTypes) == 0 {
		return nil, eris.New("registry: schema file declares no entity types")
	}

	reg := New()
	for _, et := range f.EntityTypes {
		if et.Name == "" {
			return nil, eris.New("registry: entity type with empty name")
		}
		if err := reg.Register(et); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadYAMLFile reads expectations from a file path.
func LoadYAMLFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open schema file %s", path)
	}
	defer f.Close()
	return LoadYAML(f)
}
