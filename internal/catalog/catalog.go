// Package catalog loads the list of known applications appdock can manage.
// The catalog is an external, read-only input: an ordered YAML list of
// application definitions maintained outside this tool.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes one application the catalog knows about. Repo is the
// release-source URL (https://github.com/<owner>/<repo>); Version is a static
// fallback used only when the release API cannot be reached and no cached
// version exists.
type Definition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Repo        string `yaml:"repo"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

type catalogFile struct {
	Apps []Definition `yaml:"apps"`
}

// Load reads the catalog file and returns its definitions in file order.
func Load(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Apps))
	for _, def := range file.Apps {
		if def.ID == "" {
			return nil, fmt.Errorf("catalog %s: entry %q has no id", path, def.Name)
		}
		if _, ok := seen[def.ID]; ok {
			return nil, fmt.Errorf("catalog %s: duplicate id %q", path, def.ID)
		}
		seen[def.ID] = struct{}{}
	}

	return file.Apps, nil
}

// Find returns the definition with the given identity, or nil.
func Find(defs []Definition, id string) *Definition {
	for i := range defs {
		if defs[i].ID == id {
			return &defs[i]
		}
	}
	return nil
}
