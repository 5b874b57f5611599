package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// sourcesFile is the on-disk shape of a standalone source catalog.
type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSourcesFile reads source declarations from a standalone YAML file,
// overriding the sources block of the main config. Declaration order in the
// file is preserved.
func LoadSourcesFile(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read sources file %s", path)
	}

	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse sources file %s", path)
	}
	if len(f.Sources) == 0 {
		return nil, eris.Errorf("config: sources file %s declares no sources", path)
	}

	for i, src := range f.Sources {
		if src.Name == "" {
			return nil, eris.Errorf("config: sources file %s: source %d has no name", path, i)
		}
	}
	return f.Sources, nil
}
