package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

// File is the on-disk pipeline format:
//
//	pipelines:
//	  install:
//	    - name: up
//	      label: "Running up ...."
//	      run: npm run erxes up
//	    - name: wait-plugin-api
//	      wait: 10s
type File struct {
	Pipelines map[entity.JobType][]Step `yaml:"pipelines" json:"pipelines"`
}

// ParseFile decodes pipeline YAML.
func ParseFile(data []byte) (map[entity.JobType][]Step, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file: %w", err)
	}
	if len(f.Pipelines) == 0 {
		return nil, fmt.Errorf("pipeline file declares no pipelines")
	}
	return f.Pipelines, nil
}

// LoadRegistry builds a registry from the defaults, replacing each pipeline
// declared in the file at path. An empty path yields the defaults.
func LoadRegistry(path string) (*Registry, error) {
	definitions := DefaultDefinitions()
	if path == "" {
		return NewRegistry(definitions)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	overrides, err := ParseFile(data)
	if err != nil {
		return nil, err
	}
	for jobType, steps := range overrides {
		definitions[jobType] = steps
	}

	return NewRegistry(definitions)
}
