// Package loader reads TaskSpec definitions and recorded frame traces off
// disk.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smilemakc/avtrace/internal/domain"
)

// LoadTask reads a TaskSpec from a JSON or YAML file, dispatching on the
// file extension.
func LoadTask(path string) (*domain.TaskSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("reading task file %s", path), err)
	}

	var spec domain.TaskSpec
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &spec); err != nil {
			return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("parsing yaml task file %s", path), err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("parsing json task file %s", path), err)
		}
	default:
		return nil, domain.NewDomainError(domain.ErrCodeLoadFailed, fmt.Sprintf("unsupported task file extension %q", ext), nil)
	}

	for _, n := range spec.Nodes {
		if n.Score == 0 {
			n.Score = domain.DefaultNodeScore
		}
	}

	return &spec, nil
}
