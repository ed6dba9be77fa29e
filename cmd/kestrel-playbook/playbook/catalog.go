package playbook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry declares one action's contract.
type CatalogEntry struct {
	Params      []string `yaml:"params"`
	Description string   `yaml:"description"`
}

// Catalog is the action catalog loaded from actions.yaml. A playbook whose
// steps reference unknown actions or omit required params never executes.
type Catalog struct {
	Actions map[string]CatalogEntry `yaml:"actions"`
}

// LoadCatalog reads the actions.yaml catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog read failed: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("catalog parse failed: %w", err)
	}
	if catalog.Actions == nil {
		catalog.Actions = map[string]CatalogEntry{}
	}
	return &catalog, nil
}

// ValidationError marks a playbook that failed catalog validation.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Validate checks every forward and rollback step against the catalog.
func (c *Catalog) Validate(pb *Playbook) error {
	all := make([]Step, 0, len(pb.Steps)+len(pb.Rollback))
	all = append(all, pb.Steps...)
	all = append(all, pb.Rollback...)

	for _, step := range all {
		entry, ok := c.Actions[step.Action]
		if !ok {
			return validationErrorf("unknown action: %s", step.Action)
		}
		var missing []string
		for _, param := range entry.Params {
			if _, present := step.Params[param]; !present {
				missing = append(missing, param)
			}
		}
		if len(missing) > 0 {
			return validationErrorf("action %s missing params: %v", step.Action, missing)
		}
	}
	return nil
}
