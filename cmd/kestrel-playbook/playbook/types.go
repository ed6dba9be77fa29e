package playbook

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OnError policies for a step.
const (
	OnErrorStop     = "stop"
	OnErrorContinue = "continue"
)

// Step is one playbook action invocation.
type Step struct {
	Name    string                 `yaml:"name" json:"name"`
	Action  string                 `yaml:"action" json:"action"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
	OnError string                 `yaml:"on_error" json:"on_error"`
}

// Version coerces whatever scalar the YAML carries (1.0, "1.0") to a
// string.
type Version string

func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("version must be a scalar")
	}
	*v = Version(node.Value)
	return nil
}

// Playbook is a validated remediation document.
type Playbook struct {
	ID            string                   `yaml:"id" json:"id"`
	Version       Version                  `yaml:"version" json:"version"`
	Metadata      map[string]interface{}   `yaml:"metadata" json:"metadata"`
	Preconditions []map[string]interface{} `yaml:"preconditions" json:"preconditions"`
	Steps         []Step                   `yaml:"steps" json:"steps"`
	Rollback      []Step                   `yaml:"rollback" json:"rollback"`
}

// IDFor builds the canonical playbook id for an alert's type and severity.
func IDFor(eventType, severity string) string {
	return fmt.Sprintf("pb-%s-%s", eventType, severity)
}

// titleFromAction turns "kill_process" into "Kill Process".
func titleFromAction(action string) string {
	words := strings.Split(strings.ReplaceAll(action, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// UnmarshalYAML accepts the three step shapes and normalises them:
//   - {name, action, params?, on_error?}   canonical
//   - {<action>: {<params>}}               single-key mapping
//   - "<action>"                           plain string
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var action string
		if err := node.Decode(&action); err != nil {
			return err
		}
		*s = Step{Name: titleFromAction(action), Action: action, Params: map[string]interface{}{}}
		return nil
	}

	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("step must be a string or a mapping")
	}

	var raw map[string]interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if _, hasAction := raw["action"]; hasAction {
		type canonical Step
		var c canonical
		if err := node.Decode(&c); err != nil {
			return err
		}
		if c.Params == nil {
			c.Params = map[string]interface{}{}
		}
		if c.Name == "" {
			c.Name = titleFromAction(c.Action)
		}
		*s = Step(c)
		return nil
	}

	// Single-key mapping: the key is the action, the value its params.
	if len(raw) >= 1 {
		for key, value := range raw {
			params, _ := value.(map[string]interface{})
			if params == nil {
				params = map[string]interface{}{}
			}
			*s = Step{Name: titleFromAction(key), Action: key, Params: params}
			return nil
		}
	}

	return fmt.Errorf("step mapping is empty")
}

// normalize fills defaults after decode.
func (p *Playbook) normalize() {
	if p.Version == "" {
		p.Version = "1.0"
	}
	if p.Metadata == nil {
		p.Metadata = map[string]interface{}{}
	}
	if p.Preconditions == nil {
		p.Preconditions = []map[string]interface{}{}
	}
	for i := range p.Steps {
		if p.Steps[i].Params == nil {
			p.Steps[i].Params = map[string]interface{}{}
		}
		if p.Steps[i].OnError == "" {
			p.Steps[i].OnError = OnErrorStop
		}
	}
	for i := range p.Rollback {
		if p.Rollback[i].Params == nil {
			p.Rollback[i].Params = map[string]interface{}{}
		}
		if p.Rollback[i].OnError == "" {
			p.Rollback[i].OnError = OnErrorStop
		}
	}
}

// Marshal serialises the playbook to canonical YAML.
func (p *Playbook) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
