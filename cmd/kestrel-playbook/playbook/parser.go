package playbook

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parser turns YAML into validated playbooks.
type Parser struct {
	catalog *Catalog
}

func NewParser(catalog *Catalog) *Parser {
	return &Parser{catalog: catalog}
}

// stripFences removes Markdown code fences around the YAML. Generative
// planners tend to wrap their output.
func stripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	var lines []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ParseText parses and validates a playbook from YAML text.
func (p *Parser) ParseText(text string) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal([]byte(stripFences(text)), &pb); err != nil {
		return nil, fmt.Errorf("playbook parse failed: %w", err)
	}
	if pb.ID == "" {
		return nil, validationErrorf("playbook has no id")
	}
	pb.normalize()

	if err := p.catalog.Validate(&pb); err != nil {
		return nil, err
	}
	return &pb, nil
}

// ParseFile parses and validates a playbook file.
func (p *Parser) ParseFile(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("playbook read failed: %w", err)
	}
	return p.ParseText(string(data))
}
