package yara

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scanner matches text against a compiled rule set. Rules live in a YAML
// file: each rule has a name and a list of patterns (substring by default,
// regex when regex: true). The contract mirrors a YARA binding — scan text,
// get back the names of the rules that hit — so a cgo-backed engine can be
// swapped in without touching the enrichers.
type Scanner struct {
	rules []compiledRule
}

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Regex    bool     `yaml:"regex"`
}

type compiledRule struct {
	name       string
	substrings []string
	regexps    []*regexp.Regexp
}

// Load compiles the rule file once at startup.
func Load(path string) (*Scanner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("yara rules read failed: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("yara rules parse failed: %w", err)
	}

	s := &Scanner{}
	for _, spec := range file.Rules {
		if spec.Name == "" || len(spec.Patterns) == 0 {
			return nil, fmt.Errorf("yara rule needs a name and at least one pattern")
		}
		cr := compiledRule{name: spec.Name}
		for _, pat := range spec.Patterns {
			if spec.Regex {
				re, err := regexp.Compile("(?i)" + pat)
				if err != nil {
					return nil, fmt.Errorf("yara rule %s: bad pattern %q: %w", spec.Name, pat, err)
				}
				cr.regexps = append(cr.regexps, re)
			} else {
				cr.substrings = append(cr.substrings, strings.ToLower(pat))
			}
		}
		s.rules = append(s.rules, cr)
	}
	return s, nil
}

// Match returns the names of all rules with at least one pattern hit.
func (s *Scanner) Match(text string) []string {
	lower := strings.ToLower(text)

	var hits []string
	for _, rule := range s.rules {
		if rule.matches(lower, text) {
			hits = append(hits, rule.name)
		}
	}
	return hits
}

func (r compiledRule) matches(lower, original string) bool {
	for _, sub := range r.substrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, re := range r.regexps {
		if re.MatchString(original) {
			return true
		}
	}
	return false
}
