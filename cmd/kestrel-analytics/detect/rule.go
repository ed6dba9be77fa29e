package detect

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ruleConditions are the fixed detection predicates, evaluated against the
// feature map. Each hit adds 20 to the rule score.
var ruleConditions = []string{
	"threat_score >= 80",
	"vt_positives > 10",
	"yara_hits_count >= 2",
	"is_system_parent and proc_freq_per_hour > 5",
	"is_suspicious_path",
}

// RuleDetector evaluates the compiled predicates. Deterministic and pure;
// a predicate that errors (for example a feature the event type never
// carries) contributes nothing.
type RuleDetector struct {
	programs []*vm.Program
}

func NewRuleDetector() (*RuleDetector, error) {
	d := &RuleDetector{}
	for _, cond := range ruleConditions {
		program, err := expr.Compile(cond,
			expr.Env(map[string]interface{}{}),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("rule compile failed (%s): %w", cond, err)
		}
		d.programs = append(d.programs, program)
	}
	return d, nil
}

func (d *RuleDetector) Detect(features map[string]interface{}, agentID, eventType string) (float64, []string) {
	score := 0.0
	var reasons []string

	for i, program := range d.programs {
		output, err := expr.Run(program, features)
		if err != nil {
			// Never crash on a predicate.
			continue
		}
		if matched, ok := output.(bool); ok && matched {
			score += 20
			reasons = append(reasons, fmt.Sprintf("rule_%d", i+1))
		}
	}

	if score > 100 {
		score = 100
	}
	return score, reasons
}
