package engine

import (
	"fmt"
	"strings"
)

// Precondition predicates guard execution. Supported forms:
//
//	{equals:   {path: "alert.severity", value: "critical"}}
//	{contains: {path: "alert.details.reasons.rule", value: "rule_1"}}
//	{severity: "critical"}   free key/value = equality against alert fields
//
// Dotted paths traverse nested maps.
func evaluatePreconditions(preconditions []map[string]interface{}, context map[string]interface{}) bool {
	for _, cond := range preconditions {
		if !evaluateOne(cond, context) {
			return false
		}
	}
	return true
}

func evaluateOne(cond, context map[string]interface{}) bool {
	if spec, ok := cond["equals"].(map[string]interface{}); ok {
		path, _ := spec["path"].(string)
		return valuesEqual(lookupPath(context, path), spec["value"])
	}

	if spec, ok := cond["contains"].(map[string]interface{}); ok {
		path, _ := spec["path"].(string)
		return containsValue(lookupPath(context, path), spec["value"])
	}

	// Free key/value pairs: equality against alert root fields.
	alert, _ := context["alert"].(map[string]interface{})
	for key, want := range cond {
		if alert == nil {
			return false
		}
		if !valuesEqual(alert[key], want) {
			return false
		}
	}
	return true
}

// lookupPath walks a dotted path through nested maps.
func lookupPath(obj map[string]interface{}, dotted string) interface{} {
	var cur interface{} = obj
	for _, part := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// valuesEqual compares loosely: JSON and YAML decode numbers differently,
// so numerics compare by value.
func valuesEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b) && a != nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// containsValue supports strings and lists.
func containsValue(container, value interface{}) bool {
	switch c := container.(type) {
	case string:
		s, ok := value.(string)
		return ok && strings.Contains(c, s)
	case []interface{}:
		for _, item := range c {
			if valuesEqual(item, value) {
				return true
			}
		}
	case []string:
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, item := range c {
			if item == s {
				return true
			}
		}
	}
	return false
}
