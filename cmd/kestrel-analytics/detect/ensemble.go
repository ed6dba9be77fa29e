package detect

import (
	"math"

	"kestrel-go/pkg/models"
)

// Weights for the ensemble members.
type Weights struct {
	Rule       float64
	Anomaly    float64
	Behavioral float64
}

// DefaultWeights favor the deterministic rules slightly.
var DefaultWeights = Weights{Rule: 0.4, Anomaly: 0.3, Behavioral: 0.3}

// Ensemble combines the three detectors by weighted sum.
type Ensemble struct {
	weights    Weights
	rule       Detector
	anomaly    Detector
	behavioral Detector
}

func NewEnsemble(weights Weights, rule, anomaly, behavioral Detector) *Ensemble {
	return &Ensemble{
		weights:    weights,
		rule:       rule,
		anomaly:    anomaly,
		behavioral: behavioral,
	}
}

// Detect returns the combined score (rounded to 2 decimals) and the
// per-detector reasons.
func (e *Ensemble) Detect(features map[string]interface{}, agentID, eventType string) (float64, models.AlertReasons) {
	rScore, rReasons := e.rule.Detect(features, agentID, eventType)
	aScore, aReasons := e.anomaly.Detect(features, agentID, eventType)
	bScore, bReasons := e.behavioral.Detect(features, agentID, eventType)

	total := rScore*e.weights.Rule + aScore*e.weights.Anomaly + bScore*e.weights.Behavioral
	total = math.Round(total*100) / 100

	return total, models.AlertReasons{
		Rule:       emptyIfNil(rReasons),
		Anomaly:    emptyIfNil(aReasons),
		Behavioral: emptyIfNil(bReasons),
	}
}

func emptyIfNil(reasons []string) []string {
	if reasons == nil {
		return []string{}
	}
	return reasons
}
