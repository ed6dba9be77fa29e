package detect

import (
	"math"
	"math/rand"
	"sort"
)

// Online streaming anomaly model: a running standard scaler feeding
// half-space trees, with a rolling-quantile filter (q=0.95) that keeps
// outliers from polluting the learned mass profile. One instance per
// (agent, event_type); replica-local by design.

const (
	hstTreeCount  = 10
	hstHeight     = 8
	hstWindowSize = 250
	hstRange      = 4.0 // z-score space bounds per dimension

	filterQuantile   = 0.95
	filterWindow     = 1000
	filterMinimumObs = 30
)

type streamModel struct {
	scaler *standardScaler
	trees  *halfSpaceTrees
	filter *quantileFilter
}

func newStreamModel(seed int64) *streamModel {
	return &streamModel{
		scaler: newStandardScaler(),
		trees:  newHalfSpaceTrees(seed),
		filter: newQuantileFilter(filterQuantile),
	}
}

// ScoreOne scores a sample without learning it. Result in [0,1]; higher is
// more anomalous.
func (m *streamModel) ScoreOne(x map[string]float64) float64 {
	return m.trees.Score(m.scaler.Transform(x))
}

// LearnOne folds a sample into the model. Samples the filter flags as
// outliers update the filter but not the trees.
func (m *streamModel) LearnOne(x map[string]float64) {
	m.scaler.Learn(x)
	z := m.scaler.Transform(x)
	score := m.trees.Score(z)
	if !m.filter.IsOutlier(score) {
		m.trees.Learn(z)
	}
	m.filter.Observe(score)
}

// --- standard scaler ---

type standardScaler struct {
	count map[string]float64
	mean  map[string]float64
	m2    map[string]float64
}

func newStandardScaler() *standardScaler {
	return &standardScaler{
		count: make(map[string]float64),
		mean:  make(map[string]float64),
		m2:    make(map[string]float64),
	}
}

// Learn updates the running mean/variance (Welford).
func (s *standardScaler) Learn(x map[string]float64) {
	for k, v := range x {
		s.count[k]++
		delta := v - s.mean[k]
		s.mean[k] += delta / s.count[k]
		s.m2[k] += delta * (v - s.mean[k])
	}
}

// Transform z-scores each dimension; a dimension with fewer than two
// observations or zero variance maps to 0.
func (s *standardScaler) Transform(x map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(x))
	for k, v := range x {
		n := s.count[k]
		if n < 2 {
			out[k] = 0
			continue
		}
		std := math.Sqrt(s.m2[k] / n)
		if std == 0 {
			out[k] = 0
			continue
		}
		out[k] = (v - s.mean[k]) / std
	}
	return out
}

// --- half-space trees ---

type hstNode struct {
	feature string
	split   float64
	// Mass counts: reference window drives scoring, latest window is the
	// one currently filling. Swapped every hstWindowSize learns.
	refMass    float64
	latestMass float64
	left       *hstNode
	right      *hstNode
}

type halfSpaceTrees struct {
	rng      *rand.Rand
	roots    []*hstNode
	features []string
	seen     int
	maxScore float64
}

func newHalfSpaceTrees(seed int64) *halfSpaceTrees {
	return &halfSpaceTrees{rng: rand.New(rand.NewSource(seed))}
}

// build lazily constructs the trees once the dimension set is known.
func (h *halfSpaceTrees) build(x map[string]float64) {
	h.features = make([]string, 0, len(x))
	for k := range x {
		h.features = append(h.features, k)
	}
	sort.Strings(h.features)

	for i := 0; i < hstTreeCount; i++ {
		h.roots = append(h.roots, h.buildNode(0, map[string][2]float64{}))
	}
	h.maxScore = float64(hstTreeCount) * float64(hstWindowSize) * math.Pow(2, hstHeight)
}

func (h *halfSpaceTrees) buildNode(depth int, bounds map[string][2]float64) *hstNode {
	if depth >= hstHeight {
		return &hstNode{}
	}
	feature := h.features[h.rng.Intn(len(h.features))]
	lo, hi := -hstRange, hstRange
	if b, ok := bounds[feature]; ok {
		lo, hi = b[0], b[1]
	}
	split := lo + h.rng.Float64()*(hi-lo)

	node := &hstNode{feature: feature, split: split}

	leftBounds := cloneBounds(bounds)
	leftBounds[feature] = [2]float64{lo, split}
	node.left = h.buildNode(depth+1, leftBounds)

	rightBounds := cloneBounds(bounds)
	rightBounds[feature] = [2]float64{split, hi}
	node.right = h.buildNode(depth+1, rightBounds)

	return node
}

func cloneBounds(bounds map[string][2]float64) map[string][2]float64 {
	out := make(map[string][2]float64, len(bounds)+1)
	for k, v := range bounds {
		out[k] = v
	}
	return out
}

// Learn records the sample's mass along each tree path.
func (h *halfSpaceTrees) Learn(x map[string]float64) {
	if h.roots == nil {
		h.build(x)
	}
	for _, root := range h.roots {
		node := root
		for node != nil {
			node.latestMass++
			if node.left == nil {
				break
			}
			if x[node.feature] <= node.split {
				node = node.left
			} else {
				node = node.right
			}
		}
	}

	h.seen++
	if h.seen%hstWindowSize == 0 {
		for _, root := range h.roots {
			swapWindows(root)
		}
	}
}

func swapWindows(node *hstNode) {
	if node == nil {
		return
	}
	node.refMass = node.latestMass
	node.latestMass = 0
	swapWindows(node.left)
	swapWindows(node.right)
}

// Score returns the normalized anomaly score in [0,1]. Low recorded mass
// along a path means the region is rarely visited, so the sample is
// anomalous.
func (h *halfSpaceTrees) Score(x map[string]float64) float64 {
	if h.roots == nil || h.seen < hstWindowSize {
		// Cold model: the reference window fills before anything scores,
		// otherwise every early event would look anomalous.
		return 0
	}

	mass := 0.0
	for _, root := range h.roots {
		node := root
		depth := 0
		for node != nil {
			if node.left == nil || node.refMass < 0.1 {
				mass += node.refMass * math.Pow(2, float64(depth))
				break
			}
			if x[node.feature] <= node.split {
				node = node.left
			} else {
				node = node.right
			}
			depth++
		}
	}

	normalized := mass / h.maxScore
	if normalized > 1 {
		normalized = 1
	}
	return 1 - normalized
}

// --- rolling quantile filter ---

type quantileFilter struct {
	q      float64
	scores []float64
}

func newQuantileFilter(q float64) *quantileFilter {
	return &quantileFilter{q: q}
}

func (f *quantileFilter) Observe(score float64) {
	f.scores = append(f.scores, score)
	if len(f.scores) > filterWindow {
		f.scores = f.scores[len(f.scores)-filterWindow:]
	}
}

// IsOutlier reports whether score exceeds the rolling q-quantile. Before
// enough observations accumulate, nothing is filtered.
func (f *quantileFilter) IsOutlier(score float64) bool {
	if len(f.scores) < filterMinimumObs {
		return false
	}
	sorted := make([]float64, len(f.scores))
	copy(sorted, f.scores)
	sort.Float64s(sorted)
	idx := int(f.q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return score > sorted[idx]
}
