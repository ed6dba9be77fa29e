package detect

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// IsolationForest scores points with a pre-trained forest exported to JSON
// by the offline training job. The scoring contract follows sklearn:
// DecisionFunction < 0 flags the point as anomalous.
type IsolationForest struct {
	SubsampleSize int          `json:"subsample_size"`
	Trees         []forestTree `json:"trees"`
}

type forestTree struct {
	Nodes []forestNode `json:"nodes"`
}

// forestNode is one split (or leaf when Feature < 0). Left/Right index into
// the tree's node slice; Size is the training sample count at a leaf.
type forestNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

// LoadIsolationForest reads a serialized model file.
func LoadIsolationForest(path string) (*IsolationForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model read failed: %w", err)
	}
	var forest IsolationForest
	if err := json.Unmarshal(data, &forest); err != nil {
		return nil, fmt.Errorf("model decode failed: %w", err)
	}
	if len(forest.Trees) == 0 || forest.SubsampleSize < 2 {
		return nil, fmt.Errorf("model is empty or malformed")
	}
	return &forest, nil
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search over n samples.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}

func (f *IsolationForest) pathLength(tree *forestTree, x []float64) float64 {
	depth := 0.0
	idx := 0
	for {
		node := tree.Nodes[idx]
		if node.Feature < 0 {
			return depth + averagePathLength(node.Size)
		}
		feature := 0.0
		if node.Feature < len(x) {
			feature = x[node.Feature]
		}
		if feature <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		depth++
	}
}

// DecisionFunction returns the sklearn-style anomaly margin: negative for
// anomalies, positive for inliers.
func (f *IsolationForest) DecisionFunction(x []float64) float64 {
	total := 0.0
	for i := range f.Trees {
		total += f.pathLength(&f.Trees[i], x)
	}
	avg := total / float64(len(f.Trees))

	// s in (0,1]: larger means more anomalous.
	s := math.Pow(2, -avg/averagePathLength(f.SubsampleSize))
	return 0.5 - s
}

// Predict returns -1 for anomalies, 1 for inliers.
func (f *IsolationForest) Predict(x []float64) int {
	if f.DecisionFunction(x) < 0 {
		return -1
	}
	return 1
}
