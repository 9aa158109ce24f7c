package model

import (
	"encoding/json"
	"fmt"
)

// ForestFormat identifies the random forest artifact layout.
const ForestFormat = "random_forest/v1"

// Node is one entry of a flattened decision tree. Leaves have Left == -1 and carry the class
// distribution in Value. Internal nodes send x[Feature] <= Threshold to Left, everything else to Right.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a random forest classifier that averages leaf distributions across trees.
type Forest struct {
	Format    string   `json:"format"`
	Features  []string `json:"feature_names,omitempty"`
	Classes   []int    `json:"classes"`
	NFeatures int      `json:"n_features"`
	Trees     []Tree   `json:"trees"`
}

// DecodeForest parses and validates a forest artifact.
func DecodeForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Encode serializes the forest.
func (f *Forest) Encode() ([]byte, error) {
	if f.Format == "" {
		f.Format = ForestFormat
	}
	return json.Marshal(f)
}

// Validate checks the structural invariants PredictProba relies on. Children must come
// after their parent so traversal always terminates.
func (f *Forest) Validate() error {
	if f.Format != ForestFormat {
		return fmt.Errorf("forest format %q, want %q", f.Format, ForestFormat)
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("forest declares %d features", f.NFeatures)
	}
	if len(f.Features) > 0 && len(f.Features) != f.NFeatures {
		return fmt.Errorf("forest lists %d feature names for %d features", len(f.Features), f.NFeatures)
	}
	if len(f.Classes) < 2 {
		return fmt.Errorf("forest has %d classes, need at least 2", len(f.Classes))
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}

	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Left == -1 {
				if len(n.Value) != len(f.Classes) {
					return fmt.Errorf("tree %d leaf %d has %d class values, want %d", ti, ni, len(n.Value), len(f.Classes))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(tree.Nodes) || n.Right <= ni || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// FeatureNames returns the training columns, or nil when the artifact did not record them.
func (f *Forest) FeatureNames() []string {
	if len(f.Features) == 0 {
		return nil
	}
	out := make([]string, len(f.Features))
	copy(out, f.Features)
	return out
}

// PredictProba averages the leaf class distributions of every tree.
func (f *Forest) PredictProba(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		if len(x) != f.NFeatures {
			return nil, fmt.Errorf("row %d has %d features, forest expects %d", i, len(x), f.NFeatures)
		}
		probs := make([]float64, len(f.Classes))
		for ti := range f.Trees {
			leaf := f.Trees[ti].leaf(x)
			for c, v := range leaf {
				probs[c] += v
			}
		}
		n := float64(len(f.Trees))
		for c := range probs {
			probs[c] /= n
		}
		out[i] = probs
	}
	return out, nil
}

// Predict returns the class with the highest averaged probability; ties go to the earlier class.
func (f *Forest) Predict(X [][]float64) ([]int, error) {
	probs, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		best := 0
		for c := 1; c < len(p); c++ {
			if p[c] > p[best] {
				best = c
			}
		}
		out[i] = f.Classes[best]
	}
	return out, nil
}

// Depth returns the longest root-to-leaf path of the tree.
func (t Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Left == -1 {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

func (t Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == -1 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
