package training

import (
	"math/rand"
	"sort"

	"disease-predictor/internal/model"
)

// TreeParams bound a single CART tree. Zero MaxDepth means unlimited.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of candidate features drawn at every split; 0 means all.
	MaxFeatures int
}

const minGain = 1e-12

// treeBuilder grows one gini tree over weighted samples. Nodes are appended parent
// first, so children always have a larger index than their parent.
type treeBuilder struct {
	X        [][]float64
	classIdx []int
	weights  []float64
	nClasses int
	params   TreeParams
	rnd      *rand.Rand
	nodes    []model.Node
}

// fitTree grows a tree on the rows in idx. classIdx maps each row to its class position
// and weights holds the per-row sample weight (class weight times bootstrap multiplicity).
func fitTree(X [][]float64, classIdx []int, weights []float64, idx []int, nClasses int, params TreeParams, rnd *rand.Rand) model.Tree {
	b := &treeBuilder{
		X:        X,
		classIdx: classIdx,
		weights:  weights,
		nClasses: nClasses,
		params:   params,
		rnd:      rnd,
	}
	b.build(idx, 0)
	return model.Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, model.Node{})

	dist, total := b.distribution(idx)
	if b.isLeaf(idx, dist, depth) {
		b.nodes[self] = leafNode(dist, total)
		return self
	}

	split, ok := b.bestSplit(idx, gini(dist, total)*total)
	if !ok {
		b.nodes[self] = leafNode(dist, total)
		return self
	}

	left := b.build(split.left, depth+1)
	right := b.build(split.right, depth+1)
	b.nodes[self] = model.Node{
		Feature:   split.feature,
		Threshold: split.threshold,
		Left:      left,
		Right:     right,
	}
	return self
}

func (b *treeBuilder) isLeaf(idx []int, dist []float64, depth int) bool {
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	if len(idx) < b.params.MinSamplesSplit || len(idx) < 2*b.params.MinSamplesLeaf {
		return true
	}
	nonZero := 0
	for _, w := range dist {
		if w > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func (b *treeBuilder) distribution(idx []int) ([]float64, float64) {
	dist := make([]float64, b.nClasses)
	total := 0.0
	for _, i := range idx {
		w := b.weights[i]
		dist[b.classIdx[i]] += w
		total += w
	}
	return dist, total
}

type split struct {
	feature   int
	threshold float64
	left      []int
	right     []int
}

// bestSplit scans the sampled features for the threshold with the lowest weighted child
// impurity. parentImpurity is the weighted gini of the node times its total weight.
func (b *treeBuilder) bestSplit(idx []int, parentImpurity float64) (split, bool) {
	var (
		best     split
		bestGain = minGain
		found    bool
	)

	order := make([]int, len(idx))
	for _, f := range b.candidateFeatures() {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		leftDist := make([]float64, b.nClasses)
		rightDist, rightTotal := b.distribution(order)
		leftTotal := 0.0

		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			w := b.weights[i]
			leftDist[b.classIdx[i]] += w
			rightDist[b.classIdx[i]] -= w
			leftTotal += w
			rightTotal -= w

			cur, next := b.X[i][f], b.X[order[pos+1]][f]
			if cur == next {
				continue
			}
			nLeft := pos + 1
			if nLeft < b.params.MinSamplesLeaf || len(order)-nLeft < b.params.MinSamplesLeaf {
				continue
			}

			children := gini(leftDist, leftTotal)*leftTotal + gini(rightDist, rightTotal)*rightTotal
			if gain := parentImpurity - children; gain > bestGain {
				bestGain = gain
				found = true
				threshold := cur + (next-cur)/2
				if threshold >= next {
					threshold = cur
				}
				best = split{feature: f, threshold: threshold}
				best.left = append([]int(nil), order[:nLeft]...)
				best.right = append([]int(nil), order[nLeft:]...)
			}
		}
	}
	return best, found
}

func (b *treeBuilder) candidateFeatures() []int {
	p := len(b.X[0])
	perm := b.rnd.Perm(p)
	if k := b.params.MaxFeatures; k > 0 && k < p {
		return perm[:k]
	}
	return perm
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	g := 1.0
	for _, w := range dist {
		p := w / total
		g -= p * p
	}
	return g
}

func leafNode(dist []float64, total float64) model.Node {
	value := make([]float64, len(dist))
	for c, w := range dist {
		if total > 0 {
			value[c] = w / total
		}
	}
	return model.Node{Left: -1, Right: -1, Value: value}
}
