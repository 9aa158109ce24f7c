package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"disease-predictor/internal/model"
)

// ForestParams configure FitForest.
type ForestParams struct {
	NTrees   int
	Tree     TreeParams
	Balanced bool
	// Bootstrap resamples the training rows with replacement for every tree.
	Bootstrap bool
	Seed      int64
	// Workers bounds concurrent tree fitting; 0 means GOMAXPROCS.
	Workers int
}

// DefaultForestParams mirror the deployed model: 100 depth-10 trees, balanced classes,
// sqrt feature sampling (resolved at fit time) and seed 42.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NTrees:    100,
		Tree:      TreeParams{MaxDepth: 10, MinSamplesSplit: 2, MinSamplesLeaf: 1},
		Balanced:  true,
		Bootstrap: true,
		Seed:      42,
	}
}

// FitForest grows params.NTrees trees concurrently. Tree i is seeded with Seed+i, so the
// result does not depend on scheduling.
func FitForest(ctx context.Context, X [][]float64, y []int, featureNames []string, params ForestParams) (*model.Forest, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit forest: no rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("fit forest: %d rows and %d labels", len(X), len(y))
	}
	if params.NTrees <= 0 {
		return nil, fmt.Errorf("fit forest: %d trees", params.NTrees)
	}
	p := len(X[0])
	if len(featureNames) > 0 && len(featureNames) != p {
		return nil, fmt.Errorf("fit forest: %d feature names for %d columns", len(featureNames), p)
	}

	classes, classIdx := indexClasses(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("fit forest: labels contain a single class")
	}
	classWeight := classWeights(classIdx, len(classes), params.Balanced)

	tp := params.Tree
	if tp.MaxFeatures == 0 {
		tp.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]model.Tree, params.NTrees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := 0; t < params.NTrees; t++ {
		t := t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rnd := rand.New(rand.NewSource(params.Seed + int64(t)))
			idx, weights := sampleRows(len(X), classIdx, classWeight, params.Bootstrap, rnd)
			trees[t] = fitTree(X, classIdx, weights, idx, len(classes), tp, rnd)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	forest := &model.Forest{
		Format:    model.ForestFormat,
		Classes:   classes,
		NFeatures: p,
		Trees:     trees,
	}
	if len(featureNames) > 0 {
		forest.Features = append([]string(nil), featureNames...)
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	return forest, nil
}

// sampleRows draws a bootstrap sample and folds its multiplicities into the row weights.
func sampleRows(n int, classIdx []int, classWeight []float64, bootstrap bool, rnd *rand.Rand) ([]int, []float64) {
	counts := make([]int, n)
	if bootstrap {
		for i := 0; i < n; i++ {
			counts[rnd.Intn(n)]++
		}
	} else {
		for i := range counts {
			counts[i] = 1
		}
	}

	weights := make([]float64, n)
	idx := make([]int, 0, n)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		weights[i] = float64(c) * classWeight[classIdx[i]]
		idx = append(idx, i)
	}
	return idx, weights
}

func indexClasses(y []int) ([]int, []int) {
	seen := make(map[int]bool)
	for _, label := range y {
		seen[label] = true
	}
	classes := make([]int, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Ints(classes)

	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	classIdx := make([]int, len(y))
	for i, label := range y {
		classIdx[i] = pos[label]
	}
	return classes, classIdx
}

// classWeights returns n / (k * count_c) per class when balanced, otherwise 1.
func classWeights(classIdx []int, k int, balanced bool) []float64 {
	w := make([]float64, k)
	if !balanced {
		for c := range w {
			w[c] = 1
		}
		return w
	}
	counts := make([]int, k)
	for _, c := range classIdx {
		counts[c]++
	}
	n := float64(len(classIdx))
	for c, count := range counts {
		if count > 0 {
			w[c] = n / (float64(k) * float64(count))
		}
	}
	return w
}
