package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit holds out testRatio of every class. Returned indices are sorted.
func StratifiedSplit(y []int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio %v must be in (0, 1)", testRatio)
	}
	rnd := rand.New(rand.NewSource(seed))

	for _, members := range byClass(y) {
		rnd.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		nTest := int(math.Round(float64(len(members)) * testRatio))
		if nTest == 0 && len(members) > 1 {
			nTest = 1
		}
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// StratifiedKFold deals every class round-robin into k folds and returns the
// held-out indices of each fold.
func StratifiedKFold(y []int, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("%d rows cannot fill %d folds", len(y), k)
	}
	rnd := rand.New(rand.NewSource(seed))

	folds := make([][]int, k)
	next := 0
	for _, members := range byClass(y) {
		rnd.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		for _, m := range members {
			folds[next%k] = append(folds[next%k], m)
			next++
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}

// Complement returns 0..n-1 without the members of held.
func Complement(n int, held []int) []int {
	skip := make(map[int]struct{}, len(held))
	for _, h := range held {
		skip[h] = struct{}{}
	}
	out := make([]int, 0, n-len(held))
	for i := 0; i < n; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// byClass groups row indices by label, classes in ascending order for determinism.
func byClass(y []int) [][]int {
	groups := make(map[int][]int)
	for i, label := range y {
		groups[label] = append(groups[label], i)
	}
	labels := make([]int, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	out := make([][]int, len(labels))
	for i, l := range labels {
		out[i] = groups[l]
	}
	return out
}
