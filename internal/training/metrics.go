package training

import (
	"fmt"
	"math"
	"sort"
)

func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ROCAUC computes the area under the ROC curve for binary labels from the rank-sum
// statistic. Tied scores share their average rank.
func ROCAUC(yTrue []int, scores []float64) (float64, error) {
	if len(yTrue) != len(scores) {
		return 0, fmt.Errorf("roc auc: %d labels and %d scores", len(yTrue), len(scores))
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var (
		nPos, nNeg float64
		rankSum    float64
	)
	for i, label := range yTrue {
		if label == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, fmt.Errorf("roc auc: need both classes, got %v positive and %v negative", nPos, nNeg)
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	v := 0.0
	for _, x := range xs {
		d := x - mean
		v += d * d
	}
	return mean, math.Sqrt(v / float64(len(xs)))
}

// positiveScores extracts the probability of the class labelled 1.
func positiveScores(classes []int, proba [][]float64) ([]float64, error) {
	col := -1
	for i, c := range classes {
		if c == 1 {
			col = i
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("model has no positive class")
	}
	out := make([]float64, len(proba))
	for i, row := range proba {
		out[i] = row[col]
	}
	return out, nil
}
