// Package model holds the classifier and scaler used at inference time and the artifacts they are decoded from.
package model

// Classifier scores assembled feature vectors. Rows must be in schema order.
type Classifier interface {
	Predict(X [][]float64) ([]int, error)
	// PredictProba returns one probability per class for each row; column 1 is the positive class.
	PredictProba(X [][]float64) ([][]float64, error)
}

// FeatureNamer is implemented by classifiers that recorded the columns they were fit on.
type FeatureNamer interface {
	FeatureNames() []string
}

// Scaler standardizes the scaling subset, columns in fit order.
type Scaler interface {
	Transform(X [][]float64) ([][]float64, error)
}
