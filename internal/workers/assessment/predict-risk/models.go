package predictrisk

import "disease-predictor/internal/inference"

type Input struct {
	PatientID string                 `json:"patientId,omitempty"`
	Features  map[string]interface{} `json:"features"`
}

type Output struct {
	PatientID       string              `json:"patientId,omitempty"`
	Probability     float64             `json:"probability"`
	Prediction      int                 `json:"prediction"`
	RiskLevel       inference.RiskLevel `json:"riskLevel"`
	Recommendations []string            `json:"recommendations"`
}
