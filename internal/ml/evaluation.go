package ml

import "fmt"

// ClassMetrics holds one row of a classification report.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarizes predictions on a held-out set. Confusion[i][j]
// counts rows of true class i predicted as class j.
type Evaluation struct {
	Accuracy   float64        `json:"accuracy"`
	MacroF1    float64        `json:"macro_f1"`
	WeightedF1 float64        `json:"weighted_f1"`
	PerClass   []ClassMetrics `json:"per_class"`
	Confusion  [][]int        `json:"confusion"`
	Samples    int            `json:"samples"`
}

// Evaluate compares true and predicted class codes. Precision, recall and
// F1 are 0 where undefined.
func Evaluate(yTrue, yPred []int, classes []string) (Evaluation, error) {
	if len(yTrue) != len(yPred) {
		return Evaluation{}, fmt.Errorf("%d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Evaluation{}, fmt.Errorf("cannot evaluate zero samples")
	}

	k := len(classes)
	confusion := make([][]int, k)
	for i := range confusion {
		confusion[i] = make([]int, k)
	}
	correct := 0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return Evaluation{}, fmt.Errorf("sample %d has class outside [0,%d)", i, k)
		}
		confusion[t][p]++
		if t == p {
			correct++
		}
	}

	eval := Evaluation{
		Accuracy:  float64(correct) / float64(len(yTrue)),
		Confusion: confusion,
		PerClass:  make([]ClassMetrics, k),
		Samples:   len(yTrue),
	}

	for c := 0; c < k; c++ {
		tp := confusion[c][c]
		predicted, support := 0, 0
		for j := 0; j < k; j++ {
			predicted += confusion[j][c]
			support += confusion[c][j]
		}

		m := ClassMetrics{Class: classes[c], Support: support}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(tp) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		eval.PerClass[c] = m
		eval.MacroF1 += m.F1 / float64(k)
		eval.WeightedF1 += m.F1 * float64(support) / float64(len(yTrue))
	}

	return eval, nil
}
