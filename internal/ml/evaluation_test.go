package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	classes := []string{"A", "B", "C"}
	yTrue := []int{0, 0, 0, 0, 1, 1, 1, 2, 2, 2}
	yPred := []int{0, 0, 0, 1, 1, 1, 0, 2, 2, 2}

	eval, err := Evaluate(yTrue, yPred, classes)
	require.NoError(t, err)

	assert.Equal(t, 10, eval.Samples)
	assert.InDelta(t, 0.8, eval.Accuracy, 1e-12)
	assert.Equal(t, [][]int{{3, 1, 0}, {1, 2, 0}, {0, 0, 3}}, eval.Confusion)

	require.Len(t, eval.PerClass, 3)
	a := eval.PerClass[0]
	assert.Equal(t, "A", a.Class)
	assert.Equal(t, 4, a.Support)
	assert.InDelta(t, 0.75, a.Precision, 1e-12)
	assert.InDelta(t, 0.75, a.Recall, 1e-12)
	assert.InDelta(t, 0.75, a.F1, 1e-12)

	b := eval.PerClass[1]
	assert.InDelta(t, 2.0/3, b.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, b.Recall, 1e-12)

	assert.InDelta(t, 1.0, eval.PerClass[2].F1, 1e-12)
	assert.InDelta(t, (0.75+2.0/3+1)/3, eval.MacroF1, 1e-12)
	assert.InDelta(t, (0.75*4+2.0/3*3+1*3)/10, eval.WeightedF1, 1e-12)
}

func TestEvaluate_UndefinedScoresAreZero(t *testing.T) {
	eval, err := Evaluate([]int{0, 0}, []int{0, 0}, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, eval.Accuracy)
	assert.Zero(t, eval.PerClass[1].Precision)
	assert.Zero(t, eval.PerClass[1].Recall)
	assert.Zero(t, eval.PerClass[1].F1)
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate([]int{0}, []int{0, 1}, []string{"A", "B"})
	assert.Error(t, err)

	_, err = Evaluate(nil, nil, []string{"A"})
	assert.Error(t, err)

	_, err = Evaluate([]int{0, 2}, []int{0, 0}, []string{"A", "B"})
	assert.Error(t, err)
}
