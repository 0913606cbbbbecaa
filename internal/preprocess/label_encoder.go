// Package preprocess holds the fitted transforms applied before the
// classifier: the label encoder and the column-wise numeric scaler.
package preprocess

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFitted is returned when a transform is used before Fit.
var ErrNotFitted = errors.New("transform is not fitted")

// LabelEncoder maps class labels to integer codes in lexicographic order.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// NewLabelEncoder restores an encoder from a known class list, e.g. after
// decoding an artifact. Classes must be sorted and distinct.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("label encoder needs at least one class")
	}
	for i := 1; i < len(classes); i++ {
		if classes[i-1] >= classes[i] {
			return nil, fmt.Errorf("label encoder classes not sorted or not distinct at %q", classes[i])
		}
	}
	le := &LabelEncoder{Classes: append([]string(nil), classes...)}
	le.buildIndex()
	return le, nil
}

// Fit learns the sorted set of distinct labels.
func (le *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("cannot fit label encoder on empty label set")
	}

	seen := make(map[string]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	le.Classes = classes
	le.buildIndex()
	return nil
}

func (le *LabelEncoder) buildIndex() {
	le.index = make(map[string]int, len(le.Classes))
	for i, c := range le.Classes {
		le.index[c] = i
	}
}

// NumClasses returns the number of fitted classes.
func (le *LabelEncoder) NumClasses() int {
	return len(le.Classes)
}

// Transform encodes a single label.
func (le *LabelEncoder) Transform(label string) (int, error) {
	if le.index == nil {
		return 0, ErrNotFitted
	}
	code, ok := le.index[label]
	if !ok {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	return code, nil
}

// TransformAll encodes every label.
func (le *LabelEncoder) TransformAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		code, err := le.Transform(l)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		out[i] = code
	}
	return out, nil
}

// Inverse decodes a class code.
func (le *LabelEncoder) Inverse(code int) (string, error) {
	if len(le.Classes) == 0 {
		return "", ErrNotFitted
	}
	if code < 0 || code >= len(le.Classes) {
		return "", fmt.Errorf("class code %d out of range [0,%d)", code, len(le.Classes))
	}
	return le.Classes[code], nil
}
