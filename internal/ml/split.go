package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets so that
// every class keeps its proportion. The test set has ceil(testSize*n) rows,
// allocated to classes by largest remainder (lowest class code on ties).
// Both returned slices are sorted ascending.
func StratifiedSplit(y []int, numClasses int, testSize float64, seed uint64) (train, test []int, err error) {
	n := len(y)
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0,1), got %v", testSize)
	}

	byClass := make([][]int, numClasses)
	for i, c := range y {
		if c < 0 || c >= numClasses {
			return nil, nil, fmt.Errorf("row %d has class %d outside [0,%d)", i, c, numClasses)
		}
		byClass[c] = append(byClass[c], i)
	}

	present := 0
	for c, rows := range byClass {
		switch len(rows) {
		case 0:
		case 1:
			return nil, nil, fmt.Errorf("class %d has a single member, at least 2 are needed to stratify", c)
		default:
			present++
		}
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < present || nTrain < present {
		return nil, nil, fmt.Errorf("%d rows cannot be split into train/test sets covering %d classes", n, present)
	}

	alloc := allocate(byClass, nTest, n)

	rng := rand.New(rand.NewPCG(seed, seed))
	for c, rows := range byClass {
		perm := append([]int(nil), rows...)
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		test = append(test, perm[:alloc[c]]...)
		train = append(train, perm[alloc[c]:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// allocate distributes total test rows across classes proportionally to
// class size using the largest-remainder method.
func allocate(byClass [][]int, total, n int) []int {
	alloc := make([]int, len(byClass))
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, 0, len(byClass))

	assigned := 0
	for c, rows := range byClass {
		quota := float64(len(rows)) * float64(total) / float64(n)
		whole := int(math.Floor(quota))
		alloc[c] = whole
		assigned += whole
		rems = append(rems, remainder{class: c, frac: quota - float64(whole)})
	}

	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < total && i < len(rems); i++ {
		c := rems[i].class
		if alloc[c] < len(byClass[c]) {
			alloc[c]++
			assigned++
		}
	}
	return alloc
}
