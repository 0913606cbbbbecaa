package forest

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

// featureThreshold is the smallest gap between two sorted values that
// admits a split between them.
const featureThreshold = 1e-7

// Tree is a binary decision tree stored as parallel node arrays. Node 0 is
// the root. A node with Feature < 0 is a leaf whose Value holds the class
// distribution; otherwise x[Feature] <= Threshold goes Left.
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	Value     [][]float64
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int {
	return len(t.Feature)
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if t.NodeCount() == 0 {
		return 0
	}
	var walk func(node int) int
	walk = func(node int) int {
		if t.Feature[node] < 0 {
			return 0
		}
		return 1 + max(walk(t.Left[node]), walk(t.Right[node]))
	}
	return walk(0)
}

// leaf returns the class distribution of the leaf reached by x.
func (t *Tree) leaf(x []float64) []float64 {
	node := 0
	for t.Feature[node] >= 0 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

func (t *Tree) addNode() int {
	t.Feature = append(t.Feature, -1)
	t.Threshold = append(t.Threshold, 0)
	t.Left = append(t.Left, -1)
	t.Right = append(t.Right, -1)
	t.Value = append(t.Value, nil)
	return len(t.Feature) - 1
}

type split struct {
	feature   int
	threshold float64
	score     float64
}

// builder grows one tree on a weighted bootstrap sample.
type builder struct {
	cols        [][]float64 // column-major training matrix
	y           []int
	w           []float64
	numClasses  int
	maxFeatures int
	maxDepth    int
	minSplit    int
	minLeaf     int
	rng         *rand.Rand

	tree        *Tree
	importances []float64
	features    []int
	left        []float64
}

func newBuilder(cols [][]float64, y []int, w []float64, numClasses int, cfg Config, rng *rand.Rand) *builder {
	return &builder{
		cols:        cols,
		y:           y,
		w:           w,
		numClasses:  numClasses,
		maxFeatures: cfg.maxFeatures(len(cols)),
		maxDepth:    cfg.MaxDepth,
		minSplit:    max(cfg.MinSamplesSplit, 2),
		minLeaf:     max(cfg.MinSamplesLeaf, 1),
		rng:         rng,
		tree:        &Tree{},
		importances: make([]float64, len(cols)),
		features:    make([]int, len(cols)),
		left:        make([]float64, numClasses),
	}
}

func (b *builder) classWeights(idx []int) ([]float64, float64) {
	dist := make([]float64, b.numClasses)
	var total float64
	for _, i := range idx {
		dist[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return dist, total
}

func (b *builder) build(idx []int, depth int) int {
	dist, total := b.classWeights(idx)
	node := b.tree.addNode()

	if (b.maxDepth > 0 && depth >= b.maxDepth) ||
		len(idx) < b.minSplit ||
		len(idx) < 2*b.minLeaf ||
		isPure(dist) {
		b.setLeaf(node, dist, total)
		return node
	}

	best, ok := b.bestSplit(idx, dist, total)
	if !ok {
		b.setLeaf(node, dist, total)
		return node
	}

	col := b.cols[best.feature]
	mid := 0
	for j := range idx {
		if col[idx[j]] <= best.threshold {
			idx[mid], idx[j] = idx[j], idx[mid]
			mid++
		}
	}

	b.importances[best.feature] += best.score - sumSquares(dist)/total

	b.tree.Feature[node] = best.feature
	b.tree.Threshold[node] = best.threshold
	left := b.build(idx[:mid], depth+1)
	right := b.build(idx[mid:], depth+1)
	b.tree.Left[node] = left
	b.tree.Right[node] = right
	return node
}

func (b *builder) setLeaf(node int, dist []float64, total float64) {
	value := make([]float64, len(dist))
	if total > 0 {
		for c, v := range dist {
			value[c] = v / total
		}
	}
	b.tree.Value[node] = value
}

// bestSplit searches a random subset of features for the split with the
// lowest weighted Gini impurity. Features that are constant within the node
// are skipped without counting toward the subset size.
//
// For a split into L and R the weighted impurity W_L*G_L + W_R*G_R equals
// W - (S_L/W_L + S_R/W_R) where S is the sum of squared class weights, so the
// search maximizes score = S_L/W_L + S_R/W_R.
func (b *builder) bestSplit(idx []int, parent []float64, total float64) (split, bool) {
	for j := range b.features {
		b.features[j] = j
	}

	best := split{score: math.Inf(-1)}
	found := false
	evaluated := 0
	n := len(idx)

	for remaining := len(b.features); remaining > 0 && evaluated < b.maxFeatures; remaining-- {
		r := b.rng.IntN(remaining)
		f := b.features[r]
		b.features[r], b.features[remaining-1] = b.features[remaining-1], b.features[r]

		col := b.cols[f]
		slices.SortFunc(idx, func(a, c int) int { return cmp.Compare(col[a], col[c]) })
		if col[idx[n-1]] <= col[idx[0]]+featureThreshold {
			continue
		}
		evaluated++

		clear(b.left)
		var wl float64
		for p := 0; p < n-1; p++ {
			i := idx[p]
			b.left[b.y[i]] += b.w[i]
			wl += b.w[i]

			xi, xn := col[i], col[idx[p+1]]
			if xn <= xi+featureThreshold {
				continue
			}
			nl := p + 1
			if nl < b.minLeaf || n-nl < b.minLeaf {
				continue
			}
			wr := total - wl
			if wl <= 0 || wr <= 0 {
				continue
			}

			var sl, sr float64
			for c, lc := range b.left {
				rc := parent[c] - lc
				sl += lc * lc
				sr += rc * rc
			}
			score := sl/wl + sr/wr
			if score > best.score {
				threshold := xi/2 + xn/2
				if threshold >= xn || math.IsInf(threshold, 0) {
					threshold = xi
				}
				best = split{feature: f, threshold: threshold, score: score}
				found = true
			}
		}
	}
	return best, found
}

func isPure(dist []float64) bool {
	nonZero := 0
	for _, v := range dist {
		if v > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}
