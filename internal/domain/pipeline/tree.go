package pipeline

import (
	"fmt"
	"sort"
)

// minImpurity below which a node is treated as pure.
const minImpurity = 1e-12

// Node is one entry of a flattened regression tree. Leaves carry Value;
// split nodes send rows with row[Feature] <= Threshold to Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a CART regression tree grown on squared error.
type Tree struct {
	Nodes []Node `json:"nodes"`

	maxDepth        int
	minSamplesSplit int
}

// grow appends the subtree for idx and returns the index of its root.
func (t *Tree) grow(x [][]float64, y []float64, idx []int, depth int) int {
	pos := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Feature: -1, Left: -1, Right: -1, Leaf: true, Value: meanAt(y, idx)})

	if len(idx) < t.minSamplesSplit || (t.maxDepth > 0 && depth >= t.maxDepth) {
		return pos
	}
	feature, threshold, ok := bestSplit(x, y, idx)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.grow(x, y, left, depth+1)
	r := t.grow(x, y, right, depth+1)

	t.Nodes[pos] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: t.Nodes[pos].Value}
	return pos
}

// bestSplit scans every feature for the threshold that minimizes the summed
// squared error of the two children.
func bestSplit(x [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	parent := sumSq - sum*sum/float64(n)
	if parent <= minImpurity {
		return -1, 0, false
	}

	bestFeature, bestThreshold, best := -1, 0.0, parent
	order := make([]int, n)
	for f := range x[idx[0]] {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := y[order[k]]
			leftSum += yi
			leftSq += yi * yi
			lo, hi := x[order[k]][f], x[order[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			rightSum := sum - leftSum
			sse := (leftSq - leftSum*leftSum/nl) + (sumSq - leftSq - rightSum*rightSum/nr)
			if sse < best {
				best = sse
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

// predictRow walks the tree for one row.
func (t *Tree) predictRow(row []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// Validate checks that the node table is a well-formed tree over nFeatures inputs.
// Children must point forward, which rules out cycles.
func (t *Tree) Validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree: %w", ErrNotFitted)
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("tree node %d: %w: feature %d", i, ErrDimension, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("tree node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
