package model

import (
	"errors"
	"sort"
)

// TreeNode 是扁平存储的树节点；Leaf 为 true 时只有 Value 有效。
// 非叶子节点：x[Feature] <= Threshold 走 Left，否则走 Right。
type TreeNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree 是一棵回归树，Nodes[0] 为根
type Tree struct {
	Nodes []TreeNode
}

func (t Tree) predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	n := t.Nodes[0]
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

func (t Tree) validate(width int) error {
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return errors.New("model: tree node refers to unknown feature")
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return errors.New("model: tree node children out of range")
		}
	}
	return nil
}

type treeBuilder struct {
	rows     [][]float64
	grad     []float64 // 拟合目标：负梯度
	resid    []float64 // 叶子取值：残差中位数
	maxDepth int
	minLeaf  int
	nodes    []TreeNode
}

func (b *treeBuilder) build(idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(idx, 0)
	return Tree{Nodes: append([]TreeNode(nil), b.nodes...)}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{})

	if depth < b.maxDepth && len(idx) >= 2*b.minLeaf {
		if f, thr, ok := b.bestSplit(idx); ok {
			var left, right []int
			for _, i := range idx {
				if b.rows[i][f] <= thr {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[id] = TreeNode{Feature: f, Threshold: thr, Left: l, Right: r}
			return id
		}
	}

	b.nodes[id] = TreeNode{Leaf: true, Value: median(pick(b.resid, idx))}
	return id
}

// bestSplit 在所有特征上找方差下降最大的切分点；并列时取靠前的特征与更小的阈值。
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.grad[i]
	}
	parent := total * total / float64(n)

	bestGain := 1e-12
	sorted := make([]int, n)
	width := len(b.rows[idx[0]])
	for f := 0; f < width; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.rows[sorted[a]][f] < b.rows[sorted[c]][f] })

		var left float64
		for k := 1; k < n; k++ {
			left += b.grad[sorted[k-1]]
			lo, hi := b.rows[sorted[k-1]][f], b.rows[sorted[k]][f]
			if lo == hi || k < b.minLeaf || n-k < b.minLeaf {
				continue
			}
			right := total - left
			gain := left*left/float64(k) + right*right/float64(n-k) - parent
			if gain > bestGain {
				bestGain = gain
				feature, threshold, ok = f, lo+(hi-lo)/2, true
			}
		}
	}
	return feature, threshold, ok
}
