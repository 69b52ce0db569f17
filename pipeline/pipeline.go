package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/tourkit/core"
)

// Hook 在每个 Node 执行后回调，用于打点与日志。
type Hook func(node Node, elapsed time.Duration, in, out int, err error)

// Pipeline 把一次请求拆成可组合的 Node 链：召回 -> 特征 -> 排序 -> 截断。
type Pipeline struct {
	Nodes []Node
	Hooks []Hook
}

// New 创建 Pipeline
func New(nodes ...Node) *Pipeline {
	return &Pipeline{Nodes: nodes}
}

// WithHooks 返回挂上 hooks 的副本
func (p *Pipeline) WithHooks(hooks ...Hook) *Pipeline {
	cp := &Pipeline{Nodes: p.Nodes}
	cp.Hooks = append(append(cp.Hooks, p.Hooks...), hooks...)
	return cp
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		elapsed := time.Since(start)
		for _, h := range p.Hooks {
			h(node, elapsed, len(cur), len(next), err)
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: node %s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
