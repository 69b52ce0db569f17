// Package serving 是请求入口：按请求类型分派到对应引擎，组合排序模型，
// 处理冷启动兜底。它只持有一个快照引用，可被并发请求共享。
package serving

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/filter"
	"github.com/rushteam/tourkit/metrics"
	"github.com/rushteam/tourkit/pipeline"
	"github.com/rushteam/tourkit/pkg/logging"
	"github.com/rushteam/tourkit/recall"
	"github.com/rushteam/tourkit/rerank"
	"github.com/rushteam/tourkit/snapshot"
)

// 结果来源
const (
	SourceCF         = "cf"
	SourceHot        = "hot"
	SourceRank       = "rank"
	SourceBM25       = "bm25"
	SourceBM25Ranked = "bm25+rank"
	SourceContent    = "content"
)

// 操作名，用于指标与日志
const (
	OpRecommend = "recommend"
	OpRank      = "rank"
	OpSearch    = "search"
	OpSimilar   = "similar"
	OpReload    = "reload"
)

// Options 是编排参数
type Options struct {
	DefaultTopN int
	MaxTopN     int
	// RerankDepth 两阶段搜索送入排序模型的词法候选数
	RerankDepth int
}

// DefaultOptions 返回默认编排参数
func DefaultOptions() Options {
	return Options{DefaultTopN: 10, MaxTopN: 100, RerankDepth: 50}
}

// Result 是一次请求的有序结果
type Result struct {
	Tours      []core.ScoredTour
	Source     string
	SnapshotID string
}

// IDs 返回有序 tour_id
func (r Result) IDs() []string { return core.ScoredIDs(r.Tours) }

// Orchestrator 是唯一的请求编排入口
type Orchestrator struct {
	holder  *snapshot.Holder
	loader  snapshot.Loader
	opts    Options
	metrics *metrics.Metrics
	hooks   []pipeline.Hook
	log     zerolog.Logger
}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithLoader 设置 Reload 使用的快照加载函数
func WithLoader(l snapshot.Loader) Option {
	return func(o *Orchestrator) { o.loader = l }
}

// WithMetrics 打开请求与节点指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		o.hooks = append(o.hooks, m.PipelineHook())
	}
}

// WithOptions 覆盖编排参数
func WithOptions(opts Options) Option {
	return func(o *Orchestrator) { o.opts = opts }
}

// New 创建 Orchestrator
func New(holder *snapshot.Holder, options ...Option) *Orchestrator {
	o := &Orchestrator{
		holder: holder,
		opts:   DefaultOptions(),
		log:    logging.Component("serving"),
	}
	for _, opt := range options {
		opt(o)
	}
	o.hooks = append(o.hooks, o.debugHook)
	return o
}

// Snapshot 返回当前快照，未加载时为 nil
func (o *Orchestrator) Snapshot() *snapshot.Snapshot {
	return o.holder.Current()
}

func (o *Orchestrator) debugHook(node pipeline.Node, elapsed time.Duration, in, out int, err error) {
	o.log.Debug().Str("node", node.Name()).Int("in", in).Int("out", out).Dur("elapsed", elapsed).Err(err).Msg("pipeline node")
}

func (o *Orchestrator) current() (*snapshot.Snapshot, error) {
	s := o.holder.Current()
	if s == nil {
		return nil, core.NewDomainError(core.ModuleServing, core.ErrorCodeUnavailable, "serving: no snapshot loaded")
	}
	return s, nil
}

func (o *Orchestrator) topN(n int) int {
	if n <= 0 {
		n = o.opts.DefaultTopN
	}
	if o.opts.MaxTopN > 0 && n > o.opts.MaxTopN {
		n = o.opts.MaxTopN
	}
	return n
}

func (o *Orchestrator) observe(op string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	code := "OK"
	if err != nil {
		code = core.ErrorCode(err)
	}
	o.metrics.ObserveRequest(op, code, time.Since(start))
}

func (o *Orchestrator) run(ctx context.Context, rctx *core.RecommendContext, items []*core.Item, nodes ...pipeline.Node) ([]core.ScoredTour, error) {
	out, err := pipeline.New(nodes...).WithHooks(o.hooks...).Run(ctx, rctx, items)
	if err != nil {
		return nil, err
	}
	scored := make([]core.ScoredTour, 0, len(out))
	for _, it := range out {
		if it != nil {
			scored = append(scored, core.ScoredTour{TourID: it.ID, Score: it.Score})
		}
	}
	return scored, nil
}

// Recommend 协同过滤为主；用户未知或 CF 没有可推荐的游览时走人群高分兜底，
// 兜底结果同样排除用户已评分的游览。
func (o *Orchestrator) Recommend(ctx context.Context, req RecommendRequest) (res Result, err error) {
	defer func(start time.Time) { o.observe(OpRecommend, start, err) }(time.Now())
	if err = validateRequest(req); err != nil {
		return Result{}, err
	}
	snap, err := o.current()
	if err != nil {
		return Result{}, err
	}
	n := o.topN(req.TopN)
	res = Result{Source: SourceCF, SnapshotID: snap.ID}
	rctx := core.NewRecommendContext(req.UserID)
	rctx.Params[core.ParamTopN] = n

	if snap.MF.KnownUser(req.UserID) {
		res.Tours, err = o.run(ctx, rctx, nil,
			&recall.SourceNode{Source: &recall.MFRecall{Predictor: snap.MF, TopK: n}},
			&rerank.TopNNode{N: n},
		)
		if err != nil {
			return Result{}, err
		}
		if len(res.Tours) > 0 {
			return res, nil
		}
	}
	res.Source = SourceHot
	res.Tours, err = o.run(ctx, rctx, nil,
		snap.Hot.WithTopK(0),
		&filter.Node{Filters: []filter.Filter{&filter.RatedFilter{Lookup: snap.MF}}},
		&rerank.TopNNode{N: n},
	)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Rank 用排序模型对候选排序，返回输入的一个排列，候选为空返回 INVALID_REQUEST
func (o *Orchestrator) Rank(ctx context.Context, req RankRequest) (res Result, err error) {
	defer func(start time.Time) { o.observe(OpRank, start, err) }(time.Now())
	if err = validateRequest(req); err != nil {
		return Result{}, err
	}
	snap, err := o.current()
	if err != nil {
		return Result{}, err
	}
	rctx := core.NewRecommendContext(req.UserID)
	tours, err := o.run(ctx, rctx, core.ItemsFromIDs(req.TourIDs), rankNodes(snap)...)
	if err != nil {
		return Result{}, err
	}
	return Result{Tours: tours, Source: SourceRank, SnapshotID: snap.ID}, nil
}

// Search 词法检索；带 user_id 时取前 RerankDepth 个命中再经排序模型重排
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (res Result, err error) {
	defer func(start time.Time) { o.observe(OpSearch, start, err) }(time.Now())
	req.Query = strings.TrimSpace(req.Query)
	if err = validateRequest(req); err != nil {
		return Result{}, err
	}
	snap, err := o.current()
	if err != nil {
		return Result{}, err
	}
	n := o.topN(req.TopN)
	rctx := core.NewRecommendContext(req.UserID)
	rctx.Params[core.ParamQuery] = req.Query
	rctx.Params[core.ParamTopN] = n

	if req.UserID == "" {
		res.Tours, err = o.run(ctx, rctx, nil, &recall.SourceNode{Source: &recall.BM25Recall{Searcher: snap.Lexical, TopK: n}})
		res.Source = SourceBM25
	} else {
		depth := max(o.opts.RerankDepth, n)
		nodes := []pipeline.Node{&recall.SourceNode{Source: &recall.BM25Recall{Searcher: snap.Lexical, TopK: depth}}}
		nodes = append(nodes, rankNodes(snap)...)
		nodes = append(nodes, &rerank.TopNNode{N: n})
		res.Tours, err = o.run(ctx, rctx, nil, nodes...)
		res.Source = SourceBM25Ranked
	}
	if err != nil {
		return Result{}, err
	}
	res.SnapshotID = snap.ID
	return res, nil
}

// Similar 返回与 tour_id 内容最相近的游览，未知游览返回 NOT_FOUND
func (o *Orchestrator) Similar(ctx context.Context, req SimilarRequest) (res Result, err error) {
	defer func(start time.Time) { o.observe(OpSimilar, start, err) }(time.Now())
	if err = validateRequest(req); err != nil {
		return Result{}, err
	}
	snap, err := o.current()
	if err != nil {
		return Result{}, err
	}
	n := o.topN(req.TopN)
	rctx := core.NewRecommendContext("")
	rctx.Params[recall.ParamTourID] = req.TourID
	tours, err := o.run(ctx, rctx, nil, &recall.SourceNode{Source: &recall.ContentRecall{Engine: snap.Content, TopK: n}})
	if err != nil {
		return Result{}, err
	}
	return Result{Tours: tours, Source: SourceContent, SnapshotID: snap.ID}, nil
}

// Reload 加载新快照并原子替换；失败时继续使用旧快照
func (o *Orchestrator) Reload(ctx context.Context) (snap *snapshot.Snapshot, err error) {
	defer func(start time.Time) { o.observe(OpReload, start, err) }(time.Now())
	if o.loader == nil {
		return nil, core.NewDomainError(core.ModuleServing, core.ErrorCodeNotSupported, "serving: no snapshot loader configured")
	}
	snap, err = o.holder.Reload(ctx, o.loader)
	if o.metrics != nil {
		if err != nil {
			o.metrics.SnapshotLoaded("", time.Time{}, err)
		} else {
			o.metrics.SnapshotLoaded(snap.ID, snap.BuiltAt, nil)
		}
	}
	if err != nil {
		o.log.Error().Err(err).Msg("snapshot reload failed, keeping current snapshot")
		return nil, err
	}
	o.log.Info().Str("snapshot", snap.ID).Str("ranker", snap.Model.Tag()).Msg("snapshot activated")
	return snap, nil
}

// rankNodes 返回快照排序器的节点：特征注入 + 模型打分
func rankNodes(snap *snapshot.Snapshot) []pipeline.Node {
	return snap.Ranker().Pipeline().Nodes
}
