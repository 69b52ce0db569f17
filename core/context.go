package core

// 常用请求参数 key
const (
	ParamQuery = "query"
	ParamTopN  = "top_n"
)

// RecommendContext 承载一次请求的用户与参数，贯穿整个 Pipeline 透传。
// 它只在单个请求内存活，不持有任何模型状态。
type RecommendContext struct {
	UserID string

	// Params 请求级参数，例如 query、top_n
	Params map[string]any

	// Labels 是请求级标签，例如 source=hot 表示走了兜底路径
	Labels map[string]Label
}

// NewRecommendContext 创建请求上下文
func NewRecommendContext(userID string) *RecommendContext {
	return &RecommendContext{
		UserID: userID,
		Params: make(map[string]any),
		Labels: make(map[string]Label),
	}
}

// Query 返回请求的查询文本
func (rctx *RecommendContext) Query() string {
	if rctx == nil || rctx.Params == nil {
		return ""
	}
	q, _ := rctx.Params[ParamQuery].(string)
	return q
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (Label, bool) {
	if rctx.Labels == nil {
		return Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
