package core

// Label 是推荐链路中的可解释标记：记录候选由哪个信号产生、由哪个模型打分。
// Value 与 Source 的语义由业务自定义，同名 Label 按 MergeLabel 规则累积。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / rank / rerank / fallback ...
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "", incoming.Source == existing.Source:
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

// Item 是请求链路中的候选游览：特征、分数、标签。
// Labels 用于解释；Score 用于排序决策，ID 即 tour_id。
type Item struct {
	ID       string
	Score    float64
	Features map[string]float64
	Labels   map[string]Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Features: make(map[string]float64),
		Labels:   make(map[string]Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// ItemsFromIDs 按顺序把 tour_id 包装为 Item。
func ItemsFromIDs(ids []string) []*Item {
	out := make([]*Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewItem(id))
	}
	return out
}

// IDs 按顺序取出 Item 的 tour_id，忽略 nil。
func IDs(items []*Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it.ID)
		}
	}
	return out
}
