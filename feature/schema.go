package feature

import "slices"

// SchemaVersion 是当前特征结构版本。字段集合或填充规则一旦变化必须升级版本，
// 用旧版本特征训练出的排序模型随之失效。
const SchemaVersion = "v1"

// 特征字段名
const (
	FieldTourStars       = "tour_stars"
	FieldTourReviewCount = "tour_review_count"
	FieldUserAvgRating   = "user_avg_rating"
	FieldUserReviewCount = "user_review_count"
)

// Field 是一个特征字段及其缺失填充值。
type Field struct {
	Name string  `json:"name"`
	Fill float64 `json:"fill"`
}

// Schema 是有版本的固定字段序列，训练与线上必须一致。
type Schema struct {
	Version string  `json:"version"`
	Fields  []Field `json:"fields"`
}

// DefaultSchema 返回 v1 结构：游览属性 + 用户聚合，缺失一律填 0。
func DefaultSchema() Schema {
	return Schema{
		Version: SchemaVersion,
		Fields: []Field{
			{Name: FieldTourStars, Fill: 0},
			{Name: FieldTourReviewCount, Fill: 0},
			{Name: FieldUserAvgRating, Fill: 0},
			{Name: FieldUserReviewCount, Fill: 0},
		},
	}
}

// Names 按顺序返回字段名
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Equal 版本、字段顺序与填充值都相同才相等
func (s Schema) Equal(o Schema) bool {
	return s.Version == o.Version && slices.Equal(s.Fields, o.Fields)
}

// Vector 是具名数值特征
type Vector map[string]float64

// Row 按字段顺序展开为模型输入行，缺失字段取 Fill。
func (s Schema) Row(v Vector) []float64 {
	row := make([]float64, len(s.Fields))
	for i, f := range s.Fields {
		if x, ok := v[f.Name]; ok {
			row[i] = x
		} else {
			row[i] = f.Fill
		}
	}
	return row
}
