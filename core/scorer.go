package core

import (
	"context"
	"sort"
)

// ScoredTour 是某个信号对一个游览给出的分数。
type ScoredTour struct {
	TourID string  `json:"tour_id"`
	Score  float64 `json:"score"`
}

// SimilarityScorer 是内容相似度能力。
type SimilarityScorer interface {
	Name() string
	SimilarTours(tourID string, topN int) ([]ScoredTour, error)
}

// RatingPredictor 是协同过滤能力。
// 未知用户/游览不报错，而是退化为全局均值与已知偏置。
type RatingPredictor interface {
	Name() string
	KnownUser(userID string) bool
	PredictRating(userID, tourID string) float64
	Recommend(userID string, topN int) []ScoredTour
}

// LexicalSearcher 是词法检索能力，只返回得分大于 0 的文档。
type LexicalSearcher interface {
	Name() string
	Search(query string, topN int) []ScoredTour
}

// CandidateRanker 对候选游览做个性化排序，输出是输入的一个排列。
type CandidateRanker interface {
	Rank(ctx context.Context, userID string, tourIDs []string) ([]ScoredTour, error)
}

// SortScored 按分数降序排序，分数相同按 tour_id 升序，与输入顺序无关。
func SortScored(s []ScoredTour) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].TourID < s[j].TourID
	})
}

// SortItems 与 SortScored 同一规则作用于 Item，nil 排在最后。
func SortItems(items []*Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
}

// TopN 截断到前 n 个；n <= 0 表示不截断。
func TopN(s []ScoredTour, n int) []ScoredTour {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// ScoredIDs 取出 tour_id 序列
func ScoredIDs(s []ScoredTour) []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = st.TourID
	}
	return out
}
