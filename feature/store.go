package feature

import (
	"sort"

	"github.com/rushteam/tourkit/core"
)

// UserFeatures 是由评分历史计算出的用户聚合特征。
type UserFeatures struct {
	UserID      string
	AvgRating   float64
	RatingCount int
}

// TourFeatures 是目录中的游览属性特征。
type TourFeatures struct {
	TourID      string
	Stars       float64
	ReviewCount int
}

// Pair 是一个待打分的 (user, tour) 组合，两侧 id 都可能未知。
type Pair struct {
	UserID string
	TourID string
}

// BuildUserFeatures 按用户聚合平均评分与评分次数。
func BuildUserFeatures(interactions []core.Interaction) map[string]UserFeatures {
	sums := make(map[string]float64)
	out := make(map[string]UserFeatures)
	for _, in := range interactions {
		uf := out[in.UserID]
		uf.UserID = in.UserID
		uf.RatingCount++
		sums[in.UserID] += float64(in.Stars)
		out[in.UserID] = uf
	}
	for id, uf := range out {
		uf.AvgRating = sums[id] / float64(uf.RatingCount)
		out[id] = uf
	}
	return out
}

// BuildTourFeatures 从目录取游览属性。
func BuildTourFeatures(tours []core.Tour) map[string]TourFeatures {
	out := make(map[string]TourFeatures, len(tours))
	for _, t := range tours {
		out[t.ID] = TourFeatures{TourID: t.ID, Stars: t.Stars, ReviewCount: t.ReviewCount}
	}
	return out
}

// JoinFeatures 以 pairs 为左表，按 tour_id、user_id 分别左连接游览表与用户表。
// 连接不上的一侧按 schema 的 Fill 填充，不报错。
func JoinFeatures(schema Schema, pairs []Pair, tours map[string]TourFeatures, users map[string]UserFeatures) []Vector {
	out := make([]Vector, len(pairs))
	for i, p := range pairs {
		v := make(Vector, len(schema.Fields))
		for _, f := range schema.Fields {
			v[f.Name] = f.Fill
		}
		if tf, ok := tours[p.TourID]; ok {
			v[FieldTourStars] = tf.Stars
			v[FieldTourReviewCount] = float64(tf.ReviewCount)
		}
		if uf, ok := users[p.UserID]; ok {
			v[FieldUserAvgRating] = uf.AvgRating
			v[FieldUserReviewCount] = float64(uf.RatingCount)
		}
		out[i] = v
	}
	return out
}

// Store 是快照内的特征存储：一份游览表和一份用户表，构建后只读。
type Store struct {
	schema Schema
	tours  map[string]TourFeatures
	users  map[string]UserFeatures
}

// NewStore 由目录与评分历史构建特征存储
func NewStore(schema Schema, tours []core.Tour, interactions []core.Interaction) *Store {
	return &Store{
		schema: schema,
		tours:  BuildTourFeatures(tours),
		users:  BuildUserFeatures(interactions),
	}
}

func (s *Store) Name() string { return "feature.store" }

func (s *Store) Schema() Schema { return s.schema }

// Join 为 pairs 生成特征向量
func (s *Store) Join(pairs []Pair) []Vector {
	return JoinFeatures(s.schema, pairs, s.tours, s.users)
}

// Rows 为 pairs 生成按 schema 排列的模型输入行
func (s *Store) Rows(pairs []Pair) [][]float64 {
	vecs := s.Join(pairs)
	rows := make([][]float64, len(vecs))
	for i, v := range vecs {
		rows[i] = s.schema.Row(v)
	}
	return rows
}

// User 按 id 取用户聚合特征
func (s *Store) User(userID string) (UserFeatures, bool) {
	uf, ok := s.users[userID]
	return uf, ok
}

// State 是特征存储的可序列化形态
type State struct {
	Schema Schema
	Tours  []TourFeatures
	Users  []UserFeatures
}

// State 导出可序列化状态，切片按 id 排序保证编码稳定。
func (s *Store) State() State {
	st := State{Schema: s.schema}
	for _, tf := range s.tours {
		st.Tours = append(st.Tours, tf)
	}
	for _, uf := range s.users {
		st.Users = append(st.Users, uf)
	}
	sortStateByID(&st)
	return st
}

// FromState 由序列化状态恢复特征存储
func FromState(st State) *Store {
	s := &Store{
		schema: st.Schema,
		tours:  make(map[string]TourFeatures, len(st.Tours)),
		users:  make(map[string]UserFeatures, len(st.Users)),
	}
	for _, tf := range st.Tours {
		s.tours[tf.TourID] = tf
	}
	for _, uf := range st.Users {
		s.users[uf.UserID] = uf
	}
	return s
}

func sortStateByID(st *State) {
	sort.Slice(st.Tours, func(i, j int) bool { return st.Tours[i].TourID < st.Tours[j].TourID })
	sort.Slice(st.Users, func(i, j int) bool { return st.Users[i].UserID < st.Users[j].UserID })
}
