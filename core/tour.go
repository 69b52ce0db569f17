package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Tour 是目录中的一个游览项目。装入快照后不可变。
type Tour struct {
	ID          string   `json:"tour_id"`
	Name        string   `json:"name"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Stars       float64  `json:"stars"`
	ReviewCount int      `json:"review_count"`
	Categories  []string `json:"categories"`
}

// Interaction 是一条历史评分记录。
type Interaction struct {
	ReviewID string    `json:"review_id"`
	UserID   string    `json:"user_id"`
	TourID   string    `json:"tour_id"`
	Stars    int       `json:"stars"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}

// 评分范围
const (
	MinRating = 1
	MaxRating = 5
)

// Catalog 是某一版本的游览目录，带稳定 id 与稠密下标的双向映射。
type Catalog struct {
	tours []Tour
	index *TourIndex
}

// NewCatalog 按输入顺序建立目录；tour_id 为空或重复返回 TRAINING_DATA 错误。
func NewCatalog(tours []Tour) (*Catalog, error) {
	ids := make([]string, 0, len(tours))
	seen := make(map[string]struct{}, len(tours))
	for _, t := range tours {
		if t.ID == "" {
			return nil, TrainingData(ModuleCatalog, "catalog: tour_id is required")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, TrainingData(ModuleCatalog, "catalog: duplicate tour_id "+t.ID)
		}
		seen[t.ID] = struct{}{}
		ids = append(ids, t.ID)
	}
	cp := make([]Tour, len(tours))
	copy(cp, tours)
	return &Catalog{tours: cp, index: NewTourIndex(ids)}, nil
}

func (c *Catalog) Len() int { return len(c.tours) }

// Tours 返回目录副本
func (c *Catalog) Tours() []Tour {
	out := make([]Tour, len(c.tours))
	copy(out, c.tours)
	return out
}

// At 按稠密下标取游览
func (c *Catalog) At(i int) Tour { return c.tours[i] }

// Get 按 tour_id 取游览
func (c *Catalog) Get(id string) (Tour, bool) {
	i, ok := c.index.Index(id)
	if !ok {
		return Tour{}, false
	}
	return c.tours[i], true
}

func (c *Catalog) Index() *TourIndex { return c.index }

// Version 是目录内容摘要：id、文本字段、星级或评论数任一变化都会改变它。
// 星级与评论数进入特征与热门榜，因此同样计入。
func (c *Catalog) Version() string {
	h := sha256.New()
	for _, t := range c.tours {
		h.Write([]byte(t.ID))
		h.Write([]byte{0})
		h.Write([]byte(t.Name))
		h.Write([]byte{0})
		h.Write([]byte(t.City))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(t.Categories, "\x1f")))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(t.Stars, 'g', -1, 64)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(t.ReviewCount)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// TourIndex 是 tour_id 与稠密下标之间的双向映射，随每个快照重建。
type TourIndex struct {
	ids []string
	pos map[string]int
}

func NewTourIndex(ids []string) *TourIndex {
	idx := &TourIndex{
		ids: make([]string, len(ids)),
		pos: make(map[string]int, len(ids)),
	}
	copy(idx.ids, ids)
	for i, id := range ids {
		idx.pos[id] = i
	}
	return idx
}

func (x *TourIndex) Len() int { return len(x.ids) }

func (x *TourIndex) ID(i int) string { return x.ids[i] }

func (x *TourIndex) Index(id string) (int, bool) {
	i, ok := x.pos[id]
	return i, ok
}

// IDs 返回按下标排列的 tour_id 副本
func (x *TourIndex) IDs() []string {
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}
