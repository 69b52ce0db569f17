// Package snapshot 把一次训练产出的全部组件打包为一个有版本的快照，
// 负责持久化、兼容性校验与线上原子切换。
package snapshot

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
	"github.com/rushteam/tourkit/model"
	"github.com/rushteam/tourkit/rank"
	"github.com/rushteam/tourkit/recall"
)

const catalogTag = "tours"

// Parts 是组装快照所需的组件
type Parts struct {
	Catalog  *core.Catalog
	Features *feature.Store
	Content  *recall.ContentEngine
	MF       *recall.MFEngine
	Lexical  *recall.BM25Index
	Ranker   model.RankModel
	Metrics  map[string]float64
}

// Snapshot 是一组相互兼容的模型组件，加载后只读，可被并发请求共享。
type Snapshot struct {
	ID       string
	BuiltAt  time.Time
	Catalog  *core.Catalog
	Features *feature.Store
	Content  *recall.ContentEngine
	MF       *recall.MFEngine
	Lexical  *recall.BM25Index
	Model    model.RankModel
	Hot      *recall.Hot
	Metrics  map[string]float64

	ranker *rank.Ranker
}

// New 组装并校验一个新快照，分配 id。
func New(p Parts) (*Snapshot, error) {
	return assemble(uuid.NewString(), time.Now().UTC(), p)
}

func assemble(id string, builtAt time.Time, p Parts) (*Snapshot, error) {
	if p.Catalog == nil || p.Features == nil || p.Content == nil || p.MF == nil || p.Lexical == nil || p.Ranker == nil {
		return nil, core.SnapshotIncompatible("snapshot: missing component")
	}
	s := &Snapshot{
		ID:       id,
		BuiltAt:  builtAt,
		Catalog:  p.Catalog,
		Features: p.Features,
		Content:  p.Content,
		MF:       p.MF,
		Lexical:  p.Lexical,
		Model:    p.Ranker,
		Hot:      recall.NewHot(p.Catalog.Tours()),
		Metrics:  p.Metrics,
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	s.ranker = rank.NewRanker(s.Features, s.Model)
	return s, nil
}

// Check 校验组件之间的兼容性：排序模型与特征结构一致，各引擎覆盖同一目录。
func (s *Snapshot) Check() error {
	schema := s.Features.Schema()
	if s.Model.SchemaVersion() != schema.Version {
		return core.SnapshotIncompatible(fmt.Sprintf(
			"snapshot: ranker trained on feature schema %s, features are %s", s.Model.SchemaVersion(), schema.Version))
	}
	if !slices.Equal(s.Model.Features(), schema.Names()) {
		return core.SnapshotIncompatible("snapshot: ranker feature order differs from feature schema")
	}
	if s.Content.Len() != s.Catalog.Len() {
		return core.SnapshotIncompatible(fmt.Sprintf(
			"snapshot: content engine covers %d tours, catalog has %d", s.Content.Len(), s.Catalog.Len()))
	}
	if s.Lexical.Len() != s.Catalog.Len() {
		return core.SnapshotIncompatible(fmt.Sprintf(
			"snapshot: lexical index covers %d tours, catalog has %d", s.Lexical.Len(), s.Catalog.Len()))
	}
	return nil
}

// Ranker 返回基于本快照特征与排序模型的排序器
func (s *Snapshot) Ranker() *rank.Ranker {
	return s.ranker
}

// components 把各组件编码为 (tag, payload)
func (s *Snapshot) components() (map[string]envelope, error) {
	out := make(map[string]envelope, 6)
	add := func(name, tag string, v any) error {
		payload, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("snapshot: encode %s: %w", name, err)
		}
		out[name] = envelope{Tag: tag, Payload: payload}
		return nil
	}
	if err := add(ComponentCatalog, catalogTag, s.Catalog.Tours()); err != nil {
		return nil, err
	}
	if err := add(ComponentFeatures, s.Features.Schema().Version, s.Features.State()); err != nil {
		return nil, err
	}
	if err := add(ComponentContent, s.Content.Tag(), s.Content.State()); err != nil {
		return nil, err
	}
	if err := add(ComponentMF, s.MF.Tag(), s.MF.State()); err != nil {
		return nil, err
	}
	if err := add(ComponentLexical, s.Lexical.Tag(), s.Lexical.State()); err != nil {
		return nil, err
	}
	payload, err := s.Model.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode ranker: %w", err)
	}
	out[ComponentRanker] = envelope{Tag: s.Model.Tag(), Payload: payload}
	return out, nil
}
