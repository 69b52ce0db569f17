package snapshot

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
	"github.com/rushteam/tourkit/model"
	"github.com/rushteam/tourkit/recall"
)

// DefaultKeyPrefix 是快照 key 的默认前缀
const DefaultKeyPrefix = "tourkit"

// Repository 在 HashStore 上保存/加载快照。
//
// key 布局：
//   - {prefix}:snapshot:{id}:manifest    manifest JSON
//   - {prefix}:snapshot:{id}:components  Hash，字段为组件名，值为压缩信封
//   - {prefix}:snapshot:active           当前激活的快照 id
//   - {prefix}:snapshot:index            已保存快照 id 列表（JSON 数组）
type Repository struct {
	store  core.HashStore
	prefix string
}

// NewRepository 创建仓库；prefix 为空时使用 DefaultKeyPrefix
func NewRepository(store core.HashStore, prefix string) *Repository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Repository{store: store, prefix: prefix}
}

func (r *Repository) manifestKey(id string) string {
	return fmt.Sprintf("%s:snapshot:%s:manifest", r.prefix, id)
}

func (r *Repository) componentsKey(id string) string {
	return fmt.Sprintf("%s:snapshot:%s:components", r.prefix, id)
}

func (r *Repository) activeKey() string {
	return r.prefix + ":snapshot:active"
}

func (r *Repository) indexKey() string {
	return r.prefix + ":snapshot:index"
}

// index 读取快照 id 列表，尚无记录时为空
func (r *Repository) index(ctx context.Context) ([]string, error) {
	data, err := r.store.Get(ctx, r.indexKey())
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: read index", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeInternalError, "snapshot: bad index", err)
	}
	return ids, nil
}

// Save 写入全部组件，最后写 manifest；manifest 存在即表示快照完整。
func (r *Repository) Save(ctx context.Context, s *Snapshot) (Manifest, error) {
	comps, err := s.components()
	if err != nil {
		return Manifest{}, err
	}

	var mu sync.Mutex
	blobs := make(map[string][]byte, len(comps))
	man := Manifest{
		ID:             s.ID,
		BuiltAt:        s.BuiltAt,
		FormatVersion:  FormatVersion,
		FeatureSchema:  s.Features.Schema(),
		CatalogVersion: s.Catalog.Version(),
		TourCount:      s.Catalog.Len(),
		Components:     make(map[string]Component, len(comps)),
		Metrics:        s.Metrics,
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, env := range comps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blob, sum, err := seal(env.Tag, env.Payload)
			if err != nil {
				return fmt.Errorf("snapshot: seal %s: %w", name, err)
			}
			mu.Lock()
			blobs[name] = blob
			man.Components[name] = Component{Tag: env.Tag, Checksum: sum, Size: len(blob)}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Manifest{}, err
	}

	for name, blob := range blobs {
		if err := r.store.HSet(ctx, r.componentsKey(s.ID), name, blob); err != nil {
			return Manifest{}, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: write component "+name, err)
		}
	}
	data, err := man.encode()
	if err != nil {
		return Manifest{}, err
	}
	ids, err := r.index(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if !slices.Contains(ids, s.ID) {
		ids = append(ids, s.ID)
	}
	idx, err := json.Marshal(ids)
	if err != nil {
		return Manifest{}, err
	}
	// manifest 与索引同批写入
	if err := r.store.BatchSet(ctx, map[string][]byte{
		r.manifestKey(s.ID): data,
		r.indexKey():        idx,
	}); err != nil {
		return Manifest{}, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: write manifest", err)
	}
	return man, nil
}

// Manifest 读取快照 manifest，不存在返回 NOT_FOUND
func (r *Repository) Manifest(ctx context.Context, id string) (Manifest, error) {
	data, err := r.store.Get(ctx, r.manifestKey(id))
	if core.IsStoreNotFound(err) {
		return Manifest{}, core.NotFound(core.ModuleSnapshot, "snapshot: not found: "+id)
	}
	if err != nil {
		return Manifest{}, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: read manifest", err)
	}
	return decodeManifest(data)
}

// Load 读取并校验快照，组件并行解码。任何不一致都返回 SNAPSHOT_INCOMPATIBLE。
func (r *Repository) Load(ctx context.Context, id string) (*Snapshot, error) {
	man, err := r.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}
	if want := feature.DefaultSchema(); !man.FeatureSchema.Equal(want) {
		return nil, core.SnapshotIncompatible(fmt.Sprintf("snapshot: feature schema %s differs from current %s", man.FeatureSchema.Version, want.Version))
	}
	blobs, err := r.store.HGetAll(ctx, r.componentsKey(id))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: read components", err)
	}
	for _, name := range ComponentNames() {
		if _, ok := man.Components[name]; !ok {
			return nil, core.SnapshotIncompatible("snapshot: manifest lacks component " + name)
		}
		if _, ok := blobs[name]; !ok {
			return nil, core.SnapshotIncompatible("snapshot: missing component blob " + name)
		}
	}

	var (
		tours    []core.Tour
		features *feature.Store
		content  *recall.ContentEngine
		mf       *recall.MFEngine
		lexical  *recall.BM25Index
		ranker   model.RankModel
	)
	payload := func(name string) ([]byte, error) {
		return open(name, blobs[name], man.Components[name])
	}
	decode := func(name string, v any) error {
		data, err := payload(name)
		if err != nil {
			return err
		}
		if err := decodeValue(data, v); err != nil {
			return core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "snapshot: decode "+name, err)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	run := func(fn func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn()
		})
	}
	run(func() error { return decode(ComponentCatalog, &tours) })
	run(func() error {
		var st feature.State
		if err := decode(ComponentFeatures, &st); err != nil {
			return err
		}
		features = feature.FromState(st)
		return nil
	})
	run(func() error {
		var st recall.ContentState
		if err := decode(ComponentContent, &st); err != nil {
			return err
		}
		var err error
		content, err = recall.ContentEngineFromState(st)
		return err
	})
	run(func() error {
		var st recall.MFState
		if err := decode(ComponentMF, &st); err != nil {
			return err
		}
		var err error
		mf, err = recall.MFEngineFromState(st)
		return err
	})
	run(func() error {
		var st recall.BM25State
		if err := decode(ComponentLexical, &st); err != nil {
			return err
		}
		var err error
		lexical, err = recall.BM25IndexFromState(st)
		return err
	})
	run(func() error {
		data, err := payload(ComponentRanker)
		if err != nil {
			return err
		}
		ranker, err = model.Decode(man.RankerTag(), data)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog, err := core.NewCatalog(tours)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeSnapshotIncompatible, "snapshot: bad catalog", err)
	}
	if catalog.Version() != man.CatalogVersion {
		return nil, core.SnapshotIncompatible("snapshot: catalog version mismatch")
	}
	if !features.Schema().Equal(man.FeatureSchema) {
		return nil, core.SnapshotIncompatible("snapshot: feature schema differs from manifest")
	}
	return assemble(man.ID, man.BuiltAt, Parts{
		Catalog:  catalog,
		Features: features,
		Content:  content,
		MF:       mf,
		Lexical:  lexical,
		Ranker:   ranker,
		Metrics:  man.Metrics,
	})
}

// Activate 把 id 标记为当前快照，快照必须已完整保存
func (r *Repository) Activate(ctx context.Context, id string) error {
	if _, err := r.Manifest(ctx, id); err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.activeKey(), []byte(id)); err != nil {
		return core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: write active", err)
	}
	return nil
}

// ActiveID 返回当前激活的快照 id，尚未激活时返回 NOT_FOUND
func (r *Repository) ActiveID(ctx context.Context) (string, error) {
	data, err := r.store.Get(ctx, r.activeKey())
	if core.IsStoreNotFound(err) {
		return "", core.NotFound(core.ModuleSnapshot, "snapshot: no active snapshot")
	}
	if err != nil {
		return "", core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: read active", err)
	}
	return string(data), nil
}

// LoadActive 加载当前激活的快照
func (r *Repository) LoadActive(ctx context.Context) (*Snapshot, error) {
	id, err := r.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, id)
}

// List 返回索引中的快照 manifest，按构建时间从新到旧排列。
// 无法解析的 manifest 只保留 id，排在最后。
func (r *Repository) List(ctx context.Context) ([]Manifest, error) {
	ids, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.manifestKey(id)
	}
	raw, err := r.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: read manifests", err)
	}
	out := make([]Manifest, 0, len(ids))
	for i, id := range ids {
		data, ok := raw[keys[i]]
		if !ok {
			continue
		}
		m, err := decodeManifest(data)
		if err != nil {
			m = Manifest{ID: id}
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BuiltAt.After(out[j].BuiltAt) })
	return out, nil
}

// Delete 删除一个快照的 manifest 与组件；当前激活的快照不可删除。
func (r *Repository) Delete(ctx context.Context, id string) error {
	active, err := r.ActiveID(ctx)
	if err != nil && !core.IsNotFound(err) {
		return err
	}
	if id == active {
		return core.InvalidRequest(core.ModuleSnapshot, "snapshot: cannot delete active snapshot "+id)
	}
	ids, err := r.index(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, id) {
		if _, err := r.Manifest(ctx, id); err != nil {
			return err
		}
	}
	// 先删 manifest，快照随即不可见
	for _, key := range []string{r.manifestKey(id), r.componentsKey(id)} {
		if err := r.store.Delete(ctx, key); err != nil {
			return core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: delete "+key, err)
		}
	}
	idx, err := json.Marshal(slices.DeleteFunc(ids, func(v string) bool { return v == id }))
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.indexKey(), idx); err != nil {
		return core.WrapDomainError(core.ModuleSnapshot, core.ErrorCodeUnavailable, "snapshot: write index", err)
	}
	return nil
}

// Prune 保留最新的 keep 个快照（激活的快照总被保留），返回被删除的 id。
func (r *Repository) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, core.InvalidRequest(core.ModuleSnapshot, "snapshot: keep must be >= 1")
	}
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	active, err := r.ActiveID(ctx)
	if err != nil && !core.IsNotFound(err) {
		return nil, err
	}
	var removed []string
	for i, m := range all {
		if i < keep || m.ID == active {
			continue
		}
		if err := r.Delete(ctx, m.ID); err != nil {
			return removed, err
		}
		removed = append(removed, m.ID)
	}
	return removed, nil
}
