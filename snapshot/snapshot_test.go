package snapshot

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/feature"
	"github.com/rushteam/tourkit/model"
	"github.com/rushteam/tourkit/recall"
	"github.com/rushteam/tourkit/store"
)

func testParts(t *testing.T) Parts {
	t.Helper()
	return testPartsWithSchema(t, feature.DefaultSchema())
}

func testPartsWithSchema(t *testing.T, schema feature.Schema) Parts {
	t.Helper()
	catalog, err := core.NewCatalog([]core.Tour{
		{ID: "T1", Name: "Paris Walking Tour", Categories: []string{"Tours"}, City: "Paris", Stars: 4.5, ReviewCount: 100},
		{ID: "T2", Name: "Paris Art Museum", Categories: []string{"Arts & Entertainment"}, City: "Paris", Stars: 4.5, ReviewCount: 300},
		{ID: "T3", Name: "NYC Food Tour", Categories: []string{"Tours"}, City: "New York", Stars: 4.0, ReviewCount: 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	interactions := []core.Interaction{
		{UserID: "U1", TourID: "T1", Stars: 5},
		{UserID: "U1", TourID: "T3", Stars: 4},
		{UserID: "U2", TourID: "T2", Stars: 2},
		{UserID: "U2", TourID: "T1", Stars: 4},
	}
	features := feature.NewStore(schema, catalog.Tours(), interactions)
	mf, err := recall.TrainMF(interactions, catalog.Index().IDs(), recall.MFConfig{Factors: 4, Epochs: 30, LearningRate: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	pairs := make([]feature.Pair, len(interactions))
	targets := make([]float64, len(interactions))
	for i, it := range interactions {
		pairs[i] = feature.Pair{UserID: it.UserID, TourID: it.TourID}
		targets[i] = float64(it.Stars)
	}
	ranker, err := model.TrainGBDT(features.Rows(pairs), targets, schema.Names(), schema.Version, model.GBDTConfig{MinSamplesLeaf: 1})
	if err != nil {
		t.Fatal(err)
	}
	return Parts{
		Catalog:  catalog,
		Features: features,
		Content:  recall.BuildContentEngine(catalog),
		MF:       mf,
		Lexical:  recall.BuildBM25Index(catalog, recall.DefaultBM25Config()),
		Ranker:   ranker,
		Metrics:  map[string]float64{"cf_rmse": 0.5},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	orig, err := New(testParts(t))
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemoryStore()
	defer st.Close()
	repo := NewRepository(st, "test")

	man, err := repo.Save(ctx, orig)
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if man.RankerTag() != model.TagGBDT || len(man.Components) != len(ComponentNames()) {
		t.Fatalf("manifest = %+v", man)
	}
	if err := repo.Activate(ctx, orig.ID); err != nil {
		t.Fatal(err)
	}
	loaded, err := repo.LoadActive(ctx)
	if err != nil {
		t.Fatalf("LoadActive error: %v", err)
	}
	if loaded.ID != orig.ID || loaded.Metrics["cf_rmse"] != 0.5 {
		t.Fatalf("loaded id/metrics = %s %v", loaded.ID, loaded.Metrics)
	}

	candidates := []string{"T3", "T1", "T2"}
	a, err := orig.Ranker().Rank(ctx, "U1", candidates)
	if err != nil {
		t.Fatal(err)
	}
	b, err := loaded.Ranker().Rank(ctx, "U1", candidates)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Rank differs after reload: %v vs %v", a, b)
	}
	if !reflect.DeepEqual(orig.Lexical.Search("paris tour", 0), loaded.Lexical.Search("paris tour", 0)) {
		t.Error("Search differs after reload")
	}
	sa, _ := orig.Content.SimilarTours("T1", 2)
	sb, _ := loaded.Content.SimilarTours("T1", 2)
	if !reflect.DeepEqual(sa, sb) {
		t.Errorf("SimilarTours differs: %v vs %v", sa, sb)
	}
	if orig.MF.PredictRating("U1", "T2") != loaded.MF.PredictRating("U1", "T2") {
		t.Error("PredictRating differs after reload")
	}
	if !reflect.DeepEqual(orig.Hot.IDs(), loaded.Hot.IDs()) {
		t.Error("hot order differs after reload")
	}
}

// oldSchemaModel 模拟用旧版本特征训练出的排序模型
type oldSchemaModel struct{ model.RankModel }

func (oldSchemaModel) SchemaVersion() string { return "v0" }

func TestNewRejectsSchemaMismatch(t *testing.T) {
	p := testParts(t)
	p.Ranker = oldSchemaModel{p.Ranker}
	_, err := New(p)
	if !core.IsSnapshotIncompatible(err) {
		t.Fatalf("New err = %v, want SNAPSHOT_INCOMPATIBLE", err)
	}
}

func TestLoadRejectsStaleFeatureSchema(t *testing.T) {
	ctx := context.Background()
	// 特征存储与排序模型彼此一致，但都不是当前版本的特征结构
	stale := feature.Schema{Version: "v0", Fields: []feature.Field{{Name: "tour_price"}, {Name: "user_age"}}}
	s, err := New(testPartsWithSchema(t, stale))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	repo := NewRepository(store.NewMemoryStore(), "")
	if _, err := repo.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx, s.ID); !core.IsSnapshotIncompatible(err) {
		t.Fatalf("Load err = %v, want SNAPSHOT_INCOMPATIBLE", err)
	}

	// 版本号相同但字段不同同样拒绝
	reordered := feature.DefaultSchema()
	reordered.Fields[0], reordered.Fields[1] = reordered.Fields[1], reordered.Fields[0]
	s, err = New(testPartsWithSchema(t, reordered))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx, s.ID); !core.IsSnapshotIncompatible(err) {
		t.Fatalf("Load(reordered) err = %v, want SNAPSHOT_INCOMPATIBLE", err)
	}
}

func TestSaveLoadHonourCancelledContext(t *testing.T) {
	s, err := New(testParts(t))
	if err != nil {
		t.Fatal(err)
	}
	repo := NewRepository(store.NewMemoryStore(), "")
	if _, err := repo.Save(context.Background(), s); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Save(ctx, s); !errors.Is(err, context.Canceled) {
		t.Errorf("Save err = %v, want context.Canceled", err)
	}
	if _, err := repo.Load(ctx, s.ID); !errors.Is(err, context.Canceled) {
		t.Errorf("Load err = %v, want context.Canceled", err)
	}
}

func TestLoadRejectsCorruptComponent(t *testing.T) {
	ctx := context.Background()
	s, err := New(testParts(t))
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemoryStore()
	defer st.Close()
	repo := NewRepository(st, "")
	if _, err := repo.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := st.HSet(ctx, repo.componentsKey(s.ID), ComponentContent, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx, s.ID); !core.IsSnapshotIncompatible(err) {
		t.Fatalf("Load err = %v, want SNAPSHOT_INCOMPATIBLE", err)
	}
}

func TestActiveMissing(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	repo := NewRepository(st, "")
	if _, err := repo.LoadActive(context.Background()); !core.IsNotFound(err) {
		t.Fatalf("LoadActive err = %v, want NOT_FOUND", err)
	}
	if err := repo.Activate(context.Background(), "nope"); !core.IsNotFound(err) {
		t.Fatalf("Activate err = %v, want NOT_FOUND", err)
	}
}

func TestHolderReloadKeepsOldOnFailure(t *testing.T) {
	s, err := New(testParts(t))
	if err != nil {
		t.Fatal(err)
	}
	h := NewHolder(s)
	boom := errors.New("boom")
	if _, err := h.Reload(context.Background(), func(context.Context) (*Snapshot, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("Reload err = %v", err)
	}
	if h.Current() != s {
		t.Fatal("failed reload replaced current snapshot")
	}
	next, _ := New(testParts(t))
	if _, err := h.Reload(context.Background(), func(context.Context) (*Snapshot, error) { return next, nil }); err != nil {
		t.Fatal(err)
	}
	if h.Current() != next {
		t.Fatal("reload did not swap")
	}
}

// saveN 保存 n 个快照，构建时间依次递增，返回 id（从旧到新）
func saveN(t *testing.T, repo *Repository, n int) []string {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, n)
	for i := range n {
		s, err := assemble(fmt.Sprintf("snap-%d", i), base.Add(time.Duration(i)*time.Hour), testParts(t))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := repo.Save(context.Background(), s); err != nil {
			t.Fatal(err)
		}
		ids[i] = s.ID
	}
	return ids
}

func manifestIDs(ms []Manifest) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemoryStore(), "")
	if ms, err := repo.List(ctx); err != nil || len(ms) != 0 {
		t.Fatalf("List on empty repo = %v, %v", ms, err)
	}
	saveN(t, repo, 3)
	ms, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := manifestIDs(ms), []string{"snap-2", "snap-1", "snap-0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if ms[0].TourCount != 3 {
		t.Errorf("TourCount = %d, want 3", ms[0].TourCount)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := NewRepository(st, "")
	ids := saveN(t, repo, 2)
	if err := repo.Activate(ctx, ids[1]); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, ids[1]); !core.IsInvalidRequest(err) {
		t.Fatalf("Delete(active) err = %v, want INVALID_REQUEST", err)
	}
	if err := repo.Delete(ctx, "nope"); !core.IsNotFound(err) {
		t.Fatalf("Delete(nope) err = %v, want NOT_FOUND", err)
	}
	if err := repo.Delete(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Manifest(ctx, ids[0]); !core.IsNotFound(err) {
		t.Errorf("Manifest after Delete err = %v, want NOT_FOUND", err)
	}
	if blobs, _ := st.HGetAll(ctx, repo.componentsKey(ids[0])); len(blobs) != 0 {
		t.Errorf("components left after Delete: %d", len(blobs))
	}
	ms, _ := repo.List(ctx)
	if got := manifestIDs(ms); !reflect.DeepEqual(got, []string{ids[1]}) {
		t.Errorf("List after Delete = %v", got)
	}
	if _, err := repo.LoadActive(ctx); err != nil {
		t.Errorf("active snapshot broken by Delete: %v", err)
	}
}

func TestPruneKeepsNewestAndActive(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemoryStore(), "")
	ids := saveN(t, repo, 4)
	if err := repo.Activate(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Prune(ctx, 0); !core.IsInvalidRequest(err) {
		t.Fatalf("Prune(0) err = %v, want INVALID_REQUEST", err)
	}

	removed, err := repo.Prune(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(removed, []string{"snap-1"}) {
		t.Errorf("Prune removed %v, want [snap-1]", removed)
	}
	ms, _ := repo.List(ctx)
	if got, want := manifestIDs(ms), []string{"snap-3", "snap-2", "snap-0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List after Prune = %v, want %v", got, want)
	}
}
