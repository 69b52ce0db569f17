package recall

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/tourkit/core"
)

func TestBM25ScenarioSearch(t *testing.T) {
	x := BuildBM25Index(scenarioCatalog(t), DefaultBM25Config())
	got := x.Search("paris tours", 10)
	if len(got) == 0 || got[0].TourID != "T1" {
		t.Fatalf("Search(paris tours) = %v, want T1 first", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Errorf("not sorted by score: %v", got)
		}
	}
	// T2 只命中两次 paris 且文档更长，T3 只命中一次 tours
	if ids, want := core.ScoredIDs(got), []string{"T1", "T2", "T3"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("Search(paris tours) ids = %v, want %v", ids, want)
	}
}

func TestBM25ExcludesZeroScores(t *testing.T) {
	x := BuildBM25Index(scenarioCatalog(t), DefaultBM25Config())
	got := x.Search("museum", 10)
	if ids := core.ScoredIDs(got); len(ids) != 1 || ids[0] != "T2" {
		t.Fatalf("Search(museum) = %v, want [T2]", ids)
	}
	if got := x.Search("kayak", 10); len(got) != 0 {
		t.Fatalf("Search(kayak) = %v, want empty (no padding)", got)
	}
	if got := x.Search("tours", 1); len(got) != 1 {
		t.Fatalf("Search(tours, 1) = %v, want 1 result", got)
	}
}

func TestBM25TieBreakAndCase(t *testing.T) {
	c, _ := core.NewCatalog([]core.Tour{
		{ID: "z", Name: "Harbor Cruise"},
		{ID: "a", Name: "Harbor Cruise"},
	})
	x := BuildBM25Index(c, DefaultBM25Config())
	if ids := core.ScoredIDs(x.Search("HARBOR", 5)); len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("Search(HARBOR) = %v, want [a z]", ids)
	}
	if got := x.Search("cruises", 5); len(got) != 0 {
		t.Fatalf("no stemming expected, got %v", got)
	}
}

func TestBM25TermFrequencyMonotonic(t *testing.T) {
	// 文档长度相同，只有 kayak 的出现次数不同
	c, _ := core.NewCatalog([]core.Tour{
		{ID: "once", Name: "kayak river trip day"},
		{ID: "twice", Name: "kayak river kayak day"},
		{ID: "thrice", Name: "kayak kayak kayak day"},
		{ID: "other", Name: "museum walk old town"},
	})
	x := BuildBM25Index(c, DefaultBM25Config())
	got := x.Search("kayak", 10)
	if ids, want := core.ScoredIDs(got), []string{"thrice", "twice", "once"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("Search(kayak) = %v, want %v", ids, want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score >= got[i-1].Score {
			t.Errorf("score(%s)=%v not below score(%s)=%v", got[i].TourID, got[i].Score, got[i-1].TourID, got[i-1].Score)
		}
	}
}

func TestBM25NonNegativeIDF(t *testing.T) {
	// 每个文档都包含 tour：IDF 仍为正
	c, _ := core.NewCatalog([]core.Tour{
		{ID: "1", Name: "tour one"},
		{ID: "2", Name: "tour two"},
		{ID: "3", Name: "tour tour"},
	})
	x := BuildBM25Index(c, DefaultBM25Config())
	got := x.Search("tour", 10)
	if len(got) != 3 || got[0].TourID != "3" {
		t.Fatalf("Search(tour) = %v", got)
	}
	for _, st := range got {
		if st.Score <= 0 {
			t.Errorf("score %v should be positive", st)
		}
	}
}

func TestBM25StateRoundTrip(t *testing.T) {
	x := BuildBM25Index(scenarioCatalog(t), BM25Config{K1: 1.2, B: 0.5})
	restored, err := BM25IndexFromState(x.State())
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{"paris tours", "new york food", "art"} {
		a, b := x.Search(q, 10), restored.Search(q, 10)
		if len(a) != len(b) {
			t.Fatalf("%q: %v vs %v", q, a, b)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%q: %v vs %v", q, a, b)
			}
		}
	}
	if restored.Config() != (BM25Config{K1: 1.2, B: 0.5}) {
		t.Errorf("config lost: %+v", restored.Config())
	}
}

func TestBM25Recall(t *testing.T) {
	r := &BM25Recall{Searcher: BuildBM25Index(scenarioCatalog(t), DefaultBM25Config()), TopK: 2}
	rctx := core.NewRecommendContext("")
	if _, err := r.Recall(context.Background(), rctx); !core.IsInvalidRequest(err) {
		t.Fatalf("empty query err = %v", err)
	}
	rctx.Params[core.ParamQuery] = "paris"
	items, err := r.Recall(context.Background(), rctx)
	if err != nil || len(items) != 2 {
		t.Fatalf("Recall(paris) = %v, %v", core.IDs(items), err)
	}
}
