package recall

import (
	"context"
	"testing"

	"github.com/rushteam/tourkit/core"
)

func TestContentMatrixInvariants(t *testing.T) {
	c := scenarioCatalog(t)
	e := BuildContentEngine(c)
	ids := c.Index().IDs()
	for _, a := range ids {
		for _, b := range ids {
			sab, err := e.Similarity(a, b)
			if err != nil {
				t.Fatalf("Similarity(%s,%s) error: %v", a, b, err)
			}
			sba, _ := e.Similarity(b, a)
			if sab != sba {
				t.Errorf("sim(%s,%s)=%v != sim(%s,%s)=%v", a, b, sab, b, a, sba)
			}
			if sab < 0 || sab > 1 {
				t.Errorf("sim(%s,%s)=%v out of [0,1]", a, b, sab)
			}
			if a == b && sab != 1 {
				t.Errorf("sim(%s,%s)=%v, want 1", a, a, sab)
			}
		}
	}
}

func TestSimilarTours(t *testing.T) {
	e := BuildContentEngine(scenarioCatalog(t))

	got, err := e.SimilarTours("T1", 10)
	if err != nil {
		t.Fatalf("SimilarTours error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SimilarTours(T1) len = %d, want 2", len(got))
	}
	for i, st := range got {
		if st.TourID == "T1" {
			t.Errorf("SimilarTours(T1) contains query tour")
		}
		if i > 0 && got[i-1].Score < st.Score {
			t.Errorf("results not sorted: %v", got)
		}
	}

	top1, _ := e.SimilarTours("T1", 1)
	if len(top1) != 1 || top1[0].TourID != got[0].TourID {
		t.Errorf("SimilarTours(T1, 1) = %v, want first of %v", top1, got)
	}

	if _, err := e.SimilarTours("T404", 5); !core.IsNotFound(err) {
		t.Errorf("unknown tour err = %v, want NOT_FOUND", err)
	}
}

func TestSimilarToursTieBreak(t *testing.T) {
	c, _ := core.NewCatalog([]core.Tour{
		{ID: "b", Name: "kayak river"},
		{ID: "c", Name: "kayak river"},
		{ID: "a", Name: "kayak river"},
	})
	got, err := BuildContentEngine(c).SimilarTours("c", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ids := core.ScoredIDs(got); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("tie order = %v, want [a b]", ids)
	}
}

func TestContentStateRoundTrip(t *testing.T) {
	e := BuildContentEngine(scenarioCatalog(t))
	restored, err := ContentEngineFromState(e.State())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := e.SimilarTours("T2", 5)
	b, _ := restored.SimilarTours("T2", 5)
	if len(a) != len(b) {
		t.Fatalf("round trip length %d != %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("round trip mismatch at %d: %v vs %v", i, a[i], b[i])
		}
	}
	if _, err := ContentEngineFromState(ContentState{IDs: []string{"x"}, Sim: nil}); !core.IsSnapshotIncompatible(err) {
		t.Errorf("bad state err = %v", err)
	}
}

func TestContentRecall(t *testing.T) {
	r := &ContentRecall{Engine: BuildContentEngine(scenarioCatalog(t)), TopK: 1}
	rctx := core.NewRecommendContext("")
	if _, err := r.Recall(context.Background(), rctx); !core.IsInvalidRequest(err) {
		t.Fatalf("missing seed err = %v", err)
	}
	rctx.Params[ParamTourID] = "T3"
	items, err := r.Recall(context.Background(), rctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("Recall() = %v, %v", items, err)
	}
	if lbl := items[0].Labels[LabelRecallSource]; lbl.Value != "recall.content" {
		t.Errorf("label = %+v", lbl)
	}
}
