package recall

import (
	"context"
	"testing"

	"github.com/rushteam/tourkit/core"
)

func scenarioRatings() []core.Interaction {
	return []core.Interaction{
		{ReviewID: "r1", UserID: "U1", TourID: "T1", Stars: 5},
		{ReviewID: "r2", UserID: "U1", TourID: "T2", Stars: 1},
		{ReviewID: "r3", UserID: "U2", TourID: "T1", Stars: 4},
	}
}

func testMFConfig() MFConfig {
	return MFConfig{Factors: 4, Epochs: 50, LearningRate: 0.01, Regularization: 0.02, InitStd: 0.01, Seed: 42}
}

func TestMFPredictRating(t *testing.T) {
	e, err := TrainMF(scenarioRatings(), []string{"T1", "T2", "T3"}, testMFConfig())
	if err != nil {
		t.Fatalf("TrainMF error: %v", err)
	}
	p11 := e.PredictRating("U1", "T1")
	p12 := e.PredictRating("U1", "T2")
	if !(p11 > 1 && p11 < 5) {
		t.Errorf("predict(U1,T1) = %v, want in (1,5)", p11)
	}
	if !(5-p11 < 5-p12) {
		t.Errorf("predict(U1,T1)=%v should be closer to 5 than predict(U1,T2)=%v", p11, p12)
	}
}

func TestMFColdStart(t *testing.T) {
	e, err := TrainMF(scenarioRatings(), []string{"T1", "T2", "T3"}, testMFConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := e.PredictRating("nobody", "T404"); got != e.GlobalMean() {
		t.Errorf("unknown pair = %v, want global mean %v", got, e.GlobalMean())
	}
	if e.KnownUser("nobody") || !e.KnownUser("U2") {
		t.Error("KnownUser mismatch")
	}
	if recs := e.Recommend("nobody", 5); recs != nil {
		t.Errorf("Recommend(unknown) = %v, want nil", recs)
	}
}

func TestMFRecommendExcludesRated(t *testing.T) {
	e, err := TrainMF(scenarioRatings(), []string{"T1", "T2", "T3"}, testMFConfig())
	if err != nil {
		t.Fatal(err)
	}
	recs := e.Recommend("U2", 10)
	if len(recs) != 2 {
		t.Fatalf("Recommend(U2) = %v, want 2 entries", recs)
	}
	for i, st := range recs {
		if st.TourID == "T1" {
			t.Errorf("Recommend(U2) includes rated tour T1")
		}
		if i > 0 && recs[i-1].Score < st.Score {
			t.Errorf("not sorted: %v", recs)
		}
	}
	if recs := e.Recommend("U1", 10); len(recs) != 1 || recs[0].TourID != "T3" {
		t.Errorf("Recommend(U1) = %v, want [T3]", recs)
	}
}

func TestMFDeterministic(t *testing.T) {
	a, _ := TrainMF(scenarioRatings(), []string{"T1", "T2"}, testMFConfig())
	b, _ := TrainMF(scenarioRatings(), []string{"T1", "T2"}, testMFConfig())
	if a.PredictRating("U1", "T2") != b.PredictRating("U1", "T2") {
		t.Fatal("training with the same seed is not reproducible")
	}
}

func TestMFTrainingDataErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []core.Interaction
	}{
		{"empty", nil},
		{"missing user", []core.Interaction{{TourID: "T1", Stars: 3}}},
		{"rating out of range", []core.Interaction{{UserID: "U1", TourID: "T1", Stars: 7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainMF(tt.in, nil, testMFConfig()); !core.IsTrainingData(err) {
				t.Errorf("err = %v, want TRAINING_DATA", err)
			}
		})
	}
}

func TestMFStateRoundTrip(t *testing.T) {
	e, _ := TrainMF(scenarioRatings(), []string{"T1", "T2", "T3"}, testMFConfig())
	restored, err := MFEngineFromState(e.State())
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"U1", "U2"} {
		a, b := e.Recommend(u, 5), restored.Recommend(u, 5)
		if len(a) != len(b) {
			t.Fatalf("%s: %v vs %v", u, a, b)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%s: %v vs %v", u, a, b)
			}
		}
	}
	bad := e.State()
	bad.P = bad.P[:1]
	if _, err := MFEngineFromState(bad); !core.IsSnapshotIncompatible(err) {
		t.Errorf("bad state err = %v", err)
	}
}

func TestMFRecallUnknownUser(t *testing.T) {
	e, _ := TrainMF(scenarioRatings(), []string{"T1", "T2", "T3"}, testMFConfig())
	r := &MFRecall{Predictor: e, TopK: 5}
	items, err := r.Recall(context.Background(), core.NewRecommendContext("nobody"))
	if err != nil || len(items) != 0 {
		t.Fatalf("Recall(unknown) = %v, %v", items, err)
	}
	items, _ = r.Recall(context.Background(), core.NewRecommendContext("U1"))
	if len(items) != 1 || items[0].ID != "T3" {
		t.Fatalf("Recall(U1) = %v", core.IDs(items))
	}
}

func TestMFEvaluate(t *testing.T) {
	e, _ := TrainMF(scenarioRatings(), []string{"T1", "T2"}, testMFConfig())
	if rmse := e.Evaluate(scenarioRatings()); rmse <= 0 || rmse > 4 {
		t.Errorf("RMSE = %v", rmse)
	}
	if e.Evaluate(nil) != 0 {
		t.Error("empty holdout should report 0")
	}
}
