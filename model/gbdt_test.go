package model

import (
	"math"
	"testing"

	"github.com/rushteam/tourkit/core"
)

// stepData: y = 5 当 x0 > 0.5，否则 y = 1
func stepData(n int) ([][]float64, []float64) {
	rows := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		rows[i] = []float64{x, float64(i % 3)}
		if x > 0.5 {
			y[i] = 5
		} else {
			y[i] = 1
		}
	}
	return rows, y
}

func testGBDTConfig() GBDTConfig {
	return GBDTConfig{Rounds: 200, LearningRate: 0.3, MaxDepth: 2, MinSamplesLeaf: 2, Patience: 10, ValidationFraction: 0.2, Seed: 42}
}

func TestGBDTFitsStep(t *testing.T) {
	rows, y := stepData(60)
	m, err := TrainGBDT(rows, y, []string{"x", "noise"}, "v1", testGBDTConfig())
	if err != nil {
		t.Fatalf("TrainGBDT error: %v", err)
	}
	if m.BestIteration() == 0 {
		t.Fatal("expected at least one tree")
	}
	scores, err := m.Score([][]float64{{0.1, 0}, {0.9, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !(scores[1] > scores[0]) {
		t.Errorf("scores = %v, want high x scored above low x", scores)
	}
	if math.Abs(scores[0]-1) > 0.5 || math.Abs(scores[1]-5) > 0.5 {
		t.Errorf("scores = %v, want close to [1 5]", scores)
	}
	if m.SchemaVersion() != "v1" || m.Tag() != TagGBDT {
		t.Errorf("metadata = %s %s", m.SchemaVersion(), m.Tag())
	}
}

func TestGBDTScoreKeepsOrder(t *testing.T) {
	rows, y := stepData(40)
	m, _ := TrainGBDT(rows, y, []string{"x", "noise"}, "v1", testGBDTConfig())
	batch, _ := m.Score(rows)
	for i, r := range rows {
		single, _ := m.Score([][]float64{r})
		if single[0] != batch[i] {
			t.Fatalf("row %d: batch %v != single %v", i, batch[i], single[0])
		}
	}
	if _, err := m.Score([][]float64{{1}}); !core.IsInvalidRequest(err) {
		t.Errorf("short row err = %v", err)
	}
}

func TestGBDTEarlyStopping(t *testing.T) {
	// 常数目标：第一轮后负梯度全为 0，立即停止
	rows := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []float64{3, 3, 3, 3, 3, 3}
	m, err := TrainGBDT(rows, y, []string{"x"}, "v1", testGBDTConfig())
	if err != nil {
		t.Fatal(err)
	}
	if m.BestIteration() != 0 {
		t.Errorf("BestIteration = %d, want 0", m.BestIteration())
	}
	s, _ := m.Score([][]float64{{10}})
	if s[0] != 3 {
		t.Errorf("score = %v, want median 3", s[0])
	}
}

func TestGBDTL1Robust(t *testing.T) {
	// L1 损失：初值取中位数，不被离群点拉偏
	rows := [][]float64{{0}, {0}, {0}}
	y := []float64{2, 2, 100}
	m, _ := TrainGBDT(rows, y, []string{"x"}, "v1", GBDTConfig{Rounds: 5, MinSamplesLeaf: 1})
	s, _ := m.Score([][]float64{{0}})
	if s[0] > 10 {
		t.Errorf("score = %v, want near median 2", s[0])
	}
}

func TestGBDTTrainingDataErrors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
		y    []float64
		feat []string
	}{
		{"empty", nil, nil, []string{"x"}},
		{"length mismatch", [][]float64{{1}}, []float64{1, 2}, []string{"x"}},
		{"ragged row", [][]float64{{1}, {1, 2}}, []float64{1, 2}, []string{"x"}},
		{"no features", [][]float64{{}}, []float64{1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainGBDT(tt.rows, tt.y, tt.feat, "v1", testGBDTConfig()); !core.IsTrainingData(err) {
				t.Errorf("err = %v, want TRAINING_DATA", err)
			}
		})
	}
}

func TestGBDTMarshalRoundTrip(t *testing.T) {
	rows, y := stepData(50)
	m, _ := TrainGBDT(rows, y, []string{"x", "noise"}, "v1", testGBDTConfig())
	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := Decode(TagGBDT, data)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := m.Score(rows)
	b, _ := restored.Score(rows)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d: %v != %v", i, a[i], b[i])
		}
	}
	if _, err := Decode("xgboost", data); !core.IsSnapshotIncompatible(err) {
		t.Errorf("unknown tag err = %v", err)
	}
	if _, err := Decode(TagGBDT, []byte("garbage")); !core.IsSnapshotIncompatible(err) {
		t.Errorf("garbage err = %v", err)
	}
}
