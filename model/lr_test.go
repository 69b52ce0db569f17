package model

import (
	"math"
	"testing"
)

func TestLinearFit(t *testing.T) {
	// y = 1 + 2*a - b
	rows := [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 3}, {3, 1}}
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = 1 + 2*r[0] - r[1]
	}
	m, err := TrainLinear(rows, y, []string{"a", "b"}, "v1", 1e-9)
	if err != nil {
		t.Fatalf("TrainLinear error: %v", err)
	}
	if math.Abs(m.Bias-1) > 1e-4 || math.Abs(m.Weights[0]-2) > 1e-4 || math.Abs(m.Weights[1]+1) > 1e-4 {
		t.Fatalf("model = %+v", m)
	}

	data, _ := m.MarshalBinary()
	restored, err := Decode(TagLinear, data)
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
}
