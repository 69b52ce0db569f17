package dsl

import "testing"

func TestEvaluate(t *testing.T) {
	rec := Record{
		Name:           "Paris Walking Tour",
		City:           "Paris",
		Stars:          4.5,
		ReviewCount:    12,
		Categories:     []string{"Tours", "Active Life"},
		CategoriesText: "Tours, Active Life",
	}
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"empty expression", "", true},
		{"substring keyword", `["Tours", "Local Flavor"].exists(k, categories_text.contains(k))`, true},
		{"exact category miss", `categories.exists(c, c == "Local Flavor")`, false},
		{"numeric", `stars >= 4.0 && review_count > 10`, true},
		{"city", `city == "New York"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tt.expr, err)
			}
			got, err := e.Evaluate(rec)
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{`stars +`, `stars + 1.0`, `unknown_var == 1`} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) expected error", expr)
		}
	}
}
