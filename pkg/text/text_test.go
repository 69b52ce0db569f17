package text

import (
	"reflect"
	"testing"

	"github.com/rushteam/tourkit/core"
)

func TestDocument(t *testing.T) {
	tour := core.Tour{ID: "T1", Name: "Paris Walking Tour", City: "Paris", Categories: []string{"Tours", "Active Life"}}
	got := Document(tour)
	want := "Paris Walking Tour Tours Active Life Paris"
	if got != want {
		t.Fatalf("Document() = %q, want %q", got, want)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Paris Tours", []string{"paris", "tours"}},
		{"  walking\tTOURS \n", []string{"walking", "tours"}},
		{"Arts & Entertainment", []string{"arts", "&", "entertainment"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	got := Analyze("The Art of the Paris Museum, a tour")
	want := []string{"art", "paris", "museum", "tour"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Analyze() = %v, want %v", got, want)
	}
}
