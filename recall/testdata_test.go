package recall

import (
	"testing"

	"github.com/rushteam/tourkit/core"
)

func scenarioCatalog(t *testing.T) *core.Catalog {
	t.Helper()
	c, err := core.NewCatalog([]core.Tour{
		{ID: "T1", Name: "Paris Walking Tour", Categories: []string{"Tours"}, City: "Paris", Stars: 4.5, ReviewCount: 100},
		{ID: "T2", Name: "Paris Art Museum", Categories: []string{"Arts & Entertainment"}, City: "Paris", Stars: 4.5, ReviewCount: 300},
		{ID: "T3", Name: "NYC Food Tour", Categories: []string{"Tours"}, City: "New York", Stars: 4.0, ReviewCount: 50},
	})
	if err != nil {
		t.Fatalf("NewCatalog error: %v", err)
	}
	return c
}
