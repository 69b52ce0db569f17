package catalog

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/rushteam/tourkit/core"
)

const rawBusinesses = `{"business_id":"B1","name":"Paris Walking Tour","city":"Paris","state":"FR","stars":4.5,"review_count":100,"categories":"Tours, Active Life"}
{"business_id":"B2","name":"Corner Dentist","city":"Paris","state":"FR","stars":3,"review_count":5,"categories":"Health & Medical, Dentists"}
{"business_id":"B3","name":"No Categories","city":"Reno","state":"NV","stars":4,"review_count":1,"categories":null}

{"business_id":"B4","name":"Food Crawl","city":"New York","state":"NY","stars":"4.0","review_count":"50","categories":"Local Flavor|Food"}
`

const rawReviews = `{"review_id":"r1","user_id":"U1","business_id":"B1","stars":5,"text":"great","date":"2020-01-02 10:00:00"}
{"review_id":"r2","user_id":"U1","business_id":"B2","stars":1,"text":"ouch","date":"2020-01-03 10:00:00"}
{"review_id":"r3","user_id":"U2","business_id":"B4","stars":4,"text":"tasty","date":"2021-05-06 12:30:00"}
`

func TestIngest(t *testing.T) {
	policy, err := NewPolicy(`["Tours", "Active Life", "Arts & Entertainment", "Local Flavor"].exists(k, categories_text.contains(k))`)
	if err != nil {
		t.Fatal(err)
	}
	var toursOut, reviewsOut bytes.Buffer
	stats, err := Ingest(context.Background(), policy, strings.NewReader(rawBusinesses), strings.NewReader(rawReviews), &toursOut, &reviewsOut)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	want := IngestStats{Businesses: 4, Tours: 2, Reviews: 3, KeptReviews: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	tours, err := ReadTours(&toursOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(tours) != 2 || tours[0].ID != "B1" || tours[1].ID != "B4" {
		t.Fatalf("tours = %+v", tours)
	}
	if !reflect.DeepEqual(tours[1].Categories, []string{"Local Flavor", "Food"}) || tours[1].Stars != 4 || tours[1].ReviewCount != 50 {
		t.Errorf("tour B4 = %+v", tours[1])
	}

	reviews, err := ReadInteractions(&reviewsOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != 2 || reviews[0].TourID != "B1" || reviews[1].TourID != "B4" {
		t.Fatalf("reviews = %+v", reviews)
	}
	if reviews[1].Date.Year() != 2021 {
		t.Errorf("date = %v", reviews[1].Date)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		read func() error
	}{
		{"bad json", func() error { _, err := ReadTours(strings.NewReader("{oops\n")); return err }},
		{"missing id", func() error { _, err := ReadTours(strings.NewReader(`{"name":"x","categories":"Tours"}`)); return err }},
		{"bad stars", func() error {
			_, err := ReadInteractions(strings.NewReader(`{"user_id":"U1","tour_id":"T1","stars":7}`))
			return err
		}},
		{"missing user", func() error {
			_, err := ReadInteractions(strings.NewReader(`{"tour_id":"T1","stars":3}`))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.read(); !core.IsTrainingData(err) {
				t.Fatalf("err = %v, want TRAINING_DATA", err)
			}
		})
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	tours := []core.Tour{{ID: "T1", Name: "Paris Walking Tour", City: "Paris", State: "FR", Stars: 4.5, ReviewCount: 3, Categories: []string{"Tours", "Active Life"}}}
	var buf bytes.Buffer
	if err := WriteTours(&buf, tours); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTours(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, tours) {
		t.Errorf("round trip = %+v, want %+v", got, tours)
	}
}

func TestPolicyExactCategory(t *testing.T) {
	p, err := NewPolicy(`categories.exists(c, c == "Tours")`)
	if err != nil {
		t.Fatal(err)
	}
	for rec, want := range map[string]bool{"Tours, Food": true, "Bus Tours": false} {
		got, err := p.Keep(map[string]any{"categories": rec})
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Keep(%q) = %v, want %v", rec, got, want)
		}
	}
}
