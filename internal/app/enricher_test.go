package app

import (
	"testing"

	"github.com/pieterkdevilliers/music-db/internal/constants"
	"github.com/pieterkdevilliers/music-db/internal/domain"
	"github.com/pieterkdevilliers/music-db/internal/llm"
)

func TestMergeMusicians(t *testing.T) {
	tests := []struct {
		name     string
		existing []domain.MusicianCredit
		facts    []llm.MusicianFact
		wantLen  int
		wantGrew bool
	}{
		{
			name:     "adds new musicians",
			existing: []domain.MusicianCredit{{Name: "Miles Davis", Instrument: "trumpet"}},
			facts: []llm.MusicianFact{
				{Name: "Bill Evans", Instrument: "piano"},
			},
			wantLen:  2,
			wantGrew: true,
		},
		{
			name:     "dedupes by name ignoring case and instrument",
			existing: []domain.MusicianCredit{{Name: "Miles Davis", Instrument: "trumpet"}},
			facts: []llm.MusicianFact{
				{Name: "MILES DAVIS", Instrument: "flugelhorn"},
			},
			wantLen:  1,
			wantGrew: false,
		},
		{
			name:     "skips blank names",
			existing: nil,
			facts: []llm.MusicianFact{
				{Name: "  ", Instrument: "bass"},
				{Name: "Paul Chambers", Instrument: "bass"},
			},
			wantLen:  1,
			wantGrew: true,
		},
		{
			name:     "empty facts change nothing",
			existing: []domain.MusicianCredit{{Name: "Miles Davis", Instrument: "trumpet"}},
			facts:    nil,
			wantLen:  1,
			wantGrew: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, grew := mergeMusicians(tt.existing, tt.facts)
			if len(merged) != tt.wantLen {
				t.Errorf("Expected %d credits, got %d", tt.wantLen, len(merged))
			}
			if grew != tt.wantGrew {
				t.Errorf("Expected grew=%v, got %v", tt.wantGrew, grew)
			}
		})
	}
}

func TestMergeMusicians_KeepsExistingInstrument(t *testing.T) {
	existing := []domain.MusicianCredit{{Name: "Miles Davis", Instrument: "trumpet"}}
	merged, _ := mergeMusicians(existing, []llm.MusicianFact{
		{Name: "miles davis", Instrument: "flugelhorn"},
	})
	if merged[0].Instrument != "trumpet" {
		t.Errorf("Expected existing instrument kept, got %s", merged[0].Instrument)
	}
}

func TestMergePersonnel(t *testing.T) {
	existing := []domain.PersonnelCredit{{Name: "Teo Macero", Role: "producer"}}

	// Same name in a new role is a distinct credit.
	merged, grew := mergePersonnel(existing, []llm.PersonnelFact{
		{Name: "Teo Macero", Role: "editor"},
		{Name: "teo macero", Role: "PRODUCER"},
	})
	if !grew {
		t.Error("Expected growth from the new role")
	}
	if len(merged) != 2 {
		t.Fatalf("Expected 2 credits, got %d", len(merged))
	}
	if merged[1].Role != "editor" {
		t.Errorf("Expected new role editor, got %s", merged[1].Role)
	}
}

func TestMergeDetails(t *testing.T) {
	existing := []domain.DetailCredit{{Value: "Columbia 30th Street Studio", Type: "recording studio"}}

	merged, grew := mergeDetails(existing, []llm.DetailFact{
		{Value: "columbia 30th street studio", Type: "Recording Studio"},
		{Value: "1959", Type: "recording year"},
		{Value: "no type", Type: ""},
	})
	if !grew {
		t.Error("Expected growth from the new detail")
	}
	if len(merged) != 2 {
		t.Fatalf("Expected 2 details, got %d", len(merged))
	}
	if merged[1].Value != "1959" {
		t.Errorf("Expected new detail 1959, got %s", merged[1].Value)
	}
}

func TestCapNames(t *testing.T) {
	names := make([]string, constants.MaxPromptNames+10)
	for i := range names {
		names[i] = "name"
	}
	if got := capNames(names); len(got) != constants.MaxPromptNames {
		t.Errorf("Expected %d names, got %d", constants.MaxPromptNames, len(got))
	}
	short := []string{"a", "b"}
	if got := capNames(short); len(got) != 2 {
		t.Errorf("Expected short list untouched, got %d", len(got))
	}
}
