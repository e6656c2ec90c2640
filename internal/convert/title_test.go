package convert_test

import (
	"testing"

	"carousel/internal/convert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"snake case", "quarterly_review.pptx", "Quarterly Review"},
		{"hyphenated", "2024-roadmap-draft.odp", "2024 Roadmap Draft"},
		{"dotted", "all.hands.deck.ppt", "All Hands Deck"},
		{"already titled", "Board Update.pptx", "Board Update"},
		{"collapses runs", "team__sync---notes.pptx", "Team Sync Notes"},
		{"strips punctuation", "deck (final) [v2].pptx", "Deck Final V2"},
		{"path stripped", "/tmp/uploads/keynote.ppsx", "Keynote"},
		{"unicode kept", "estratégia_2025.pptx", "Estratégia 2025"},
		{"empty after cleaning", "!!!.pptx", "Untitled Presentation"},
		{"no extension", "briefing", "Briefing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convert.DeriveTitle(tt.filename); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
