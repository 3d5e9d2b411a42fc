package models

import "testing"

func TestParseMode(t *testing.T) {
	tt := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "isrc", want: ModeISRC},
		{input: "1", want: ModeISRC},
		{input: " NAME ", want: ModeNameArtist},
		{input: "2", want: ModeNameArtist},
		{input: "both", want: ModeCombined},
		{input: "combined", want: ModeCombined},
		{input: "3", want: ModeCombined},
		{input: "4", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseMode(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestMode(t *testing.T) {
	if !ModeISRC.UsesISRC() || ModeISRC.UsesName() {
		t.Error("ISRC mode should only use ISRC")
	}
	if ModeNameArtist.UsesISRC() || !ModeNameArtist.UsesName() {
		t.Error("name mode should only use name")
	}
	if !ModeCombined.UsesISRC() || !ModeCombined.UsesName() {
		t.Error("combined mode should use both")
	}
	if ModeCombined.String() != "both" {
		t.Errorf("expected both, got %s", ModeCombined.String())
	}
}

func TestDuplicateGroup(t *testing.T) {
	t.Run("Removable excludes survivor", func(t *testing.T) {
		g := DuplicateGroup{
			Members:  []Track{{ID: "1", Position: 0}, {ID: "2", Position: 3}, {ID: "3", Position: 5}},
			Survivor: Track{ID: "1", Position: 0},
		}
		removable := g.Removable()
		if len(removable) != 2 {
			t.Fatalf("expected 2 removable tracks, got %d", len(removable))
		}
		if removable[0].ID != "2" || removable[1].ID != "3" {
			t.Errorf("unexpected removable tracks: %+v", removable)
		}
	})

	t.Run("Single member has nothing to remove", func(t *testing.T) {
		g := DuplicateGroup{Members: []Track{{ID: "1"}}}
		if len(g.Removable()) != 0 {
			t.Error("expected no removable tracks")
		}
	})
}

func TestTrackFullTitle(t *testing.T) {
	if got := (Track{Title: "Song"}).FullTitle(); got != "Song" {
		t.Errorf("expected Song, got %s", got)
	}
	if got := (Track{Title: "Song", Version: "(Live)"}).FullTitle(); got != "Song (Live)" {
		t.Errorf("expected 'Song (Live)', got %s", got)
	}
}
