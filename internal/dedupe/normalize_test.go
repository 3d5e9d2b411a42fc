package dedupe

import (
	"testing"

	"github.com/desertthunder/dzdedupe/internal/models"
)

func TestNormalizeText(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "basic normalization", in: "Song Title", want: "song title"},
		{name: "extra whitespace", in: "  Song \t  Title  ", want: "song title"},
		{name: "mixed case", in: "SoNg TiTlE", want: "song title"},
		{name: "diacritics", in: "Beyoncé", want: "beyonce"},
		{name: "compatibility forms", in: "Ｓｏｎｇ", want: "song"},
		{name: "case folding", in: "STRASSE straße", want: "strasse strasse"},
		{name: "punctuation kept", in: "Don't Stop (Live)", want: "don't stop (live)"},
		{name: "featuring kept", in: "Song feat. Someone", want: "song feat. someone"},
		{name: "only whitespace", in: "   ", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{name: "basic normalization", title: "Song Title", artist: "Artist Name", want: "song title|artist name"},
		{name: "extra whitespace", title: "  Song   Title  ", artist: "  Artist   Name  ", want: "song title|artist name"},
		{name: "mixed case", title: "SoNg TiTlE", artist: "ArTiSt NaMe", want: "song title|artist name"},
		{name: "empty title", title: "  ", artist: "Artist", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTrackKey(tt.title, tt.artist); got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		a := NormalizeTrackKey("Song", "Artist")
		b := NormalizeTrackKey(" song  ", "ARTIST")
		if a != b {
			t.Errorf("expected identical keys, got %q and %q", a, b)
		}
	})
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer()

	t.Run("ISRCKey", func(t *testing.T) {
		tc := map[string]string{
			"USRC17607839":    "usrc17607839",
			" usrc17607839 ":  "usrc17607839",
			"US-RC1-76-07839": "usrc17607839",
			"":                "",
			"   ":             "",
		}
		for in, want := range tc {
			if got := n.ISRCKey(models.Track{ISRC: in}); got != want {
				t.Errorf("ISRCKey(%q) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("NameKey Includes Version", func(t *testing.T) {
		plain := n.NameKey(models.Track{Title: "Song", Artist: "Artist"})
		live := n.NameKey(models.Track{Title: "Song", Version: "(Live)", Artist: "Artist"})
		if plain == live {
			t.Errorf("expected version to distinguish keys, both were %q", plain)
		}
		if want := (TrackName{Title: "song (live)", Artist: "artist"}); live != want {
			t.Errorf("unexpected key %+v", live)
		}
		if live.String() != "song (live)|artist" {
			t.Errorf("unexpected rendered key %q", live.String())
		}
	})

	t.Run("NameKey Keeps Fields Apart", func(t *testing.T) {
		a := n.NameKey(models.Track{Title: "Intro|Outro", Artist: "Band"})
		b := n.NameKey(models.Track{Title: "Intro", Artist: "Outro|Band"})
		if a == b {
			t.Errorf("expected distinct pairs, both were %+v", a)
		}
		if !(TrackName{}).IsZero() || a.IsZero() {
			t.Error("expected only the empty pair to be zero")
		}
	})
}
