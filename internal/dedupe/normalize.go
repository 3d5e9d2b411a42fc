package dedupe

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/desertthunder/dzdedupe/internal/models"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	isrcNoiseRegex  = regexp.MustCompile(`[\s-]+`)
)

// Normalizer folds track fields into comparison keys.
//
// A Normalizer holds a stateful [cases.Caser] and must not be shared between goroutines.
type Normalizer struct {
	caser cases.Caser
}

func NewNormalizer() *Normalizer {
	return &Normalizer{caser: cases.Fold()}
}

// Text applies the normalization rule described in the package documentation.
func (n *Normalizer) Text(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}

	s = n.caser.String(b.String())
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ISRCKey returns the ISRC key of t, or "" if it has none.
func (n *Normalizer) ISRCKey(t models.Track) string {
	isrc := isrcNoiseRegex.ReplaceAllString(strings.TrimSpace(t.ISRC), "")
	if isrc == "" {
		return ""
	}
	return n.caser.String(isrc)
}

// TrackName is the normalized (title, artist) pair compared by [models.ModeNameArtist].
type TrackName struct {
	Title  string
	Artist string
}

// IsZero reports whether k has no title and so never matches.
func (k TrackName) IsZero() bool {
	return k.Title == ""
}

// String renders k for reports as "title|artist". Matching uses the pair, not this string.
func (k TrackName) String() string {
	if k.IsZero() {
		return ""
	}
	return k.Title + "|" + k.Artist
}

// NameKey returns the title and artist pair of t, zero if the title normalizes to nothing.
func (n *Normalizer) NameKey(t models.Track) TrackName {
	title := n.Text(t.FullTitle())
	if title == "" {
		return TrackName{}
	}
	return TrackName{Title: title, Artist: n.Text(t.Artist)}
}

// NormalizeText folds s with a fresh [Normalizer].
func NormalizeText(s string) string {
	return NewNormalizer().Text(s)
}

// NormalizeTrackKey returns the title and artist key used by [models.ModeNameArtist].
func NormalizeTrackKey(title, artist string) string {
	return NewNormalizer().NameKey(models.Track{Title: title, Artist: artist}).String()
}
