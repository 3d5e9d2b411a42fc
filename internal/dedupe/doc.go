// Package dedupe groups the tracks of one playlist into sets of duplicates.
//
// # Modes
//
//   - [models.ModeISRC] : same ISRC. Tracks without an ISRC never match.
//   - [models.ModeNameArtist] : same normalized title (including the version suffix) and artist.
//   - [models.ModeCombined] : either of the above. Matches are merged transitively with a [UnionFind].
//
// # Normalization
//
// [Normalizer.Text] is the single text folding rule used for titles and artists:
//
//  1. Unicode NFKD decomposition, then combining marks are dropped ("Beyoncé" -> "Beyonce")
//  2. Unicode case folding
//  3. Surrounding whitespace trimmed and inner runs collapsed to one space
//
// Punctuation and "feat." annotations are kept, so "Song (Live)" and "Song" stay distinct.
//
// ISRCs are trimmed, stripped of hyphens and inner spaces, and case folded.
//
// # Survivors
//
// Within a group the member with the lowest position is kept; every other member is removable.
// Groups are returned in ascending order of their survivor's position.
package dedupe
