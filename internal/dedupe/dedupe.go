package dedupe

import (
	"cmp"
	"slices"

	"github.com/desertthunder/dzdedupe/internal/models"
)

// FindDuplicates groups tracks that are equivalent under mode.
//
// The input is not modified. Only groups with at least two members are returned, ordered by the
// position of their survivor. Calling it twice on the same input yields identical groups.
func FindDuplicates(tracks []models.Track, mode models.Mode) []models.DuplicateGroup {
	if !mode.UsesISRC() && !mode.UsesName() {
		return nil
	}

	ordered := slices.Clone(tracks)
	slices.SortStableFunc(ordered, func(a, b models.Track) int {
		return cmp.Compare(a.Position, b.Position)
	})

	n := NewNormalizer()
	uf := NewUnionFind(len(ordered))
	isrcKeys := make([]string, len(ordered))
	nameKeys := make([]TrackName, len(ordered))
	firstISRC := make(map[string]int)
	firstName := make(map[TrackName]int)

	for i, t := range ordered {
		if mode.UsesISRC() {
			isrcKeys[i] = n.ISRCKey(t)
			if isrcKeys[i] != "" {
				link(uf, firstISRC, isrcKeys[i], i)
			}
		}
		if mode.UsesName() {
			nameKeys[i] = n.NameKey(t)
			if !nameKeys[i].IsZero() {
				link(uf, firstName, nameKeys[i], i)
			}
		}
	}

	// Visiting indices in position order makes each component's first index its survivor.
	var roots []int
	components := make(map[int][]int)
	for i := range ordered {
		root := uf.Find(i)
		if _, seen := components[root]; !seen {
			roots = append(roots, root)
		}
		components[root] = append(components[root], i)
	}

	var groups []models.DuplicateGroup
	for _, root := range roots {
		indices := components[root]
		if len(indices) < 2 {
			continue
		}

		members := make([]models.Track, len(indices))
		for k, i := range indices {
			members[k] = ordered[i]
		}

		survivor := indices[0]
		groups = append(groups, models.DuplicateGroup{
			Key:      groupKey(mode, isrcKeys[survivor], nameKeys[survivor]),
			Members:  members,
			Survivor: members[0],
		})
	}

	return groups
}

// link unions i with the first index seen under key.
func link[K comparable](uf *UnionFind, first map[K]int, key K, i int) {
	if j, ok := first[key]; ok {
		uf.Union(j, i)
		return
	}
	first[key] = i
}

func groupKey(mode models.Mode, isrcKey string, nameKey TrackName) string {
	switch mode {
	case models.ModeISRC:
		return isrcKey
	case models.ModeNameArtist:
		return nameKey.String()
	default:
		if isrcKey != "" {
			return "isrc:" + isrcKey
		}
		return "name:" + nameKey.String()
	}
}

// CountRemovable returns the number of removable tracks across groups.
func CountRemovable(groups []models.DuplicateGroup) int {
	total := 0
	for _, g := range groups {
		total += len(g.Removable())
	}
	return total
}
