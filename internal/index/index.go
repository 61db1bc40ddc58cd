package index

import (
	"sort"
	"strings"

	"github.com/omgd/omgd/internal/backend"
)

type rankTier int

const (
	tierExact rankTier = iota
	tierPrefix
	tierNameContains
	tierDescContains
)

type entry struct {
	detail    backend.DetailedPackageInfo
	lowerName string
	lowerDesc string
}

// Index is an immutable, point-in-time view over a package universe. Build
// it once per generation; never mutate an existing Index.
type Index struct {
	exact   map[string]backend.DetailedPackageInfo
	entries []entry
}

// Build constructs a new Index generation from the backend's full available
// list. The returned Index shares no mutable state with pkgs.
func Build(pkgs []backend.DetailedPackageInfo) *Index {
	idx := &Index{
		exact:   make(map[string]backend.DetailedPackageInfo, len(pkgs)),
		entries: make([]entry, 0, len(pkgs)),
	}
	for _, p := range pkgs {
		idx.exact[p.Name] = p
		idx.entries = append(idx.entries, entry{
			detail:    p,
			lowerName: strings.ToLower(p.Name),
			lowerDesc: strings.ToLower(p.Description),
		})
	}
	return idx
}

// Len reports how many packages this generation indexes.
func (idx *Index) Len() int { return len(idx.entries) }

// Get performs an O(1) exact-name lookup.
func (idx *Index) Get(name string) (backend.DetailedPackageInfo, bool) {
	d, ok := idx.exact[name]
	return d, ok
}

// Search returns packages whose lower-cased name or description relates to
// query, ranked exact > prefix > name-contains > description-contains, ties
// broken lexicographically by name, truncated to limit.
func (idx *Index) Search(query string, limit int) []backend.PackageInfo {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		tier rankTier
		pkg  backend.PackageInfo
	}
	var hits []scored
	for _, e := range idx.entries {
		var tier rankTier
		switch {
		case e.lowerName == q:
			tier = tierExact
		case strings.HasPrefix(e.lowerName, q):
			tier = tierPrefix
		case strings.Contains(e.lowerName, q):
			tier = tierNameContains
		case strings.Contains(e.lowerDesc, q):
			tier = tierDescContains
		default:
			continue
		}
		hits = append(hits, scored{tier: tier, pkg: e.detail.PackageInfo})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].tier != hits[j].tier {
			return hits[i].tier < hits[j].tier
		}
		return hits[i].pkg.Name < hits[j].pkg.Name
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]backend.PackageInfo, len(hits))
	for i, h := range hits {
		out[i] = h.pkg
	}
	return out
}

// maxEditDistance mirrors the spec's bound: at most 2 for short queries,
// otherwise one quarter of the query length.
func maxEditDistance(q string) int {
	n := len([]rune(q))
	if n <= 5 {
		return 2
	}
	return n / 4
}

type suggestion struct {
	name     string
	distance int
}

// Suggest returns up to k package names within a bounded edit distance of
// query, ordered by distance then lexicographically. Callers should only
// invoke Suggest after Get has already missed.
func (idx *Index) Suggest(query string, k int) []string {
	if query == "" || k <= 0 {
		return nil
	}
	q := strings.ToLower(query)
	bound := maxEditDistance(q)

	var candidates []suggestion
	for _, e := range idx.entries {
		d := boundedLevenshtein(q, e.lowerName, bound)
		if d < 0 {
			continue
		}
		candidates = append(candidates, suggestion{name: e.detail.Name, distance: d})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// boundedLevenshtein returns the edit distance between a and b if it is <=
// bound, or -1 if it exceeds bound. It uses the classic two-row DP; early
// termination is not attempted since package name lengths are small.
func boundedLevenshtein(a, b string, bound int) int {
	ar, br := []rune(a), []rune(b)
	if abs(len(ar)-len(br)) > bound {
		return -1
	}
	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	d := prev[len(br)]
	if d > bound {
		return -1
	}
	return d
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
