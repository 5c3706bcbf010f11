package deduction

import (
	"sort"
	"strings"
	"unicode/utf8"

	"spicedesk/internal/domain"
)

const defaultThreshold = 0.6

// Common market names for the same spice. Both directions of each group
// resolve to the same product, so a bill line saying "mirchi" still hits
// the product filed as "red chili powder".
var defaultSynonyms = [][]string{
	{"red chili powder", "red chilli powder", "mirchi", "lal mirch", "chili powder", "chilli powder"},
	{"turmeric", "haldi", "turmeric powder"},
	{"cumin", "jeera", "cumin seeds"},
	{"coriander", "dhania", "coriander powder"},
	{"black pepper", "kali mirch", "peppercorn"},
	{"cardamom", "elaichi", "green cardamom"},
	{"fenugreek", "methi", "fenugreek seeds"},
	{"mustard seeds", "rai", "sarson"},
	{"asafoetida", "hing"},
	{"carom seeds", "ajwain"},
}

// Matcher resolves free-text item names from bills and orders to catalog
// products. Scoring is layered: exact 1.0, shared synonym group 0.9,
// containment 0.8, otherwise normalized edit distance. Anything below the
// threshold is no match.
type Matcher struct {
	threshold float64
	synonyms  map[string]int
}

type MatcherOption func(*Matcher)

func WithThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

func WithSynonyms(groups [][]string) MatcherOption {
	return func(m *Matcher) {
		m.synonyms = indexSynonyms(groups)
	}
}

func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		threshold: defaultThreshold,
		synonyms:  indexSynonyms(defaultSynonyms),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type Match struct {
	Product domain.Product
	Score   float64
}

// Match returns the best-scoring product for the given item name, or
// ok=false when nothing clears the threshold. Candidates are walked in id
// order so equal scores always resolve the same way.
func (m *Matcher) Match(itemName string, products []domain.Product) (Match, bool) {
	name := Normalize(itemName)
	if name == "" {
		return Match{}, false
	}

	candidates := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Active {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	best := Match{Score: -1}
	for _, product := range candidates {
		score := m.score(name, Normalize(product.Name))
		if score > best.Score {
			best = Match{Product: product, Score: score}
		}
	}

	if best.Score < m.threshold {
		return Match{}, false
	}
	return best, true
}

func (m *Matcher) score(query string, candidate string) float64 {
	if candidate == "" {
		return 0
	}
	if query == candidate {
		return 1.0
	}
	if qg, ok := m.synonyms[query]; ok {
		if cg, ok := m.synonyms[candidate]; ok && qg == cg {
			return 0.9
		}
	}
	if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
		return 0.8
	}
	return similarity(query, candidate)
}

// Normalize lowercases, trims, and collapses interior whitespace so that
// " Red  Chili " and "red chili" compare equal.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func indexSynonyms(groups [][]string) map[string]int {
	index := make(map[string]int)
	for i, group := range groups {
		for _, term := range group {
			index[Normalize(term)] = i
		}
	}
	return index
}

// similarity is 1 minus the Levenshtein distance normalized by the longer
// string's rune count, so identical strings score 1 and disjoint ones
// approach 0 regardless of how many bytes each rune takes.
func similarity(a string, b string) float64 {
	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longer)
}

func levenshtein(a string, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, minInt(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(a int, b int) int {
	if a < b {
		return a
	}
	return b
}
