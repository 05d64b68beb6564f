package names

import (
	"sort"
	"strings"
)

// DefaultThreshold is the score below which two names are considered
// different people.
const DefaultThreshold = 0.7

// Match type labels, strongest first.
const (
	MatchExact     = "exact"
	MatchHonorific = "honorific"
	MatchNickname  = "nickname"
	MatchPhonetic  = "phonetic"
	MatchTypo      = "typo"
	MatchFuzzy     = "fuzzy"
)

type MatchResult struct {
	Score     float64
	MatchType string
}

// Ranked pairs a candidate name with its match against a query.
type Ranked struct {
	Name string
	MatchResult
}

// Score compares two names and returns the strongest applicable match. The
// comparison is symmetric and the score is always within [0, 1]. Devanagari
// input is transliterated before comparison so "दीपक" and "Deepak" unify.
func Score(a, b string) MatchResult {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return MatchResult{0, MatchFuzzy}
	}
	if na == nb {
		return MatchResult{1.0, MatchExact}
	}

	ha := stripHonorifics(na)
	hb := stripHonorifics(nb)
	if ha == hb {
		return MatchResult{0.95, MatchHonorific}
	}

	if nicknameEquivalent(ha, hb) {
		return MatchResult{0.92, MatchNickname}
	}

	pa := phonetic(ha)
	pb := phonetic(hb)
	if pa == pb {
		return MatchResult{0.90, MatchPhonetic}
	}

	d := editDistance(pa, pb)
	maxLen := len(pa)
	if len(pb) > maxLen {
		maxLen = len(pb)
	}
	sim := 0.9 * (1.0 - float64(d)/float64(maxLen))
	if d <= 1 {
		if sim < 0.8 {
			sim = 0.8
		}
		return MatchResult{sim, MatchTypo}
	}
	if sim < 0 {
		sim = 0
	}
	return MatchResult{sim, MatchFuzzy}
}

// Match returns the result only when the score clears threshold; pass 0 to
// use DefaultThreshold.
func Match(query, candidate string, threshold float64) (MatchResult, bool) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	r := Score(query, candidate)
	if r.Score < threshold {
		return MatchResult{}, false
	}
	return r, true
}

// SamePerson reports whether two mentions plausibly refer to one person.
func SamePerson(a, b string) bool {
	_, ok := Match(a, b, 0)
	return ok
}

// BestMatch returns the highest-scoring candidate above DefaultThreshold.
func BestMatch(query string, candidates []string) (string, MatchResult, bool) {
	var (
		bestName string
		best     MatchResult
		found    bool
	)
	for _, c := range candidates {
		r := Score(query, c)
		if r.Score >= DefaultThreshold && r.Score > best.Score {
			bestName, best, found = c, r, true
		}
	}
	return bestName, best, found
}

// AllMatches returns every candidate above threshold, strongest first.
func AllMatches(query string, candidates []string, threshold float64) []Ranked {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	var out []Ranked
	for _, c := range candidates {
		if r := Score(query, c); r.Score >= threshold {
			out = append(out, Ranked{Name: c, MatchResult: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Normalize lowercases, transliterates and collapses whitespace. The store
// keeps this form alongside the display name for exact and substring search.
func Normalize(s string) string {
	s = Transliterate(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// stripHonorifics removes respect words (ji, bhai, didi, ...) unless the
// name consists only of them.
func stripHonorifics(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0:0]
	for _, f := range fields {
		if !honorifics[f] {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return s
	}
	return strings.Join(kept, " ")
}

func nicknameEquivalent(a, b string) bool {
	return knownNickname(a, b) || knownNickname(b, a)
}

func knownNickname(nick, formal string) bool {
	for _, f := range nicknames[nick] {
		if f == formal {
			return true
		}
	}
	// single-token lookup also applies when the formal side carries a surname
	first := strings.Fields(formal)
	if len(first) > 1 {
		return knownNickname(nick, first[0])
	}
	return false
}

// phonetic reduces a romanized Indian name to a comparison key: aspirated
// consonants fold to their plain forms, long vowels shorten, v/w unify and
// trailing h/a fall off. "Bharath", "Bharat" and "Bharata" all reduce to
// "barat".
func phonetic(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = phoneticWord(w)
	}
	return strings.Join(words, " ")
}

var phoneticPairs = []struct{ from, to string }{
	{"ksh", "x"},
	{"jn", "gy"},
	{"chh", "c"},
	{"ch", "c"},
	{"bh", "b"},
	{"dh", "d"},
	{"th", "t"},
	{"ph", "p"},
	{"gh", "g"},
	{"kh", "k"},
	{"sh", "s"},
	{"w", "v"},
}

func phoneticWord(w string) string {
	for _, p := range phoneticPairs {
		w = strings.ReplaceAll(w, p.from, p.to)
	}
	w = collapseVowelRuns(w)
	if len(w) > 1 && strings.HasSuffix(w, "h") {
		w = w[:len(w)-1]
	}
	if len(w) > 2 && strings.HasSuffix(w, "a") {
		w = w[:len(w)-1]
	}
	return w
}

// collapseVowelRuns shortens doubled vowels: aa→a, ee→i, oo→u, ii→i, uu→u.
func collapseVowelRuns(s string) string {
	collapsed := map[byte]byte{'a': 'a', 'e': 'i', 'i': 'i', 'o': 'u', 'u': 'u'}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		j := i + 1
		if short, isVowel := collapsed[c]; isVowel {
			for j < len(s) && s[j] == c {
				j++
			}
			if j-i >= 2 {
				b.WriteByte(short)
			} else {
				b.WriteByte(c)
			}
		} else {
			b.WriteByte(c)
		}
		i = j
	}
	return b.String()
}

// editDistance is the optimal string alignment distance: insert, delete,
// substitute, plus adjacent transposition, so "Simpal"/"Simlap"-style swaps
// count as one edit.
func editDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			m := d[i-1][j] + 1
			if x := d[i][j-1] + 1; x < m {
				m = x
			}
			if x := d[i-1][j-1] + cost; x < m {
				m = x
			}
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if x := d[i-2][j-2] + 1; x < m {
					m = x
				}
			}
			d[i][j] = m
		}
	}
	return d[la][lb]
}
