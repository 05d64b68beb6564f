// Package names handles Indian personal names as they come out of speech
// recognition: Devanagari-to-Roman transliteration and fuzzy matching that
// tolerates the usual spelling drift (Bharat/Bharath, Lakshmi/Laxmi),
// honorifics and nicknames.
package names

import (
	"strings"
	"unicode"
)

// Devanagari block.
const (
	devanagariLo = 0x0900
	devanagariHi = 0x097F
)

var consonants = map[rune]string{
	'क': "k", 'ख': "kh", 'ग': "g", 'घ': "gh", 'ङ': "n",
	'च': "ch", 'छ': "chh", 'ज': "j", 'झ': "jh", 'ञ': "n",
	'ट': "t", 'ठ': "th", 'ड': "d", 'ढ': "dh", 'ण': "n",
	'त': "t", 'थ': "th", 'द': "d", 'ध': "dh", 'न': "n",
	'प': "p", 'फ': "ph", 'ब': "b", 'भ': "bh", 'म': "m",
	'य': "y", 'र': "r", 'ल': "l", 'व': "v",
	'श': "sh", 'ष': "sh", 'स': "s", 'ह': "h",
	'ळ': "l", 'ऱ': "r", 'ऴ': "l",
	// precomposed nukta forms U+0958..U+095F (qa, khha, ghha, za, dddha,
	// rha, fa, yya); the decomposed base+U+093C spellings go through
	// nuktaForms instead
	'क़': "q", 'ख़': "kh", 'ग़': "g", 'ज़': "z",
	'ड़': "d", 'ढ़': "rh", 'फ़': "f", 'य़': "y",
}

// nuktaForms maps a base consonant to its romanization when followed by a
// combining nukta (U+093C), e.g. ज + ़ sounds "z".
var nuktaForms = map[string]string{
	"k": "q", "kh": "kh", "g": "g", "j": "z",
	"d": "d", "dh": "rh", "ph": "f", "y": "y",
}

var vowels = map[rune]string{
	'अ': "a", 'आ': "a", 'इ': "i", 'ई': "i", 'उ': "u", 'ऊ': "u",
	'ऋ': "ri", 'ॠ': "ri", 'ऌ': "li", 'ॡ': "li",
	'ऍ': "e", 'ऎ': "e", 'ए': "e", 'ऐ': "ai",
	'ऑ': "o", 'ऒ': "o", 'ओ': "o", 'औ': "au",
}

var matras = map[rune]string{
	'ा': "a", 'ि': "i", 'ी': "i", 'ु': "u", 'ू': "u",
	'ृ': "ri", 'ॄ': "ri", 'ॢ': "li", 'ॣ': "li",
	'ॅ': "e", 'ॆ': "e", 'े': "e", 'ै': "ai",
	'ॉ': "o", 'ॊ': "o", 'ो': "o", 'ौ': "au",
}

const (
	chandrabindu = 'ँ'
	anusvara     = 'ं'
	visarga      = 'ः'
	nukta        = '़'
	virama       = '्'
	zwnj         = '‌'
	zwj          = '‍'
)

func isDevanagari(r rune) bool {
	return r >= devanagariLo && r <= devanagariHi
}

// HasDevanagari reports whether s contains any rune from the Devanagari block.
func HasDevanagari(s string) bool {
	for _, r := range s {
		if isDevanagari(r) {
			return true
		}
	}
	return false
}

// Transliterate converts Devanagari runs in s to Title Case Roman script,
// leaving ASCII and everything else untouched. The inherent 'a' is inserted
// between bare consonants and dropped word-finally; no internal schwa
// deletion is attempted, so जगदीश becomes "Jagadish" rather than "Jagdish".
// The result never contains a Devanagari rune.
func Transliterate(s string) string {
	if !HasDevanagari(s) {
		return s
	}

	var out strings.Builder
	out.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !isDevanagari(runes[i]) && runes[i] != zwnj && runes[i] != zwj {
			out.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && (isDevanagari(runes[j]) || runes[j] == zwnj || runes[j] == zwj) {
			j++
		}
		out.WriteString(transliterateRun(runes[i:j]))
		i = j
	}
	return out.String()
}

// transliterateRun converts one maximal run of Devanagari runes.
func transliterateRun(run []rune) string {
	// tokens of roman text; the last consonant token may still be rewritten
	// by a trailing nukta
	var tokens []string
	pendingA := false // a consonant was emitted and its inherent vowel is undecided
	lastCons := -1

	flushA := func() {
		if pendingA {
			tokens = append(tokens, "a")
			pendingA = false
		}
	}

	for _, r := range run {
		switch {
		case r == zwnj || r == zwj:
			// invisible joiners, drop
		case consonants[r] != "":
			flushA()
			tokens = append(tokens, consonants[r])
			lastCons = len(tokens) - 1
			pendingA = true
		case matras[r] != "":
			tokens = append(tokens, matras[r])
			pendingA = false
		case vowels[r] != "":
			flushA()
			tokens = append(tokens, vowels[r])
		case r == virama:
			pendingA = false
		case r == nukta:
			if lastCons >= 0 {
				if alt, ok := nuktaForms[tokens[lastCons]]; ok {
					tokens[lastCons] = alt
				}
			}
		case r == anusvara || r == chandrabindu:
			flushA()
			tokens = append(tokens, "n")
		case r == visarga:
			flushA()
			tokens = append(tokens, "h")
		case r >= '०' && r <= '९':
			pendingA = false
			tokens = append(tokens, string(rune('0'+r-'०')))
		case r == '।' || r == '॥':
			pendingA = false
			tokens = append(tokens, ".")
		default:
			// unmapped sign, drop rather than leak Devanagari
			pendingA = false
		}
	}

	word := strings.Join(tokens, "")
	return titleFirst(word)
}

func titleFirst(word string) string {
	for i, r := range word {
		if unicode.IsLetter(r) {
			return word[:i] + string(unicode.ToUpper(r)) + word[i+len(string(r)):]
		}
	}
	return word
}
