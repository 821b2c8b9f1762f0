package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const homoglyphThreshold = 0.3

var (
	versionSuffix = regexp.MustCompile(`[@-][\d.]+`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]`)
)

// homoglyphs maps look-alike runes onto the Latin letter they imitate
var homoglyphs = map[rune]rune{
	'а': 'a', 'ɑ': 'a', 'α': 'a',
	'с': 'c', 'ϲ': 'c',
	'е': 'e', 'ɛ': 'e',
	'і': 'i', 'ι': 'i',
	'о': 'o', 'ο': 'o',
	'р': 'p', 'ρ': 'p',
	'ѕ': 's', 'ꜱ': 's',
	'х': 'x', 'ⅹ': 'x',
	'у': 'y', 'γ': 'y',
}

var soundexCodes = map[byte]byte{
	'a': '0', 'e': '0', 'i': '0', 'o': '0', 'u': '0',
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// NormalizeName lowercases a package name, drops version suffixes such as
// "@1.2.3" or "-1.2.3" and strips everything outside [a-z0-9].
func NormalizeName(name string) string {
	n := strings.ToLower(name)
	n = versionSuffix.ReplaceAllString(n, "")
	return nonAlnum.ReplaceAllString(n, "")
}

// Levenshtein returns the edit distance between a and b
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

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
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// editThreshold is the largest distance still treated as a typo for a name of length n
func editThreshold(n int) int {
	switch {
	case n <= 5:
		return 1
	case n <= 10:
		return 2
	default:
		return 3
	}
}

func bigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	r := []rune(s)
	for i := 0; i+2 <= len(r); i++ {
		set[string(r[i:i+2])] = struct{}{}
	}
	return set
}

// JaccardBigrams returns |A∩B| / |A∪B| over the character bigram sets of a and b
func JaccardBigrams(a, b string) float64 {
	return jaccard(bigrams(a), bigrams(b))
}

func jaccard(sa, sb map[string]struct{}) float64 {
	inter := 0
	for g := range sa {
		if _, ok := sb[g]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Soundex returns the four character phonetic code of an ASCII name.
// Vowels separate repeated codes; letters without a code (h, w, y, digits) reset the previous code.
func Soundex(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)

	code := []byte{upperASCII(s[0])}
	prev := soundexCodes[s[0]]
	for i := 1; i < len(s) && len(code) < 4; i++ {
		c := soundexCodes[s[i]]
		if c != 0 && c != '0' && c != prev {
			code = append(code, c)
		}
		prev = c
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func upperASCII(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// HomoglyphRatio returns the share of look-alike runes in name and the Latin
// skeleton obtained by replacing them. Version suffixes are removed first so
// that digits in "pkg-1.0.0" do not count as look-alikes.
func HomoglyphRatio(name string) (float64, string) {
	lower := versionSuffix.ReplaceAllString(strings.ToLower(name), "")
	total := utf8.RuneCountInString(lower)
	if total == 0 {
		return 0, ""
	}

	var b strings.Builder
	count := 0
	for _, r := range lower {
		if latin, ok := homoglyphs[r]; ok {
			count++
			b.WriteRune(latin)
			continue
		}
		b.WriteRune(r)
	}
	return float64(count) / float64(total), NormalizeName(b.String())
}
