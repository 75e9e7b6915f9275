package dedup

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"
)

var (
	apostrophes = strings.NewReplacer(
		"’", "'", "‘", "'", "ʼ", "'", "ʹ", "'",
		"´", "'", "′", "'", "`", "'",
	)
	reNamePunct = regexp.MustCompile(`[^\p{L}\p{N}_\s&'-]`)
	reGeneric   = regexp.MustCompile(`(?:^|\s)(?:food truck|food trailer|mobile kitchen|street food|food cart)s?(?:\s|$)`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// Substring matches score SubstringBase plus up to SubstringSpan scaled by
// how much of the longer name the shorter one covers.
const (
	SubstringBase = 0.8
	SubstringSpan = 0.15
)

// NormalizeName reduces a truck name to its comparison key: NFKC folded,
// lowercased, apostrophes unified, punctuation other than ' & - removed and
// generic phrases such as "food truck" stripped.
// The steps repeat until the key is stable, since stripping can leave
// characters that compose on another NFKC pass.
func NormalizeName(name string) string {
	s := name
	for range maxNormalizePasses {
		next := reNamePunct.ReplaceAllString(fold(s), "")
		next = reGeneric.ReplaceAllString(next, " ")
		next = strings.Trim(reSpaces.ReplaceAllString(next, " "), " -&")
		if next == s {
			break
		}
		s = next
	}
	return s
}

const maxNormalizePasses = 32

// StringSimilarity scores two truck names in [0, 1]. It is symmetric and
// returns 1 for identical non-empty input.
func StringSimilarity(a, b string) float64 {
	if a == b && a != "" {
		return 1
	}
	return textSimilarity(NormalizeName(a), NormalizeName(b))
}

// textSimilarity compares two already-normalized strings.
func textSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	shorter, longer := a, b
	if len([]rune(shorter)) > len([]rune(longer)) {
		shorter, longer = longer, shorter
	}
	la, lb := len([]rune(shorter)), len([]rune(longer))
	if strings.Contains(longer, shorter) {
		return SubstringBase + SubstringSpan*float64(la)/float64(lb)
	}
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(lb)
}

// normalizeText is the looser key used for addresses.
func normalizeText(s string) string {
	s = reNamePunct.ReplaceAllString(fold(s), " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// fold lowercases s under NFKC. Apostrophes are unified on both sides of the
// normalization because NFKC decomposes some of them.
func fold(s string) string {
	s = norm.NFKC.String(apostrophes.Replace(s))
	return apostrophes.Replace(norm.NFKC.String(strings.ToLower(s)))
}
