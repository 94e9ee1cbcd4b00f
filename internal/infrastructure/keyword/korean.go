package keyword

import (
	"sort"
	"unicode"
)

// koreanStopwords lists closed-class particles, copulas, and function
// words discarded before content tokens are scored.
var koreanStopwords = map[string]bool{
	"그리고": true, "그러나": true, "하지만": true, "그래서": true,
	"입니다": true, "있습니다": true, "합니다": true, "그런데": true,
	"또한": true, "이것": true, "저것": true, "그것": true,
	"무엇": true, "어디": true, "언제": true, "누구": true,
	"에서": true, "으로": true, "에게": true, "에는": true,
}

// koreanSuffixes are common inflectional endings stripped from a candidate
// token before scoring, approximating morpheme boundary detection without a
// real morphological analyzer.
var koreanSuffixes = []string{
	"습니다", "입니다", "했다", "한다", "하는", "되는", "이다", "있다",
	"에서", "으로", "에게", "들의", "의", "는", "은", "을", "를", "이", "가", "도", "과", "와",
}

// extractKoreanKeywords scores candidate tokens by length (after suffix
// stripping) and a stopword penalty, returning them ordered by descending
// score. This stands in for POS-based content-morpheme extraction without
// a morphological analyzer.
func extractKoreanKeywords(text string) []string {
	type candidate struct {
		token string
		score float64
	}

	raw := splitHangulRuns(text)
	seen := make(map[string]bool)
	var candidates []candidate

	for _, token := range raw {
		if koreanStopwords[token] {
			continue
		}
		stripped := stripKoreanSuffix(token)
		if stripped == "" || seen[stripped] {
			continue
		}
		seen[stripped] = true

		score := float64(len([]rune(stripped)))
		if koreanStopwords[stripped] {
			score -= 10
		}
		candidates = append(candidates, candidate{token: stripped, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.token)
	}
	return out
}

// splitHangulRuns extracts maximal runs of Hangul syllables as candidate
// tokens, the closest stdlib approximation of morpheme-bearing spans without
// a real segmenter.
func splitHangulRuns(text string) []string {
	var out []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			out = append(out, string(current))
			current = nil
		}
	}
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			current = append(current, r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func stripKoreanSuffix(token string) string {
	runes := []rune(token)
	for _, suffix := range koreanSuffixes {
		suffixRunes := []rune(suffix)
		if len(runes) <= len(suffixRunes) {
			continue
		}
		if string(runes[len(runes)-len(suffixRunes):]) == suffix {
			return string(runes[:len(runes)-len(suffixRunes)])
		}
	}
	return token
}
