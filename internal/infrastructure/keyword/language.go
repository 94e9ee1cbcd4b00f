// Package keyword turns a free-text query into the keyword set and
// tsquery-style boolean expression the lexical store needs, with separate
// Korean and English extraction paths. Extraction is a dependency-free
// heuristic: script-ratio language detection, suffix-stripping Korean
// tokenization, and shape-based English token scoring; see DESIGN.md for
// the reasoning behind not pulling in an NLP dependency.
package keyword

import (
	"strings"
	"unicode"
)

// scriptRatios returns the fraction of letter runes in text that are Hangul
// and the fraction that are Latin, used by both DetectLanguage and the
// inconclusive-ratio fallback trigger for language detection.
func scriptRatios(text string) (hangul, latin float64) {
	var hangulCount, latinCount, letters int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hangul, r):
			hangulCount++
			letters++
		case unicode.Is(unicode.Latin, r):
			latinCount++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(hangulCount) / float64(letters), float64(latinCount) / float64(letters)
}

// DetectLanguage classifies text as "korean" or "english" by whichever
// script dominates its letter runes — the same signal the embedding and
// search-column switch upstream keys off of. Both functions read the same
// ratios, so whenever IsInconclusive says a script is dominant this returns
// that script's language.
func DetectLanguage(text string) string {
	hangul, latin := scriptRatios(text)
	if hangul > latin {
		return "korean"
	}
	return "english"
}

// IsInconclusive reports whether neither script exceeds 60% of the letter
// runes in text: the subtask executor falls back to a model call for
// language labeling only in this case.
func IsInconclusive(text string) bool {
	hangul, latin := scriptRatios(text)
	return hangul < 0.6 && latin < 0.6
}

// optimalKeywordCount scales the keyword budget with query length: short
// queries need fewer, overly-restrictive terms; long ones need more to stay
// discriminating.
func optimalKeywordCount(wordCount int) int {
	switch {
	case wordCount <= 3:
		return 2
	case wordCount <= 6:
		return 3
	default:
		return 4
	}
}

// ExtractKeywords dispatches to the language-specific extractor and clamps
// the result to the 2-4 keyword budget.
func ExtractKeywords(language, text string) []string {
	var keywords []string
	switch language {
	case "korean":
		keywords = extractKoreanKeywords(text)
	default:
		keywords = extractEnglishKeywords(text)
	}

	words := splitWords(text)
	limit := optimalKeywordCount(len(words))
	if limit < 2 {
		limit = 2
	}
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	for _, w := range words {
		if len(keywords) >= 2 {
			break
		}
		if !contains(keywords, w) {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// BuildExpression implements the boolean expression construction
// rule: <=2 keywords conjoined; >=3 keywords, first 2 conjoined, remaining
// disjoined, e.g. "(a AND b) OR c OR d".
func BuildExpression(keywords []string) string {
	switch {
	case len(keywords) == 0:
		return ""
	case len(keywords) == 1:
		return keywords[0]
	case len(keywords) == 2:
		return keywords[0] + " AND " + keywords[1]
	default:
		expr := "(" + keywords[0] + " AND " + keywords[1] + ")"
		for _, kw := range keywords[2:] {
			expr += " OR " + kw
		}
		return expr
	}
}

func splitWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
