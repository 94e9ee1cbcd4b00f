package keyword

import (
	"sort"
	"strings"
)

// englishStopwords is the manual stopword list the heuristic extractor
// uses in place of a POS tagger.
var englishStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "as": true,
	"by": true, "from": true, "do": true, "does": true, "did": true,
	"what": true, "which": true, "who": true, "whom": true, "how": true,
	"me": true, "show": true, "please": true, "can": true, "you": true,
}

// commonVerbSuffixes and commonNounSuffixes approximate POS-tagged
// noun/verb/adjective extraction by scoring tokens on morphological shape:
// capitalization (proper nouns), nominal suffixes, and verbal suffixes.
var (
	commonNounSuffixes = []string{"tion", "sion", "ment", "ness", "ity", "ance", "ence", "er", "or", "ism"}
	commonVerbSuffixes = []string{"ing", "ed", "ize", "ise", "ify", "ate"}
)

// extractEnglishKeywords scores capitalized/proper-noun-shaped tokens, noun-
// and verb-suffix matches, and plain content words (after stopword removal),
// returning them ordered by descending score. Falls back to
// extractEnglishKeywordsSimple when nothing scores above zero.
func extractEnglishKeywords(text string) []string {
	type candidate struct {
		token string
		score float64
	}

	words := splitWords(text)
	seen := make(map[string]bool)
	var candidates []candidate

	for i, w := range words {
		if englishStopwords[w] || len(w) < 3 {
			continue
		}
		if seen[w] {
			continue
		}
		seen[w] = true

		score := float64(len(w)) * 0.1
		if i > 0 && isCapitalizedInOriginal(text, w) {
			score += 2 // proper-noun-shaped
		}
		for _, suf := range commonNounSuffixes {
			if strings.HasSuffix(w, suf) {
				score += 1.5
				break
			}
		}
		for _, suf := range commonVerbSuffixes {
			if strings.HasSuffix(w, suf) {
				score += 1
				break
			}
		}
		candidates = append(candidates, candidate{token: w, score: score})
	}

	if len(candidates) == 0 {
		return extractEnglishKeywordsSimple(words)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.token)
	}
	return out
}

// extractEnglishKeywordsSimple keeps content words (stopwords removed),
// longest first.
func extractEnglishKeywordsSimple(words []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range words {
		if englishStopwords[w] || len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func isCapitalizedInOriginal(text, lowerWord string) bool {
	capitalized := strings.ToUpper(lowerWord[:1]) + lowerWord[1:]
	return strings.Contains(text, capitalized)
}
