package orchestrator

import (
	"sort"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type rrfEntry struct {
	doc       domain.Document
	score     float64
	listCount int
	minRank   int
	isEntity  bool
}

// mergeRRF performs the Reciprocal Rank Fusion merge: fused
// score per document id is the sum of 1/(k+rank) across all contributing
// ranked lists; ties break by list-membership count, then lowest rank seen
// in any list, then lexicographic id. The result is a function of (k,
// ranked lists) only and is commutative across the ordering of the input
// lists -- list order never appears in the aggregation below, only each
// list's own internal ranks do.
func mergeRRF(lists []taggedRankedList, k, topK int) []domain.Document {
	entries := make(map[string]*rrfEntry)

	for _, list := range lists {
		for _, rd := range list.docs {
			e, ok := entries[rd.Document.ID]
			if !ok {
				e = &rrfEntry{doc: rd.Document, minRank: rd.Rank}
				entries[rd.Document.ID] = e
			}
			e.score += 1.0 / float64(k+rd.Rank)
			e.listCount++
			if rd.Rank < e.minRank {
				e.minRank = rd.Rank
			}
			if list.searchType == "entity" {
				e.isEntity = true
			}
			mergeDocumentFields(&e.doc, rd.Document)
		}
	}

	out := make([]*rrfEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.listCount != b.listCount {
			return a.listCount > b.listCount
		}
		if a.minRank != b.minRank {
			return a.minRank < b.minRank
		}
		return a.doc.ID < b.doc.ID
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}

	result := make([]domain.Document, 0, len(out))
	for _, e := range out {
		doc := e.doc
		doc.RRFScore = e.score
		if e.isEntity {
			doc.SearchType = "entity"
		}
		result = append(result, doc)
	}
	return result
}

// mergeDocumentFields folds a newly-seen occurrence of the same document id
// into the accumulator: the highest dense similarity seen, the lowest
// (best) lexical rank seen, across whichever lists that id appeared in.
func mergeDocumentFields(acc *domain.Document, incoming domain.Document) {
	if incoming.Similarity > acc.Similarity {
		acc.Similarity = incoming.Similarity
	}
	if incoming.LexicalRank > 0 && (acc.LexicalRank == 0 || incoming.LexicalRank < acc.LexicalRank) {
		acc.LexicalRank = incoming.LexicalRank
	}
}

// taggedRankedList is one of the 2N*passes ranked lists RRF fuses: a plain
// dense or lexical result set, optionally tagged "entity" when it came from
// the entity-scoped dual-filter pass.
type taggedRankedList struct {
	docs       []ports.RankedDocument
	searchType string
}
