package orchestrator

import (
	"context"
	"sync"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
	"github.com/kk7453603/ragcore/internal/infrastructure/keyword"
	"github.com/kk7453603/ragcore/internal/infrastructure/resilience"
)

// entityBearingCategories lists the structural categories whose documents
// carry Entity annotations; the entity-scoped retrieval pass is restricted
// to these.
var entityBearingCategories = []domain.Category{domain.CategoryFigure, domain.CategoryTable}

// searchJob is one unit of the retriever's bounded worker pool: a single
// dense or lexical query against one variation, under one of the dual-filter
// passes.
type searchJob struct {
	variation  string
	language   string
	filter     domain.Filter
	searchType string
	kind       string // "dense" or "lexical"
}

// runRetriever runs hybrid retrieval for the subtask the executor just
// prepared: dense and lexical searches fan out across every query variation
// (and, when the subtask filter names an entity, a second entity-scoped
// pass), fuse everything with RRF, and record the result on both the
// subtask (for the web-fallback sparsity check) and the turn's document
// pool.
func runRetriever(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	idx := state.CurrentSubtaskIdx - 1
	if idx < 0 || idx >= len(state.Subtasks) {
		return domain.StateDelta{}, nil
	}
	subtask := state.Subtasks[idx]

	jobs := buildSearchJobs(subtask)

	lists, warnings := o.runSearchJobs(ctx, jobs)

	topK := o.Config.TopK
	if topK <= 0 {
		topK = 10
	}
	rrfK := o.Config.RRFK
	if rrfK <= 0 {
		rrfK = 60
	}
	docs := mergeRRF(lists, rrfK, topK)

	if len(docs) == 0 {
		warnings = append(warnings, "subtask "+subtask.ID+": retrieval returned zero documents across all variations")
	}

	updated := subtask
	updated.Documents = docs
	updated.Status = domain.SubtaskCompleted
	subtasks := append([]domain.Subtask{}, state.Subtasks...)
	subtasks[idx] = updated

	return domain.StateDelta{
		Subtasks:    subtasks,
		NewDocuments: docs,
		NewWarnings: warnings,
	}, nil
}

// buildSearchJobs implements the dual-filter entity strategy: a
// broad pass with the entity predicate stripped runs for every variation,
// and when the subtask's filter names an entity, a second pass scoped to
// the entity-bearing categories runs alongside it, tagged "entity".
func buildSearchJobs(subtask domain.Subtask) []searchJob {
	broadFilter := subtask.Filter.WithoutEntity()

	var jobs []searchJob
	for i, variation := range subtask.Variations {
		language := "english"
		if i < len(subtask.VariationLanguages) {
			language = subtask.VariationLanguages[i]
		}
		jobs = append(jobs,
			searchJob{variation: variation, language: language, filter: broadFilter, kind: "dense"},
			searchJob{variation: variation, language: language, filter: broadFilter, kind: "lexical"},
		)
	}

	if subtask.Filter.Entity != nil {
		entityFilter := subtask.Filter.ScopedToCategories(entityBearingCategories)
		for i, variation := range subtask.Variations {
			language := "english"
			if i < len(subtask.VariationLanguages) {
				language = subtask.VariationLanguages[i]
			}
			jobs = append(jobs,
				searchJob{variation: variation, language: language, filter: entityFilter, searchType: "entity", kind: "dense"},
				searchJob{variation: variation, language: language, filter: entityFilter, searchType: "entity", kind: "lexical"},
			)
		}
	}

	return jobs
}

// runSearchJobs fans jobs out across a bounded worker pool (default 3),
// each store call retried up
// to 3 times with 1s/2s/4s backoff on transient errors. A job that still
// fails after retries contributes a warning and an empty list rather than
// failing the subtask.
func (o *Orchestrator) runSearchJobs(ctx context.Context, jobs []searchJob) ([]taggedRankedList, []string) {
	poolSize := o.Config.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 3
	}

	sem := make(chan struct{}, poolSize)
	results := make([]taggedRankedList, len(jobs))
	warningsCh := make(chan string, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job searchJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			docs, err := o.runOneSearch(ctx, job)
			if err != nil {
				warningsCh <- "retriever_" + job.kind + "_failed: " + err.Error()
				return
			}
			results[i] = taggedRankedList{docs: docs, searchType: job.searchType}
		}(i, job)
	}
	wg.Wait()
	close(warningsCh)

	var warnings []string
	for w := range warningsCh {
		warnings = append(warnings, w)
	}
	return results, warnings
}

func (o *Orchestrator) runOneSearch(ctx context.Context, job searchJob) ([]ports.RankedDocument, error) {
	limit := o.Config.TopK * 2
	if limit <= 0 {
		limit = 20
	}

	var out []ports.RankedDocument
	classifier := func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	switch job.kind {
	case "dense":
		err := o.resilienceExecutor().Execute(ctx, "retriever_dense_search", func(ctx context.Context) error {
			embedding, err := o.Embedder.Embed(ctx, job.language, job.variation)
			if err != nil {
				return err
			}
			docs, err := o.Store.DenseSearch(ctx, job.language, embedding, job.filter, limit)
			if err != nil {
				return err
			}
			out = docs
			return nil
		}, classifier)
		return out, err
	default:
		expression := keyword.BuildExpression(keyword.ExtractKeywords(job.language, job.variation))
		if expression == "" {
			return nil, nil
		}
		err := o.resilienceExecutor().Execute(ctx, "retriever_lexical_search", func(ctx context.Context) error {
			docs, err := o.Store.LexicalSearch(ctx, job.language, expression, job.filter, limit)
			if err != nil {
				return err
			}
			out = docs
			return nil
		}, classifier)
		return out, err
	}
}
