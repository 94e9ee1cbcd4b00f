package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

type plannerSubtask struct {
	Query        string `json:"query"`
	Priority     int    `json:"priority"`
	Dependencies []int  `json:"dependencies"`
}

type plannerResult struct {
	Subtasks []plannerSubtask `json:"subtasks"`
}

// runPlanner decomposes the effective query into 1..MaxSubtasks ordered
// subtasks via a schema-constrained model call, falling back to a single
// subtask equal to the original query on failure.
func runPlanner(ctx context.Context, o *Orchestrator, state domain.TurnState) (domain.StateDelta, error) {
	deadline, _ := ctx.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(20 * time.Second)
	}

	maxSubtasks := o.Config.MaxSubtasks
	if maxSubtasks <= 0 {
		maxSubtasks = 5
	}

	query := state.EffectiveQuery()
	meta, metaErr := o.metadataCacheFor().Get(ctx, o.Store)

	prompt := buildPlannerPrompt(query, meta, maxSubtasks)
	result, err := ports.GenerateStructured[plannerResult](ctx, o.Model, prompt, plannerSchema, 0, deadline)

	var subtasks []domain.Subtask
	var warnings []string
	if metaErr != nil {
		warnings = append(warnings, "planner_metadata_unavailable: "+metaErr.Error())
	}

	if err != nil || len(result.Subtasks) == 0 {
		if err != nil {
			warnings = append(warnings, "planner_failed: "+err.Error())
		}
		subtasks = []domain.Subtask{{
			ID:       uuid.NewString(),
			Query:    query,
			Priority: 3,
			Status:   domain.SubtaskPending,
		}}
	} else {
		subtasks = buildSubtasksFromPlan(result.Subtasks, maxSubtasks)
	}

	return domain.StateDelta{
		Subtasks:          subtasks,
		CurrentSubtaskIdx: intPtr(0),
		NewWarnings:       warnings,
	}, nil
}

// buildSubtasksFromPlan enforces the ordering invariants: a
// dependency must reference a strictly lower index; cycles are impossible by
// construction since dependencies only reference earlier plan indices;
// purely redundant subtasks (identical normalized query to an earlier one)
// are collapsed.
func buildSubtasksFromPlan(plan []plannerSubtask, maxSubtasks int) []domain.Subtask {
	seen := make(map[string]int) // normalized query -> resulting index
	subtasks := make([]domain.Subtask, 0, len(plan))

	// oldIdx -> newIdx, used to remap dependency indices after collapsing
	// redundant entries and enforcing maxSubtasks.
	remap := make(map[int]int)

	for oldIdx, item := range plan {
		if len(subtasks) >= maxSubtasks {
			break
		}
		norm := strings.ToLower(strings.TrimSpace(item.Query))
		if norm == "" {
			continue
		}
		if existingIdx, dup := seen[norm]; dup {
			remap[oldIdx] = existingIdx
			continue
		}

		newIdx := len(subtasks)
		seen[norm] = newIdx
		remap[oldIdx] = newIdx

		priority := item.Priority
		if priority < 1 || priority > 5 {
			priority = 3
		}

		var deps []string
		for _, depOld := range item.Dependencies {
			depNew, ok := remap[depOld]
			if !ok || depNew >= newIdx {
				continue // drop forward/self/unresolved references, keeps the DAG acyclic
			}
			deps = append(deps, subtasks[depNew].ID)
		}

		subtasks = append(subtasks, domain.Subtask{
			ID:           uuid.NewString(),
			Query:        item.Query,
			Priority:     priority,
			Dependencies: deps,
			Status:       domain.SubtaskPending,
		})
	}

	if len(subtasks) == 0 {
		subtasks = append(subtasks, domain.Subtask{
			ID:       uuid.NewString(),
			Query:    plan[0].Query,
			Priority: 3,
			Status:   domain.SubtaskPending,
		})
	}
	return subtasks
}

func buildPlannerPrompt(query string, meta ports.StoreMetadata, maxSubtasks int) string {
	return fmt.Sprintf(`Decompose the user query into 1 to %d focused sub-questions, ordered so each sub-question's dependencies appear at lower indices. Collapse any sub-question that is redundant with an earlier one. If the query is already atomic, return exactly one sub-question equal to the query.

Available document sources: %s
Page range: %d-%d
Categories: %v

Query: %s`, maxSubtasks, strings.Join(meta.Sources, ", "), meta.PageMin, meta.PageMax, meta.Categories, query)
}
