package orchestrator

import (
	"strings"
	"testing"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

func TestBuildReferencesTableUsesSummaryColumnInCitationOrder(t *testing.T) {
	docs := []domain.Document{
		{ID: "d1", Content: "The oil change interval is 8000 km under normal driving conditions.", Metadata: domain.Metadata{Source: "manual.pdf", Page: 12}},
		{ID: "d2", Content: "ignored body", Metadata: domain.Metadata{Source: "manual.pdf", Page: 5, Caption: "Safety feature overview"}},
		{ID: "d3", Content: "ignored body", Metadata: domain.Metadata{Source: "manual.pdf", Page: 80, Entity: &domain.Entity{Type: "table", Title: "Warranty terms"}}},
	}

	table := buildReferencesTable(docs, []string{"3", "1"})

	lines := strings.Split(strings.TrimSpace(table), "\n")
	if lines[0] != "| # | Source | Page | Summary |" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("expected header, separator, and 2 cited rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[2], "| 3 |") || !strings.Contains(lines[2], "Warranty terms") {
		t.Fatalf("expected citation 3 first with its entity title, got %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "| 1 |") || !strings.Contains(lines[3], "8000 km") {
		t.Fatalf("expected citation 1 second with a content summary, got %q", lines[3])
	}
}

func TestBuildReferencesTableFallsBackToAllDocumentsAndCaps(t *testing.T) {
	long := strings.Repeat("interval ", 30)
	docs := []domain.Document{
		{ID: "d1", Content: long, Metadata: domain.Metadata{Source: "manual.pdf", Page: 1}},
		{ID: "d2", Content: "short", Metadata: domain.Metadata{Source: "guide|v2.pdf", Page: 2, Caption: "Safety feature overview"}},
	}

	table := buildReferencesTable(docs, nil)

	lines := strings.Split(strings.TrimSpace(table), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected every document listed when no citations were reported, got %d lines", len(lines))
	}
	if !strings.Contains(lines[2], "...") {
		t.Fatalf("expected long content truncated with ellipsis, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "guide\\|v2.pdf") {
		t.Fatalf("expected pipe escaped in source cell, got %q", lines[3])
	}
}
