package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadIncludesOrchestratorDefaults(t *testing.T) {
	t.Setenv("MAX_SUBTASKS", "")
	t.Setenv("MAX_RETRIES", "")
	t.Setenv("TOP_K", "")
	t.Setenv("RRF_K", "")
	t.Setenv("WEB_FALLBACK_THRESHOLD", "")
	t.Setenv("TURN_DEADLINE", "")

	cfg := Load()
	if cfg.MaxSubtasks != 5 {
		t.Fatalf("expected default max subtasks 5, got %d", cfg.MaxSubtasks)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("expected default max retries 3, got %d", cfg.MaxRetries)
	}
	if cfg.TopK != 10 {
		t.Fatalf("expected default top k 10, got %d", cfg.TopK)
	}
	if cfg.RRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RRFK)
	}
	if cfg.WebFallbackThreshold != 3 {
		t.Fatalf("expected default web fallback threshold 3, got %d", cfg.WebFallbackThreshold)
	}
	if cfg.TurnDeadline != 60*time.Second {
		t.Fatalf("expected default turn deadline 60s, got %s", cfg.TurnDeadline)
	}
	if !cfg.RoutingEnabled {
		t.Fatal("expected routing enabled by default")
	}
	if cfg.WebFallbackEnabled {
		t.Fatal("expected web fallback disabled by default")
	}
}

func TestLoadParsesOrchestratorOverrides(t *testing.T) {
	t.Setenv("MAX_SUBTASKS", "3")
	t.Setenv("RRF_K", "75")
	t.Setenv("THRESHOLD_HALLUCINATION", "0.5")
	t.Setenv("TURN_DEADLINE", "90s")
	t.Setenv("ROUTING_ENABLED", "false")

	cfg := Load()
	if cfg.MaxSubtasks != 3 {
		t.Fatalf("expected max subtasks override, got %d", cfg.MaxSubtasks)
	}
	if cfg.RRFK != 75 {
		t.Fatalf("expected rrf k override, got %d", cfg.RRFK)
	}
	if cfg.ThresholdHallucination != 0.5 {
		t.Fatalf("expected hallucination threshold override, got %f", cfg.ThresholdHallucination)
	}
	if cfg.TurnDeadline != 90*time.Second {
		t.Fatalf("expected turn deadline override, got %s", cfg.TurnDeadline)
	}
	if cfg.RoutingEnabled {
		t.Fatal("expected routing disabled by override")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("ROUTING_ENABLED", "maybe")
	t.Setenv("TURN_DEADLINE", "soon")

	cfg := Load()
	if cfg.MaxRetries != 3 {
		t.Fatalf("expected malformed int to fall back to 3, got %d", cfg.MaxRetries)
	}
	if !cfg.RoutingEnabled {
		t.Fatal("expected malformed bool to fall back to true")
	}
	if cfg.TurnDeadline != 60*time.Second {
		t.Fatalf("expected malformed duration to fall back to 60s, got %s", cfg.TurnDeadline)
	}
}

func TestLoadFileOverlayYieldsToEnvironment(t *testing.T) {
	overlay := filepath.Join(t.TempDir(), "config.yaml")
	content := "TOP_K: \"7\"\nMAX_SUBTASKS: \"2\"\n"
	if err := os.WriteFile(overlay, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", overlay)
	t.Setenv("MAX_SUBTASKS", "4")
	t.Setenv("TOP_K", "")

	cfg := Load()
	if cfg.TopK != 7 {
		t.Fatalf("expected overlay top k 7, got %d", cfg.TopK)
	}
	if cfg.MaxSubtasks != 4 {
		t.Fatalf("expected environment to win over overlay, got %d", cfg.MaxSubtasks)
	}
}
