package usecases

import (
	"context"
	"strings"
	"testing"
)

func TestEvaluateUseCase_Rows(t *testing.T) {
	embedder := &mockEmbedder{}
	query := NewQueryUseCase(embedder, seededIndex(t, embedder), &mockLLM{})
	uc := NewEvaluateUseCase(query, 0)

	report, err := uc.Evaluate(context.Background(), "API docs", "")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if len(report.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Rows))
	}
	for i, row := range report.Rows {
		if row.Rank != i+1 {
			t.Errorf("row %d has rank %d", i, row.Rank)
		}
		if !strings.HasSuffix(row.Preview, "...") {
			t.Errorf("preview should end with an ellipsis: %q", row.Preview)
		}
		if row.Sender == "System" {
			t.Error("evaluation uses default filters")
		}
	}
	if report.Rows[0].Sender != "Bob" {
		t.Errorf("expected Bob's message first, got %s", report.Rows[0].Sender)
	}
	if report.ExpectedRank != 0 {
		t.Error("no expected text means no expected rank")
	}
}

func TestEvaluateUseCase_ExpectedRank(t *testing.T) {
	embedder := &mockEmbedder{}
	query := NewQueryUseCase(embedder, seededIndex(t, embedder), &mockLLM{})
	uc := NewEvaluateUseCase(query, 5)

	report, err := uc.Evaluate(context.Background(), "lunch", "LUNCH anyone")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if report.ExpectedRank != 1 {
		t.Errorf("expected rank 1, got %d", report.ExpectedRank)
	}

	report, _ = uc.Evaluate(context.Background(), "lunch", "not in corpus")
	if report.ExpectedRank != 0 {
		t.Errorf("missing text should give rank 0, got %d", report.ExpectedRank)
	}
}

func TestEvaluateUseCase_KLimit(t *testing.T) {
	embedder := &mockEmbedder{}
	query := NewQueryUseCase(embedder, seededIndex(t, embedder), &mockLLM{})

	report, err := NewEvaluateUseCase(query, 2).Evaluate(context.Background(), "API", "")
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(report.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(report.Rows))
	}
}
