package usecases

import (
	"context"
	"strings"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

const (
	DefaultEvalK      = 5
	evalPreviewLength = 50
)

// EvaluateUseCase produces a ranked report of what a query retrieves.
// It is a manual inspection aid and never judges the ranking.
type EvaluateUseCase struct {
	query *QueryUseCase
	k     int
}

func NewEvaluateUseCase(query *QueryUseCase, k int) *EvaluateUseCase {
	if k <= 0 {
		k = DefaultEvalK
	}
	return &EvaluateUseCase{query: query, k: k}
}

// Evaluate runs a default-filtered search. When expected is set the report
// records the first rank whose document contains it, ignoring case.
func (uc *EvaluateUseCase) Evaluate(ctx context.Context, query, expected string) (*entities.EvalReport, error) {
	matches, err := uc.query.Search(ctx, query, uc.k, nil)
	if err != nil {
		return nil, err
	}

	report := &entities.EvalReport{
		Query:    query,
		Expected: expected,
		Rows:     make([]entities.EvalRow, len(matches)),
	}
	needle := strings.ToLower(expected)
	for i, m := range matches {
		report.Rows[i] = entities.EvalRow{
			Rank:    i + 1,
			Score:   m.Score(),
			Sender:  m.Metadata.Sender,
			Preview: entities.Preview(m.Document, evalPreviewLength),
		}
		if needle != "" && report.ExpectedRank == 0 && strings.Contains(strings.ToLower(m.Document), needle) {
			report.ExpectedRank = i + 1
		}
	}
	return report, nil
}
