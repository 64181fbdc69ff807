package evaluation

import (
	"context"
	"time"
)

// Store is the transactional persistence the pipeline runs against. The
// sqlite implementation lives in internal/store; tests substitute fakes.
type Store interface {
	CreateEvaluation(ctx context.Context, ev *Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListEvaluations(ctx context.Context) ([]Evaluation, error)

	// BeginProcessing performs the single-flight transition under an
	// exclusive evaluation-scoped lock: if the status is already
	// PROCESSING it returns a conflict error and changes nothing;
	// otherwise it sets PROCESSING, clears the completion timestamp and
	// deletes all prior run data for the evaluation.
	BeginProcessing(ctx context.Context, id string) error
	FinishProcessing(ctx context.Context, id string, status Status, completedAt *time.Time) error

	CreateRun(ctx context.Context, run *PromptRun, items []ParsedItem) error
	ListRuns(ctx context.Context, evaluationID string, phase Phase, criterionID *int64) ([]PromptRun, error)
	ListRunItems(ctx context.Context, runID int64) ([]RankingItem, error)
	ListItems(ctx context.Context, evaluationID string, phase Phase, criterionID *int64) ([]RankingItem, error)

	ReplaceSummaries(ctx context.Context, evaluationID string, phase Phase, criterionID *int64, rows []RankingSummary) error
	ListSummaries(ctx context.Context, evaluationID string, phase Phase, criterionID *int64) ([]RankingSummary, error)
}
