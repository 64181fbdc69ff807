package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the surface exposed to the API layer: create, run and report
// over evaluations.
type Service struct {
	store  Store
	runner *Runner
}

func NewService(store Store, runner *Runner) *Service {
	return &Service{store: store, runner: runner}
}

// Create validates the input and persists a PENDING evaluation with its
// ordered criteria. Nothing is persisted when validation fails.
func (s *Service) Create(ctx context.Context, productType string, criteria []string, country, location string) (*Evaluation, error) {
	productType = strings.TrimSpace(productType)
	if productType == "" {
		return nil, NewValidationError("product_type is required")
	}

	cleaned := make([]string, 0, len(criteria))
	for _, c := range criteria {
		c = strings.TrimSpace(c)
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) < MinCriteria || len(cleaned) > MaxCriteria {
		return nil, NewValidationError(fmt.Sprintf("between %d and %d criteria required, got %d", MinCriteria, MaxCriteria, len(cleaned)))
	}

	ev := &Evaluation{
		ID:          uuid.NewString(),
		ProductType: productType,
		Status:      StatusPending,
		Country:     strings.TrimSpace(country),
		Location:    strings.TrimSpace(location),
		CreatedAt:   time.Now().UTC(),
	}
	for i, name := range cleaned {
		ev.Criteria = append(ev.Criteria, Criterion{
			EvaluationID: ev.ID,
			Name:         name,
			OrderIndex:   i + 1,
		})
	}
	if err := s.store.CreateEvaluation(ctx, ev); err != nil {
		return nil, fmt.Errorf("create evaluation: %w", err)
	}
	return ev, nil
}

// Run executes the two-phase survey and returns the evaluation's final
// state, or a conflict error if a run is already in flight.
func (s *Service) Run(ctx context.Context, id string) (*Evaluation, error) {
	if err := s.runner.Run(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetEvaluation(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*Evaluation, error) {
	return s.store.GetEvaluation(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Evaluation, error) {
	return s.store.ListEvaluations(ctx)
}

// Report rebuilds the presentation views for an evaluation.
func (s *Service) Report(ctx context.Context, id string) (*Report, error) {
	ev, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildReport(ctx, s.store, ev)
}
