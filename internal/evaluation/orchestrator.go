package evaluation

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Phase2RunsPerCriterion is the fixed number of phase-2 queries issued for
// every criterion, independent of the permutation count.
const Phase2RunsPerCriterion = 5

// Runner drives one evaluation from PENDING through PROCESSING to SUCCESS
// or ERROR. Queries run strictly one at a time; the first failure stops the
// run and rows committed by earlier queries stay in place — the next run's
// reset is the only recovery path.
type Runner struct {
	store    Store
	executor *Executor
}

func NewRunner(store Store, executor *Executor) *Runner {
	return &Runner{store: store, executor: executor}
}

// Run executes the full two-phase survey for one evaluation. A conflicting
// concurrent run surfaces as a conflict error with no state change. Every
// other failure, including panics out of the store or provider, lands the
// evaluation in ERROR rather than escaping to the caller unhandled.
func (r *Runner) Run(ctx context.Context, id string) (err error) {
	// BeginProcessing holds the evaluation-scoped lock only for the status
	// flip and reset, so it never serializes against the slow query phase.
	if err := r.store.BeginProcessing(ctx, id); err != nil {
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("run panicked: %v", rec)
		}
		if err != nil {
			if ferr := r.store.FinishProcessing(ctx, id, StatusError, nil); ferr != nil {
				log.Printf("[runner] marking evaluation %s ERROR failed: %v", id, ferr)
			}
		}
	}()

	ev, err := r.store.GetEvaluation(ctx, id)
	if err != nil {
		return fmt.Errorf("load evaluation: %w", err)
	}
	if len(ev.Criteria) < MinCriteria {
		return &Error{
			Code:    CodeInsufficientCriteria,
			Message: fmt.Sprintf("evaluation %s has %d criteria, need at least %d", id, len(ev.Criteria), MinCriteria),
		}
	}

	if err := r.runPhase1(ctx, ev); err != nil {
		return &RunError{Step: "phase1", Err: err}
	}
	if err := r.runPhase2(ctx, ev); err != nil {
		return &RunError{Step: "phase2", Err: err}
	}

	now := time.Now().UTC()
	if err := r.store.FinishProcessing(ctx, id, StatusSuccess, &now); err != nil {
		return fmt.Errorf("finish evaluation: %w", err)
	}
	log.Printf("[runner] evaluation %s completed", id)
	return nil
}

func (r *Runner) runPhase1(ctx context.Context, ev *Evaluation) error {
	names := make([]string, 0, len(ev.Criteria))
	for _, c := range ev.Criteria {
		names = append(names, c.Name)
	}

	perms := SelectPermutations(names, PermutationCount)
	log.Printf("[runner] evaluation %s phase1: %d permutations", ev.ID, len(perms))

	for i, perm := range perms {
		prompt := Phase1Prompt(ev.ProductType, perm, ev.Country, ev.Location)
		result, err := r.executor.Execute(ctx, prompt, QueryContext{
			Phase:        Phase1,
			EvaluationID: ev.ID,
		})
		if err != nil {
			return fmt.Errorf("permutation %d: %w", i+1, err)
		}
		if err := r.persistRun(ctx, ev.ID, Phase1, nil, prompt, result); err != nil {
			return fmt.Errorf("permutation %d: %w", i+1, err)
		}
	}
	return ComputeBrandSummary(ctx, r.store, ev.ID, Phase1, nil)
}

func (r *Runner) runPhase2(ctx context.Context, ev *Evaluation) error {
	for _, crit := range ev.Criteria {
		prompt := Phase2Prompt(ev.ProductType, crit.Name, ev.Country, ev.Location)
		for i := 0; i < Phase2RunsPerCriterion; i++ {
			result, err := r.executor.Execute(ctx, prompt, QueryContext{
				Phase:        Phase2,
				Criterion:    crit.Name,
				EvaluationID: ev.ID,
			})
			if err != nil {
				return fmt.Errorf("criterion %q run %d: %w", crit.Name, i+1, err)
			}
			critID := crit.ID
			if err := r.persistRun(ctx, ev.ID, Phase2, &critID, prompt, result); err != nil {
				return fmt.Errorf("criterion %q run %d: %w", crit.Name, i+1, err)
			}
		}
		critID := crit.ID
		if err := ComputeBrandSummary(ctx, r.store, ev.ID, Phase2, &critID); err != nil {
			return fmt.Errorf("criterion %q summary: %w", crit.Name, err)
		}
	}
	return nil
}

func (r *Runner) persistRun(ctx context.Context, evaluationID string, phase Phase, criterionID *int64, prompt string, result QueryResult) error {
	parsed, err := ParseRanking(result.Decoded)
	if err != nil {
		return NewUpstreamFormatError("validated answer failed ranking parse", map[string]any{
			"output":       result.Text,
			"decode_error": err.Error(),
		})
	}
	run := &PromptRun{
		EvaluationID: evaluationID,
		Phase:        phase,
		CriterionID:  criterionID,
		PromptText:   prompt,
		ResponseRaw:  result.Text,
		Sources:      result.Sources,
	}
	if err := r.store.CreateRun(ctx, run, parsed); err != nil {
		return fmt.Errorf("persist run: %w", err)
	}
	return nil
}
