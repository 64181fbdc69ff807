package evaluation

import "time"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusError      Status = "ERROR"
)

type Phase string

const (
	Phase1 Phase = "PHASE1"
	Phase2 Phase = "PHASE2"
)

// MinCriteria and MaxCriteria bound the criteria set at creation time.
// Runs additionally require at least MinCriteria criteria to still exist.
const (
	MinCriteria = 2
	MaxCriteria = 5
)

// RankingSize is the number of entries every valid provider answer carries
// and the number of positions that score points.
const RankingSize = 5

// Evaluation is one ranking job for a product category.
type Evaluation struct {
	ID          string     `db:"id" json:"id"`
	ProductType string     `db:"product_type" json:"product_type"`
	Status      Status     `db:"status" json:"status"`
	Country     string     `db:"country" json:"country,omitempty"`
	Location    string     `db:"location" json:"location,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	Criteria []Criterion `db:"-" json:"criteria,omitempty"`
}

// Criterion is one evaluation criterion with its 1-based order index.
type Criterion struct {
	ID           int64  `db:"id" json:"id"`
	EvaluationID string `db:"evaluation_id" json:"-"`
	Name         string `db:"name" json:"name"`
	OrderIndex   int    `db:"order_index" json:"order"`
}

// PromptRun is one executed query. CriterionID is set for PHASE2 runs and
// cleared (not cascaded) if the criterion is later deleted.
type PromptRun struct {
	ID           int64     `db:"id" json:"id"`
	EvaluationID string    `db:"evaluation_id" json:"-"`
	Phase        Phase     `db:"phase" json:"phase"`
	CriterionID  *int64    `db:"criterion_id" json:"criterion_id,omitempty"`
	PromptText   string    `db:"prompt_text" json:"prompt_text"`
	ResponseRaw  string    `db:"response_raw" json:"response_raw"`
	Sources      []string  `db:"-" json:"sources,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RankingItem is one ranked entry within a PromptRun. Position is 1-based.
type RankingItem struct {
	ID       int64  `db:"id" json:"id"`
	RunID    int64  `db:"run_id" json:"-"`
	Position int    `db:"position" json:"position"`
	Brand    string `db:"brand" json:"brand"`
	Model    string `db:"model" json:"model"`
	RawText  string `db:"raw_text" json:"raw_text"`
}

// RankingSummary is one aggregated row for a (evaluation, phase, criterion)
// key. Rows for a key are always fully regenerated, never patched.
type RankingSummary struct {
	ID           int64   `db:"id" json:"id"`
	EvaluationID string  `db:"evaluation_id" json:"-"`
	Phase        Phase   `db:"phase" json:"phase"`
	CriterionID  *int64  `db:"criterion_id" json:"criterion_id,omitempty"`
	Brand        string  `db:"brand" json:"brand"`
	Score        int     `db:"score" json:"score"`
	Share        float64 `db:"share" json:"share"`
}

// Attempt is one row of the append-only query attempt log.
type Attempt struct {
	Timestamp    time.Time `db:"ts"`
	Model        string    `db:"model"`
	Phase        Phase     `db:"phase"`
	Criterion    string    `db:"criterion"`
	EvaluationID string    `db:"evaluation_id"`
	Attempt      int       `db:"attempt"`
	Elapsed      float64   `db:"elapsed_seconds"`
	Valid        bool      `db:"valid"`
	Prompt       string    `db:"prompt"`
	Output       string    `db:"output_text"`
	Sources      string    `db:"sources"`
}

// Lead is a report-access contact captured by the frontend gate.
type Lead struct {
	ID           int64     `db:"id" json:"id"`
	EvaluationID string    `db:"evaluation_id" json:"evaluation_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
