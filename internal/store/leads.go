package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/goaiso/brandrank/internal/evaluation"
)

// LeadFilter narrows lead listings. Search matches name, email, phone or
// evaluation id as a substring.
type LeadFilter struct {
	EvaluationID string
	Search       string
}

func (s *SQLite) CreateLead(ctx context.Context, lead *evaluation.Lead) error {
	if strings.TrimSpace(lead.Name) == "" || strings.TrimSpace(lead.Email) == "" {
		return evaluation.NewValidationError("lead name and email are required")
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (evaluation_id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?)`,
		lead.EvaluationID, lead.Name, lead.Email, lead.Phone, formatTime(lead.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	lead.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLite) ListLeads(ctx context.Context, filter LeadFilter) ([]evaluation.Lead, error) {
	builder := sq.Select("id", "evaluation_id", "name", "email", "phone", "created_at").
		From("leads").
		OrderBy("id DESC")
	if filter.EvaluationID != "" {
		builder = builder.Where(sq.Eq{"evaluation_id": filter.EvaluationID})
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"name": like},
			sq.Like{"email": like},
			sq.Like{"phone": like},
			sq.Like{"evaluation_id": like},
		})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build leads query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select leads: %w", err)
	}
	defer rows.Close()

	var out []evaluation.Lead
	for rows.Next() {
		var lead evaluation.Lead
		var createdAt string
		if err := rows.Scan(&lead.ID, &lead.EvaluationID, &lead.Name, &lead.Email, &lead.Phone, &createdAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		lead.CreatedAt = parseTime(createdAt)
		out = append(out, lead)
	}
	return out, rows.Err()
}
