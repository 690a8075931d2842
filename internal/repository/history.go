package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mirahq/mira/internal/domain"
)

const historyColumns = `id, issue_id, user_id, field_name, old_value, new_value, created_at`

// HistoryRepository handles the append-only issue change ledger.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts one history entry. Entries are never updated or deleted.
func (r *HistoryRepository) Append(ctx context.Context, entry domain.IssueHistory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO issue_history (issue_id, user_id, field_name, old_value, new_value)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.IssueID, entry.UserID, entry.FieldName, entry.OldValue, entry.NewValue)
	if err != nil {
		return fmt.Errorf("append history for issue %d: %w", entry.IssueID, err)
	}
	return nil
}

// FindAllByIssue retrieves an issue's history, most recent first.
func (r *HistoryRepository) FindAllByIssue(ctx context.Context, issueID int64) ([]domain.IssueHistory, error) {
	var entries []domain.IssueHistory
	err := r.db.SelectContext(ctx, &entries,
		`SELECT `+historyColumns+` FROM issue_history
		 WHERE issue_id = $1
		 ORDER BY created_at DESC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("find history of issue %d: %w", issueID, err)
	}
	return entries, nil
}

// FindDoneTransitions retrieves status->DONE entries for the given issues in
// chronological order. The burndown aggregator charges each issue's points at
// its first such entry.
func (r *HistoryRepository) FindDoneTransitions(ctx context.Context, issueIDs []int64) ([]domain.IssueHistory, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+historyColumns+` FROM issue_history
		 WHERE issue_id IN (?) AND field_name = ? AND new_value = ?
		 ORDER BY created_at`,
		issueIDs, domain.FieldStatus, string(domain.StatusDone))
	if err != nil {
		return nil, fmt.Errorf("build done-transition query: %w", err)
	}

	var entries []domain.IssueHistory
	err = r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("find done transitions: %w", err)
	}
	return entries, nil
}
