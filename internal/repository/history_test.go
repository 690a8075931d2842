package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirahq/mira/internal/domain"
)

func TestHistoryFindDoneTransitionsEmptyInput(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewHistoryRepository(db)

	// No issues means no query at all.
	entries, err := repo.FindDoneTransitions(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestHistoryFindDoneTransitions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)

	done := string(domain.StatusDone)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "issue_id", "user_id", "field_name", "old_value", "new_value", "created_at"}).
		AddRow(int64(1), int64(4), int64(1), domain.FieldStatus, "IN_REVIEW", done, now)

	// The IN clause is expanded and rebound to $N placeholders.
	mock.ExpectQuery(`SELECT .+ FROM issue_history\s+WHERE issue_id IN \(\$1, \$2\) AND field_name = \$3 AND new_value = \$4`).
		WithArgs(int64(4), int64(5), domain.FieldStatus, done).
		WillReturnRows(rows)

	entries, err := repo.FindDoneTransitions(context.Background(), []int64{4, 5})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 4, entries[0].IssueID)
	require.NotNil(t, entries[0].NewValue)
	assert.Equal(t, done, *entries[0].NewValue)
}

func TestHistoryAppend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)

	old := "TODO"
	next := "IN_PROGRESS"
	mock.ExpectExec(`INSERT INTO issue_history`).
		WithArgs(int64(4), int64(1), domain.FieldStatus, &old, &next).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), domain.IssueHistory{
		IssueID:   4,
		UserID:    1,
		FieldName: domain.FieldStatus,
		OldValue:  &old,
		NewValue:  &next,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
