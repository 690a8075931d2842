package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirahq/mira/internal/domain"
)

type fakeCommentStore struct {
	comments map[int64]*domain.Comment
	nextID   int64
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{comments: make(map[int64]*domain.Comment)}
}

func (s *fakeCommentStore) Create(_ context.Context, c domain.Comment) (*domain.Comment, error) {
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	s.comments[c.ID] = &c
	return &c, nil
}

func (s *fakeCommentStore) FindByID(_ context.Context, id int64) (*domain.Comment, error) {
	if c, ok := s.comments[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeCommentStore) ListByIssue(_ context.Context, issueID int64) ([]domain.Comment, error) {
	var out []domain.Comment
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.comments[id]; ok && c.IssueID == issueID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCommentStore) Update(_ context.Context, id int64, body string) (*domain.Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.Body = body
	return c, nil
}

func (s *fakeCommentStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.comments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func newCommentFixture(t *testing.T) (*CommentService, *fakeCommentStore) {
	t.Helper()

	projects := newFakeProjectStore()
	projects.add(
		&domain.Project{Key: "MIRA", Name: "Mira", OwnerID: 1},
		domain.ProjectMember{ProjectID: 1, UserID: 1, Role: domain.RoleOwner},
		domain.ProjectMember{ProjectID: 1, UserID: 2, Role: domain.RoleMember},
	)
	issues := newFakeIssueStore(&domain.Issue{
		ID: 1, ProjectID: 1, Key: "MIRA-1", Title: "Task",
		Status: domain.StatusTodo, Priority: domain.PriorityMedium, CreatorID: 1,
	})
	comments := newFakeCommentStore()
	return NewCommentService(comments, issues, projects, allowAll{}), comments
}

func TestCommentCreateAndList(t *testing.T) {
	svc, _ := newCommentFixture(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "MIRA", "MIRA-1", CommentRequest{Body: "first"}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.AuthorID)

	_, err = svc.Create(ctx, "MIRA", "MIRA-1", CommentRequest{Body: "second"}, 2)
	require.NoError(t, err)

	list, err := svc.List(ctx, "MIRA", "MIRA-1", 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Body)
	assert.Equal(t, "second", list[1].Body)
}

func TestCommentAuthorOnlyEdit(t *testing.T) {
	svc, _ := newCommentFixture(t)
	ctx := context.Background()

	comment, err := svc.Create(ctx, "MIRA", "MIRA-1", CommentRequest{Body: "original"}, 1)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "MIRA", "MIRA-1", comment.ID, CommentRequest{Body: "hijacked"}, 2)
	require.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := svc.Update(ctx, "MIRA", "MIRA-1", comment.ID, CommentRequest{Body: "edited"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Body)
}

func TestCommentAuthorOnlyDelete(t *testing.T) {
	svc, store := newCommentFixture(t)
	ctx := context.Background()

	comment, err := svc.Create(ctx, "MIRA", "MIRA-1", CommentRequest{Body: "bye"}, 1)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "MIRA", "MIRA-1", comment.ID, 2), domain.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "MIRA", "MIRA-1", comment.ID, 1))
	assert.Empty(t, store.comments)
}

func TestCommentForeignIssueRejected(t *testing.T) {
	svc, store := newCommentFixture(t)
	ctx := context.Background()

	// Comment attached to an issue outside the project.
	store.nextID++
	store.comments[store.nextID] = &domain.Comment{ID: store.nextID, IssueID: 999, AuthorID: 1, Body: "stray"}

	_, err := svc.Update(ctx, "MIRA", "MIRA-1", store.nextID, CommentRequest{Body: "x"}, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
