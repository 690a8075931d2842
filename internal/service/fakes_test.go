package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mirahq/mira/internal/domain"
)

// In-memory fakes for the store interfaces. They implement just enough
// semantics for the service tests, including the lifecycle guards the real
// repositories enforce at the database level.

type fakeUserStore struct {
	users map[int64]*domain.User
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[int64]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) FindByID(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeUserStore) FindByProviderID(_ context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeUserStore) Upsert(_ context.Context, user domain.User) (*domain.User, error) {
	if user.ID == 0 {
		user.ID = int64(len(s.users) + 1)
	}
	s.users[user.ID] = &user
	return &user, nil
}

type fakeProjectStore struct {
	projects map[string]*domain.Project
	members  map[int64][]domain.ProjectMember
	counter  map[int64]int64
	nextID   int64
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		projects: make(map[string]*domain.Project),
		members:  make(map[int64][]domain.ProjectMember),
		counter:  make(map[int64]int64),
	}
}

func (s *fakeProjectStore) add(p *domain.Project, members ...domain.ProjectMember) *domain.Project {
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	}
	if p.DefaultSprintWeeks == 0 {
		p.DefaultSprintWeeks = 2
	}
	s.projects[p.Key] = p
	s.members[p.ID] = append(s.members[p.ID], members...)
	return p
}

func (s *fakeProjectStore) FindByKey(_ context.Context, key string) (*domain.Project, error) {
	if p, ok := s.projects[key]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeProjectStore) FindAllForUser(_ context.Context, userID int64) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range s.projects {
		for _, m := range s.members[p.ID] {
			if m.UserID == userID {
				out = append(out, *p)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeProjectStore) Create(_ context.Context, project domain.Project) (*domain.Project, error) {
	if _, exists := s.projects[project.Key]; exists {
		return nil, domain.ErrConflict
	}
	s.nextID++
	project.ID = s.nextID
	s.projects[project.Key] = &project
	s.members[project.ID] = []domain.ProjectMember{
		{ProjectID: project.ID, UserID: project.OwnerID, Role: domain.RoleOwner},
	}
	return &project, nil
}

func (s *fakeProjectStore) Update(_ context.Context, project *domain.Project) (*domain.Project, error) {
	s.projects[project.Key] = project
	return project, nil
}

func (s *fakeProjectStore) Delete(_ context.Context, id int64) error {
	for key, p := range s.projects {
		if p.ID == id {
			delete(s.projects, key)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeProjectStore) NextIssueNumber(_ context.Context, projectID int64) (int64, error) {
	s.counter[projectID]++
	return s.counter[projectID], nil
}

func (s *fakeProjectStore) FindMember(_ context.Context, projectID, userID int64) (*domain.ProjectMember, error) {
	for _, m := range s.members[projectID] {
		if m.UserID == userID {
			member := m
			return &member, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeProjectStore) ListMembers(_ context.Context, projectID int64) ([]domain.ProjectMember, error) {
	return s.members[projectID], nil
}

func (s *fakeProjectStore) AddMember(_ context.Context, member domain.ProjectMember) (*domain.ProjectMember, error) {
	for _, m := range s.members[member.ProjectID] {
		if m.UserID == member.UserID {
			return nil, domain.ErrConflict
		}
	}
	s.members[member.ProjectID] = append(s.members[member.ProjectID], member)
	return &member, nil
}

func (s *fakeProjectStore) RemoveMember(_ context.Context, projectID, userID int64) error {
	members := s.members[projectID]
	for i, m := range members {
		if m.UserID == userID {
			s.members[projectID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeIssueStore struct {
	issues map[int64]*domain.Issue
	nextID int64

	// Injectable failures for persistence-ordering tests.
	updateErr error
	moveErr   error
}

func newFakeIssueStore(issues ...*domain.Issue) *fakeIssueStore {
	s := &fakeIssueStore{issues: make(map[int64]*domain.Issue)}
	for _, i := range issues {
		if i.ID > s.nextID {
			s.nextID = i.ID
		}
		s.issues[i.ID] = i
	}
	return s
}

func (s *fakeIssueStore) FindByKey(_ context.Context, key string) (*domain.Issue, error) {
	for _, i := range s.issues {
		if i.Key == key {
			return i, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeIssueStore) FindAllByProject(_ context.Context, projectID int64) ([]domain.Issue, error) {
	var out []domain.Issue
	for _, i := range s.issues {
		if i.ProjectID == projectID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (s *fakeIssueStore) FindAllBySprint(_ context.Context, projectID, sprintID int64) ([]domain.Issue, error) {
	var out []domain.Issue
	for _, i := range s.issues {
		if i.ProjectID == projectID && i.SprintID != nil && *i.SprintID == sprintID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (s *fakeIssueStore) FindBacklog(_ context.Context, projectID int64) ([]domain.Issue, error) {
	var out []domain.Issue
	for _, i := range s.issues {
		if i.ProjectID == projectID && i.SprintID == nil {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (s *fakeIssueStore) InsertAt(_ context.Context, issue domain.Issue, position int) (*domain.Issue, error) {
	max := -1
	for _, i := range s.issues {
		if i.ProjectID == issue.ProjectID && i.Status == issue.Status && i.OrderIndex > max {
			max = i.OrderIndex
		}
	}
	if position < 0 {
		issue.OrderIndex = max + 1
	} else {
		for _, i := range s.issues {
			if i.ProjectID == issue.ProjectID && i.Status == issue.Status && i.OrderIndex >= position {
				i.OrderIndex++
			}
		}
		issue.OrderIndex = position
	}
	s.nextID++
	issue.ID = s.nextID
	s.issues[issue.ID] = &issue
	return &issue, nil
}

func (s *fakeIssueStore) Update(_ context.Context, issue *domain.Issue) (*domain.Issue, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if _, ok := s.issues[issue.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	s.issues[issue.ID] = issue
	return issue, nil
}

func (s *fakeIssueStore) Move(_ context.Context, id int64, status domain.IssueStatus, orderIndex int) (*domain.Issue, error) {
	if s.moveErr != nil {
		return nil, s.moveErr
	}
	issue, ok := s.issues[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	issue.Status = status
	issue.OrderIndex = orderIndex
	return issue, nil
}

func (s *fakeIssueStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.issues[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.issues, id)
	return nil
}

type fakeSprintStore struct {
	sprints map[int64]*domain.Sprint
	issues  *fakeIssueStore
	nextID  int64
}

func newFakeSprintStore(issues *fakeIssueStore, sprints ...*domain.Sprint) *fakeSprintStore {
	s := &fakeSprintStore{sprints: make(map[int64]*domain.Sprint), issues: issues}
	for _, sp := range sprints {
		if sp.ID > s.nextID {
			s.nextID = sp.ID
		}
		if sp.Status == "" {
			sp.Status = domain.SprintPlanning
		}
		s.sprints[sp.ID] = sp
	}
	return s
}

func (s *fakeSprintStore) FindByID(_ context.Context, id int64) (*domain.Sprint, error) {
	if sp, ok := s.sprints[id]; ok {
		return sp, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeSprintStore) FindAllByProject(_ context.Context, projectID int64) ([]domain.Sprint, error) {
	var out []domain.Sprint
	for _, sp := range s.sprints {
		if sp.ProjectID == projectID {
			out = append(out, *sp)
		}
	}
	// start_date DESC, as the repository orders it
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartDate.After(out[i].StartDate.Time) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *fakeSprintStore) Create(_ context.Context, sprint domain.Sprint) (*domain.Sprint, error) {
	s.nextID++
	sprint.ID = s.nextID
	sprint.Status = domain.SprintPlanning
	s.sprints[sprint.ID] = &sprint
	return &sprint, nil
}

func (s *fakeSprintStore) Update(_ context.Context, sprint *domain.Sprint) (*domain.Sprint, error) {
	if _, ok := s.sprints[sprint.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	s.sprints[sprint.ID] = sprint
	return sprint, nil
}

// Start mirrors the repository's guarded transition: the sprint must be
// PLANNING and no other sprint in the project may be ACTIVE.
func (s *fakeSprintStore) Start(_ context.Context, id int64) error {
	sprint, ok := s.sprints[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sprint.Status != domain.SprintPlanning {
		return fmt.Errorf("%w: sprint is not in planning", domain.ErrState)
	}
	for _, other := range s.sprints {
		if other.ProjectID == sprint.ProjectID && other.Status == domain.SprintActive {
			return fmt.Errorf("%w: project already has an active sprint", domain.ErrState)
		}
	}
	sprint.Status = domain.SprintActive
	return nil
}

// Complete mirrors the repository's transaction: redistribute the incomplete
// issues, then mark the sprint COMPLETED only if it is still ACTIVE.
func (s *fakeSprintStore) Complete(_ context.Context, id int64, action domain.IncompleteIssueAction, targetSprintID *int64, incompleteIDs []int64) error {
	sprint, ok := s.sprints[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sprint.Status != domain.SprintActive {
		return fmt.Errorf("%w: sprint is not active", domain.ErrState)
	}
	for _, issueID := range incompleteIDs {
		issue := s.issues.issues[issueID]
		if action == domain.MoveToSprint {
			issue.SprintID = targetSprintID
		} else {
			issue.SprintID = nil
		}
	}
	sprint.Status = domain.SprintCompleted
	return nil
}

type fakeHistoryStore struct {
	entries []domain.IssueHistory
	nextID  int64
}

func (s *fakeHistoryStore) Append(_ context.Context, entry domain.IssueHistory) error {
	s.nextID++
	entry.ID = s.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeHistoryStore) FindAllByIssue(_ context.Context, issueID int64) ([]domain.IssueHistory, error) {
	var out []domain.IssueHistory
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].IssueID == issueID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *fakeHistoryStore) FindDoneTransitions(_ context.Context, issueIDs []int64) ([]domain.IssueHistory, error) {
	want := make(map[int64]bool, len(issueIDs))
	for _, id := range issueIDs {
		want[id] = true
	}
	var out []domain.IssueHistory
	for _, e := range s.entries {
		if want[e.IssueID] && e.FieldName == domain.FieldStatus &&
			e.NewValue != nil && *e.NewValue == string(domain.StatusDone) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTeamStore struct {
	teams       map[int64]*domain.Team
	members     map[int64][]domain.TeamMember
	invitations map[int64]*domain.TeamInvitation
	nextID      int64
	nextInvID   int64
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{
		teams:       make(map[int64]*domain.Team),
		members:     make(map[int64][]domain.TeamMember),
		invitations: make(map[int64]*domain.TeamInvitation),
	}
}

func (s *fakeTeamStore) FindByID(_ context.Context, id int64) (*domain.Team, error) {
	if t, ok := s.teams[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeTeamStore) FindAllForUser(_ context.Context, userID int64) ([]domain.Team, error) {
	var out []domain.Team
	for _, t := range s.teams {
		for _, m := range s.members[t.ID] {
			if m.UserID == userID {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeTeamStore) Create(_ context.Context, team domain.Team) (*domain.Team, error) {
	for _, t := range s.teams {
		if t.Name == team.Name {
			return nil, domain.ErrConflict
		}
	}
	s.nextID++
	team.ID = s.nextID
	s.teams[team.ID] = &team
	s.members[team.ID] = []domain.TeamMember{
		{TeamID: team.ID, UserID: team.OwnerID, Role: domain.TeamRoleOwner},
	}
	return &team, nil
}

func (s *fakeTeamStore) Update(_ context.Context, team *domain.Team) (*domain.Team, error) {
	if _, ok := s.teams[team.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	s.teams[team.ID] = team
	return team, nil
}

func (s *fakeTeamStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.teams[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.teams, id)
	delete(s.members, id)
	return nil
}

func (s *fakeTeamStore) FindMember(_ context.Context, teamID, userID int64) (*domain.TeamMember, error) {
	for _, m := range s.members[teamID] {
		if m.UserID == userID {
			member := m
			return &member, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeTeamStore) ListMembers(_ context.Context, teamID int64) ([]domain.TeamMember, error) {
	return s.members[teamID], nil
}

func (s *fakeTeamStore) AddMember(_ context.Context, member domain.TeamMember) (*domain.TeamMember, error) {
	for _, m := range s.members[member.TeamID] {
		if m.UserID == member.UserID {
			return nil, domain.ErrConflict
		}
	}
	s.members[member.TeamID] = append(s.members[member.TeamID], member)
	return &member, nil
}

func (s *fakeTeamStore) RemoveMember(_ context.Context, teamID, userID int64) error {
	members := s.members[teamID]
	for i, m := range members {
		if m.UserID == userID {
			s.members[teamID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeTeamStore) UpdateMemberRole(_ context.Context, teamID, userID int64, role domain.TeamRole) error {
	members := s.members[teamID]
	for i := range members {
		if members[i].UserID == userID {
			members[i].Role = role
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeTeamStore) CreateInvitation(_ context.Context, inv domain.TeamInvitation) (*domain.TeamInvitation, error) {
	for _, existing := range s.invitations {
		if existing.TeamID == inv.TeamID && existing.InviteeID == inv.InviteeID &&
			existing.Status == domain.InvitationPending {
			return nil, domain.ErrConflict
		}
	}
	s.nextInvID++
	inv.ID = s.nextInvID
	inv.Status = domain.InvitationPending
	s.invitations[inv.ID] = &inv
	return &inv, nil
}

func (s *fakeTeamStore) FindInvitationByID(_ context.Context, id int64) (*domain.TeamInvitation, error) {
	if inv, ok := s.invitations[id]; ok {
		return inv, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeTeamStore) FindPendingInvitations(_ context.Context, inviteeID int64) ([]domain.TeamInvitation, error) {
	var out []domain.TeamInvitation
	for _, inv := range s.invitations {
		if inv.InviteeID == inviteeID && inv.Status == domain.InvitationPending {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// ResolveInvitation mirrors the repository's status-guarded update.
func (s *fakeTeamStore) ResolveInvitation(_ context.Context, id int64, status domain.InvitationStatus) error {
	inv, ok := s.invitations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if inv.Status != domain.InvitationPending {
		return fmt.Errorf("%w: invitation is not pending", domain.ErrState)
	}
	inv.Status = status
	now := time.Now()
	inv.RespondedAt = &now
	return nil
}

type fakeLabelStore struct {
	labels      map[int64]*domain.IssueLabel
	assignments map[int64][]int64
	nextID      int64
}

func newFakeLabelStore() *fakeLabelStore {
	return &fakeLabelStore{
		labels:      make(map[int64]*domain.IssueLabel),
		assignments: make(map[int64][]int64),
	}
}

func (s *fakeLabelStore) FindByID(_ context.Context, id int64) (*domain.IssueLabel, error) {
	if l, ok := s.labels[id]; ok {
		return l, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeLabelStore) FindAllByProject(_ context.Context, projectID int64) ([]domain.IssueLabel, error) {
	var out []domain.IssueLabel
	for _, l := range s.labels {
		if l.ProjectID == projectID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeLabelStore) Create(_ context.Context, label domain.IssueLabel) (*domain.IssueLabel, error) {
	for _, l := range s.labels {
		if l.ProjectID == label.ProjectID && l.Name == label.Name {
			return nil, domain.ErrConflict
		}
	}
	s.nextID++
	label.ID = s.nextID
	s.labels[label.ID] = &label
	return &label, nil
}

func (s *fakeLabelStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.labels[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.labels, id)
	return nil
}

func (s *fakeLabelStore) Assign(_ context.Context, issueID, labelID int64) error {
	for _, id := range s.assignments[issueID] {
		if id == labelID {
			return domain.ErrConflict
		}
	}
	s.assignments[issueID] = append(s.assignments[issueID], labelID)
	return nil
}

func (s *fakeLabelStore) Unassign(_ context.Context, issueID, labelID int64) error {
	ids := s.assignments[issueID]
	for i, id := range ids {
		if id == labelID {
			s.assignments[issueID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeLabelStore) FindAllByIssue(_ context.Context, issueID int64) ([]domain.IssueLabel, error) {
	var out []domain.IssueLabel
	for _, id := range s.assignments[issueID] {
		if l, ok := s.labels[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

type sentNotification struct {
	UserID  int64
	Type    domain.NotificationType
	Title   string
	Message string
	Data    *string
}

type fakeNotifier struct {
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, userID int64, typ domain.NotificationType, title, message string, data *string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{
		UserID: userID, Type: typ, Title: title, Message: message, Data: data,
	})
	return nil
}

// allowAll satisfies AccessChecker for tests that are not about permissions.
type allowAll struct{}

func (allowAll) CheckMembership(context.Context, int64, int64) error { return nil }
func (allowAll) CheckAdminAccess(context.Context, int64, int64) error {
	return nil
}

func intPtr(n int) *int       { return &n }
func int64Ptr(n int64) *int64 { return &n }
