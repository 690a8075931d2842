package service

import (
	"github.com/mirahq/mira/internal/domain"
)

// buildBurndown computes the burndown series for a sprint.
//
// totalPoints sums the story points (nil counted as 0) of the issues
// currently linked to the sprint. For every calendar day from start to end
// inclusive, the ideal line decays linearly from totalPoints to 0 and the
// remaining line subtracts the points of issues whose first status->DONE
// transition happened on or before that day. Points are charged exactly once
// per issue, at the chronologically first DONE transition; later toggling
// back and forth does not re-add them.
func buildBurndown(sprint *domain.Sprint, issues []domain.Issue, transitions []domain.IssueHistory) *domain.BurndownChart {
	totalPoints := 0
	pointsByIssue := make(map[int64]int, len(issues))
	for _, issue := range issues {
		points := 0
		if issue.StoryPoints != nil {
			points = *issue.StoryPoints
		}
		totalPoints += points
		pointsByIssue[issue.ID] = points
	}

	// transitions arrive in chronological order; keep the first per issue.
	firstDone := make(map[int64]domain.Date, len(transitions))
	for _, entry := range transitions {
		if _, seen := firstDone[entry.IssueID]; !seen {
			firstDone[entry.IssueID] = domain.DateOf(entry.CreatedAt)
		}
	}

	span := sprint.StartDate.DaysUntil(sprint.EndDate)
	if span <= 0 {
		// Degenerate single-day sprint: one point at full scope.
		return &domain.BurndownChart{
			Sprint:      sprint,
			TotalPoints: totalPoints,
			DataPoints: []domain.BurndownPoint{{
				Date:            sprint.StartDate,
				RemainingPoints: totalPoints,
				IdealPoints:     float64(totalPoints),
			}},
		}
	}

	points := make([]domain.BurndownPoint, 0, span+1)
	for i := 0; i <= span; i++ {
		day := sprint.StartDate.AddDays(i)

		donePoints := 0
		for issueID, doneOn := range firstDone {
			if !doneOn.After(day.Time) {
				donePoints += pointsByIssue[issueID]
			}
		}

		ideal := float64(totalPoints) * (1 - float64(i)/float64(span))
		points = append(points, domain.BurndownPoint{
			Date:            day,
			RemainingPoints: totalPoints - donePoints,
			IdealPoints:     ideal,
		})
	}

	return &domain.BurndownChart{
		Sprint:      sprint,
		TotalPoints: totalPoints,
		DataPoints:  points,
	}
}
