package history

import "time"

const day = 24 * time.Hour

// Groups partitions sessions for the sidebar.
type Groups struct {
	Today     []ChatSession `json:"today"`
	Yesterday []ChatSession `json:"yesterday"`
	PastWeek  []ChatSession `json:"pastWeek"`
	PastMonth []ChatSession `json:"pastMonth"`
}

// GroupByRecency places each session in the first bucket whose lower bound
// its CreatedAt reaches: midnight of now's day, the day before, seven days
// before. Anything older lands in PastMonth. Input order is kept.
func GroupByRecency(sessions []ChatSession, now time.Time) Groups {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.Add(-day)
	weekAgo := today.Add(-7 * day)

	g := Groups{
		Today:     []ChatSession{},
		Yesterday: []ChatSession{},
		PastWeek:  []ChatSession{},
		PastMonth: []ChatSession{},
	}
	for _, s := range sessions {
		ts := s.CreatedAt
		switch {
		case !ts.Before(today):
			g.Today = append(g.Today, s)
		case !ts.Before(yesterday):
			g.Yesterday = append(g.Yesterday, s)
		case !ts.Before(weekAgo):
			g.PastWeek = append(g.PastWeek, s)
		default:
			g.PastMonth = append(g.PastMonth, s)
		}
	}
	return g
}

// Len counts sessions across all buckets.
func (g Groups) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.PastWeek) + len(g.PastMonth)
}
