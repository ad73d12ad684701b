package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupByRecency(t *testing.T) {
	now := time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)
	at := func(id string, d time.Duration) ChatSession {
		return ChatSession{ID: id, CreatedAt: now.Add(-d)}
	}
	sessions := []ChatSession{
		at("now", 0),
		at("2h", 2*time.Hour),
		at("25h", 25*time.Hour),
		at("5d", 5*24*time.Hour),
		at("40d", 40*24*time.Hour),
	}

	g := GroupByRecency(sessions, now)
	require.Equal(t, []string{"now", "2h"}, ids(g.Today))
	require.Equal(t, []string{"25h"}, ids(g.Yesterday))
	require.Equal(t, []string{"5d"}, ids(g.PastWeek))
	require.Equal(t, []string{"40d"}, ids(g.PastMonth))
	require.Equal(t, 5, g.Len())
}

func TestGroupByRecency_Boundaries(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	sessions := []ChatSession{
		{ID: "midnight", CreatedAt: midnight},
		{ID: "just-before", CreatedAt: midnight.Add(-time.Millisecond)},
		{ID: "yesterday-midnight", CreatedAt: midnight.Add(-24 * time.Hour)},
		{ID: "week-bound", CreatedAt: midnight.Add(-7 * 24 * time.Hour)},
		{ID: "past-week-bound", CreatedAt: midnight.Add(-7*24*time.Hour - time.Second)},
	}

	g := GroupByRecency(sessions, now)
	require.Equal(t, []string{"midnight"}, ids(g.Today))
	require.Equal(t, []string{"just-before", "yesterday-midnight"}, ids(g.Yesterday))
	require.Equal(t, []string{"week-bound"}, ids(g.PastWeek))
	require.Equal(t, []string{"past-week-bound"}, ids(g.PastMonth))
}

func TestGroupByRecency_EmptyBucketsAreNotNil(t *testing.T) {
	g := GroupByRecency(nil, time.Now())
	require.NotNil(t, g.Today)
	require.NotNil(t, g.PastMonth)
	require.Zero(t, g.Len())
}
