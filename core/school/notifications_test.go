package school

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/taarifa/core/user"
)

var viewer = user.User{ID: "s1", Role: user.RoleStudent, ClassGroup: strPtr("10A")}

// examAt returns an exam starting at `start` (minute precision).
func examAt(id string, start time.Time) Exam {
	y, m, d := start.Date()
	return Exam{
		ID:              id,
		Subject:         "Maths",
		Date:            time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		StartTime:       start.Format("15:04"),
		DurationMinutes: 90,
		Room:            "B12",
	}
}

func TestDeriveNotifications_Exams(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		exam Exam
		want int
	}{
		{name: "in exactly 7 days", exam: examAt("e1", now.Add(7*24*time.Hour)), want: 1},
		{name: "in 8 days", exam: examAt("e2", now.Add(8*24*time.Hour)), want: 0},
		{name: "yesterday", exam: examAt("e3", now.Add(-24*time.Hour)), want: 0},
		{name: "later today", exam: examAt("e4", now.Add(2*time.Hour)), want: 1},
		{name: "today, already started", exam: examAt("e5", now.Add(-time.Hour)), want: 1},
		{name: "in 7 days, later in the day", exam: examAt("e6", now.Add(7*24*time.Hour+5*time.Hour)), want: 1},
		{name: "in 8 days, early morning", exam: examAt("e7", time.Date(2024, time.March, 12, 7, 0, 0, 0, time.UTC)), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifs := DeriveNotifications(viewer, []Exam{tt.exam}, nil, nil, now)
			require.Len(t, notifs, tt.want)
			if tt.want > 0 {
				assert.Equal(t, CategoryAlert, notifs[0].Category)
				assert.Equal(t, ViewExams, notifs[0].View)
				assert.Equal(t, "exam-"+tt.exam.ID, notifs[0].ID)
			}
		})
	}
}

func TestDeriveNotifications_Announcements(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
	anns := []Announcement{
		{ID: "a1", Title: "Library closed", Date: now.Add(-47 * time.Hour)},
		{ID: "a2", Title: "Fire drill", IsUrgent: true, Date: now.Add(-time.Hour)},
		{ID: "a3", Title: "Old news", Date: now.Add(-49 * time.Hour)},
		{ID: "a4", Title: "Scheduled", Date: now.Add(time.Hour)},
	}

	notifs := DeriveNotifications(viewer, nil, anns, nil, now)
	require.Len(t, notifs, 2)
	assert.Equal(t, "ann-a2", notifs[0].ID)
	assert.Equal(t, UrgentPrefix+"Fire drill", notifs[0].Title)
	assert.Equal(t, CategoryInfo, notifs[0].Category)
	assert.Equal(t, "ann-a1", notifs[1].ID)
	assert.Equal(t, "Library closed", notifs[1].Title)
}

func TestDeriveNotifications_Polls(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
	poll := Poll{
		ID:        "p1",
		Title:     "Trip destination",
		Options:   []PollOption{{ID: "o1", Text: "Zanzibar"}, {ID: "o2", Text: "Arusha"}},
		CreatedAt: now.Add(-47 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
		Ledger:    map[string]string{},
	}

	notifs := DeriveNotifications(viewer, nil, nil, []Poll{poll}, now)
	require.Len(t, notifs, 1)
	assert.Equal(t, CategorySuccess, notifs[0].Category)
	assert.Equal(t, "poll-p1", notifs[0].ID)

	voted := poll.Clone()
	_, err := voted.CastVote(viewer.ID, "o1")
	require.NoError(t, err)
	assert.Empty(t, DeriveNotifications(viewer, nil, nil, []Poll{voted}, now))

	old := poll.Clone()
	old.CreatedAt = now.Add(-49 * time.Hour)
	assert.Empty(t, DeriveNotifications(viewer, nil, nil, []Poll{old}, now))
}

func TestDeriveNotifications_SortedMostRecentFirst(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
	exams := []Exam{examAt("e1", now.Add(3*24*time.Hour))}
	anns := []Announcement{{ID: "a1", Title: "A", Date: now.Add(-2 * time.Hour)}}
	polls := []Poll{{ID: "p1", Title: "P", CreatedAt: now.Add(-time.Hour)}}

	notifs := DeriveNotifications(viewer, exams, anns, polls, now)
	var ids []string
	for _, n := range notifs {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"exam-e1", "poll-p1", "ann-a1"}, ids)
}
