package school

import (
	"fmt"
	"sort"
	"time"

	"github.com/trezcool/taarifa/core/user"
)

const (
	UrgentPrefix = "URGENT: "

	ExamWindow         = 7 * 24 * time.Hour
	AnnouncementWindow = 48 * time.Hour
	PollWindow         = 48 * time.Hour
)

// DeriveNotifications computes the notification feed of `viewer` from the items they can see.
// The result is sorted most recent first.
func DeriveNotifications(viewer user.User, exams []Exam, announcements []Announcement, polls []Poll, now time.Time) []Notification {
	notifs := make([]Notification, 0)

	// exams are compared by calendar day, whatever their start time
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	lastDay := today.Add(ExamWindow)
	for _, exam := range exams {
		if exam.Day().Before(today) || exam.Day().After(lastDay) {
			continue
		}
		start := exam.StartsAt()
		notifs = append(notifs, Notification{
			ID:        "exam-" + exam.ID,
			Category:  CategoryAlert,
			Title:     "Upcoming exam: " + exam.Subject,
			Message:   fmt.Sprintf("%s at %s in room %s", start.Format("Mon 02 Jan"), exam.StartTime, exam.Room),
			View:      ViewExams,
			Timestamp: start,
		})
	}

	for _, ann := range announcements {
		age := now.Sub(ann.Date)
		if age < 0 || age > AnnouncementWindow {
			continue
		}
		title := ann.Title
		if ann.IsUrgent {
			title = UrgentPrefix + title
		}
		notifs = append(notifs, Notification{
			ID:        "ann-" + ann.ID,
			Category:  CategoryInfo,
			Title:     title,
			Message:   fmt.Sprintf("%s, by %s", ann.Subject, ann.AuthorName),
			View:      ViewAnnouncements,
			Timestamp: ann.Date,
		})
	}

	for _, poll := range polls {
		age := now.Sub(poll.CreatedAt)
		if age < 0 || age > PollWindow || poll.HasVoted(viewer.ID) {
			continue
		}
		notifs = append(notifs, Notification{
			ID:        "poll-" + poll.ID,
			Category:  CategorySuccess,
			Title:     "New poll: " + poll.Title,
			Message:   "Your vote is awaited.",
			View:      ViewPolls,
			Timestamp: poll.CreatedAt,
		})
	}

	sort.SliceStable(notifs, func(i, j int) bool {
		if notifs[i].Timestamp.Equal(notifs[j].Timestamp) {
			return notifs[i].ID < notifs[j].ID
		}
		return notifs[i].Timestamp.After(notifs[j].Timestamp)
	})
	return notifs
}
