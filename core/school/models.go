package school

import (
	"time"
)

// Resource types
const (
	ResourceLink = "link"
	ResourceFile = "file"
	ResourceNote = "note"
)

var (
	ResourceTypes = []string{ResourceLink, ResourceFile, ResourceNote}

	DefaultSettings = Settings{Name: "My School", ThemeColor: "#2563eb"}
)

// Targeted is implemented by the items that may be restricted to a single class group.
type Targeted interface {
	Target() *string
}

type ClassGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c ClassGroup) ItemID() string { return c.ID }

type Settings struct {
	Name       string  `json:"name"`
	ThemeColor string  `json:"theme_color"`
	LogoURL    *string `json:"logo_url"`
}

type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	MeetLink    *string   `json:"meet_link"`
	Date        time.Time `json:"date"`
	IsUrgent    bool      `json:"is_urgent"`
	TargetClass *string   `json:"target_class"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
}

func (a Announcement) ItemID() string  { return a.ID }
func (a Announcement) Target() *string { return a.TargetClass }

type Exam struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Date            time.Time `json:"date"` // calendar day, UTC midnight
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Room            string    `json:"room"`
	Notes           *string   `json:"notes"`
	TargetClass     *string   `json:"target_class"`
	CreatedByID     string    `json:"created_by_id"`
}

func (e Exam) ItemID() string  { return e.ID }
func (e Exam) Target() *string { return e.TargetClass }

// Day returns the exam date at UTC midnight.
func (e Exam) Day() time.Time {
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartsAt combines the exam day with its start time. A malformed start time falls back to midnight.
func (e Exam) StartsAt() time.Time {
	y, m, d := e.Date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, e.Date.Location())
	if hhmm, err := time.Parse("15:04", e.StartTime); err == nil {
		start = start.Add(time.Duration(hhmm.Hour())*time.Hour + time.Duration(hhmm.Minute())*time.Minute)
	}
	return start
}

func (e Exam) EndsAt() time.Time {
	return e.StartsAt().Add(time.Duration(e.DurationMinutes) * time.Minute)
}

type Resource struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	Subject     string    `json:"subject"`
	Description *string   `json:"description"`
	TargetClass *string   `json:"target_class"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedByID string    `json:"created_by_id"`
}

func (r Resource) ItemID() string  { return r.ID }
func (r Resource) Target() *string { return r.TargetClass }

// Notification categories
const (
	CategoryAlert   = "alert"
	CategoryInfo    = "info"
	CategorySuccess = "success"
)

// Views a notification points to
const (
	ViewExams         = "exams"
	ViewAnnouncements = "announcements"
	ViewPolls         = "polls"
)

// Notification is derived on read and never stored.
type Notification struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	View      string    `json:"view"`
	Timestamp time.Time `json:"timestamp"`
}
