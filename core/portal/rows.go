package portal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

const settingsRowID = "default"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// rowReader reads typed columns out of a row, tolerating the representations of the different stores.
// The first failure is kept in err.
type rowReader struct {
	table string
	row   core.Row
	err   error
}

func newRowReader(table string, row core.Row) *rowReader {
	return &rowReader{table: table, row: row}
}

func (r *rowReader) fail(col string, err error) {
	if r.err == nil {
		r.err = errors.Wrapf(err, "%s.%s", r.table, col)
	}
}

func (r *rowReader) value(col string) interface{} {
	v := r.row[col]
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			r.fail(col, err)
			return nil
		}
		return val
	}
	return v
}

func (r *rowReader) str(col string) string {
	switch v := r.value(col).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r *rowReader) optStr(col string) *string {
	if r.value(col) == nil {
		return nil
	}
	if s := r.str(col); s != "" {
		return &s
	}
	return nil
}

func (r *rowReader) boolean(col string) bool {
	switch v := r.value(col).(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string, []byte:
		b, err := strconv.ParseBool(r.str(col))
		if err != nil {
			r.fail(col, err)
		}
		return b
	default:
		r.fail(col, errors.Errorf("unexpected %T", v))
		return false
	}
}

func (r *rowReader) integer(col string) int {
	switch v := r.value(col).(type) {
	case nil:
		return 0
	case int64:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	case float64:
		return int(v)
	case string, []byte:
		i, err := strconv.Atoi(strings.TrimSpace(r.str(col)))
		if err != nil {
			r.fail(col, err)
		}
		return i
	default:
		r.fail(col, errors.Errorf("unexpected %T", v))
		return 0
	}
}

func (r *rowReader) time(col string) time.Time {
	switch v := r.value(col).(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v.UTC()
	case string, []byte:
		s := strings.TrimSpace(r.str(col))
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		r.fail(col, errors.Errorf("unparsable time %q", s))
		return time.Time{}
	default:
		r.fail(col, errors.Errorf("unexpected %T", v))
		return time.Time{}
	}
}

// day reads a calendar date as UTC midnight, whatever the location it was stored with.
func (r *rowReader) day(col string) time.Time {
	t := r.time(col)
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rawJSON returns the JSON document stored in `col`.
func (r *rowReader) rawJSON(col string) []byte {
	switch v := r.value(col).(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			r.fail(col, err)
		}
		return raw
	}
}

func jsonText(v interface{}) (types.JSONText, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}

// Settings

func decodeSettings(rows []core.Row) (school.Settings, error) {
	if len(rows) == 0 {
		return school.DefaultSettings, nil
	}
	row := rows[0]
	for _, candidate := range rows {
		if newRowReader(core.TableSettings, candidate).str("id") == settingsRowID {
			row = candidate
			break
		}
	}
	r := newRowReader(core.TableSettings, row)
	settings := school.Settings{
		Name:       r.str("name"),
		ThemeColor: r.str("theme_color"),
		LogoURL:    r.optStr("logo_url"),
	}
	if settings.Name == "" {
		settings.Name = school.DefaultSettings.Name
	}
	if settings.ThemeColor == "" {
		settings.ThemeColor = school.DefaultSettings.ThemeColor
	}
	return settings, r.err
}

func settingsRow(s school.Settings) core.Row {
	return core.Row{
		"id":          settingsRowID,
		"name":        s.Name,
		"theme_color": s.ThemeColor,
		"logo_url":    null.StringFromPtr(s.LogoURL),
	}
}

// Class groups

func decodeClassGroup(row core.Row) (school.ClassGroup, error) {
	r := newRowReader(core.TableClassGroups, row)
	cg := school.ClassGroup{ID: r.str("id"), Name: r.str("name")}
	return cg, r.err
}

func classGroupRow(cg school.ClassGroup) core.Row {
	return core.Row{"id": cg.ID, "name": cg.Name}
}

// Users

func decodeUser(row core.Row) (user.User, error) {
	r := newRowReader(core.TableUsers, row)
	usr := user.User{
		ID:           r.str("id"),
		Name:         r.str("name"),
		Email:        core.CleanString(r.str("email"), true /* lower */),
		Role:         r.str("role"),
		ClassGroup:   r.optStr("class_group"),
		PasswordHash: []byte(r.str("password")),
	}
	return usr, r.err
}

func userRow(usr user.User) core.Row {
	return core.Row{
		"id":          usr.ID,
		"name":        usr.Name,
		"email":       usr.Email,
		"password":    string(usr.PasswordHash),
		"role":        usr.Role,
		"class_group": null.StringFromPtr(usr.ClassGroup),
	}
}

// Announcements

func decodeAnnouncement(row core.Row) (school.Announcement, error) {
	r := newRowReader(core.TableAnnouncements, row)
	ann := school.Announcement{
		ID:          r.str("id"),
		Title:       r.str("title"),
		Subject:     r.str("subject"),
		MeetLink:    r.optStr("meet_link"),
		Date:        r.time("date"),
		IsUrgent:    r.boolean("is_urgent"),
		TargetClass: r.optStr("target_class"),
		AuthorID:    r.str("author_id"),
		AuthorName:  r.str("author_name"),
	}
	return ann, r.err
}

func announcementRow(ann school.Announcement) core.Row {
	return core.Row{
		"id":           ann.ID,
		"title":        ann.Title,
		"subject":      ann.Subject,
		"meet_link":    null.StringFromPtr(ann.MeetLink),
		"date":         ann.Date.UTC(),
		"is_urgent":    ann.IsUrgent,
		"target_class": null.StringFromPtr(ann.TargetClass),
		"author_id":    ann.AuthorID,
		"author_name":  ann.AuthorName,
	}
}

// Exams

func decodeExam(row core.Row) (school.Exam, error) {
	r := newRowReader(core.TableExams, row)
	exam := school.Exam{
		ID:              r.str("id"),
		Subject:         r.str("subject"),
		Date:            r.day("date"),
		StartTime:       r.str("start_time"),
		DurationMinutes: r.integer("duration_minutes"),
		Room:            r.str("room"),
		Notes:           r.optStr("notes"),
		TargetClass:     r.optStr("target_class"),
		CreatedByID:     r.str("created_by_id"),
	}
	return exam, r.err
}

func examRow(exam school.Exam) core.Row {
	return core.Row{
		"id":               exam.ID,
		"subject":          exam.Subject,
		"date":             exam.Date.UTC(),
		"start_time":       exam.StartTime,
		"duration_minutes": exam.DurationMinutes,
		"room":             exam.Room,
		"notes":            null.StringFromPtr(exam.Notes),
		"target_class":     null.StringFromPtr(exam.TargetClass),
		"created_by_id":    exam.CreatedByID,
	}
}

// Polls

// decodePoll reads a poll and migrates its vote ledger: see school.DecodeLedger.
// The vote counts are recomputed from the ledger.
func decodePoll(row core.Row) (school.Poll, error) {
	r := newRowReader(core.TablePolls, row)
	poll := school.Poll{
		ID:          r.str("id"),
		Title:       r.str("title"),
		IsAnonymous: r.boolean("is_anonymous"),
		CreatedAt:   r.time("created_at"),
		ExpiresAt:   r.time("expires_at"),
		TargetClass: r.optStr("target_class"),
		CreatedByID: r.str("created_by_id"),
	}
	if raw := r.rawJSON("options"); len(raw) > 0 {
		if err := json.Unmarshal(raw, &poll.Options); err != nil {
			r.fail("options", err)
		}
	}
	poll.Ledger = school.DecodeLedger(r.rawJSON("voted_user_ids"))
	poll.Reconcile()
	return poll, r.err
}

// pollVotesRow holds the columns written when a vote is cast: the full option list and ledger.
func pollVotesRow(poll school.Poll) (core.Row, error) {
	options, err := jsonText(poll.Options)
	if err != nil {
		return nil, err
	}
	ledger, err := jsonText(poll.Ledger)
	if err != nil {
		return nil, err
	}
	return core.Row{"options": options, "voted_user_ids": ledger}, nil
}

func pollRow(poll school.Poll) (core.Row, error) {
	row, err := pollVotesRow(poll)
	if err != nil {
		return nil, err
	}
	row["id"] = poll.ID
	row["title"] = poll.Title
	row["is_anonymous"] = poll.IsAnonymous
	row["created_at"] = poll.CreatedAt.UTC()
	row["expires_at"] = poll.ExpiresAt.UTC()
	row["target_class"] = null.StringFromPtr(poll.TargetClass)
	row["created_by_id"] = poll.CreatedByID
	return row, nil
}

// Resources

func decodeResource(row core.Row) (school.Resource, error) {
	r := newRowReader(core.TableResources, row)
	res := school.Resource{
		ID:          r.str("id"),
		Title:       r.str("title"),
		Type:        r.str("type"),
		Content:     r.str("content"),
		Subject:     r.str("subject"),
		Description: r.optStr("description"),
		TargetClass: r.optStr("target_class"),
		CreatedAt:   r.time("created_at"),
		CreatedByID: r.str("created_by_id"),
	}
	return res, r.err
}

func resourceRow(res school.Resource) core.Row {
	return core.Row{
		"id":            res.ID,
		"title":         res.Title,
		"type":          res.Type,
		"content":       res.Content,
		"subject":       res.Subject,
		"description":   null.StringFromPtr(res.Description),
		"target_class":  null.StringFromPtr(res.TargetClass),
		"created_at":    res.CreatedAt.UTC(),
		"created_by_id": res.CreatedByID,
	}
}

// withoutIDColumn returns the columns of `row` to update.
func withoutIDColumn(row core.Row) core.Row {
	delete(row, "id")
	return row
}
