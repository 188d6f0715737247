package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
)

func Test_schoolApi_dashboard(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	now := time.Now().UTC()
	soon := now.AddDate(0, 0, 2).Format("2006-01-02")
	exam, err := env.portal.CreateExam(ctx, env.rep, school.ExamForm{Subject: "Maths", Date: soon, StartTime: "09:00", DurationMinutes: 60, Room: "B12", TargetClass: strPtr("10A")})
	require.NoError(t, err)
	_, err = env.portal.CreateExam(ctx, env.rep, school.ExamForm{Subject: "Biology", Date: soon, StartTime: "09:00", DurationMinutes: 60, Room: "Lab", TargetClass: strPtr("10B")})
	require.NoError(t, err)
	ann, err := env.portal.CreateAnnouncement(ctx, env.admin, school.AnnouncementForm{Title: "Fire drill", Subject: "Safety", IsUrgent: true})
	require.NoError(t, err)
	poll, err := env.portal.CreatePoll(ctx, env.rep, school.PollForm{
		Title:     "Class photo",
		Options:   []school.PollOptionForm{{Text: "Monday"}, {Text: "Friday"}},
		ExpiresAt: now.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	studentToken := getToken(t, env.conf, env.student)

	req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", studentToken)
	env.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res DashboardResponse
	decodeBody(t, rec, &res)

	assert.Equal(t, school.DefaultSettings, res.Settings)
	require.Len(t, res.ClassGroups, 2)
	assert.Equal(t, "10A", res.ClassGroups[0].Name)
	require.Len(t, res.Exams, 1)
	assert.Equal(t, exam.ID, res.Exams[0].ID)
	require.Len(t, res.Announcements, 1)
	require.Len(t, res.Polls, 1)
	assert.Nil(t, res.Polls[0].MyVote)

	ids := make([]string, 0, len(res.Notifications))
	for _, n := range res.Notifications {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{"exam-" + exam.ID, "ann-" + ann.ID, "poll-" + poll.ID}, ids)
	for _, n := range res.Notifications {
		if n.ID == "ann-"+ann.ID {
			assert.Equal(t, school.UrgentPrefix+"Fire drill", n.Title)
		}
	}

	t.Run("Voting clears the poll notification", func(t *testing.T) {
		_, err := env.portal.Vote(ctx, poll.ID, env.student, poll.Options[0].ID)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", studentToken)
		env.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var notifs []school.Notification
		decodeBody(t, rec, &notifs)
		require.Len(t, notifs, 2)
		for _, n := range notifs {
			assert.NotEqual(t, school.ViewPolls, n.View)
		}
	})

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin feed", path: "/v1/notifications", token: getToken(t, env.conf, env.admin)},
	})
}

func Test_schoolApi_settings(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)
	repToken := getToken(t, env.conf, env.rep)

	updated := school.Settings{Name: "Lycée du Lac", ThemeColor: "#0f766e", LogoURL: strPtr("https://school.test/logo.png")}

	runHTTPTests(t, env, []httpTest{
		{name: "Defaults", path: "/v1/settings", token: repToken, wantData: marchallObj(t, school.DefaultSettings)},
		{
			name: "Admins only", method: http.MethodPut, path: "/v1/settings", token: repToken,
			body: marchallObj(t, updated), wantCode: http.StatusForbidden,
		},
		{
			name: "Invalid color", method: http.MethodPut, path: "/v1/settings", token: adminToken,
			body:     []byte(`{"name":"School","theme_color":"teal"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"theme_color": "theme_color must be a valid HEX color"}),
		},
		{
			name: "Update", method: http.MethodPut, path: "/v1/settings", token: adminToken,
			body: marchallObj(t, updated), wantData: marchallObj(t, updated),
		},
		{name: "Updated", path: "/v1/settings", token: repToken, wantData: marchallObj(t, updated)},
	})
	assert.Len(t, env.db.Rows(core.TableSettings), 1)
}

func Test_schoolApi_classes(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)
	repToken := getToken(t, env.conf, env.rep)

	snap, err := env.portal.Snapshot()
	require.NoError(t, err)
	school.SortClassGroups(snap.ClassGroups)
	class10A := snap.ClassGroups[0]

	runHTTPTests(t, env, []httpTest{
		{name: "Sorted by name", path: "/v1/classes", token: repToken, wantData: marchallObj(t, snap.ClassGroups)},
		{name: "Admins only", method: http.MethodPost, path: "/v1/classes", token: repToken, body: []byte(`{"name":"11C"}`), wantCode: http.StatusForbidden},
		{
			name: "Already exists", method: http.MethodPost, path: "/v1/classes", token: adminToken, body: []byte(`{"name":" 10A "}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "a class group with this name already exists"}),
		},
		{
			name: "Has members", method: http.MethodDelete, path: "/v1/classes/" + class10A.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"class_group": "this class still has members"}),
		},
		{name: "Unknown class", method: http.MethodDelete, path: "/v1/classes/nope", token: adminToken, wantCode: http.StatusNotFound},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/classes", adminToken, []byte(`{"name":"11C"}`))
	env.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cg school.ClassGroup
	decodeBody(t, rec, &cg)
	assert.Equal(t, "11C", cg.Name)
	assert.True(t, env.portal.ClassGroupExists("11C"))

	req, rec = newAuthRequest(http.MethodDelete, "/v1/classes/"+cg.ID, adminToken)
	env.do(req, rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.portal.ClassGroupExists("11C"))
	assert.Len(t, env.db.Rows(core.TableClassGroups), 2)
}
