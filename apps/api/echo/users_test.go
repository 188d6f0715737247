package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
	inmemdb "github.com/trezcool/taarifa/storage/database/inmem"
)

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)

	runHTTPTests(t, env, []httpTest{
		{name: "Admins only", path: "/v1/users", token: getToken(t, env.conf, env.rep), wantCode: http.StatusForbidden},
		{name: "Sorted by name", path: "/v1/users", token: adminToken, wantData: marchallObj(t, []user.User{env.admin, env.other, env.rep, env.student})},
		{name: "Search", path: "/v1/users?search=RITA", token: adminToken, wantData: marchallObj(t, []user.User{env.rep})},
		{name: "By role", path: "/v1/users?role=student", token: adminToken, wantData: marchallObj(t, []user.User{env.other, env.student})},
		{name: "By class", path: "/v1/users?class_group=10A", token: adminToken, wantData: marchallObj(t, []user.User{env.rep, env.student})},
		{name: "Ordering", path: "/v1/users?ordering=-email", token: adminToken, wantData: marchallObj(t, []user.User{env.student, env.rep, env.other, env.admin})},
		{name: "Ordering by class then name", path: "/v1/users?ordering=-class_group,unknown", token: adminToken, wantData: marchallObj(t, []user.User{env.other, env.rep, env.student, env.admin})},
		{name: "Roles", path: "/v1/users/roles", token: adminToken, wantData: marchallObj(t, user.Roles)},
		{name: "Retrieve", path: "/v1/users/" + env.student.ID, token: adminToken, wantData: marchallObj(t, env.student)},
		{name: "Unknown user", path: "/v1/users/nope", token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_userApi_create(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)
	newUser := func(name, email, pwd, role, class string) []byte {
		nu := map[string]interface{}{"name": name, "email": email, "password": pwd, "password_confirm": pwd, "role": role}
		if class != "" {
			nu["class_group"] = class
		}
		return marchallObj(t, nu)
	}

	runHTTPTests(t, env, []httpTest{
		{
			name: "Required fields", method: http.MethodPost, path: "/v1/users", token: adminToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"email":            "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
				"role":             "this field is required",
			}),
		},
		{
			name: "Weak password", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body:     newUser("Kim Kid", "kim@school.test", "short", user.RoleStudent, "10B"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "Email taken", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body:     newUser("Sam Again", "SAM@school.test", testPassword, user.RoleStudent, "10B"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "Admins have no class", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body:     newUser("Ada Admin", "ada@school.test", testPassword, user.RoleAdmin, "10B"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"class_group": "only students and class representatives belong to a class"}),
		},
		{
			name: "Unknown class", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body:     newUser("Kim Kid", "kim@school.test", testPassword, user.RoleStudent, "12Z"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"class_group": "unknown class group"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/users", adminToken, newUser("Kim Kid", " Kim@School.test ", testPassword, user.RoleStudent, "10B"))
	env.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created user.User
	decodeBody(t, rec, &created)
	assert.Equal(t, "kim@school.test", created.Email)
	assert.Equal(t, "10B", core.StringValue(created.ClassGroup))

	usr, err := env.portal.Authenticate(context.Background(), "kim@school.test", testPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, usr.ID)
	assert.Len(t, env.db.Rows(core.TableUsers), 5)
}

func Test_userApi_updateAndDelete(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	adminToken := getToken(t, env.conf, env.admin)

	promoted := env.student
	promoted.Role = user.RoleResponsable
	moved := env.other
	moved.ClassGroup = strPtr("10A")

	runHTTPTests(t, env, []httpTest{
		{name: "Promote", method: http.MethodPut, path: "/v1/users/" + env.student.ID, token: adminToken, body: []byte(`{"role":"responsable"}`), wantData: marchallObj(t, promoted)},
		{name: "Move class", method: http.MethodPut, path: "/v1/users/" + env.other.ID, token: adminToken, body: []byte(`{"class_group":"10A"}`), wantData: marchallObj(t, moved)},
		{
			name: "Invalid role", method: http.MethodPut, path: "/v1/users/" + env.other.ID, token: adminToken, body: []byte(`{"role":"teacher"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
		{name: "Cannot delete self", method: http.MethodDelete, path: "/v1/users/" + env.admin.ID, token: adminToken, wantCode: http.StatusForbidden},
	})

	t.Run("Delete cascades to created content", func(t *testing.T) {
		_, err := env.portal.CreateExam(ctx, env.rep, school.ExamForm{Subject: "Maths", Date: "2030-01-10", StartTime: "08:00", DurationMinutes: 60, Room: "B1"})
		require.NoError(t, err)
		ann, err := env.portal.CreateAnnouncement(ctx, env.rep, school.AnnouncementForm{Title: "Hello", Subject: "General"})
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+env.rep.ID, adminToken)
		env.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		snap, err := env.portal.Snapshot()
		require.NoError(t, err)
		assert.Empty(t, snap.Exams)
		require.Len(t, snap.Announcements, 1)
		assert.Equal(t, ann.AuthorName, snap.Announcements[0].AuthorName)

		// the deleted user's session is gone
		req, rec = newAuthRequest(http.MethodGet, "/v1/me", getToken(t, env.conf, env.rep))
		env.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "session expired"})}, rec)
	})

	t.Run("Referenced user is kept", func(t *testing.T) {
		env.db.FailNext(core.TableUsers, inmemdb.OpDelete, core.NewStoreError(core.ErrForeignKeyViolation, core.TableUsers, errBoom))

		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+env.other.ID, adminToken)
		env.do(req, rec)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		var res map[string]string
		decodeBody(t, rec, &res)
		assert.NotEmpty(t, res["error"])
		assert.NotEmpty(t, res["hint"])

		_, err := env.portal.User(env.other.ID)
		assert.NoError(t, err)
	})
}

func Test_userApi_passwords(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)
	studentToken := getToken(t, env.conf, env.student)
	newPwd := "N3w!secret"

	runHTTPTests(t, env, []httpTest{
		{
			name: "Mismatch", method: http.MethodPost, path: "/v1/users/" + env.student.ID + "/password", token: adminToken,
			body:     []byte(`{"password":"` + newPwd + `","password_confirm":"other"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "Similar to name", method: http.MethodPost, path: "/v1/users/" + env.student.ID + "/password", token: adminToken,
			body:     []byte(`{"password":"Sam!Student1","password_confirm":"Sam!Student1"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
		{
			name: "Set", method: http.MethodPost, path: "/v1/users/" + env.student.ID + "/password", token: adminToken,
			body: []byte(`{"password":"` + newPwd + `","password_confirm":"` + newPwd + `"}`),
			wantData: marchallObj(t, SuccessResponse{Success: "Password has been set."}),
		},
		{name: "Me", path: "/v1/me", token: studentToken, wantData: marchallObj(t, env.student)},
		{
			name: "Update profile without password", method: http.MethodPut, path: "/v1/me", token: studentToken,
			body: []byte(`{"name":"Samuel Student"}`),
		},
		{
			name: "Profile password needs confirmation", method: http.MethodPut, path: "/v1/me", token: studentToken,
			body:     []byte(`{"password":"An0ther!pwd"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password_confirm": "this field is required"}),
		},
	})

	_, err := env.portal.Authenticate(context.Background(), env.student.Email, newPwd)
	require.NoError(t, err)
	usr, err := env.portal.User(env.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Samuel Student", usr.Name)
}
