package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core/school"
)

// DashboardResponse is everything the context user can see, in listing order.
type DashboardResponse struct {
	Settings      school.Settings       `json:"settings"`
	ClassGroups   []school.ClassGroup   `json:"class_groups"`
	Announcements []school.Announcement `json:"announcements"`
	Exams         []school.Exam         `json:"exams"`
	Polls         []PollView            `json:"polls"`
	Resources     []school.Resource     `json:"resources"`
	Notifications []school.Notification `json:"notifications"`
}

type schoolApi struct {
	ServerDeps
}

func registerSchoolAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{deps}
	admin := adminMiddleware()

	g.GET("/dashboard", api.dashboard, authed...)
	g.GET("/notifications", api.notifications, authed...)

	sg := g.Group("/settings", authed...)
	sg.GET("", api.retrieveSettings)
	sg.PUT("", api.updateSettings, admin)

	cg := g.Group("/classes", authed...)
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass, admin)
	cg.DELETE("/:id", api.destroyClass, admin)
}

func (api schoolApi) dashboard(ctx echo.Context) error {
	usr, snap, err := contentApi(api).viewerSnapshot(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res := DashboardResponse{
		Settings:      snap.Settings,
		ClassGroups:   snap.ClassGroups,
		Announcements: school.Visible(usr, snap.Announcements),
		Exams:         school.Visible(usr, snap.Exams),
		Resources:     school.Visible(usr, snap.Resources),
	}
	polls := school.Visible(usr, snap.Polls)
	res.Notifications = school.DeriveNotifications(usr, res.Exams, res.Announcements, polls, now)

	school.SortClassGroups(res.ClassGroups)
	school.SortAnnouncements(res.Announcements)
	school.SortExams(res.Exams)
	school.SortPolls(polls)
	school.SortResources(res.Resources)
	res.Polls = newPollViews(polls, usr, now)

	return ctx.JSON(http.StatusOK, res)
}

func (api schoolApi) notifications(ctx echo.Context) error {
	usr, snap, err := contentApi(api).viewerSnapshot(ctx)
	if err != nil {
		return err
	}
	notifs := school.DeriveNotifications(
		usr,
		school.Visible(usr, snap.Exams),
		school.Visible(usr, snap.Announcements),
		school.Visible(usr, snap.Polls),
		time.Now().UTC(),
	)
	return ctx.JSON(http.StatusOK, notifs)
}

func (api schoolApi) retrieveSettings(ctx echo.Context) error {
	if _, err := api.Portal.Snapshot(); err != nil {
		return errors.Wrap(err, "getting snapshot")
	}
	return ctx.JSON(http.StatusOK, api.Portal.Settings())
}

func (api schoolApi) updateSettings(ctx echo.Context) error {
	var data school.SettingsForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SettingsForm")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	settings, err := api.Portal.UpdateSettings(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, settings)
}

func (api schoolApi) queryClasses(ctx echo.Context) error {
	snap, err := api.Portal.Snapshot()
	if err != nil {
		return errors.Wrap(err, "getting snapshot")
	}
	school.SortClassGroups(snap.ClassGroups)
	return ctx.JSON(http.StatusOK, snap.ClassGroups)
}

func (api schoolApi) createClass(ctx echo.Context) error {
	var data school.ClassGroupForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassGroupForm")
	}
	if err := data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}

	cg, err := api.Portal.CreateClassGroup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class group")
	}
	return ctx.JSON(http.StatusCreated, cg)
}

func (api schoolApi) destroyClass(ctx echo.Context) error {
	if err := api.Portal.DeleteClassGroup(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class group")
	}
	return ctx.NoContent(http.StatusNoContent)
}
