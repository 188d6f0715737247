package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
	exportsvc "github.com/trezcool/taarifa/services/export"
)

type (
	// PollView is a poll as seen by a user. Votes is only filled for non-anonymous polls seen by
	// unrestricted users.
	PollView struct {
		school.Poll
		TotalVotes int               `json:"total_votes"`
		IsExpired  bool              `json:"is_expired"`
		MyVote     *string           `json:"my_vote"`
		Votes      map[string]string `json:"votes,omitempty"`
	}

	VoteRequest struct {
		OptionID string `json:"option_id" validate:"required"`
	}
)

func newPollView(poll school.Poll, viewer user.User, now time.Time) PollView {
	view := PollView{
		Poll:       poll,
		TotalVotes: poll.TotalVotes(),
		IsExpired:  poll.IsExpired(now),
	}
	if optID, ok := poll.VoteOf(viewer.ID); ok {
		view.MyVote = &optID
	}
	if !poll.IsAnonymous && viewer.IsUnrestricted() {
		view.Votes = poll.Ledger
	}
	return view
}

func newPollViews(polls []school.Poll, viewer user.User, now time.Time) []PollView {
	views := make([]PollView, 0, len(polls))
	for _, poll := range polls {
		views = append(views, newPollView(poll, viewer, now))
	}
	return views
}

type contentApi struct {
	ServerDeps
}

func registerContentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := contentApi{deps}
	manager := contentManagerMiddleware()

	ag := g.Group("/announcements", authed...)
	ag.GET("", api.queryAnnouncements)
	ag.POST("", api.createAnnouncement, manager)
	adg := ag.Group("/:id", visibleObjectMiddleware(deps.Portal, func(s portal.State) []school.Announcement { return s.Announcements }))
	adg.GET("", api.retrieve)
	adg.PUT("", api.updateAnnouncement, manager)
	adg.DELETE("", api.destroyAnnouncement, manager)

	eg := g.Group("/exams", authed...)
	eg.GET("", api.queryExams)
	eg.GET("/export", api.exportExams)
	eg.POST("", api.createExam, manager)
	edg := eg.Group("/:id", visibleObjectMiddleware(deps.Portal, func(s portal.State) []school.Exam { return s.Exams }))
	edg.GET("", api.retrieve)
	edg.PUT("", api.updateExam, manager)
	edg.DELETE("", api.destroyExam, manager)

	pg := g.Group("/polls", authed...)
	pg.GET("", api.queryPolls)
	pg.POST("", api.createPoll, manager)
	pdg := pg.Group("/:id", visibleObjectMiddleware(deps.Portal, func(s portal.State) []school.Poll { return s.Polls }))
	pdg.GET("", api.retrievePoll)
	pdg.PUT("", api.updatePoll, manager)
	pdg.DELETE("", api.destroyPoll, manager)
	pdg.POST("/vote", api.vote)

	rg := g.Group("/resources", authed...)
	rg.GET("", api.queryResources)
	rg.POST("", api.createResource, manager)
	rdg := rg.Group("/:id", visibleObjectMiddleware(deps.Portal, func(s portal.State) []school.Resource { return s.Resources }))
	rdg.GET("", api.retrieve)
	rdg.PUT("", api.updateResource, manager)
	rdg.DELETE("", api.destroyResource, manager)
}

func (api contentApi) now() time.Time {
	return time.Now().UTC()
}

// viewerSnapshot returns the context user and a copy of the school data.
func (api contentApi) viewerSnapshot(ctx echo.Context) (user.User, portal.State, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return usr, portal.State{}, errors.Wrap(err, "getting context user")
	}
	snap, err := api.Portal.Snapshot()
	if err != nil {
		return usr, snap, errors.Wrap(err, "getting snapshot")
	}
	return usr, snap, nil
}

func (api contentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextObjectKey))
}

// Announcements

func (api contentApi) queryAnnouncements(ctx echo.Context) error {
	usr, snap, err := api.viewerSnapshot(ctx)
	if err != nil {
		return err
	}
	items := school.Visible(usr, snap.Announcements)
	school.SortAnnouncements(items)
	return ctx.JSON(http.StatusOK, items)
}

func (api contentApi) createAnnouncement(ctx echo.Context) error {
	var data school.AnnouncementForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnnouncementForm")
	}
	if err := data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ann, err := api.Portal.CreateAnnouncement(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, ann)
}

func (api contentApi) updateAnnouncement(ctx echo.Context) error {
	ann, err := getContextObject[school.Announcement](ctx)
	if err != nil {
		return err
	}
	var data school.AnnouncementForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnnouncementForm")
	}
	if err = data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}

	ann, err = api.Portal.UpdateAnnouncement(ctx.Request().Context(), ann.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, ann)
}

func (api contentApi) destroyAnnouncement(ctx echo.Context) error {
	ann, err := getContextObject[school.Announcement](ctx)
	if err != nil {
		return err
	}
	if err = api.Portal.DeleteAnnouncement(ctx.Request().Context(), ann.ID); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Exams

func (api contentApi) visibleExams(ctx echo.Context) ([]school.Exam, portal.State, error) {
	usr, snap, err := api.viewerSnapshot(ctx)
	if err != nil {
		return nil, snap, err
	}
	items := school.Visible(usr, snap.Exams)
	school.SortExams(items)
	return items, snap, nil
}

func (api contentApi) queryExams(ctx echo.Context) error {
	items, _, err := api.visibleExams(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api contentApi) exportExams(ctx echo.Context) error {
	items, snap, err := api.visibleExams(ctx)
	if err != nil {
		return err
	}
	buf, err := exportsvc.ExamSchedule(snap.Settings.Name, items)
	if err != nil {
		return errors.Wrap(err, "exporting exams")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="exams.xlsx"`)
	return ctx.Blob(http.StatusOK, exportsvc.XLSXContentType, buf.Bytes())
}

func (api contentApi) createExam(ctx echo.Context) error {
	var data school.ExamForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExamForm")
	}
	if err := data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	exam, err := api.Portal.CreateExam(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, exam)
}

func (api contentApi) updateExam(ctx echo.Context) error {
	exam, err := getContextObject[school.Exam](ctx)
	if err != nil {
		return err
	}
	var data school.ExamForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExamForm")
	}
	if err = data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}

	exam, err = api.Portal.UpdateExam(ctx.Request().Context(), exam.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, exam)
}

func (api contentApi) destroyExam(ctx echo.Context) error {
	exam, err := getContextObject[school.Exam](ctx)
	if err != nil {
		return err
	}
	if err = api.Portal.DeleteExam(ctx.Request().Context(), exam.ID); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Polls

func (api contentApi) queryPolls(ctx echo.Context) error {
	usr, snap, err := api.viewerSnapshot(ctx)
	if err != nil {
		return err
	}
	items := school.Visible(usr, snap.Polls)
	school.SortPolls(items)
	return ctx.JSON(http.StatusOK, newPollViews(items, usr, api.now()))
}

func (api contentApi) retrievePoll(ctx echo.Context) error {
	poll, err := getContextObject[school.Poll](ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, newPollView(poll, usr, api.now()))
}

func (api contentApi) createPoll(ctx echo.Context) error {
	var data school.PollForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PollForm")
	}
	if err := data.Validate(api.Validate, api.Portal, api.now(), true /* isNew */); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	poll, err := api.Portal.CreatePoll(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating poll")
	}
	return ctx.JSON(http.StatusCreated, newPollView(poll, usr, api.now()))
}

func (api contentApi) updatePoll(ctx echo.Context) error {
	poll, err := getContextObject[school.Poll](ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data school.PollForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PollForm")
	}
	if err = data.Validate(api.Validate, api.Portal, api.now(), false /* isNew */); err != nil {
		return err
	}

	poll, err = api.Portal.UpdatePoll(ctx.Request().Context(), poll.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating poll")
	}
	return ctx.JSON(http.StatusOK, newPollView(poll, usr, api.now()))
}

func (api contentApi) destroyPoll(ctx echo.Context) error {
	poll, err := getContextObject[school.Poll](ctx)
	if err != nil {
		return err
	}
	if err = api.Portal.DeletePoll(ctx.Request().Context(), poll.ID); err != nil {
		return errors.Wrap(err, "deleting poll")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api contentApi) vote(ctx echo.Context) error {
	poll, err := getContextObject[school.Poll](ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data VoteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VoteRequest")
	}
	if err = api.Validate.Struct(data); err != nil {
		return err
	}

	poll, err = api.Portal.Vote(ctx.Request().Context(), poll.ID, usr, data.OptionID)
	if err != nil {
		return errors.Wrap(err, "voting")
	}
	return ctx.JSON(http.StatusOK, newPollView(poll, usr, api.now()))
}

// Resources

func (api contentApi) queryResources(ctx echo.Context) error {
	usr, snap, err := api.viewerSnapshot(ctx)
	if err != nil {
		return err
	}
	items := school.Visible(usr, snap.Resources)
	school.SortResources(items)
	return ctx.JSON(http.StatusOK, items)
}

func (api contentApi) createResource(ctx echo.Context) error {
	var data school.ResourceForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResourceForm")
	}
	if err := data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.Portal.CreateResource(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api contentApi) updateResource(ctx echo.Context) error {
	res, err := getContextObject[school.Resource](ctx)
	if err != nil {
		return err
	}
	var data school.ResourceForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResourceForm")
	}
	if err = data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}

	res, err = api.Portal.UpdateResource(ctx.Request().Context(), res.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating resource")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api contentApi) destroyResource(ctx echo.Context) error {
	res, err := getContextObject[school.Resource](ctx)
	if err != nil {
		return err
	}
	if err = api.Portal.DeleteResource(ctx.Request().Context(), res.ID); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
