package echoapi

import (
	"net/http"
	"net/mail"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/user"
)

var (
	errNoPermsToSetRole = "not enough rights to set this role"
	errInvalidResetText = "invalid or expired password reset link"
	passwordResetText   = "If the email address supplied is associated with an account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
)

type (
	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// UserFilter filters the users listing.
	UserFilter struct {
		Search     string `query:"search"`
		Role       string `query:"role"`
		ClassGroup string `query:"class_group"`
	}
)

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (f *UserFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Role = core.CleanString(f.Role, true /* lower */)
	f.ClassGroup = core.CleanString(f.ClassGroup)
}

func (f UserFilter) match(usr user.User) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(usr.Name), f.Search) && !strings.Contains(usr.Email, f.Search) {
		return false
	}
	if f.Role != "" && usr.Role != f.Role {
		return false
	}
	return f.ClassGroup == "" || usr.InClass(f.ClassGroup)
}

// Auth

type authApi struct {
	ServerDeps
}

func registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{deps}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, authed...)
	ag.POST("/logout", api.logout, authed...)

	g.POST("/sync", api.sync, authedOrLoadingMiddleware(deps.Portal, authed))
}

func (api authApi) login(ctx echo.Context) error {
	var data user.LoginCredentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginCredentials")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	usr, err := api.Portal.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.Conf, GetUserClaims(api.Conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.Conf, api.Sessions)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	usr, _ := getContextUser(ctx)
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api authApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = revoke(ctx, api.Sessions, claims); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	usr, err := api.Portal.UserByEmail(data.Email)
	if err == nil {
		api.MailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Password reset",
			TemplateName: "password_reset",
			TemplateData: map[string]string{
				"Name":  usr.Name,
				"UID":   user.EncodeUID(usr),
				"Token": user.MakeToken(usr),
			},
		})
	} else if errors.Cause(err) != portal.ErrNotFound {
		// do not return errors to attackers
		api.Logger.Error("requesting password reset: "+err.Error(), err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetText})
}

func (api authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	invalidLink := core.NewValidationError(errors.New(errInvalidResetText))
	id, err := user.DecodeUID(data.UID)
	if err != nil {
		return invalidLink
	}
	usr, err := api.Portal.User(id)
	if err != nil {
		if errors.Cause(err) == portal.ErrNotFound {
			return invalidLink
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = user.VerifyToken(usr, data.Token); err != nil {
		return invalidLink
	}

	pwd := user.SetUserPassword{Password: data.Password, PasswordConfirm: data.PasswordConfirm}
	if err = pwd.Validate(api.Validate, usr); err != nil {
		return err
	}
	if _, err = api.Portal.SetPassword(ctx.Request().Context(), usr.ID, pwd.Password); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

// sync reloads everything from the remote store.
func (api authApi) sync(ctx echo.Context) error {
	if err := api.Portal.Load(ctx.Request().Context()); err != nil {
		api.Logger.Error("syncing school data: "+err.Error(), err)
		if core.IsShutdown(err) {
			return err
		}
		return portal.ErrNotReady
	}
	return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", Ready: true})
}

// Users

type userApi struct {
	ServerDeps
}

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{deps}

	mg := g.Group("/me", authed...)
	mg.GET("", api.retrieveMe)
	mg.PUT("", api.updateMe)

	ug := g.Group("/users", withMiddleware(authed, adminMiddleware())...)
	ug.GET("", api.query)
	ug.POST("", api.create)
	ug.GET("/roles", api.queryRoles)

	// detail endpoints
	dg := ug.Group("/:id", userObjectMiddleware(deps.Portal))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/password", api.setPassword)
}

func (api userApi) query(ctx echo.Context) error {
	snap, err := api.Portal.Snapshot()
	if err != nil {
		return errors.Wrap(err, "getting snapshot")
	}

	var filter UserFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users := make([]user.User, 0, len(snap.Users))
	for _, usr := range snap.Users {
		if filter.match(usr) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering.Orderings)
	return ctx.JSON(http.StatusOK, users)
}

// sortUsers orders by name by default. Unknown fields are ignored.
func sortUsers(users []user.User, orderings []core.Ordering) {
	keys := map[string]func(usr user.User) string{
		"name":        func(usr user.User) string { return strings.ToLower(usr.Name) },
		"email":       func(usr user.User) string { return usr.Email },
		"role":        func(usr user.User) string { return usr.Role },
		"class_group": func(usr user.User) string { return core.StringValue(usr.ClassGroup) },
	}
	orderings = append(orderings, core.Ordering{Field: "name", Ascending: true})

	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range orderings {
			key, ok := keys[ord.Field]
			if !ok {
				continue
			}
			ki, kj := key(users[i]), key(users[j])
			if ki == kj {
				continue
			}
			if ord.Ascending {
				return ki < kj
			}
			return ki > kj
		}
		return false
	})
}

func (api userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.Validate, api.Portal); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.RolePriority(data.Role) > user.RolePriority(ctxUsr.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err := api.Portal.CreateUser(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api userApi) retrieve(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api userApi) update(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(api.Validate, usr, api.Portal); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.RolePriority(data.Role) > user.RolePriority(ctxUsr.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err = api.Portal.UpdateUser(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api userApi) destroy(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	// ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err = api.Portal.DeleteUser(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api userApi) setPassword(ctx echo.Context) error {
	usr, err := getContextObject[user.User](ctx)
	if err != nil {
		return err
	}

	var data user.SetUserPassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetUserPassword")
	}
	if err = data.Validate(api.Validate, usr); err != nil {
		return err
	}

	if _, err = api.Portal.SetPassword(ctx.Request().Context(), usr.ID, data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been set."})
}

func (api userApi) retrieveMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.Validate, usr, api.Portal); err != nil {
		return err
	}

	usr, err = api.Portal.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func userObjectMiddleware(p *portal.Controller) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := p.User(ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding user by ID")
			}
			ctx.Set(contextObjectKey, usr)
			return next(ctx)
		}
	}
}
