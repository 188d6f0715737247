package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// withMiddleware returns a copy of `chain` followed by `m`.
func withMiddleware(chain []echo.MiddlewareFunc, m ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return append(append(make([]echo.MiddlewareFunc, 0, len(chain)+len(m)), chain...), m...)
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

func contentManagerMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin, user.RoleResponsable)
}

// authedOrLoadingMiddleware lets unauthenticated requests through while the school data is not loaded,
// since nobody can log in until it is.
func authedOrLoadingMiddleware(p *portal.Controller, authed []echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := next
		for i := len(authed) - 1; i >= 0; i-- {
			withAuth = authed[i](withAuth)
		}
		return func(ctx echo.Context) error {
			if ready, _ := p.Ready(); !ready {
				return next(ctx)
			}
			return withAuth(ctx)
		}
	}
}

const contextObjectKey = "object"

type targetedItem interface {
	school.Targeted
	ItemID() string
}

func getContextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjectKey).(T)
	if !ok {
		return obj, errors.New("object not found in echo.Context")
	}
	return obj, nil
}

// visibleObjectMiddleware sets the `:id` item of a collection as context object. Items the context
// user cannot see are not found.
func visibleObjectMiddleware[T targetedItem](p *portal.Controller, collection func(s portal.State) []T) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			snap, err := p.Snapshot()
			if err != nil {
				return errors.Wrap(err, "getting snapshot")
			}
			for _, item := range collection(snap) {
				if item.ItemID() == ctx.Param("id") {
					if !school.CanSee(usr, item) {
						break
					}
					ctx.Set(contextObjectKey, item)
					return next(ctx)
				}
			}
			return errHttpNotFound
		}
	}
}
