package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/user"
)

// Load replaces the local state with the content of the remote store.
// On failure the current state is kept, and the controller stays not ready if it never loaded.
func (c *Controller) Load(ctx context.Context) error {
	state, err := c.fetch(ctx)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err != nil {
		c.loadErr = err
		return err
	}
	c.state = state
	c.ready = true
	c.loadErr = nil
	return nil
}

func (c *Controller) fetch(ctx context.Context) (State, error) {
	var state State

	rows, err := c.store.Select(ctx, core.TableSettings)
	if err != nil {
		return state, errors.Wrap(err, "loading settings")
	}
	if state.Settings, err = decodeSettings(rows); err != nil {
		return state, err
	}

	if rows, err = c.store.Select(ctx, core.TableClassGroups); err != nil {
		return state, errors.Wrap(err, "loading class groups")
	}
	if state.ClassGroups, err = decodeAll(rows, decodeClassGroup); err != nil {
		return state, err
	}

	if rows, err = c.store.Select(ctx, core.TableUsers); err != nil {
		return state, errors.Wrap(err, "loading users")
	}
	if state.Users, err = decodeAll(rows, decodeUser); err != nil {
		return state, err
	}
	if len(state.Users) == 0 {
		admin, err := c.bootstrapAdmin(ctx)
		if err != nil {
			return state, errors.Wrap(err, "bootstrapping administrator")
		}
		state.Users = append(state.Users, admin)
	}

	if rows, err = c.store.Select(ctx, core.TableAnnouncements); err != nil {
		return state, errors.Wrap(err, "loading announcements")
	}
	if state.Announcements, err = decodeAll(rows, decodeAnnouncement); err != nil {
		return state, err
	}

	if rows, err = c.store.Select(ctx, core.TableExams); err != nil {
		return state, errors.Wrap(err, "loading exams")
	}
	if state.Exams, err = decodeAll(rows, decodeExam); err != nil {
		return state, err
	}

	if rows, err = c.store.Select(ctx, core.TablePolls); err != nil {
		return state, errors.Wrap(err, "loading polls")
	}
	if state.Polls, err = decodeAll(rows, decodePoll); err != nil {
		return state, err
	}

	// the resources table came later: older databases may not have it
	rows, err = c.store.Select(ctx, core.TableResources)
	switch {
	case errors.Cause(err) == core.ErrTableNotFound:
		c.logger.Warn("portal.Load: resources table not found, no resources loaded", err)
		rows = nil
	case err != nil:
		return state, errors.Wrap(err, "loading resources")
	}
	if state.Resources, err = decodeAll(rows, decodeResource); err != nil {
		return state, err
	}

	return state, nil
}

func decodeAll[T any](rows []core.Row, decode func(core.Row) (T, error)) ([]T, error) {
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := decode(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// bootstrapAdmin creates the first administrator of an empty school.
func (c *Controller) bootstrapAdmin(ctx context.Context) (user.User, error) {
	admin := user.User{
		ID:    c.newID(),
		Name:  c.conf.Bootstrap.AdminName,
		Email: c.conf.Bootstrap.AdminEmail,
		Role:  user.RoleAdmin,
	}
	pwd := c.conf.Bootstrap.AdminPassword
	if pwd == "" {
		pwd = generatePassword()
		c.logger.Warn(fmt.Sprintf(
			"portal.Load: no users found, created administrator %s with password %q: change it after logging in",
			admin.Email, pwd,
		))
	} else {
		c.logger.Info("portal.Load: no users found, created administrator " + admin.Email)
	}
	if err := admin.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	if err := c.store.Insert(ctx, core.TableUsers, userRow(admin)); err != nil {
		return user.User{}, err
	}
	return admin, nil
}

func generatePassword() string {
	return "Tf!" + strings.ReplaceAll(uuid.NewString(), "-", "")[:13] + "9"
}
