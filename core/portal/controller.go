// Package portal holds the local copy of the school data and applies every change to it optimistically:
// locally first, then on the remote store, undoing the local change when the remote call fails.
package portal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

var (
	ErrNotReady       = errors.New("the school data is not loaded yet")
	ErrNotFound       = errors.New("not found")
	ErrSessionExpired = errors.New("session expired")
)

type Controller struct {
	mutex   sync.RWMutex
	state   State
	ready   bool
	loadErr error

	store   core.RemoteStore
	conf    *core.Config
	logger  core.Logger
	nowFunc func() time.Time // mockable
	newID   func() string    // mockable
}

var (
	_ user.Directory        = (*Controller)(nil)
	_ school.ClassDirectory = (*Controller)(nil)
)

func NewController(store core.RemoteStore, conf *core.Config, logger core.Logger) *Controller {
	return &Controller{
		store:   store,
		conf:    conf,
		logger:  logger,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

func (c *Controller) now() time.Time {
	return c.nowFunc().UTC()
}

// Ready reports whether the data is loaded, and the last load error otherwise.
func (c *Controller) Ready() (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.ready, c.loadErr
}

func (c *Controller) checkReady() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.ready {
		return ErrNotReady
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() (State, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.ready {
		return State{}, ErrNotReady
	}
	return c.state.Clone(), nil
}

func (c *Controller) Settings() school.Settings {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.state.Settings
}

// User returns the user `id`.
func (c *Controller) User(id string) (user.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.ready {
		return user.User{}, ErrNotReady
	}
	if usr, ok := findByID(c.state.Users, id); ok {
		return usr, nil
	}
	return user.User{}, ErrNotFound
}

// UserByEmail looks a user up by email, case-insensitively.
func (c *Controller) UserByEmail(email string) (user.User, error) {
	email = core.CleanString(email, true /* lower */)
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.ready {
		return user.User{}, ErrNotReady
	}
	for _, usr := range c.state.Users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, ErrNotFound
}

// SessionUser validates a stored session against the loaded users: sessions of deleted users expire.
func (c *Controller) SessionUser(id string) (user.User, error) {
	usr, err := c.User(id)
	if errors.Cause(err) == ErrNotFound {
		return user.User{}, ErrSessionExpired
	}
	return usr, err
}

func (c *Controller) CheckEmailUniqueness(email string, excludedIDs ...string) error {
	email = core.CleanString(email, true /* lower */)
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, usr := range c.state.Users {
		if usr.Email != email {
			continue
		}
		excluded := false
		for _, id := range excludedIDs {
			if usr.ID == id {
				excluded = true
				break
			}
		}
		if !excluded {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (c *Controller) ClassGroupExists(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, cg := range c.state.ClassGroups {
		if cg.Name == name {
			return true
		}
	}
	return false
}

// Authenticate checks the credentials of a user. Plain text passwords left by older versions are
// accepted once, then replaced by their hash.
func (c *Controller) Authenticate(ctx context.Context, email, pwd string) (user.User, error) {
	usr, err := c.UserByEmail(email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return user.User{}, user.ErrInvalidCredentials
		}
		return user.User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, user.ErrInvalidCredentials
	}

	if !usr.HasHashedPassword() {
		migrated, err := c.SetPassword(ctx, usr.ID, pwd)
		if err != nil {
			c.logger.Warn("portal.Authenticate: could not hash legacy password", err, usr)
			return usr, nil
		}
		c.logger.Info("portal.Authenticate: legacy password hashed", usr)
		return migrated, nil
	}
	return usr, nil
}
