package portal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

const (
	userInUseMessage = "This user cannot be deleted because some school content still references them. The data was reloaded."
	userInUseHint    = "Delete or reassign the exams, polls and resources they created, or enable cascading deletes on the users foreign keys, then try again."
)

func users(s *State) *[]user.User { return &s.Users }

// CreateUser creates a user from validated input.
func (c *Controller) CreateUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	usr := user.User{
		ID:         c.newID(),
		Name:       nu.Name,
		Email:      nu.Email,
		Role:       nu.Role,
		ClassGroup: nu.ClassGroup,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}

	err := c.run(ctx, mutation{
		entity: core.TableUsers,
		op:     OpCreate,
		apply:  insertLocal(users, usr),
		remote: func(ctx context.Context) error {
			return c.store.Insert(ctx, core.TableUsers, userRow(usr))
		},
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// UpdateUser changes the identity, role and class of a user.
func (c *Controller) UpdateUser(ctx context.Context, id string, uu user.UpdateUser) (user.User, error) {
	var updated user.User
	err := c.run(ctx, mutation{
		entity: core.TableUsers,
		op:     OpUpdate,
		apply: replaceLocal(users, id, func(cur user.User) (user.User, error) {
			cur.Name = uu.Name
			cur.Email = uu.Email
			cur.Role = uu.Role
			cur.ClassGroup = uu.ClassGroup
			updated = cur
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			row := userRow(updated)
			return c.store.Update(ctx, core.TableUsers, id, core.Row{
				"name":        row["name"],
				"email":       row["email"],
				"role":        row["role"],
				"class_group": row["class_group"],
			})
		},
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

// UpdateProfile changes the name, email and optionally the password of a user.
func (c *Controller) UpdateProfile(ctx context.Context, id string, up user.UpdateProfile) (user.User, error) {
	var hash []byte
	if up.Password != "" {
		tmp := user.User{}
		if err := tmp.SetPassword(up.Password); err != nil {
			return user.User{}, errors.Wrap(err, "hashing password")
		}
		hash = tmp.PasswordHash
	}

	var updated user.User
	err := c.run(ctx, mutation{
		entity: core.TableUsers,
		op:     OpUpdate,
		apply: replaceLocal(users, id, func(cur user.User) (user.User, error) {
			cur.Name = up.Name
			cur.Email = up.Email
			if hash != nil {
				cur.PasswordHash = hash
			}
			updated = cur
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			row := core.Row{"name": updated.Name, "email": updated.Email}
			if hash != nil {
				row["password"] = string(hash)
			}
			return c.store.Update(ctx, core.TableUsers, id, row)
		},
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

// SetPassword replaces the password of a user.
func (c *Controller) SetPassword(ctx context.Context, id, pwd string) (user.User, error) {
	tmp := user.User{}
	if err := tmp.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	hash := tmp.PasswordHash

	var updated user.User
	err := c.run(ctx, mutation{
		entity: core.TableUsers,
		op:     OpUpdate,
		apply: replaceLocal(users, id, func(cur user.User) (user.User, error) {
			cur.PasswordHash = hash
			updated = cur
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			return c.store.Update(ctx, core.TableUsers, id, core.Row{"password": string(hash)})
		},
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

// DeleteUser deletes a user with the exams, polls and resources they created, as the remote store
// cascades. Announcements keep their denormalized author.
// When the store refuses because content still references the user, everything is reloaded.
func (c *Controller) DeleteUser(ctx context.Context, id string) error {
	return c.run(ctx, mutation{
		entity: core.TableUsers,
		op:     OpDelete,
		apply: func(s *State) (undoFunc, error) {
			if indexByID(s.Users, id) < 0 {
				return nil, ErrNotFound
			}
			var (
				removedUsers     []removedItem[user.User]
				removedExams     []removedItem[school.Exam]
				removedPolls     []removedItem[school.Poll]
				removedResources []removedItem[school.Resource]
			)
			s.Users, removedUsers = removeWhere(s.Users, func(u user.User) bool { return u.ID == id })
			s.Exams, removedExams = removeWhere(s.Exams, func(e school.Exam) bool { return e.CreatedByID == id })
			s.Polls, removedPolls = removeWhere(s.Polls, func(p school.Poll) bool { return p.CreatedByID == id })
			s.Resources, removedResources = removeWhere(s.Resources, func(r school.Resource) bool { return r.CreatedByID == id })

			return func(s *State) {
				restoreRemoved(&s.Users, removedUsers)
				restoreRemoved(&s.Exams, removedExams)
				restoreRemoved(&s.Polls, removedPolls)
				restoreRemoved(&s.Resources, removedResources)
			}, nil
		},
		remote: ignoreRowNotFound(func(ctx context.Context) error {
			return c.store.Delete(ctx, core.TableUsers, id)
		}),
		onFailure: func(err error) failure {
			if errors.Cause(err) == core.ErrForeignKeyViolation {
				return failure{message: userInUseMessage, hint: userInUseHint, reload: true}
			}
			return defaultFailure(core.TableUsers, OpDelete)
		},
	})
}
