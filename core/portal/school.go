package portal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
)

var errClassInUse = errors.New("this class still has members")

func classGroups(s *State) *[]school.ClassGroup { return &s.ClassGroups }

func (c *Controller) CreateClassGroup(ctx context.Context, f school.ClassGroupForm) (school.ClassGroup, error) {
	cg := school.ClassGroup{ID: c.newID(), Name: f.Name}
	err := c.run(ctx, mutation{
		entity: core.TableClassGroups,
		op:     OpCreate,
		apply:  insertLocal(classGroups, cg),
		remote: func(ctx context.Context) error {
			return c.store.Insert(ctx, core.TableClassGroups, classGroupRow(cg))
		},
	})
	if err != nil {
		return school.ClassGroup{}, err
	}
	return cg, nil
}

// DeleteClassGroup deletes an empty class group. Content targeting it stays visible to unrestricted roles only.
func (c *Controller) DeleteClassGroup(ctx context.Context, id string) error {
	remove := deleteLocal(classGroups, id)
	return c.run(ctx, mutation{
		entity: core.TableClassGroups,
		op:     OpDelete,
		apply: func(s *State) (undoFunc, error) {
			if cg, ok := findByID(s.ClassGroups, id); ok {
				for _, usr := range s.Users {
					if usr.InClass(cg.Name) {
						return nil, core.NewValidationError(
							errClassInUse,
							core.FieldError{Field: "class_group", Error: errClassInUse.Error()},
						)
					}
				}
			}
			return remove(s)
		},
		remote: ignoreRowNotFound(func(ctx context.Context) error {
			return c.store.Delete(ctx, core.TableClassGroups, id)
		}),
	})
}

func (c *Controller) UpdateSettings(ctx context.Context, f school.SettingsForm) (school.Settings, error) {
	settings := school.Settings{Name: f.Name, ThemeColor: f.ThemeColor, LogoURL: f.LogoURL}
	err := c.run(ctx, mutation{
		entity: core.TableSettings,
		op:     OpUpdate,
		apply: func(s *State) (undoFunc, error) {
			prev := s.Settings
			s.Settings = settings
			return func(s *State) { s.Settings = prev }, nil
		},
		remote: func(ctx context.Context) error {
			return c.store.Upsert(ctx, core.TableSettings, settingsRow(settings))
		},
	})
	if err != nil {
		return school.Settings{}, err
	}
	return settings, nil
}
