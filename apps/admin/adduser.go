package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, role, class, pwd string) error {
	var classGroup *string
	if class != "" {
		classGroup = &class
	}

	usr, err := cli.portal.UserByEmail(email)
	if err != nil {
		if errors.Cause(err) != portal.ErrNotFound {
			return err
		}
		nu := user.NewUser{
			Name:            name,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Role:            role,
			ClassGroup:      classGroup,
		}
		if err = nu.Validate(cli.validate, cli.portal); err != nil {
			return err
		}
		_, err = cli.portal.CreateUser(ctx, nu)
		return err
	}

	uu := user.UpdateUser{Name: name, Email: email, Role: role, ClassGroup: &class}
	if err = uu.Validate(cli.validate, usr, cli.portal); err != nil {
		return err
	}
	if usr, err = cli.portal.UpdateUser(ctx, usr.ID, uu); err != nil {
		return err
	}
	return cli.setPassword(ctx, usr, pwd)
}

func (cli *commandLine) setPassword(ctx context.Context, usr user.User, pwd string) error {
	if err := user.ValidatePassword(pwd, usr); err != nil {
		return err
	}
	_, err := cli.portal.SetPassword(ctx, usr.ID, pwd)
	return err
}
