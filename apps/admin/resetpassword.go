package main

import (
	"context"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.portal.UserByEmail(email)
	if err != nil {
		return err
	}
	return cli.setPassword(ctx, usr, pwd)
}
