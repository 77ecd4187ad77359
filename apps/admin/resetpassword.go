package main

import (
	"context"
	"fmt"

	"github.com/slotwise/slotwise/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsername(ctx, uname)
	if err != nil {
		return err
	}

	nu := user.NewUser{Username: usr.Username, Password: pwd, IsAdmin: usr.IsAdmin}
	if err := nu.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}
	if _, _, err := cli.usrSvc.AddOrUpdate(ctx, nu); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("password of %q reset", usr.Username))
	return nil
}
