package main

import (
	"context"
	"fmt"

	"github.com/slotwise/slotwise/core/user"
)

// addUser creates a user or, when the username is taken, resets its password.
func (cli *commandLine) addUser(uname, pwd string, isAdmin bool) error {
	nu := user.NewUser{Username: uname, Password: pwd, IsAdmin: isAdmin}
	if err := nu.Validate(cli.validate); err != nil {
		return cli.validationError(err)
	}

	usr, created, err := cli.usrSvc.AddOrUpdate(context.Background(), nu)
	if err != nil {
		return err
	}
	if created {
		cli.logger.Info(fmt.Sprintf("user %q created", usr.Username))
	} else {
		cli.logger.Info(fmt.Sprintf("user %q updated", usr.Username))
	}
	return nil
}
