package main

import (
	"fmt"

	"github.com/repoacademico/repositorio/core/user"
)

func (cli *commandLine) resetPassword(email, pwd, confirm string) error {
	err := cli.usrSvc.ResetPassword(cli.ctx, user.ResetUserPassword{
		Correo:          email,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Password of %s updated\n", email)
	return nil
}
