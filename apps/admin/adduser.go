package main

import (
	"fmt"

	"github.com/repoacademico/repositorio/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Create(cli.ctx, nu)
	if err != nil {
		return err
	}
	cli.log.Info("user created", map[string]interface{}{"id": usr.ID, "rol": usr.Rol})
	fmt.Fprintf(cli.out, "User %s <%s> created with role %s (id %d)\n", usr.Nombre, usr.Correo, usr.Rol, usr.ID)
	return nil
}
