package main

import (
	"context"

	"github.com/credikids/credikids/core/user"
)

func (cli *commandLine) createAdmin(nick string, iconCodes []int) error {
	usr, err := cli.usrSvc.Create(context.Background(), user.NewUser{
		Nick:      nick,
		Figure:    "crown",
		IconCodes: iconCodes,
		Role:      user.RoleAdmin,
	})
	if err != nil {
		return err
	}
	logger.Printf("admin %q created (id=%d)\n", usr.Nick, usr.ID)
	return nil
}
