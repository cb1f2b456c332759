package main

import (
	"context"
	"fmt"
)

// addUser updates or creates an account, active, with the given role and password.
func (cli *commandLine) addUser(email, role, name, pwd string) error {
	usr, err := cli.svcs.Users.SaveAccount(context.Background(), email, role, name, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s #%d saved: %s\n", usr.Role, usr.ID, usr.Email)
	return nil
}
