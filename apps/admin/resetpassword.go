package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.svcs.Users.SetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s updated\n", email)
	return nil
}
