package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/quizhub/apps/di"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db   *sql.DB
	svcs *di.Services
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, redo, version...)")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -role ROLE [-name NAME] - create or update an account")
	fmt.Fprintln(cli.out, "  auditanswers - list the questions whose correct option matches no option")
	fmt.Fprintln(cli.out, "  runjob -kind KIND [-user ID] [-format csv|xlsx] - enqueue a background job")
}

// promptPassword reads a password without echoing it. An empty password prints usage.
func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The account's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", "", "admin, teacher or student")
	addUserName := addUserCmd.String("name", "", "The account's full name")

	runJobCmd := flag.NewFlagSet("runjob", flag.ContinueOnError)
	runJobKind := runJobCmd.String("kind", "", "daily_reminder, monthly_report or export_scores")
	runJobUser := runJobCmd.Int("user", 0, "The user whose scores are exported (export_scores)")
	runJobFormat := runJobCmd.String("format", "csv", "csv or xlsx (export_scores)")

	for _, fs := range []*flag.FlagSet{resetPasswordCmd, addUserCmd, runJobCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserEmail, *addUserRole, *addUserName, pwd)

	case "auditanswers":
		return cli.auditAnswers()

	case "runjob":
		if err := runJobCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *runJobKind == "" {
			runJobCmd.Usage()
			return errHelp
		}
		return cli.runJob(*runJobKind, *runJobUser, *runJobFormat)

	default:
		cli.printUsage()
		return errHelp
	}
}
