package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	syncsvc "github.com/RidhwanAhamed/aqademiq-sync/core/sync"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	usrRepo  user.Repository
	syncRepo syncsvc.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [ARGS] - apply database migrations (goose arguments)")
	fmt.Println("  adduser -email EMAIL [-name NAME] [-timezone TZ] - create or update a user")
	fmt.Println("  resetgoogle -email EMAIL - wipe a user's Google credential so they reconnect")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserTz := addUserCmd.String("timezone", "UTC", "The user's IANA timezone name.")

	resetGoogleCmd := flag.NewFlagSet("resetgoogle", flag.ExitOnError)
	resetGoogleEmail := resetGoogleCmd.String("email", "", "The user's email.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName, *addUserTz, string(pwd))
	case "resetgoogle":
		if err := resetGoogleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetGoogleEmail == "" {
			resetGoogleCmd.Usage()
			return errHelp
		}
		return cli.resetGoogle(*resetGoogleEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
