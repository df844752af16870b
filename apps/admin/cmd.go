package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/studylab/core/activity"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/project"
	"github.com/trezcool/studylab/core/user"
	"github.com/trezcool/studylab/storage/database"
)

var (
	defaultReadPasswordFunc = term.ReadPassword
	defaultGooseRunFunc     = database.RunMigrations

	readPasswordFunc = defaultReadPasswordFunc // mockable
	gooseRunFunc     = defaultGooseRunFunc     // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	engine   string
	validate *validator.Validate
	out      io.Writer

	usrSvc      *user.Service
	projectSvc  *project.Service
	enrollSvc   *enrollment.Service
	activitySvc *activity.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migrations command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -phone PHONE -name NAME [-email EMAIL] [-admin] - create a user account; the password is prompted")
	fmt.Fprintln(cli.out, "  resetpassword -phone PHONE - reset a user's password; the password is prompted")
	fmt.Fprintln(cli.out, "  importproject -file FILE - create or update a project from a JSON or YAML document")
	fmt.Fprintln(cli.out, "  cleanup [-dry-run] - delete duplicate enrollments, keeping each user's most recent one")
	fmt.Fprintln(cli.out, "  recalctime - recompute the time spent on every enrollment")
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserPhone := addUserCmd.String("phone", "", "The user's phone number, in E.164 format.")
	addUserName := addUserCmd.String("name", "", "The user's name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email (optional).")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant admin rights.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordPhone := resetPasswordCmd.String("phone", "", "The user's phone number. The password will be prompted next.")

	importCmd := flag.NewFlagSet("importproject", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "Path to a .json, .yaml or .yml project document.")

	cleanupCmd := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	cleanupDryRun := cleanupCmd.Bool("dry-run", false, "Only list the users with duplicate enrollments.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, importCmd, cleanupCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			fmt.Fprintln(cli.out, "Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserPhone == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewAccount{
			PhoneNumber:     *addUserPhone,
			Email:           *addUserEmail,
			Name:            *addUserName,
			Password:        pwd,
			PasswordConfirm: pwd,
			IsAdmin:         *addUserAdmin,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordPhone == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordPhone, pwd)

	case "importproject":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importProject(ctx, *importFile)

	case "cleanup":
		if err := cleanupCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.cleanup(ctx, *cleanupDryRun)

	case "recalctime":
		return cli.recalcTime(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}
