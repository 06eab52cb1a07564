package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/migration"
	"github.com/repoacademico/repositorio/core/report"
	"github.com/repoacademico/repositorio/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// sessionOpener runs fn on a dedicated connection and releases it afterwards.
type sessionOpener func(ctx context.Context, fn func(sess migration.Session) error) error

type commandLine struct {
	ctx      context.Context
	out      io.Writer
	log      core.Logger
	runID    string
	target   string // database, without credentials
	sessions sessionOpener
	usrSvc   *user.Service
	reports  report.Repository
}

func planChoices(sep string) string {
	return strings.Join(migration.PlanNames(), sep)
}

func (cli *commandLine) printUsage() {
	plans := planChoices("|")
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintf(cli.out, "  migrate [-plan %s] [-dry-run] [-yes] - reconcile the database schema\n", plans)
	fmt.Fprintf(cli.out, "  status [-plan %s] - show the migration state without changing anything\n", plans)
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL -role admin|tutor [-especialidad NAME] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset a user's password")
	fmt.Fprintln(cli.out, "  report [-out DIR] - export the projects workbook")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		cmd := cli.newFlagSet("migrate")
		plan := cmd.String("plan", migration.Tutores.Name, "The migration plan to run: "+planChoices(", ")+".")
		dryRun := cmd.Bool("dry-run", false, "Print the statements without executing them.")
		yes := cmd.Bool("yes", false, "Skip the countdown before changing the database.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		return cli.migrate(*plan, *dryRun, *yes)

	case "status":
		cmd := cli.newFlagSet("status")
		plan := cmd.String("plan", migration.Tutores.Name, "The migration plan to inspect: "+planChoices(", ")+".")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		return cli.status(*plan)

	case "adduser":
		cmd := cli.newFlagSet("adduser")
		name := cmd.String("name", "", "The user's full name.")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		role := cmd.String("role", user.RoleTutor, "The user's role: admin or tutor.")
		especialidad := cmd.String("especialidad", "", "The tutor's specialty.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		if *name == "" || *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.addUser(user.NewUser{
			Nombre:          *name,
			Correo:          *email,
			Rol:             *role,
			Especialidad:    *especialidad,
			Password:        pwd,
			PasswordConfirm: confirm,
		})

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		email := cmd.String("email", "", "The user's email. The password will be prompted next.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.resetPassword(*email, pwd, confirm)

	case "report":
		cmd := cli.newFlagSet("report")
		dir := cmd.String("out", ".", "The directory the workbook is written to.")
		if err := cli.parse(cmd, args[2:]); err != nil {
			return err
		}
		return cli.exportReport(*dir)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
