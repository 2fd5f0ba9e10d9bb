package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	usrSvc    *user.Service
	aspectSvc *aspect.Service
	rppSvc    *rpp.Service
	evalSvc   *evaluation.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, redo, reset...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-roles ROLES] [-org ID] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  generate-rpp -period ID - create the RPP submissions of every active teacher")
	fmt.Fprintln(cli.out, "  assign-evaluations -period ID - create the evaluations of every active teacher")
	fmt.Fprintln(cli.out, "  validate-weights - check that the active aspect weights add up to 100")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name (defaults to the username).")
	addUserRoles := addUserCmd.String("roles", user.RoleAdmin, "Comma-separated roles: "+strings.Join(user.AllRoles, ", "))
	addUserOrg := addUserCmd.String("org", "", "The ID of the user's organization.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	generateRPPCmd := flag.NewFlagSet("generate-rpp", flag.ExitOnError)
	generateRPPPeriod := generateRPPCmd.String("period", "", "The ID of the academic period.")

	assignEvalsCmd := flag.NewFlagSet("assign-evaluations", flag.ExitOnError)
	assignEvalsPeriod := assignEvalsCmd.String("period", "", "The ID of the academic period.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(newUserArgs{
			name:     *addUserName,
			username: *addUserUname,
			email:    *addUserEmail,
			roles:    splitRoles(*addUserRoles),
			orgID:    *addUserOrg,
			password: pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "generate-rpp":
		if err := generateRPPCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generateRPPPeriod == "" {
			generateRPPCmd.Usage()
			return errHelp
		}
		return cli.generateRPP(*generateRPPPeriod)

	case "assign-evaluations":
		if err := assignEvalsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignEvalsPeriod == "" {
			assignEvalsCmd.Usage()
			return errHelp
		}
		return cli.assignEvaluations(*assignEvalsPeriod)

	case "validate-weights":
		return cli.validateWeights()

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(s string) []string {
	roles := make([]string, 0)
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
