package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/user"
)

type newUserArgs struct {
	name, username, email string
	roles                 []string
	orgID                 string
	password              string
}

func validRoles(roles []string) error {
	if len(roles) == 0 {
		return errors.New("at least one role is required")
	}
	for _, r := range roles {
		if user.RolePriority(r) == 0 {
			return fmt.Errorf("%q: unknown role", r)
		}
	}
	return nil
}

// addUser updates or creates an active user.User. The password policy does not apply.
func (cli *commandLine) addUser(args newUserArgs) error {
	if err := validRoles(args.roles); err != nil {
		return err
	}
	ctx := context.Background()
	uname := core.CleanString(args.username, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	name := core.CleanString(args.name)
	if name == "" {
		name = uname
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrSvc.GetByUsernameOrEmail(ctx, email)
	}
	switch {
	case err == nil:
		usr.Name = name
		usr.Roles = args.roles
		usr.IsActive = true
		if args.orgID != "" {
			usr.OrganizationID = args.orgID
		}
		if _, err = cli.usrSvc.SetPassword(ctx, usr, args.password); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "user %q updated\n", usr.Username)
		return nil

	case errors.Cause(err) == user.ErrNotFound:
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			OrganizationID: args.orgID,
			Name:           name,
			Username:       uname,
			Email:          email,
			Password:       args.password,
			Roles:          args.roles,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "user %q created\n", usr.Username)
		return nil

	default:
		return err
	}
}
