package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/studylab/core/project"
	"github.com/trezcool/studylab/core/user"
)

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, cli.engine, args[1:]...)
}

// addUser creates a user.User account; the phone number must not be taken.
func (cli *commandLine) addUser(ctx context.Context, na user.NewAccount) error {
	if err := na.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.CreateAccount(ctx, na)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created user %s (%s)\n", usr.ID, usr.PhoneNumber)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, phone, pwd string) error {
	_, err := cli.usrSvc.SetPassword(ctx, phone, pwd)
	return err
}

func decodeProject(path string, data []byte) (project.ImportProject, error) {
	var ip project.ImportProject
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ip, errors.Wrap(json.Unmarshal(data, &ip), "decoding JSON")
	case ".yaml", ".yml":
		return ip, errors.Wrap(yaml.Unmarshal(data, &ip), "decoding YAML")
	default:
		return ip, errors.Errorf("unsupported project file %q: expected .json, .yaml or .yml", path)
	}
}

func (cli *commandLine) importProject(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ip, err := decodeProject(path, data)
	if err != nil {
		return err
	}
	if err = ip.Validate(cli.validate); err != nil {
		return err
	}
	detail, err := cli.projectSvc.Import(ctx, ip)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported project %q with %d steps\n", detail.Slug, len(detail.Steps))
	return nil
}

func (cli *commandLine) cleanup(ctx context.Context, dryRun bool) error {
	if dryRun {
		dups, err := cli.enrollSvc.FindDuplicates(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d users with duplicate enrollments\n", len(dups))
		for _, d := range dups {
			fmt.Fprintf(cli.out, "  user %s: keep %s, remove %d\n", d.UserID, d.Keep.ID, len(d.Remove))
		}
		return nil
	}

	users, removed, err := cli.enrollSvc.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "removed %d duplicate enrollments of %d users\n", removed, users)
	return nil
}

func (cli *commandLine) recalcTime(ctx context.Context) error {
	n, err := cli.activitySvc.RecalculateAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "recalculated time spent on %d enrollments\n", n)
	return nil
}
