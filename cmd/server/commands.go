package main

import (
	"errors"
	"fmt"
	"strings"

	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (a *app) openDB() (*gorm.DB, error) {
	db, err := database.Open(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.openDB(); err != nil {
				return err
			}
			a.log.Info("migration complete", zap.String("driver", a.cfg.DatabaseDriver))
			return nil
		},
	}
}

func newCreateUserCmd(a *app) *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			username = strings.TrimSpace(username)
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			r := models.UserRole(role)
			if !r.Valid() {
				return fmt.Errorf("invalid role %q (viewer, user or admin)", role)
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			user, err := database.CreateUser(db, username, password, r)
			if errors.Is(err, database.ErrDuplicate) {
				return fmt.Errorf("username %q already exists", username)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "plain-text password, stored as a bcrypt hash")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "viewer, user or admin")
	return cmd
}

type demoUser struct {
	username, password string
	role               models.UserRole
}

var demoUsers = []demoUser{
	{"user", "user123", models.RoleUser},
	{"viewer", "viewer123", models.RoleViewer},
	{"manager", "manager123", models.RoleAdmin},
}

// seedDemoUsers inserts the demo accounts that are missing and returns
// the usernames it created.
func seedDemoUsers(db *gorm.DB) ([]string, error) {
	var created []string
	for _, u := range demoUsers {
		ok, err := database.EnsureUser(db, u.username, u.password, u.role)
		if err != nil {
			return created, fmt.Errorf("creating %s: %w", u.username, err)
		}
		if ok {
			created = append(created, u.username)
		}
	}
	return created, nil
}

func newSeedDemoUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo-users",
		Short: "Create the user, viewer and manager demo accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			created, err := seedDemoUsers(db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d new users\n", len(created))
			for _, u := range demoUsers {
				fmt.Fprintf(out, "  %-8s %s / %s\n", u.role, u.username, u.password)
			}
			return nil
		},
	}
}
