package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				v, err := app.readLine("Email: ")
				if err != nil {
					return err
				}
				email = v
			}
			password, err := app.promptPassword()
			if err != nil {
				return err
			}
			s, err := app.gate.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Signed in as %s\n", s.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email (prompted when empty)")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// A revoked admin is cleared by Restore itself.
			if _, err := app.gate.Restore(ctx); err != nil {
				app.log.Info("restore before sign out failed", "err", err)
			}
			if app.gate.Session() == nil {
				fmt.Fprintln(app.out, "Not signed in.")
				return nil
			}
			if err := app.gate.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(app.out, "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Email:   %s\n", s.Email)
			if s.UserID != "" {
				fmt.Fprintf(app.out, "User ID: %s\n", s.UserID)
			}
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintf(app.out, "Expires: %s\n", s.ExpiresAt.Local().Format(time.RFC3339))
			}
			if app.demo {
				fmt.Fprintln(app.out, "Backend: demo")
			} else {
				fmt.Fprintf(app.out, "Backend: %s\n", app.cfg.URL)
			}
			return nil
		},
	}
}
