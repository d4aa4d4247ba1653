package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRegisterCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> <password>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.gateway.Register(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if result.ConfirmationRequired {
				fmt.Fprintf(w, "Registered %s. Check your email to confirm the account before logging in.\n", result.Identity.Email)
				return nil
			}
			fmt.Fprintf(w, "Registered %s.\n", result.Identity.Email)
			return nil
		},
	}
}

func newLoginCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Log in with email and password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			identity, err := app.gateway.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "Logged in as %s.\n", identity.Email)
			return nil
		},
	}
}

func newLogoutCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and discard saved credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.gateway.Logout(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(w, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			session := app.store.GetSession()
			if !session.IsValid || session.Identity == nil {
				fmt.Fprintln(w, "Not logged in.")
				return nil
			}

			fmt.Fprintf(w, "%s (%s)\n", session.Identity.Email, session.Identity.ID)
			return nil
		},
	}
}

func newRecoverCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.gateway.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintln(w, "If the account exists, a reset email has been sent.")
			return nil
		},
	}
}

func newResetPasswordCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <token> <new-password>",
		Short: "Reset the password using a reset token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.gateway.ResetPassword(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintln(w, "Password has been reset. Log in with the new password.")
			return nil
		},
	}
}
