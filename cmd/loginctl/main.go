package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"firebaselogin/internal/config"
	"firebaselogin/internal/login"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		envFile string
		a       *app
	)

	root := &cobra.Command{
		Use:           "loginctl",
		Short:         "Sign in to a Firebase project with email/password, Google or Apple",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cfg.FirebaseAPIKey == "" {
				return fmt.Errorf("FIREBASE_API_KEY must not be empty")
			}
			a, err = newApp(cfg, out)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	current := func() *app { return a }
	root.AddCommand(
		newSignInCmd(current),
		newSignUpCmd(current),
		newWhoAmICmd(current),
		newUpdateCmd(current),
		newSignOutCmd(current),
	)
	return root
}

func newSignInCmd(current func() *app) *cobra.Command {
	signin := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print the user profile",
	}

	for _, name := range []login.Provider{login.ProviderApple, login.ProviderGoogle} {
		signin.AddCommand(&cobra.Command{
			Use:   string(name),
			Short: fmt.Sprintf("Sign in with %s in the browser", name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a := current()
				provider, err := a.interactiveProvider(cmd.Context(), string(name))
				if err != nil {
					return err
				}
				profile, err := a.signInInteractive(cmd.Context(), provider)
				if err != nil {
					return err
				}
				return a.printJSON(profile)
			},
		})
	}

	var email, password string
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			profile, err := a.service(nil).SignInWithPassword(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.printJSON(profile)
		},
	}
	passwordCmd.Flags().StringVar(&email, "email", "", "account email")
	passwordCmd.Flags().StringVar(&password, "password", "", "account password")
	_ = passwordCmd.MarkFlagRequired("email")
	signin.AddCommand(passwordCmd)

	return signin
}

func newSignUpCmd(current func() *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an email/password account and send the verification email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			profile, err := a.service(nil).CreateAccount(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.printJSON(profile)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newWhoAmICmd(current func() *app) *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Refresh a session and print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.restore(cmd.Context(), refreshToken); err != nil {
				return err
			}
			profile, err := a.service(nil).GetLoggedInUser(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(profile)
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token printed by signin")
	return cmd
}

func newUpdateCmd(current func() *app) *cobra.Command {
	var (
		uid    string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields (not supported yet)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			details := make(map[string]string, len(fields))
			for _, f := range fields {
				key, value, ok := strings.Cut(f, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid --set %q, want key=value", f)
				}
				details[key] = value
			}
			if !current().service(nil).UpdateUserDetails(cmd.Context(), uid, details) {
				return fmt.Errorf("updating user details is not supported")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "user id")
	cmd.Flags().StringArrayVar(&fields, "set", nil, "field to update as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

func newSignOutCmd(current func() *app) *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Sign the session for a refresh token out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.restore(cmd.Context(), refreshToken); err != nil {
				return err
			}
			if err := a.service(nil).SignOut(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(a.out, "signed out")
			return err
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token printed by signin")
	return cmd
}
