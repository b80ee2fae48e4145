package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var creds api.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long:  "Sign in with email and password. The password is read from stdin when --password is not given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.Password == "" {
				password, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				creds.Password = password
			}
			return withServices(cmd, opts, func(s services) error {
				user, err := s.session.Login(cmd.Context(), creds)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&creds.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password (read from stdin if empty)")
	cmd.Flags().BoolVar(&creds.RememberMe, "remember", false, "ask the server for a long-lived session")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCommand(opts *rootOptions) *cobra.Command {
	var reg api.Registration

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Password == "" {
				password, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				reg.Password = password
			}
			return withServices(cmd, opts, func(s services) error {
				taken, err := s.session.CheckEmail(cmd.Context(), reg.Email)
				if err != nil {
					return err
				}
				if taken {
					return apperr.Rejected(fmt.Sprintf("%s is already registered", reg.Email))
				}
				user, err := s.session.Register(cmd.Context(), reg)
				if err != nil {
					return err
				}
				if user == nil {
					user = &api.User{Name: reg.Name, Email: reg.Email}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account for %s <%s>. Run dropit login to sign in.\n", user.Name, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reg.Name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&reg.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "account password (read from stdin if empty)")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number, 010-XXXX-XXXX")
	cmd.Flags().BoolVar(&reg.AgreeToMarketing, "marketing", false, "agree to marketing messages")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(s services) error {
				if s.session.Token() == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
					return nil
				}
				if err := s.session.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, opts, func(s services) error {
				user, err := s.session.CurrentUser(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s <%s>\n", user.Name, user.Email)
				if user.Phone != "" {
					fmt.Fprintf(out, "phone:   %s\n", user.Phone)
				}
				if exp, ok := s.session.ExpiresAt(); ok {
					fmt.Fprintf(out, "expires: %s (%s)\n", exp.Local().Format(time.DateTime), time.Until(exp).Round(time.Minute))
				}
				return nil
			})
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
