package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/surveylens/internal/clients/backend"
	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
)

// readSecret takes the first line of r when the flag was not given.
func readSecret(r io.Reader, w io.Writer, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), password, "Password: ")
			if err != nil {
				return err
			}
			user, err := c.app.Client.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(user))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), req.Password, "Password: ")
			if err != nil {
				return err
			}
			req.Password = pw
			user, err := c.app.Client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `surveylens login --email %s` to start a session.\n", displayName(user), user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (read from stdin when omitted)")
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := c.app.Credentials.Tokens()
			if tokens.Access == "" {
				return errors.New("not logged in")
			}

			user := c.app.Credentials.User()
			if remote || user == nil {
				u, err := c.app.Client.Me(cmd.Context())
				if err != nil {
					return err
				}
				user = u
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:     %s\n", displayName(user))
			fmt.Fprintf(out, "Backend:  %s\n", c.app.Client.BaseURL())
			if exp, err := backend.TokenExpiry(tokens.Access); err == nil {
				state := "valid"
				if !time.Now().Before(exp) {
					state = "expired, refreshed on next request"
				}
				fmt.Fprintf(out, "Session:  %s until %s\n", state, exp.Local().Format(time.RFC1123))
			}
			if !user.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Member since %s\n", common.FormatDate(user.CreatedAt.Time))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the profile from the backend")
	return cmd
}

func displayName(u *models.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.FullName != "" {
		return fmt.Sprintf("%s <%s>", u.FullName, u.Email)
	}
	return u.Email
}
