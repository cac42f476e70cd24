package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type sessionState struct {
	Authenticated bool `json:"authenticated"`
	User          *struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
	} `json:"user"`
}

func (c *client) printSession(s sessionState) {
	if !s.Authenticated || s.User == nil {
		fmt.Fprintf(c.out, "%sSigned out%s (guest cart)\n", colorGray, colorReset)
		return
	}
	fmt.Fprintf(c.out, "Signed in as %s%s%s\n", colorBold, s.User.Email, colorReset)
}

func sessionCommand(opts *RootOptions, cmd *cobra.Command, method, path string, body any) error {
	c := newClient(opts, cmd)
	var s sessionState
	if err := c.do(cmd, method, path, body, &s); err != nil {
		return err
	}
	if c.text() {
		c.printSession(s)
	}
	return nil
}

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in; the guest cart is merged into a new account's cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionCommand(opts, cmd, "POST", "/session/login",
				map[string]string{"email": email, "password": password})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	var first, last, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionCommand(opts, cmd, "POST", "/session/register", map[string]string{
				"first_name": first,
				"last_name":  last,
				"email":      email,
				"password":   password,
			})
		},
	}
	cmd.Flags().StringVar(&first, "first-name", "", "first name")
	cmd.Flags().StringVar(&last, "last-name", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and return to the guest cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionCommand(opts, cmd, "POST", "/session/logout", nil)
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the sign-in state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionCommand(opts, cmd, "GET", "/session", nil)
		},
	}
}
