package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intermernet/afterlife/internal/client"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

type loginOutput struct {
	Token  string `json:"token" yaml:"token"`
	UserID string `json:"user_id" yaml:"user_id"`
	Email  string `json:"email" yaml:"email"`
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a session token",
		Long: `Sign in with email and password and print the session token.

Example:
  export AFTERLIFE_TOKEN=$(afterlifectl login --email ada@example.com --password secret)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	c, err := client.New(opts.APIURL, "")
	if err != nil {
		return err
	}

	token, user, err := c.Login(cmd.Context(), opts.Email, opts.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	out := loginOutput{Token: token, UserID: user.ID, Email: user.Email}
	return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) {
		fmt.Fprintln(w, token)
	})
}
