package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intermernet/afterlife/internal/invitations"
)

// InviteOptions holds flags for the invite command.
type InviteOptions struct {
	*RootOptions
	Send bool
}

type inviteOutput struct {
	Message    string                 `json:"message" yaml:"message"`
	Deliveries []invitations.Delivery `json:"deliveries,omitempty" yaml:"deliveries,omitempty"`
}

// NewInviteCommand creates the invite command.
func NewInviteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InviteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invite <event-id> <email>...",
		Short: "Invite people to an event by email",
		Long: `Record invitations for each address. Addresses that were already
invited are reported and left alone. With --send, the invitation mail is
sent to every address that has not received it yet.

Example:
  afterlifectl invite 6f1c... ada@example.com bob@example.com --send`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invite(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Send, "send", false, "also mail the invitations")

	return cmd
}

func invite(opts *InviteOptions, eventID string, emails []string, cmd *cobra.Command) error {
	c, err := opts.sessionClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	msg, err := c.InviteToEvent(ctx, eventID, emails)
	if err != nil {
		return fmt.Errorf("invite failed: %w", err)
	}

	out := inviteOutput{Message: msg}
	if opts.Send {
		out.Deliveries, err = c.SendInvitations(ctx, eventID, emails)
		if err != nil {
			return fmt.Errorf("sending invitations failed: %w", err)
		}
	}

	return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) {
		fmt.Fprintln(w, out.Message)
		for _, d := range out.Deliveries {
			if d.Message != "" {
				fmt.Fprintf(w, "  %-32s %s (%s)\n", d.Email, d.Status, d.Message)
				continue
			}
			fmt.Fprintf(w, "  %-32s %s\n", d.Email, d.Status)
		}
	})
}
