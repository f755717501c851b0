package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intermernet/afterlife/internal/attendees"
	"github.com/intermernet/afterlife/internal/rsvp"
)

// NewRSVPCommand creates the rsvp command.
func NewRSVPCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsvp <event-id> <going|maybe|declined>",
		Short: "Answer an event invitation",
		Long: `Set your RSVP for an event. Sending the answer you already gave is allowed.

Example:
  afterlifectl rsvp 6f1c... maybe`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return answer(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func answer(opts *RootOptions, eventID, value string, cmd *cobra.Command) error {
	status, err := rsvp.ParseStatus(value)
	if err != nil {
		return err
	}

	c, err := opts.sessionClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cache := attendees.NewCache(opts.CacheTTL)
	q := attendees.NewQuery(c, cache)
	mutation := attendees.NewMutation(eventID, c, cache)

	mine, err := myRow(ctx, c, q, eventID)
	if err != nil {
		return err
	}
	if bar := attendees.NewControlBar(mine, mutation); bar != nil {
		err = bar.Click(ctx, status)
	} else {
		err = mutation.Update(ctx, status)
	}
	if err != nil {
		return fmt.Errorf("rsvp failed: %w", err)
	}

	// The mutation invalidated the cache, so this reads the server again.
	mine, err = myRow(ctx, c, q, eventID)
	if err != nil {
		return err
	}
	out := badge(attendees.PersonalStatus(mine))
	return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) {
		if out == nil {
			fmt.Fprintf(w, "Answered %s.\n", status)
			return
		}
		fmt.Fprintf(w, "You (%s): %s\n", out.Name, out.Label)
	})
}
