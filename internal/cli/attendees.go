package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intermernet/afterlife/internal/attendees"
	"github.com/intermernet/afterlife/internal/client"
)

// AttendeesOptions holds flags for the attendees command.
type AttendeesOptions struct {
	*RootOptions
	Tab    string
	Search string
}

type badgeOutput struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Label  string `json:"label" yaml:"label"`
}

type rowOutput struct {
	Name     string `json:"name" yaml:"name"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Role     string `json:"role" yaml:"role"`
	Label    string `json:"label" yaml:"label"`
	Tone     string `json:"tone" yaml:"tone"`
}

type attendeesOutput struct {
	EventID   string         `json:"event_id" yaml:"event_id"`
	Mine      *badgeOutput   `json:"mine" yaml:"mine"`
	Manager   bool           `json:"manager" yaml:"manager"`
	Counts    map[string]int `json:"counts" yaml:"counts"`
	Attendees []rowOutput    `json:"attendees" yaml:"attendees"`
}

// NewAttendeesCommand creates the attendees command.
func NewAttendeesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttendeesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attendees <event-id>",
		Short: "List an event's attendees and your own RSVP",
		Long: `List an event's attendees with their RSVP, and show your own answer.

Example:
  afterlifectl attendees 6f1c... --status going --search ada`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listAttendees(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tab, "status", "all", "only show attendees with this answer (all|going|maybe|declined)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "filter by name or username")

	return cmd
}

func listAttendees(opts *AttendeesOptions, eventID string, cmd *cobra.Command) error {
	tab, err := attendees.ParseTab(opts.Tab)
	if err != nil {
		return err
	}

	c, err := opts.sessionClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}

	q := attendees.NewQuery(c, attendees.NewCache(opts.CacheTTL))
	out, err := buildAttendeesOutput(ctx, q, eventID, me.ID, tab, opts.Search)
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) {
		writeAttendeesText(w, out)
	})
}

func buildAttendeesOutput(ctx context.Context, q *attendees.Query, eventID, userID string, tab attendees.Tab, search string) (*attendeesOutput, error) {
	list, err := q.Attendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	mine, err := q.Mine(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	out := &attendeesOutput{
		EventID:   eventID,
		Mine:      badge(attendees.PersonalStatus(mine)),
		Manager:   attendees.IsManager(list, userID),
		Counts:    map[string]int{},
		Attendees: []rowOutput{},
	}
	for t, n := range attendees.Counts(list) {
		out.Counts[string(t)] = n
	}
	for _, a := range attendees.Filter(list, tab, search) {
		row := attendees.Row(&a, out.Manager && a.Role != "manager")
		if row == nil {
			continue
		}
		out.Attendees = append(out.Attendees, rowOutput{
			Name:     row.Name,
			Username: row.Username,
			Role:     row.Role,
			Label:    row.Label,
			Tone:     string(row.Tone),
		})
	}
	return out, nil
}

func badge(b *attendees.StatusBadge) *badgeOutput {
	if b == nil {
		return nil
	}
	return &badgeOutput{Name: b.Name, Status: b.Status.String(), Label: b.Display.Label}
}

func writeAttendeesText(w io.Writer, out *attendeesOutput) {
	if out.Mine != nil {
		fmt.Fprintf(w, "You (%s): %s\n", out.Mine.Name, out.Mine.Label)
	} else {
		fmt.Fprintln(w, "You have not answered yet.")
	}
	fmt.Fprintf(w, "all %d  going %d  maybe %d  declined %d\n",
		out.Counts["all"], out.Counts["going"], out.Counts["maybe"], out.Counts["declined"])
	if len(out.Attendees) == 0 {
		fmt.Fprintln(w, "No attendees match.")
		return
	}
	for _, r := range out.Attendees {
		name := r.Name
		if r.Username != "" {
			name += " (@" + r.Username + ")"
		}
		fmt.Fprintf(w, "  %-32s %-12s %s\n", name, r.Role, r.Label)
	}
}

// myRow reads the caller's own attendee row through q.
func myRow(ctx context.Context, c *client.Client, q *attendees.Query, eventID string) (*attendees.Attendee, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	return q.Mine(ctx, eventID, me.ID)
}
