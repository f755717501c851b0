// Package cli is the afterlifectl command line: sign in, list an event's
// attendees, answer an invitation and invite people by email.
package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/intermernet/afterlife/internal/attendees"
	"github.com/intermernet/afterlife/internal/client"
)

// Environment variables read for flag defaults.
const (
	EnvAPIURL   = "AFTERLIFE_API_URL"
	EnvToken    = "AFTERLIFE_TOKEN"
	EnvCacheTTL = "ATTENDEE_CACHE_TTL"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "text" | "json" | "yaml"
	APIURL string
	Token  string

	// CacheTTL is how long a fetched attendee list is served without a refetch.
	CacheTTL time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for afterlifectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "afterlifectl",
		Short: "Manage event RSVPs and invitations",
		Long:  "A command line client for the events server: answer invitations, review who is coming and invite guests.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.CacheTTL <= 0 {
				return fmt.Errorf("invalid cache ttl %s: must be positive", opts.CacheTTL)
			}
			return nil
		},
	}

	apiURL := os.Getenv(EnvAPIURL)
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	cacheTTL := attendees.DefaultFreshness
	if d, err := time.ParseDuration(os.Getenv(EnvCacheTTL)); err == nil {
		cacheTTL = d
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", apiURL, "events server base URL (env "+EnvAPIURL+")")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv(EnvToken), "session token (env "+EnvToken+")")
	cmd.PersistentFlags().DurationVar(&opts.CacheTTL, "cache-ttl", cacheTTL, "attendee list freshness window (env "+EnvCacheTTL+")")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewAttendeesCommand(opts))
	cmd.AddCommand(NewRSVPCommand(opts))
	cmd.AddCommand(NewInviteCommand(opts))

	return cmd
}

var errNoToken = errors.New("not signed in: pass --token or set " + EnvToken + " (see 'afterlifectl login')")

// sessionClient returns a client carrying the session token.
func (o *RootOptions) sessionClient() (*client.Client, error) {
	if o.Token == "" {
		return nil, errNoToken
	}
	return client.New(o.APIURL, o.Token)
}
