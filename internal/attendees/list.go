package attendees

import (
	"fmt"
	"strings"

	"github.com/intermernet/afterlife/internal/rsvp"
)

// Tab selects a subset of an attendee list.
type Tab string

const (
	TabAll      Tab = "all"
	TabGoing    Tab = Tab(rsvp.Going)
	TabMaybe    Tab = Tab(rsvp.Maybe)
	TabDeclined Tab = Tab(rsvp.Declined)
)

// ParseTab accepts "all" or one of the RSVP statuses. Empty means "all".
func ParseTab(v string) (Tab, error) {
	switch t := Tab(v); t {
	case "":
		return TabAll, nil
	case TabAll, TabGoing, TabMaybe, TabDeclined:
		return t, nil
	}
	return "", fmt.Errorf("unknown tab %q", v)
}

// Filter keeps the attendees on tab whose name or username contains search,
// case-insensitively. Attendees without a profile are never listed.
func Filter(list []Attendee, tab Tab, search string) []Attendee {
	needle := strings.ToLower(search)

	var out []Attendee
	for _, a := range list {
		if tab != TabAll && Tab(a.Status) != tab {
			continue
		}
		if a.Profile == nil {
			continue
		}
		if !contains(a.Profile.FullName, needle) && !contains(a.Profile.Username, needle) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func contains(field *string, needle string) bool {
	return field != nil && strings.Contains(strings.ToLower(*field), needle)
}

// Counts returns the number of attendees per tab.
func Counts(list []Attendee) map[Tab]int {
	counts := map[Tab]int{TabAll: len(list), TabGoing: 0, TabMaybe: 0, TabDeclined: 0}
	for _, a := range list {
		switch Tab(a.Status) {
		case TabGoing, TabMaybe, TabDeclined:
			counts[Tab(a.Status)]++
		}
	}
	return counts
}

// IsManager reports whether userID manages the event the list belongs to.
func IsManager(list []Attendee, userID string) bool {
	for _, a := range list {
		if a.UserID != nil && *a.UserID == userID && (a.Role == "manager" || a.Role == "co_manager") {
			return true
		}
	}
	return false
}
