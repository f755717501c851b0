// Package rsvp defines the closed set of RSVP answers an attendee can give
// and how each answer is displayed.
package rsvp

import (
	"errors"
	"fmt"
)

// Status is an attendee's answer to an event invitation.
type Status string

const (
	Going    Status = "going"
	Maybe    Status = "maybe"
	Declined Status = "declined"
)

// ErrInvalidStatus is returned for any value outside the three answers.
var ErrInvalidStatus = errors.New("invalid RSVP status")

// All returns the statuses in control-bar order.
func All() []Status {
	return []Status{Going, Maybe, Declined}
}

// Valid reports whether s is one of the three answers.
func (s Status) Valid() bool {
	switch s {
	case Going, Maybe, Declined:
		return true
	}
	return false
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q (want going, maybe or declined)", ErrInvalidStatus, v)
	}
	return s, nil
}

func (s Status) String() string { return string(s) }

// Tone groups statuses by sentiment for styling.
type Tone string

const (
	Positive Tone = "positive"
	Neutral  Tone = "neutral"
	Negative Tone = "negative"
)

// Display is how a status is presented: an icon name, a label and a tone.
type Display struct {
	Icon  string
	Label string
	Tone  Tone
}

var displays = map[Status]Display{
	Going:    {Icon: "check", Label: "Going", Tone: Positive},
	Maybe:    {Icon: "help-circle", Label: "Maybe", Tone: Neutral},
	Declined: {Icon: "x", Label: "Declined", Tone: Negative},
}

// Lookup returns the display for s. The second result is false for
// anything outside the closed set, including the empty status.
func Lookup(s Status) (Display, bool) {
	d, ok := displays[s]
	return d, ok
}
