package attendees

import (
	"context"
	"errors"
)

// ErrMissingEventID is returned when a query or mutation has no event id.
var ErrMissingEventID = errors.New("event id is required")

// Fetcher reads the attendee rows of one event, each joined with the
// attendee's public profile.
type Fetcher interface {
	FetchAttendees(ctx context.Context, eventID string) ([]Attendee, error)
}

// Query serves attendee lists through the cache.
type Query struct {
	fetcher Fetcher
	cache   *Cache
}

func NewQuery(fetcher Fetcher, cache *Cache) *Query {
	return &Query{fetcher: fetcher, cache: cache}
}

// Attendees returns the attendees of eventID. A fresh cache entry is served
// as is; otherwise the list is fetched and cached, unless the entry was
// invalidated while the fetch ran. Fetch errors are returned
// unchanged and leave the cache untouched.
func (q *Query) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	if eventID == "" {
		return nil, ErrMissingEventID
	}

	if list, fresh, ok := q.cache.Get(eventID); ok && fresh {
		return list, nil
	}

	gen := q.cache.Generation(eventID)
	list, err := q.fetcher.FetchAttendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	// An invalidation during the fetch means list may predate it.
	q.cache.SetIfGen(eventID, gen, list)
	return list, nil
}

// Mine returns the attendee row of userID on eventID, or nil when the user
// is not on the event.
func (q *Query) Mine(ctx context.Context, eventID, userID string) (*Attendee, error) {
	list, err := q.Attendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].UserID != nil && *list[i].UserID == userID {
			return &list[i], nil
		}
	}
	return nil, nil
}
