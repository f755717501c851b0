package attendees

import (
	"sync"
	"time"
)

// DefaultFreshness is how long a fetched attendee list is served without
// going back to the API.
const DefaultFreshness = 5 * time.Minute

type entry struct {
	attendees []Attendee
	storedAt  time.Time
}

// Cache holds attendee lists keyed by event id. An entry older than the
// freshness window stays readable but is refetched by the next query.
// Lists go in and come out as deep copies.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	gens     map[string]uint64
	freshFor time.Duration
	now      func() time.Time
}

// NewCache creates a cache whose entries are fresh for freshFor.
// A non-positive value selects DefaultFreshness.
func NewCache(freshFor time.Duration) *Cache {
	if freshFor <= 0 {
		freshFor = DefaultFreshness
	}
	return &Cache{
		entries:  make(map[string]entry),
		gens:     make(map[string]uint64),
		freshFor: freshFor,
		now:      time.Now,
	}
}

// Get returns a copy of the cached list for eventID, whether it is still
// fresh, and whether an entry exists at all.
func (c *Cache) Get(eventID string) (list []Attendee, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[eventID]
	if !ok {
		return nil, false, false
	}

	return cloneList(e.attendees), c.now().Sub(e.storedAt) < c.freshFor, true
}

// Set stores a copy of list for eventID, starting a new freshness window.
func (c *Cache) Set(eventID string, list []Attendee) {
	stored := cloneList(list)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[eventID] = entry{attendees: stored, storedAt: c.now()}
}

// Generation returns the invalidation count of eventID. A fetch started at
// one generation may only be stored while the generation is unchanged.
func (c *Cache) Generation(eventID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[eventID]
}

// SetIfGen stores list like Set, unless eventID was invalidated since gen
// was read. It reports whether the list was stored.
func (c *Cache) SetIfGen(eventID string, gen uint64, list []Attendee) bool {
	stored := cloneList(list)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[eventID] != gen {
		return false
	}
	c.entries[eventID] = entry{attendees: stored, storedAt: c.now()}
	return true
}

// Invalidate drops the entry for eventID so the next query refetches. Fetches
// already in flight for eventID will not be stored.
func (c *Cache) Invalidate(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, eventID)
	c.gens[eventID]++
}

func cloneList(list []Attendee) []Attendee {
	out := make([]Attendee, len(list))
	for i, a := range list {
		out[i] = a.clone()
	}
	return out
}
