package attendees

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intermernet/afterlife/internal/rsvp"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	list  []Attendee
	err   error
	gate  chan struct{}
}

func (f *fakeFetcher) FetchAttendees(_ context.Context, _ string) ([]Attendee, error) {
	f.mu.Lock()
	f.calls++
	list, err, gate := f.list, f.err, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return list, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) setList(list []Attendee) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
	f.gate = nil
}

type procCall struct {
	eventID string
	status  rsvp.Status
}

type fakeProcedure struct {
	mu    sync.Mutex
	calls []procCall
	err   error
	gate  chan struct{}
}

func (p *fakeProcedure) UpdateRSVPStatus(_ context.Context, eventID string, status rsvp.Status) error {
	p.mu.Lock()
	p.calls = append(p.calls, procCall{eventID, status})
	p.mu.Unlock()
	if p.gate != nil {
		<-p.gate
	}
	return p.err
}

type countingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingInvalidator) Invalidate(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, eventID)
}

func strPtr(s string) *string { return &s }

func TestUnmarshalFlattensProfiles(t *testing.T) {
	payload := `[
		{"id":1,"event_id":"e1","user_id":"u1","role":"manager","status":"going","created_at":"2024-05-01T10:00:00Z",
		 "profiles":{"id":"u1","username":"ada","full_name":"Ada Lovelace","avatar_url":null}},
		{"id":2,"event_id":"e1","user_id":"u2","role":"participant","status":null,"created_at":"2024-05-01T10:00:00Z",
		 "profiles":[{"id":"u2","username":"bob","full_name":null,"avatar_url":null}]},
		{"id":3,"event_id":"e1","user_id":null,"guest_email":"g@x.com","role":"participant","status":"maybe","created_at":"2024-05-01T10:00:00Z",
		 "profiles":null},
		{"id":4,"event_id":"e1","user_id":"u4","role":"participant","created_at":"2024-05-01T10:00:00Z","profiles":[]}
	]`

	var list []Attendee
	require.NoError(t, json.Unmarshal([]byte(payload), &list))
	require.Len(t, list, 4)

	require.NotNil(t, list[0].Profile)
	assert.Equal(t, "Ada Lovelace", list[0].Profile.DisplayName())
	assert.Equal(t, rsvp.Going, list[0].Status)

	require.NotNil(t, list[1].Profile)
	assert.Equal(t, "u2", list[1].Profile.ID)
	assert.Equal(t, "User", list[1].Profile.DisplayName())
	assert.Equal(t, rsvp.Status(""), list[1].Status)

	assert.Nil(t, list[2].Profile)
	assert.True(t, list[2].IsGuest())
	assert.Nil(t, list[3].Profile)

	_, err := json.Marshal(list[0])
	require.NoError(t, err)

	err = json.Unmarshal([]byte(`{"id":5,"profiles":"nope"}`), &Attendee{})
	assert.Error(t, err)
}

func TestMarshalWritesSingleProfile(t *testing.T) {
	a := Attendee{ID: 7, EventID: "e1", UserID: strPtr("u1"), Role: "participant",
		Profile: &Profile{ID: "u1", Username: strPtr("ada")}}

	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Nil(t, generic["status"])
	profile, ok := generic["profiles"].(map[string]any)
	require.True(t, ok, "profiles should be an object")
	assert.Equal(t, "ada", profile["username"])
}

func TestQueryCachesUntilStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cache := NewCache(5 * time.Minute)
	cache.now = func() time.Time { return now }

	f := &fakeFetcher{list: []Attendee{{ID: 1, EventID: "e1"}}}
	q := NewQuery(f, cache)
	ctx := context.Background()

	_, err := q.Attendees(ctx, "e1")
	require.NoError(t, err)
	_, err = q.Attendees(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	now = now.Add(5 * time.Minute)
	list, err := q.Attendees(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 2, f.calls)
}

func TestQueryErrors(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeFetcher{err: boom}
	cache := NewCache(0)
	q := NewQuery(f, cache)

	_, err := q.Attendees(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingEventID)
	assert.Equal(t, 0, f.calls)

	_, err = q.Attendees(context.Background(), "e1")
	assert.Same(t, boom, err)

	_, _, ok := cache.Get("e1")
	assert.False(t, ok)
}

func TestQueryMine(t *testing.T) {
	f := &fakeFetcher{list: []Attendee{
		{ID: 1, UserID: strPtr("u1")},
		{ID: 2, GuestEmail: strPtr("g@x.com")},
	}}
	q := NewQuery(f, NewCache(0))

	a, err := q.Mine(context.Background(), "e1", "u1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.EqualValues(t, 1, a.ID)

	a, err = q.Mine(context.Background(), "e1", "u9")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestMutationCallsOnceAndInvalidatesOnce(t *testing.T) {
	for _, s := range rsvp.All() {
		proc := &fakeProcedure{}
		inv := &countingInvalidator{}
		m := NewMutation("e1", proc, inv)

		require.NoError(t, m.Update(context.Background(), s))
		assert.Equal(t, []procCall{{"e1", s}}, proc.calls)
		assert.Equal(t, []string{"e1"}, inv.ids)
	}
}

func TestMutationRejectsUnknownStatus(t *testing.T) {
	proc := &fakeProcedure{}
	inv := &countingInvalidator{}
	m := NewMutation("e1", proc, inv)

	for _, s := range []rsvp.Status{"", "accepted", "attending", "Going"} {
		err := m.Update(context.Background(), s)
		assert.ErrorIs(t, err, rsvp.ErrInvalidStatus)
	}
	assert.Empty(t, proc.calls)
	assert.Empty(t, inv.ids)
}

func TestMutationFailureKeepsCache(t *testing.T) {
	boom := errors.New("permission denied")
	proc := &fakeProcedure{err: boom}
	cache := NewCache(0)
	cache.Set("e1", []Attendee{{ID: 1}})

	err := NewMutation("e1", proc, cache).Update(context.Background(), rsvp.Maybe)
	assert.ErrorIs(t, err, boom)

	_, fresh, ok := cache.Get("e1")
	assert.True(t, ok)
	assert.True(t, fresh)
}

func TestMutationSuccessForcesRefetch(t *testing.T) {
	f := &fakeFetcher{list: []Attendee{{ID: 1}}}
	cache := NewCache(0)
	q := NewQuery(f, cache)
	ctx := context.Background()

	_, err := q.Attendees(ctx, "e1")
	require.NoError(t, err)
	require.NoError(t, NewMutation("e1", &fakeProcedure{}, cache).Update(ctx, rsvp.Declined))
	_, err = q.Attendees(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestInvalidateDuringFetchDropsStaleList(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{list: []Attendee{{ID: 1, Status: rsvp.Maybe}}, gate: gate}
	cache := NewCache(0)
	q := NewQuery(f, cache)
	ctx := context.Background()

	done := make(chan []Attendee)
	go func() {
		list, err := q.Attendees(ctx, "e1")
		assert.NoError(t, err)
		done <- list
	}()
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, NewMutation("e1", &fakeProcedure{}, cache).Update(ctx, rsvp.Going))
	close(gate)
	stale := <-done
	assert.Equal(t, rsvp.Maybe, stale[0].Status)

	_, _, ok := cache.Get("e1")
	assert.False(t, ok)

	f.setList([]Attendee{{ID: 1, Status: rsvp.Going}})
	list, err := q.Attendees(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, rsvp.Going, list[0].Status)
}

func TestSetIfGen(t *testing.T) {
	cache := NewCache(0)
	gen := cache.Generation("e1")
	cache.Invalidate("e1")
	assert.False(t, cache.SetIfGen("e1", gen, []Attendee{{ID: 1}}))

	assert.True(t, cache.SetIfGen("e1", cache.Generation("e1"), []Attendee{{ID: 2}}))
	list, fresh, ok := cache.Get("e1")
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, uint64(0), cache.Generation("e2"))
}

func TestCacheCopiesNestedFields(t *testing.T) {
	now := time.Now()
	in := []Attendee{{
		ID:          1,
		UserID:      strPtr("u1"),
		RespondedAt: &now,
		Profile:     &Profile{ID: "u1", FullName: strPtr("Ada")},
	}}
	cache := NewCache(0)
	cache.Set("e1", in)

	*in[0].Profile.FullName = "Grace"
	in[0].Profile.ID = "u2"
	*in[0].UserID = "u2"

	out, _, ok := cache.Get("e1")
	require.True(t, ok)
	assert.Equal(t, "Ada", *out[0].Profile.FullName)
	assert.Equal(t, "u1", out[0].Profile.ID)
	assert.Equal(t, "u1", *out[0].UserID)

	out[0].Profile.FullName = strPtr("Linus")
	*out[0].RespondedAt = now.Add(time.Hour)

	again, _, _ := cache.Get("e1")
	assert.Equal(t, "Ada", *again[0].Profile.FullName)
	assert.True(t, again[0].RespondedAt.Equal(now))
}

// Overlapping updates are not de-duplicated: both reach the procedure and
// the order they land in decides the stored status.
func TestMutationOverlappingCallsRace(t *testing.T) {
	proc := &fakeProcedure{gate: make(chan struct{})}
	inv := &countingInvalidator{}
	m := NewMutation("e1", proc, inv)

	var wg sync.WaitGroup
	for _, s := range []rsvp.Status{rsvp.Going, rsvp.Declined} {
		wg.Add(1)
		go func(s rsvp.Status) {
			defer wg.Done()
			assert.NoError(t, m.Update(context.Background(), s))
		}(s)
	}

	require.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return len(proc.calls) == 2
	}, time.Second, 5*time.Millisecond)
	close(proc.gate)
	wg.Wait()

	assert.ElementsMatch(t, []procCall{{"e1", rsvp.Going}, {"e1", rsvp.Declined}}, proc.calls)
	assert.Len(t, inv.ids, 2)
}

func TestPersonalStatus(t *testing.T) {
	p := &Profile{ID: "u1", FullName: strPtr("ada"), Username: strPtr("ada")}

	assert.Nil(t, PersonalStatus(nil))
	assert.Nil(t, PersonalStatus(&Attendee{Status: rsvp.Going}))
	assert.Nil(t, PersonalStatus(&Attendee{Profile: p}))
	assert.Nil(t, PersonalStatus(&Attendee{Profile: p, Status: "accepted"}))

	badge := PersonalStatus(&Attendee{Profile: p, Status: rsvp.Declined})
	require.NotNil(t, badge)
	assert.Equal(t, "Declined", badge.Display.Label)
	assert.Equal(t, rsvp.Negative, badge.Display.Tone)
	assert.Equal(t, "A", badge.Initials)
}

func TestControlBarClickAlwaysDispatches(t *testing.T) {
	proc := &fakeProcedure{}
	inv := &countingInvalidator{}
	m := NewMutation("e1", proc, inv)
	a := &Attendee{UserID: strPtr("u1"), Status: rsvp.Going, Profile: &Profile{ID: "u1"}}

	assert.Nil(t, NewControlBar(&Attendee{Status: rsvp.Going}, m))

	cb := NewControlBar(a, m)
	require.NotNil(t, cb)
	require.Len(t, cb.Controls, 3)
	assert.True(t, cb.Controls[0].Selected)
	assert.False(t, cb.Controls[1].Selected)
	require.NotNil(t, cb.Current)
	assert.Equal(t, "Going", cb.Current.Label)

	require.NoError(t, cb.Click(context.Background(), rsvp.Going))
	require.NoError(t, cb.Click(context.Background(), rsvp.Maybe))
	assert.Equal(t, []procCall{{"e1", rsvp.Going}, {"e1", rsvp.Maybe}}, proc.calls)
}

func TestControlBarClickWithoutMutation(t *testing.T) {
	a := &Attendee{UserID: strPtr("u1"), Status: rsvp.Going, Profile: &Profile{ID: "u1"}}

	cb := NewControlBar(a, nil)
	require.NotNil(t, cb)
	assert.ErrorIs(t, cb.Click(context.Background(), rsvp.Maybe), ErrNoMutation)

	var missing *ControlBar
	assert.ErrorIs(t, missing.Click(context.Background(), rsvp.Maybe), ErrNoMutation)
}

func TestRow(t *testing.T) {
	p := &Profile{ID: "u1", FullName: strPtr("Ada")}

	assert.Nil(t, Row(&Attendee{Status: rsvp.Going}, false))

	r := Row(&Attendee{ID: 3, Profile: p}, true)
	require.NotNil(t, r)
	assert.Equal(t, InvitedLabel, r.Label)
	assert.True(t, r.CanDelete)

	r = Row(&Attendee{Profile: p, Status: rsvp.Maybe}, false)
	assert.Equal(t, "Maybe", r.Label)
	assert.Equal(t, rsvp.Neutral, r.Tone)
}

func TestFilterCountsAndManager(t *testing.T) {
	list := []Attendee{
		{ID: 1, UserID: strPtr("u1"), Role: "manager", Status: rsvp.Going,
			Profile: &Profile{FullName: strPtr("Ada Lovelace"), Username: strPtr("ada")}},
		{ID: 2, UserID: strPtr("u2"), Role: "participant", Status: rsvp.Maybe,
			Profile: &Profile{Username: strPtr("grace")}},
		{ID: 3, GuestEmail: strPtr("g@x.com"), Role: "participant", Status: rsvp.Going},
		{ID: 4, UserID: strPtr("u4"), Role: "co_manager",
			Profile: &Profile{FullName: strPtr("Alan")}},
	}

	assert.Len(t, Filter(list, TabAll, ""), 3)
	assert.Len(t, Filter(list, TabGoing, ""), 1)
	got := Filter(list, TabAll, "GRA")
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].ID)

	counts := Counts(list)
	assert.Equal(t, 4, counts[TabAll])
	assert.Equal(t, 2, counts[TabGoing])
	assert.Equal(t, 1, counts[TabMaybe])
	assert.Equal(t, 0, counts[TabDeclined])

	assert.True(t, IsManager(list, "u1"))
	assert.True(t, IsManager(list, "u4"))
	assert.False(t, IsManager(list, "u2"))

	tab, err := ParseTab("")
	require.NoError(t, err)
	assert.Equal(t, TabAll, tab)
	_, err = ParseTab("invited")
	assert.Error(t, err)
}
