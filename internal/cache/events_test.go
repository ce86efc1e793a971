package cache

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

func TestEventListKey_Deterministic(t *testing.T) {
	a := store.ListEventsParams{EventType: "sports", UpcomingOnly: true, Limit: 20}
	b := store.ListEventsParams{EventType: "sports", UpcomingOnly: true, Limit: 20}

	if EventListKey(a) != EventListKey(b) {
		t.Error("identical params produced different keys")
	}
}

func TestEventListKey_DistinguishesFilters(t *testing.T) {
	base := store.ListEventsParams{Limit: 20}
	variants := []store.ListEventsParams{
		{All: true, Limit: 20},
		{OrganizationID: sql.NullInt64{Int64: 7, Valid: true}, Limit: 20},
		{Search: "yoga", Limit: 20},
		{EventType: "wellness", Limit: 20},
		{UpcomingOnly: true, Limit: 20},
		{Limit: 20, Offset: 20},
	}

	baseKey := EventListKey(base)
	seen := map[string]bool{baseKey: true}
	for _, v := range variants {
		k := EventListKey(v)
		if seen[k] {
			t.Errorf("key collision for params %+v", v)
		}
		seen[k] = true
	}
}

func TestEventListRoundTrip(t *testing.T) {
	c := NewMemory(time.Minute, 0)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	arg := store.ListEventsParams{All: true, Limit: 20}
	events := []model.Event{
		{ID: 1, Title: "Basketball Night", Slug: "basketball-night", EventType: model.EventTypeSports},
		{ID: 2, Title: "Morning Yoga Session", Slug: "morning-yoga-session", EventType: model.EventTypeWellness},
	}

	if err := SetEventList(ctx, c, arg, events, 8); err != nil {
		t.Fatalf("SetEventList: %v", err)
	}

	got, total, err := GetEventList(ctx, c, arg)
	if err != nil {
		t.Fatalf("GetEventList: %v", err)
	}
	if total != 8 {
		t.Errorf("total = %d, want 8", total)
	}
	if len(got) != 2 || got[0].Slug != "basketball-night" {
		t.Errorf("events = %+v", got)
	}
}

func TestInvalidateEventLists(t *testing.T) {
	c := NewMemory(time.Minute, 0)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	arg := store.ListEventsParams{All: true}
	if err := SetEventList(ctx, c, arg, nil, 0); err != nil {
		t.Fatalf("SetEventList: %v", err)
	}

	if err := InvalidateEventLists(ctx, c); err != nil {
		t.Fatalf("InvalidateEventLists: %v", err)
	}

	if _, _, err := GetEventList(ctx, c, arg); !errors.Is(err, ErrMiss) {
		t.Errorf("GetEventList after invalidation = %v, want ErrMiss", err)
	}
}

func TestGetEventList_CorruptEntry(t *testing.T) {
	c := NewMemory(time.Minute, 0)
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	arg := store.ListEventsParams{All: true}
	if err := c.Set(ctx, EventListKey(arg), []byte("not json"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, _, err := GetEventList(ctx, c, arg); !errors.Is(err, ErrMiss) {
		t.Errorf("corrupt entry = %v, want ErrMiss", err)
	}
}
