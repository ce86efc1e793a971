package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spherelink/spherelink/internal/model"
	"github.com/spherelink/spherelink/internal/store"
)

// eventListPrefix namespaces every event-listing key so a single
// invalidation call clears all cached listings after a mutation.
const eventListPrefix = "events:list:"

// EventListKey derives a deterministic cache key from listing filters.
func EventListKey(arg store.ListEventsParams) string {
	org := "none"
	switch {
	case arg.All:
		org = "all"
	case arg.OrganizationID.Valid:
		org = fmt.Sprintf("%d", arg.OrganizationID.Int64)
	}
	return fmt.Sprintf("%s%s:q=%s:t=%s:up=%t:l=%d:o=%d",
		eventListPrefix, org, arg.Search, arg.EventType, arg.UpcomingOnly, arg.Limit, arg.Offset)
}

// eventListPayload is the serialized form of a cached listing.
type eventListPayload struct {
	Events []model.Event `json:"events"`
	Total  int64         `json:"total"`
}

// GetEventList returns a cached event listing, or ErrMiss.
func GetEventList(ctx context.Context, c Cache, arg store.ListEventsParams) ([]model.Event, int64, error) {
	data, err := c.Get(ctx, EventListKey(arg))
	if err != nil {
		return nil, 0, err
	}

	var payload eventListPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		// Stale or corrupt entry: treat as a miss after removing it.
		_ = c.Delete(ctx, EventListKey(arg))
		return nil, 0, ErrMiss
	}
	return payload.Events, payload.Total, nil
}

// SetEventList caches an event listing with the backend's default TTL.
func SetEventList(ctx context.Context, c Cache, arg store.ListEventsParams, events []model.Event, total int64) error {
	data, err := json.Marshal(eventListPayload{Events: events, Total: total})
	if err != nil {
		return err
	}
	return c.Set(ctx, EventListKey(arg), data, 0)
}

// InvalidateEventLists drops all cached listings. Called after any
// event create, update, delete, or registration change that affects
// listing counts.
func InvalidateEventLists(ctx context.Context, c Cache) error {
	return c.DeletePrefix(ctx, eventListPrefix)
}
