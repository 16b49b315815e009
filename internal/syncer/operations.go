package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/backend"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/queue"
)

// Backend collections touched by the default operations.
const (
	CollectionAppliances  = "appliances"
	CollectionProfiles    = "profiles"
	CollectionAutomations = "automations"
)

var (
	// ErrMissingID is returned when an item lacks the "id" its operation
	// filters on.
	ErrMissingID = errors.New("action data has no id")

	// ErrNoUser is returned when a drain runs without a user id.
	ErrNoUser = errors.New("no user id for sync")
)

// Operation replays one queued item against the backend.
type Operation func(ctx context.Context, b backend.Backend, item queue.Item, userID string) error

// Operations maps each action type to its replay.
type Operations map[queue.ActionType]Operation

// DefaultOperations returns the replay table for every known action type.
// Every operation is scoped to the syncing user.
func DefaultOperations() Operations {
	return Operations{
		queue.ActionUpdateAppliance:        updateOwned(CollectionAppliances),
		queue.ActionAddAppliance:           addAppliance,
		queue.ActionDeleteAppliance:        deleteAppliance,
		queue.ActionUpdateProfile:          updateProfile,
		queue.ActionUpdateLoadsheddingArea: updateLoadsheddingArea,
		queue.ActionUpdateAutomation:       updateOwned(CollectionAutomations),
	}
}

// updateOwned sets the item's fields, minus id, on the user's row with the
// item's id.
func updateOwned(collection string) Operation {
	return func(ctx context.Context, b backend.Backend, item queue.Item, userID string) error {
		id, err := itemID(item)
		if err != nil {
			return err
		}
		return b.Update(ctx, collection, backend.Filter{"id": id, "user_id": userID}, withoutID(item.Data))
	}
}

func addAppliance(ctx context.Context, b backend.Backend, item queue.Item, userID string) error {
	record := make(map[string]any, len(item.Data)+1)
	for k, v := range item.Data {
		record[k] = v
	}
	record["user_id"] = userID
	return b.Insert(ctx, CollectionAppliances, record)
}

func deleteAppliance(ctx context.Context, b backend.Backend, item queue.Item, userID string) error {
	id, err := itemID(item)
	if err != nil {
		return err
	}
	return b.Delete(ctx, CollectionAppliances, backend.Filter{"id": id, "user_id": userID})
}

func updateProfile(ctx context.Context, b backend.Backend, item queue.Item, userID string) error {
	return b.Update(ctx, CollectionProfiles, backend.Filter{"id": userID}, withoutID(item.Data))
}

// updateLoadsheddingArea accepts either {"area": ...} or the area object
// itself as data.
func updateLoadsheddingArea(ctx context.Context, b backend.Backend, item queue.Item, userID string) error {
	var area any = item.Data
	if v, ok := item.Data["area"]; ok {
		area = v
	}
	return b.Update(ctx, CollectionProfiles, backend.Filter{"id": userID}, map[string]any{"loadshedding_area": area})
}

func itemID(item queue.Item) (any, error) {
	id, ok := item.Data["id"]
	if !ok || id == nil || id == "" {
		return nil, fmt.Errorf("%w: %s %s", ErrMissingID, item.Type, item.ID)
	}
	return id, nil
}

func withoutID(data map[string]any) map[string]any {
	values := make(map[string]any, len(data))
	for k, v := range data {
		if k != "id" {
			values[k] = v
		}
	}
	return values
}
