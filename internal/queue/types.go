// Package queue implements the durable offline action queue.
//
// Mutations made while the backend is unreachable are buffered as Items in a
// single store record (default key "offline_queue") holding a JSON array,
// oldest first. The record is rewritten wholesale on every change; each
// load-mutate-save span runs under the Queue's mutex so concurrent callers in
// one process cannot lose each other's updates.
//
// The queue is bounded: adding to a full queue evicts the oldest items first.
// Items that fail replay are kept with an incremented retry count until the
// retry ceiling, after which the sync coordinator drops them.
package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
)

var (
	// ErrStorage wraps failures of the underlying store. The action or
	// change was not persisted.
	ErrStorage = errors.New("queue storage failure")

	// ErrInvalidAction is returned for actions with an unknown type or
	// without data.
	ErrInvalidAction = errors.New("invalid action")
)

// ActionType identifies a replayable backend mutation.
type ActionType string

const (
	ActionUpdateAppliance        ActionType = "UPDATE_APPLIANCE"
	ActionAddAppliance           ActionType = "ADD_APPLIANCE"
	ActionDeleteAppliance        ActionType = "DELETE_APPLIANCE"
	ActionUpdateProfile          ActionType = "UPDATE_PROFILE"
	ActionUpdateLoadsheddingArea ActionType = "UPDATE_LOADSHEDDING_AREA"
	ActionUpdateAutomation       ActionType = "UPDATE_AUTOMATION"
)

var actionTypes = []ActionType{
	ActionUpdateAppliance,
	ActionAddAppliance,
	ActionDeleteAppliance,
	ActionUpdateProfile,
	ActionUpdateLoadsheddingArea,
	ActionUpdateAutomation,
}

// ActionTypes returns every known action type.
func ActionTypes() []ActionType {
	return append([]ActionType(nil), actionTypes...)
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	for _, known := range actionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseActionType accepts a type name in any case.
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidAction, s)
	}
	return t, nil
}

// Status is the replay state of an item.
type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Action is a mutation to enqueue. Data carries the new field values and any
// lookup keys the replay needs, such as an appliance "id".
type Action struct {
	Type ActionType     `json:"type"`
	Data map[string]any `json:"data"`
}

// Item is one queued action.
type Item struct {
	ID         string         `json:"id"`
	Type       ActionType     `json:"type"`
	Data       map[string]any `json:"data"`
	Timestamp  string         `json:"timestamp"`
	RetryCount int            `json:"retryCount"`
	Status     Status         `json:"status"`
	LastError  string         `json:"lastError,omitempty"`
}

// Stats summarizes the queue.
type Stats struct {
	Total   int    `json:"total"`
	Pending int    `json:"pending"`
	Failed  int    `json:"failed"`
	Oldest  string `json:"oldest,omitempty"` // timestamp of the head item
}

// PreviewItem is an Item without its payload.
type PreviewItem struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	Timestamp  string     `json:"timestamp"`
	RetryCount int        `json:"retryCount"`
	Status     Status     `json:"status"`
}

// Config configures a Queue. Zero values take the package defaults.
type Config struct {
	Store      kvstore.Store
	Key        string // default core.QueueKey
	MaxSize    int    // default core.MaxQueueSize
	MaxRetries int    // default core.MaxRetries
	Clock      core.Clock
	Metrics    Metrics
}

// Metrics receives queue activity. A nil Metrics disables recording.
type Metrics interface {
	SetDepth(n int)
	RecordEnqueue(action string)
	RecordEvictions(n int)
}
