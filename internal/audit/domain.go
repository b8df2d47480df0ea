package audit

import (
	"encoding/json"
	"time"
)

// Action enumerates audited product mutations.
type Action string

const (
	ActionAdd            Action = "ADD"
	ActionUpdate         Action = "UPDATE"
	ActionDelete         Action = "DELETE"
	ActionQuantityAdjust Action = "QUANTITY_ADJUST"
)

// SystemActor is recorded when a mutation carries no actor.
const SystemActor = "system"

// Valid reports whether a is a known action kind.
func (a Action) Valid() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionDelete, ActionQuantityAdjust:
		return true
	}
	return false
}

// Entry is one immutable row of the audit trail. ProductID may reference a
// product that no longer exists.
type Entry struct {
	ID        int64           `json:"id"`
	ProductID *int64          `json:"product_id"`
	Action    Action          `json:"action"`
	Actor     string          `json:"actor"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filters narrows audit trail reads. Zero values match everything.
type Filters struct {
	ProductID *int64
	Action    Action
	Actor     string
}
