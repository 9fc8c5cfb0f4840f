package models

import (
	"fmt"

	"github.com/dmitrijs2005/productkeeper/internal/common"
)

// State is the lifecycle position of one logical product.
type State string

const (
	StateNone          State = "none"
	StatePendingAdd    State = "pending_add"
	StateCanonical     State = "synced"
	StatePendingUpdate State = "pending_update"
	StatePendingDelete State = "pending_delete"
)

type Event string

const (
	EventStageAdd      Event = "stage_add"
	EventStageUpdate   Event = "stage_update"
	EventStageDelete   Event = "stage_delete"
	EventConfirmAdd    Event = "confirm_add"
	EventConfirmUpdate Event = "confirm_update"
	EventConfirmDelete Event = "confirm_delete"
)

var transitions = map[State]map[Event]State{
	StateNone: {
		EventStageAdd: StatePendingAdd,
	},
	StatePendingAdd: {
		EventStageUpdate: StatePendingAdd,
		EventStageDelete: StateNone,
		EventConfirmAdd:  StateCanonical,
	},
	StateCanonical: {
		EventStageUpdate: StatePendingUpdate,
		EventStageDelete: StatePendingDelete,
	},
	StatePendingUpdate: {
		EventStageUpdate:   StatePendingUpdate,
		EventStageDelete:   StatePendingDelete,
		EventConfirmUpdate: StateCanonical,
	},
	StatePendingDelete: {
		EventConfirmDelete: StateNone,
	},
}

// Transition returns the state reached from "from" on ev, or an error
// wrapping common.ErrIllegalTransition.
func Transition(from State, ev Event) (State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", common.ErrIllegalTransition, ev, from)
}
