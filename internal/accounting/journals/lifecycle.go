package journals

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Action is an operation attempted against a journal entry.
type Action string

const (
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionPost    Action = "post"
	ActionReverse Action = "reverse"
)

// statusDeleted is the pseudo state reached by deleting a draft.
const statusDeleted = "DELETED"

// Lifecycle drives a journal entry through its legal transitions.
type Lifecycle struct {
	entry *JournalEntry
	fsm   *fsm.FSM
}

// NewLifecycle wraps entry in a state machine positioned at its current status.
func NewLifecycle(entry *JournalEntry) *Lifecycle {
	l := &Lifecycle{entry: entry}
	l.fsm = fsm.NewFSM(
		string(entry.Status),
		fsm.Events{
			{Name: string(ActionUpdate), Src: []string{string(JournalStatusDraft)}, Dst: string(JournalStatusDraft)},
			{Name: string(ActionDelete), Src: []string{string(JournalStatusDraft)}, Dst: statusDeleted},
			{Name: string(ActionPost), Src: []string{string(JournalStatusDraft)}, Dst: string(JournalStatusPosted)},
			{Name: string(ActionReverse), Src: []string{string(JournalStatusPosted)}, Dst: string(JournalStatusReversed)},
		},
		fsm.Callbacks{},
	)
	return l
}

// Can reports whether action is legal from the current status.
func (l *Lifecycle) Can(action Action) bool {
	return l.fsm.Can(string(action))
}

// Apply fires action and mirrors the resulting status onto the entry.
// Illegal transitions return a StateError naming the attempt.
func (l *Lifecycle) Apply(ctx context.Context, action Action) error {
	if !l.fsm.Can(string(action)) {
		return transitionError(l.entry, action)
	}
	if err := l.fsm.Event(ctx, string(action)); err != nil {
		var noop fsm.NoTransitionError
		if !errors.As(err, &noop) {
			return shared.Statef("accounting: %s journal entry %s: %v", action, l.entry.Number, err)
		}
	}
	if current := l.fsm.Current(); current != statusDeleted {
		l.entry.Status = JournalStatus(current)
	}
	return nil
}

func transitionError(entry *JournalEntry, action Action) error {
	switch {
	case action == ActionReverse && entry.Status == JournalStatusReversed:
		return shared.ErrAlreadyReversed
	case action == ActionReverse:
		return shared.ErrNotPosted
	}
	return shared.Statef("accounting: cannot %s journal entry %s in status %s", action, entry.Number, entry.Status)
}
