package document

// LifecycleState is the state of one (project, document type) lifecycle
type LifecycleState string

const (
	StateEmpty       LifecycleState = "EMPTY"
	StateDrafting    LifecycleState = "DRAFTING"
	StateFinalizedV1 LifecycleState = "FINALIZED_V1"
	StateFinalizedVN LifecycleState = "FINALIZED_VN"
	// StateRevising is edit mode on a finalized document that still accepts versions
	StateRevising LifecycleState = "REVISING"
	StateSealed   LifecycleState = "SEALED"
)

// Action is a user action offered in a given state
type Action string

const (
	ActionEdit           Action = "edit"
	ActionFinalize       Action = "finalize"
	ActionEnterEditMode  Action = "enter_edit_mode"
	ActionCancelEdit     Action = "cancel_edit"
	ActionSaveNewVersion Action = "save_new_version"
)

var stateTransitions = map[LifecycleState][]LifecycleState{
	StateEmpty:       {StateDrafting, StateFinalizedV1, StateSealed},
	StateDrafting:    {StateDrafting, StateFinalizedV1, StateSealed},
	StateFinalizedV1: {StateRevising},
	StateFinalizedVN: {StateRevising},
	StateRevising:    {StateFinalizedVN, StateFinalizedV1},
	StateSealed:      {},
}

var stateActions = map[LifecycleState][]Action{
	StateEmpty:       {ActionEdit, ActionFinalize},
	StateDrafting:    {ActionEdit, ActionFinalize},
	StateFinalizedV1: {ActionEnterEditMode},
	StateFinalizedVN: {ActionEnterEditMode},
	StateRevising:    {ActionEdit, ActionCancelEdit, ActionSaveNewVersion},
	StateSealed:      {},
}

// IsValid checks if the state is known
func (s LifecycleState) IsValid() bool {
	_, ok := stateTransitions[s]
	return ok
}

// String returns the string representation
func (s LifecycleState) String() string {
	return string(s)
}

// IsFinalized reports whether a committed document exists in this state
func (s LifecycleState) IsFinalized() bool {
	switch s {
	case StateFinalizedV1, StateFinalizedVN, StateRevising, StateSealed:
		return true
	}
	return false
}

// AcceptsDrafts reports whether autosave may write drafts in this state
func (s LifecycleState) AcceptsDrafts() bool {
	return s == StateEmpty || s == StateDrafting
}

// IsTerminal reports whether no transition leaves this state
func (s LifecycleState) IsTerminal() bool {
	return s == StateSealed
}

// CanTransitionTo checks if a transition to target is allowed
func (s LifecycleState) CanTransitionTo(target LifecycleState) bool {
	for _, next := range stateTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// AvailableActions returns the actions a user may take in this state.
// A sealed document offers none.
func (s LifecycleState) AvailableActions() []Action {
	actions := stateActions[s]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Allows reports whether action is offered in this state
func (s LifecycleState) Allows(action Action) bool {
	for _, a := range stateActions[s] {
		if a == action {
			return true
		}
	}
	return false
}

// FinalizedStateFor returns the state reached after committing version of type t
func FinalizedStateFor(t DocumentType, version int) LifecycleState {
	switch {
	case t.IsSealable():
		return StateSealed
	case version <= 1:
		return StateFinalizedV1
	default:
		return StateFinalizedVN
	}
}

// DeriveState computes the resting state from persisted facts.
// A draft is disregarded once a committed document exists.
func DeriveState(current *StoredDocument, hasDraft bool) LifecycleState {
	if current != nil {
		return FinalizedStateFor(current.DocumentType, current.Version)
	}
	if hasDraft {
		return StateDrafting
	}
	return StateEmpty
}
