package game

import (
	"encoding/json"
	"fmt"
)

// State is a hand's position in its lifecycle.
type State int

const (
	StateWaiting State = iota
	StatePreFlop
	StateFlop
	StateTurn
	StateRiver
	StateShowdown
	StateSettlement
)

var stateNames = [...]string{"WAITING", "PRE_FLOP", "FLOP", "TURN", "RIVER", "SHOWDOWN", "SETTLEMENT"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState maps a stored state name back to its State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hand state %q", name)
}

// MarshalJSON renders the state by name for wire payloads.
func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON parses a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Betting reports whether the state is one of the four betting streets.
func (s State) Betting() bool { return s >= StatePreFlop && s <= StateRiver }

// Terminal reports whether the hand has finished.
func (s State) Terminal() bool { return s == StateSettlement }

// ActionType identifies an entry in a hand's action log. The first seven are
// player decisions, the rest are recorded by the dealer.
type ActionType int

const (
	ActionSmallBlind ActionType = iota
	ActionBigBlind
	ActionCheck
	ActionCall
	ActionRaise
	ActionFold
	ActionAllIn
	ActionDealFlop
	ActionDealTurn
	ActionDealRiver
	ActionShowdown
	ActionSettle
)

var actionNames = [...]string{
	"SMALL_BLIND", "BIG_BLIND", "CHECK", "CALL", "RAISE", "FOLD", "ALL_IN",
	"DEAL_FLOP", "DEAL_TURN", "DEAL_RIVER", "SHOWDOWN", "SETTLE",
}

func (a ActionType) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("ActionType(%d)", int(a))
	}
	return actionNames[a]
}

// ParseActionType maps a stored or wire action name back to its ActionType.
func ParseActionType(name string) (ActionType, error) {
	for i, n := range actionNames {
		if n == name {
			return ActionType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action type %q", name)
}

// MarshalJSON renders the action by name for wire payloads.
func (a ActionType) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// UnmarshalJSON parses an action name.
func (a *ActionType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseActionType(name)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PlayerAction reports whether the action is a decision a player may submit,
// as opposed to a dealer-recorded entry.
func (a ActionType) PlayerAction() bool {
	switch a {
	case ActionCheck, ActionCall, ActionRaise, ActionFold, ActionAllIn:
		return true
	}
	return false
}
