package game

// validate checks an action's legality before anything mutates.
func (h *Hand) validate(p *Player, action ActionType, amount int64) error {
	if !p.CanAct() {
		return Errf(CodeIllegalAction, "player %s cannot act", p.UserID)
	}
	if amount < 0 {
		return E(CodeInvalidAmount, "amount cannot be negative")
	}
	toCall := h.Round.BetToMatch - p.StreetBet

	switch action {
	case ActionFold:
		return nil

	case ActionCheck:
		if toCall > 0 {
			return Errf(CodeIllegalAction, "cannot check facing a bet of %d", h.Round.BetToMatch)
		}
		return nil

	case ActionCall:
		if toCall <= 0 {
			return E(CodeIllegalAction, "nothing to call")
		}
		return nil

	case ActionRaise:
		if h.Round.barred[p.Seat] {
			return E(CodeIllegalAction, "betting is closed for this street")
		}
		if amount <= h.Round.BetToMatch {
			return Errf(CodeInvalidAmount, "raise must exceed the current bet of %d", h.Round.BetToMatch)
		}
		if amount < h.Round.MinRaiseTo() {
			return Errf(CodeInvalidAmount, "minimum raise is to %d", h.Round.MinRaiseTo())
		}
		if amount-p.StreetBet > p.Stack {
			return Errf(CodeInsufficientChips, "not enough chips to raise to %d", amount)
		}
		return nil

	case ActionAllIn:
		if p.Stack <= 0 {
			return E(CodeIllegalAction, "no chips left")
		}
		if h.Round.barred[p.Seat] && p.StreetBet+p.Stack > h.Round.BetToMatch {
			return E(CodeIllegalAction, "betting is closed for this street")
		}
		return nil
	}
	return Errf(CodeIllegalAction, "unsupported action %s", action)
}

// ValidAction describes one legal action with its amount bounds. For CALL
// the bounds are the chips to add; for RAISE the street total to raise to;
// for ALL_IN the street total committed.
type ValidAction struct {
	Type ActionType `json:"type"`
	Min  int64      `json:"min,omitempty"`
	Max  int64      `json:"max,omitempty"`
}

// ValidActions lists the legal actions for the player due to act, or nil
// when no action is pending.
func (h *Hand) ValidActions() []ValidAction {
	if !h.State.Betting() || h.CurrentSeat < 0 {
		return nil
	}
	p := h.PlayerAt(h.CurrentSeat)
	if p == nil || !p.CanAct() {
		return nil
	}

	toCall := h.Round.BetToMatch - p.StreetBet
	actions := []ValidAction{{Type: ActionFold}}
	if toCall <= 0 {
		actions = append(actions, ValidAction{Type: ActionCheck})
	} else {
		call := toCall
		if call > p.Stack {
			call = p.Stack
		}
		actions = append(actions, ValidAction{Type: ActionCall, Min: call, Max: call})
	}
	allIn := p.StreetBet + p.Stack
	if !h.Round.barred[p.Seat] && allIn >= h.Round.MinRaiseTo() {
		actions = append(actions, ValidAction{Type: ActionRaise, Min: h.Round.MinRaiseTo(), Max: allIn})
	}
	if p.Stack > 0 && (!h.Round.barred[p.Seat] || allIn <= h.Round.BetToMatch) {
		actions = append(actions, ValidAction{Type: ActionAllIn, Min: allIn, Max: allIn})
	}
	return actions
}
