// Package wizard models the booking form's selection state machine on the
// server. The embedded client script implements the same transitions; this
// package drives submission previews and pins the behavior down in tests.
package wizard

import (
	"errors"
	"fmt"
)

// State is the position on the menu/submenu selection axis.
type State string

const (
	StateNoMenu          State = "no_menu_selected"
	StateLeaf            State = "leaf_selected"
	StateAwaitingSubmenu State = "awaiting_submenu"
	StateSubmenu         State = "submenu_selected"
)

var (
	ErrInvalidTransition = errors.New("invalid selection transition")
	ErrUnknownMenu       = errors.New("unknown menu")
	ErrUnknownSubmenu    = errors.New("unknown submenu item")
	ErrUnknownOption     = errors.New("unknown option")
	ErrDateTimeHidden    = errors.New("date and time are not selectable until a menu is chosen")
	ErrNotMultipleDates  = errors.New("alternate dates are only used in multiple-dates mode")
)

// transitions lists the allowed moves. Switching to a different menu always
// passes through StateNoMenu so that no prior selection survives.
var transitions = map[State][]State{
	StateNoMenu:          {StateLeaf, StateAwaitingSubmenu},
	StateLeaf:            {StateNoMenu},
	StateAwaitingSubmenu: {StateSubmenu, StateNoMenu},
	StateSubmenu:         {StateSubmenu, StateNoMenu},
}

// CanTransition checks if the move is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state exposes totals and the date/time block.
func (s State) Terminal() bool {
	return s == StateLeaf || s == StateSubmenu
}

func (s *Session) transition(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}
