package loginflow

import (
	"fmt"
	"log/slog"
)

type State int

const (
	StateStart State = iota
	StateCredentialsChecked
	StateNoChallengeRequired
	StateChallengeIssued
	StateChallengeVerified
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCredentialsChecked:
		return "credentials_checked"
	case StateNoChallengeRequired:
		return "no_challenge_required"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateChallengeVerified:
		return "challenge_verified"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateRejected
}

var transitions = map[State][]State{
	StateStart:               {StateCredentialsChecked},
	StateCredentialsChecked:  {StateNoChallengeRequired, StateChallengeIssued},
	StateNoChallengeRequired: {StateAuthenticated},
	StateChallengeIssued:     {StateChallengeVerified},
	StateChallengeVerified:   {StateAuthenticated},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateRejected {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// flow tracks one attempt through the state machine.
type flow struct {
	operation string
	state     State
}

func newFlow(operation string, start State) *flow {
	return &flow{operation: operation, state: start}
}

func (f *flow) advance(to State) error {
	if !CanTransition(f.state, to) {
		return fmt.Errorf("illegal login flow transition %s -> %s", f.state, to)
	}
	slog.Debug("Login flow transition", "operation", f.operation, "from", f.state, "to", to)
	f.state = to
	return nil
}

// reject moves to Rejected. Rejecting an already terminal flow is a no-op.
func (f *flow) reject() {
	if f.state.Terminal() {
		return
	}
	slog.Debug("Login flow transition", "operation", f.operation, "from", f.state, "to", StateRejected)
	f.state = StateRejected
}
