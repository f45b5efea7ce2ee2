package domain

import "fmt"

// State names the handler that runs the next turn of a session.
type State string

const (
	StateIntentRouter         State = "intent_router"
	StatePurchaseRetrieval    State = "purchase_retrieval"
	StateAwaitOrderSelection  State = "await_order_selection"
	StateReturnClassification State = "return_classification"
	StateReturnProcessing     State = "return_processing"
	StateLogistics            State = "logistics"
	StateAwaitUserResponse    State = "await_user_response"
	StateTrackingRefund       State = "tracking_refund"
	StateEscalate             State = "escalate"
	StateEnd                  State = "end"
)

// States lists every reachable state.
var States = []State{
	StateIntentRouter,
	StatePurchaseRetrieval,
	StateAwaitOrderSelection,
	StateReturnClassification,
	StateReturnProcessing,
	StateLogistics,
	StateAwaitUserResponse,
	StateTrackingRefund,
	StateEscalate,
	StateEnd,
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := Transitions[s]
	return ok
}

// Terminal reports whether the conversation is over and the session may be
// torn down.
func (s State) Terminal() bool {
	return s == StateEnd || s == StateEscalate
}

// Transitions lists, per state, the states its handler may hand off to.
// Every handler may restart at the intent router.
var Transitions = map[State][]State{
	StateIntentRouter: {
		StatePurchaseRetrieval, StateTrackingRefund, StateLogistics,
	},
	StatePurchaseRetrieval: {
		StateAwaitOrderSelection, StateReturnClassification, StatePurchaseRetrieval, StateEnd,
	},
	StateAwaitOrderSelection: {
		StateAwaitOrderSelection, StateReturnClassification, StatePurchaseRetrieval, StateEnd,
	},
	StateReturnClassification: {
		StateReturnProcessing, StatePurchaseRetrieval, StateEnd,
	},
	StateReturnProcessing: {
		StateLogistics, StatePurchaseRetrieval, StateEnd,
	},
	StateLogistics: {
		StateAwaitUserResponse, StateTrackingRefund, StateEnd,
	},
	StateAwaitUserResponse: {
		StateAwaitUserResponse, StateTrackingRefund, StateEnd,
	},
	StateTrackingRefund: {
		StateTrackingRefund, StateEscalate, StateEnd,
	},
	StateEscalate: {
		StatePurchaseRetrieval, StateTrackingRefund, StateLogistics,
	},
	StateEnd: {
		StatePurchaseRetrieval, StateTrackingRefund, StateLogistics,
	},
}

// CanTransition reports whether a handler running in from may hand off to to.
func CanTransition(from, to State) bool {
	if to == StateIntentRouter {
		return to.Valid()
	}
	for _, candidate := range Transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func validateTransitions() error {
	for _, s := range States {
		if _, ok := Transitions[s]; !ok {
			return fmt.Errorf("state %q has no transition entry", s)
		}
	}
	for from, targets := range Transitions {
		for _, to := range targets {
			if _, ok := Transitions[to]; !ok {
				return fmt.Errorf("transition %s -> %s targets unknown state", from, to)
			}
		}
	}
	if len(Transitions) != len(States) {
		return fmt.Errorf("transition table has %d states, want %d", len(Transitions), len(States))
	}
	return nil
}

func init() {
	if err := validateTransitions(); err != nil {
		panic(err)
	}
}
