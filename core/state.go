package core

// AgentState is the behavioral state of one agent. Every agent instance has
// exactly one current state at any instant; changes between states flow
// through the transition ledger so each one leaves a signed proof.
type AgentState string

const (
	// StateIdle is the initial state before the worker runtime boots.
	StateIdle AgentState = "IDLE"
	// StateInit covers worker startup: keypair setup, ledger creation.
	StateInit AgentState = "INIT"
	// StateGoalParse is entered when a new goal message is being interpreted.
	StateGoalParse AgentState = "GOAL_PARSE"
	// StatePlanning is entered while the agent decomposes the goal.
	StatePlanning AgentState = "PLANNING"
	// StateExecuting is entered while the agent carries out planned steps.
	StateExecuting AgentState = "EXECUTING"
	// StateValidating is entered while execution results are checked.
	StateValidating AgentState = "VALIDATING"
	// StateReporting is entered while the agent assembles its result.
	StateReporting AgentState = "REPORTING"
	// StateCompleted marks a finished goal cycle; a new goal may follow.
	StateCompleted AgentState = "COMPLETED"
	// StateError marks a failed cycle; recovery re-enters via INIT.
	StateError AgentState = "ERROR"
	// StateTerminated is terminal. No outgoing edges exist.
	StateTerminated AgentState = "TERMINATED"
)

// Transitions is the static adjacency table of legal state changes. It is
// defined once and never mutated. StateTerminated has no entry, making it
// terminal by construction; StateError is reachable from every working state
// so a failure at any point in the cycle can be recorded.
var Transitions = map[AgentState][]AgentState{
	StateIdle:       {StateInit, StateTerminated},
	StateInit:       {StateGoalParse, StateError, StateTerminated},
	StateGoalParse:  {StatePlanning, StateError},
	StatePlanning:   {StateExecuting, StateError},
	StateExecuting:  {StateValidating, StateError},
	StateValidating: {StateReporting, StateExecuting, StateError},
	StateReporting:  {StateCompleted, StateError},
	StateCompleted:  {StateGoalParse, StateTerminated},
	StateError:      {StateInit, StateTerminated},
}

// CanTransition reports whether the edge from -> to exists in the adjacency
// table.
func CanTransition(from, to AgentState) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing edges.
func IsTerminal(s AgentState) bool { return len(Transitions[s]) == 0 }
