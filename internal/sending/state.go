package sending

// State is one state of the Beacon Sending State Machine. A
// single worker goroutine repeatedly calls Execute on the context's current
// state; the state itself decides the next state via context.SetNextState.
type State interface {
	// Execute runs one turn of this state's behavior and calls
	// ctx.SetNextState before returning.
	Execute(ctx *Context)
	// IsTerminalState reports whether this is a final state: the worker
	// loop stops as soon as such a state becomes current.
	IsTerminalState() bool
	// GetShutdownState returns the state this state would transition to
	// if a shutdown were requested right now, without actually executing
	// the transition. Used by tests and by states composing behavior.
	GetShutdownState() State
	// Name identifies the state for logging and metrics.
	Name() string
}
