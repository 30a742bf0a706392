package sending

import (
	"github.com/openkit-go/openkit/internal/log"
)

// Machine drives the Sending Context through states until a terminal one is
// reached.
type Machine struct {
	ctx *Context
}

// NewMachine creates a Machine starting from the context's current state,
// which NewContext initializes to Init.
func NewMachine(ctx *Context) *Machine {
	return &Machine{ctx: ctx}
}

// Run is the sender thread's loop: "a single worker thread repeatedly
// invokes currentState.execute(context)". It returns as soon as an executed
// state has made a terminal state current; the terminal state's Execute is
// not run.
func (m *Machine) Run() {
	logger := log.WithComponent("sender")
	logger.Info().Msg("sending state machine started")
	for {
		state := m.ctx.CurrentState()
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("state", state.Name()).Msg("recovered panic in state execution")
				}
			}()
			state.Execute(m.ctx)
		}()
		if m.ctx.CurrentState().IsTerminalState() {
			logger.Info().Msg("sending state machine stopped")
			return
		}
	}
}
