package sending

// TerminalState ends the worker loop: Execute is a no-op and
// IsTerminalState is true.
type TerminalState struct{}

// Name implements State.
func (s *TerminalState) Name() string { return "Terminal" }

// IsTerminalState implements State.
func (s *TerminalState) IsTerminalState() bool { return true }

// GetShutdownState implements State: already terminal.
func (s *TerminalState) GetShutdownState() State { return s }

// Execute implements State: a no-op.
func (s *TerminalState) Execute(ctx *Context) {
	ctx.SetNextState(s)
}
