// Package reporting implements the thin fluent reporting facade
// (Session/RootAction/Action) spec §1 calls out as deliberately NOT part of
// the engineering-heavy core: it is a veneer over the Beacon Cache and
// Session Registry, modeled on the original implementation's
// ISession/IRootAction/IAction interfaces.
package reporting

// Action is a child of a RootAction: it can report events/values/errors and
// leave back to its parent ("Fluent chaining").
type Action interface {
	ReportEvent(name string) Action
	ReportValueInt(name string, value int32) Action
	ReportValueDouble(name string, value float64) Action
	ReportValueString(name string, value string) Action
	ReportError(name string, code int32, reason string) Action
	LeaveAction() RootAction
}

// RootAction is a top-level action entered directly from a Session. It can
// report like an Action and additionally spawn child Actions.
type RootAction interface {
	ReportEvent(name string) RootAction
	ReportValueInt(name string, value int32) RootAction
	ReportValueDouble(name string, value float64) RootAction
	ReportValueString(name string, value string) RootAction
	ReportError(name string, code int32, reason string) RootAction
	EnterAction(name string) Action
	LeaveAction()
}

// Session is the entry point reporting code holds onto for the duration of
// a user interaction. All methods are tolerant of misuse (spec §7, error
// kind 5): a nil or empty name degrades to a no-op rather than an error.
type Session interface {
	EnterAction(name string) RootAction
	ReportCrash(name, reason, stacktrace string) Session
	IdentifyUser(userTag string) Session
	TraceWebRequest(url string) Action
	End()
}
