package reporting

import (
	"strconv"
	"sync/atomic"

	"github.com/openkit-go/openkit/internal/beacon"
	"github.com/openkit-go/openkit/internal/cache"
	"github.com/openkit-go/openkit/internal/clock"
	"github.com/openkit-go/openkit/internal/log"
	isession "github.com/openkit-go/openkit/internal/session"
)

// liveSession is the production Session: every call writes a serialized
// record into the Beacon Cache partition owned by handle.Number.
type liveSession struct {
	handle   *isession.Handle
	cache    *cache.Cache
	registry *isession.Registry
	clk      clock.Clock
	actionID atomic.Int32
}

// NewSession wraps an already-registered, already-configured session handle
// in the fluent reporting facade.
func NewSession(h *isession.Handle, c *cache.Cache, reg *isession.Registry, clk clock.Clock) Session {
	return &liveSession{handle: h, cache: c, registry: reg, clk: clk}
}

func (s *liveSession) nextActionID() int32 {
	return s.actionID.Add(1)
}

func (s *liveSession) EnterAction(name string) RootAction {
	if name == "" {
		log.WithComponent("reporting").Warn().Msg("enterAction called with empty name, ignoring")
		return NoOpRootAction
	}
	id := s.nextActionID()
	ts := s.clk.NowMillis()
	s.cache.AddActionData(s.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "as"},
		{Key: "na", Value: name},
		{Key: "ai", Value: strconv.Itoa(int(id))},
		{Key: "ts", Value: strconv.FormatInt(ts, 10)},
	}))
	return &liveRootAction{session: s, actionID: id, name: name}
}

func (s *liveSession) ReportCrash(name, reason, stacktrace string) Session {
	if name == "" {
		log.WithComponent("reporting").Warn().Msg("reportCrash called with empty name, ignoring")
		return s
	}
	ts := s.clk.NowMillis()
	s.cache.AddEventData(s.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "cr"},
		{Key: "na", Value: name},
		{Key: "rs", Value: reason},
		{Key: "st", Value: stacktrace},
		{Key: "ts", Value: strconv.FormatInt(ts, 10)},
	}))
	return s
}

func (s *liveSession) IdentifyUser(userTag string) Session {
	if userTag == "" {
		return s
	}
	ts := s.clk.NowMillis()
	s.cache.AddEventData(s.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "id"},
		{Key: "vl", Value: userTag},
		{Key: "ts", Value: strconv.FormatInt(ts, 10)},
	}))
	return s
}

func (s *liveSession) TraceWebRequest(url string) Action {
	if url == "" {
		return noOpAction{parent: NoOpRootAction}
	}
	id := s.nextActionID()
	ts := s.clk.NowMillis()
	s.cache.AddEventData(s.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "wr"},
		{Key: "url", Value: url},
		{Key: "ai", Value: strconv.Itoa(int(id))},
		{Key: "ts", Value: strconv.FormatInt(ts, 10)},
	}))
	return &liveAction{session: s, parent: nil, actionID: id, name: "webrequest"}
}

func (s *liveSession) End() {
	ts := s.clk.NowMillis()
	s.registry.FinishSession(s.handle, ts)
}

// liveRootAction is a top-level action entered directly from a Session.
type liveRootAction struct {
	session  *liveSession
	actionID int32
	name     string
}

func (a *liveRootAction) report(pairs []beacon.Pair) {
	ts := a.session.clk.NowMillis()
	a.session.cache.AddEventData(a.session.handle.Number, ts, beacon.EncodePairs(append(pairs, beacon.Pair{
		Key: "ai", Value: strconv.Itoa(int(a.actionID)),
	})))
}

func (a *liveRootAction) ReportEvent(name string) RootAction {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "ev"}, {Key: "na", Value: name}})
	return a
}

func (a *liveRootAction) ReportValueInt(name string, value int32) RootAction {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "vi"}, {Key: "na", Value: name}, {Key: "vl", Value: strconv.Itoa(int(value))}})
	return a
}

func (a *liveRootAction) ReportValueDouble(name string, value float64) RootAction {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "vd"}, {Key: "na", Value: name}, {Key: "vl", Value: strconv.FormatFloat(value, 'g', -1, 64)}})
	return a
}

func (a *liveRootAction) ReportValueString(name string, value string) RootAction {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "vs"}, {Key: "na", Value: name}, {Key: "vl", Value: value}})
	return a
}

func (a *liveRootAction) ReportError(name string, code int32, reason string) RootAction {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "er"}, {Key: "na", Value: name}, {Key: "ec", Value: strconv.Itoa(int(code))}, {Key: "rs", Value: reason}})
	return a
}

func (a *liveRootAction) EnterAction(name string) Action {
	if name == "" {
		log.WithComponent("reporting").Warn().Msg("enterAction called with empty name, ignoring")
		return noOpAction{parent: NoOpRootAction}
	}
	id := a.session.nextActionID()
	ts := a.session.clk.NowMillis()
	a.session.cache.AddActionData(a.session.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "as"},
		{Key: "na", Value: name},
		{Key: "ai", Value: strconv.Itoa(int(id))},
		{Key: "pi", Value: strconv.Itoa(int(a.actionID))},
	}))
	return &liveAction{session: a.session, parent: a, actionID: id, name: name}
}

func (a *liveRootAction) LeaveAction() {
	ts := a.session.clk.NowMillis()
	a.session.cache.AddActionData(a.session.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "ae"},
		{Key: "ai", Value: strconv.Itoa(int(a.actionID))},
	}))
}

// liveAction is a child of a liveRootAction.
type liveAction struct {
	session  *liveSession
	parent   *liveRootAction
	actionID int32
	name     string
}

func (a *liveAction) report(pairs []beacon.Pair) {
	ts := a.session.clk.NowMillis()
	a.session.cache.AddEventData(a.session.handle.Number, ts, beacon.EncodePairs(append(pairs, beacon.Pair{
		Key: "ai", Value: strconv.Itoa(int(a.actionID)),
	})))
}

func (a *liveAction) ReportEvent(name string) Action {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "ev"}, {Key: "na", Value: name}})
	return a
}

func (a *liveAction) ReportValueInt(name string, value int32) Action {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "vi"}, {Key: "na", Value: name}, {Key: "vl", Value: strconv.Itoa(int(value))}})
	return a
}

func (a *liveAction) ReportValueDouble(name string, value float64) Action {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "vd"}, {Key: "na", Value: name}, {Key: "vl", Value: strconv.FormatFloat(value, 'g', -1, 64)}})
	return a
}

func (a *liveAction) ReportValueString(name string, value string) Action {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "vs"}, {Key: "na", Value: name}, {Key: "vl", Value: value}})
	return a
}

func (a *liveAction) ReportError(name string, code int32, reason string) Action {
	if name == "" {
		return a
	}
	a.report([]beacon.Pair{{Key: "et", Value: "er"}, {Key: "na", Value: name}, {Key: "ec", Value: strconv.Itoa(int(code))}, {Key: "rs", Value: reason}})
	return a
}

func (a *liveAction) LeaveAction() RootAction {
	ts := a.session.clk.NowMillis()
	a.session.cache.AddActionData(a.session.handle.Number, ts, beacon.EncodePairs([]beacon.Pair{
		{Key: "et", Value: "ae"},
		{Key: "ai", Value: strconv.Itoa(int(a.actionID))},
	}))
	if a.parent != nil {
		return a.parent
	}
	return NoOpRootAction
}
