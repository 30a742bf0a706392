package httpclient

import (
	"context"
	"sync"

	"github.com/openkit-go/openkit/internal/protocol"
)

// Stub is a scriptable Client for deterministic tests of the sending state
// machine ("use a virtual clock and a stub HTTP client").
type Stub struct {
	mu sync.Mutex

	StatusResponses []*protocol.StatusResponse
	StatusErr       error
	BeaconResponses []*protocol.StatusResponse
	BeaconErr       error
	NewSessionResp  *protocol.StatusResponse

	StatusCalls    int
	BeaconCalls    int
	BeaconBodies   []string
	NewSessionCall int
}

// NewStub creates an empty Stub; callers push canned responses onto the
// exported slices before exercising a state.
func NewStub() *Stub {
	return &Stub{}
}

// SendStatusRequest implements Client, returning responses in FIFO order
// and repeating the last one once exhausted.
func (s *Stub) SendStatusRequest(_ context.Context) (*protocol.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusCalls++
	if s.StatusErr != nil {
		return nil, s.StatusErr
	}
	return s.nextLocked(&s.StatusResponses), nil
}

// SendBeaconRequest implements Client.
func (s *Stub) SendBeaconRequest(_ context.Context, _ string, body string) (*protocol.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BeaconCalls++
	s.BeaconBodies = append(s.BeaconBodies, body)
	if s.BeaconErr != nil {
		return nil, s.BeaconErr
	}
	return s.nextLocked(&s.BeaconResponses), nil
}

// SendNewSessionRequest implements Client.
func (s *Stub) SendNewSessionRequest(_ context.Context) (*protocol.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NewSessionCall++
	if s.NewSessionResp != nil {
		return s.NewSessionResp, nil
	}
	return &protocol.StatusResponse{HTTPCode: 200, Capture: true}, nil
}

func (s *Stub) nextLocked(queue *[]*protocol.StatusResponse) *protocol.StatusResponse {
	if len(*queue) == 0 {
		return &protocol.StatusResponse{HTTPCode: 200, Capture: true}
	}
	next := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return next
}
