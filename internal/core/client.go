package core

import (
	"sync"
	"sync/atomic"
)

// ConnState is the lifecycle state of a real-time connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// allowed lists the legal transitions. Closed is terminal.
var allowed = map[ConnState][]ConnState{
	StateConnecting:     {StateAuthenticating, StateClosed},
	StateAuthenticating: {StateActive, StateClosed},
	StateActive:         {StateClosed},
}

// Client is a chat participant as seen by the core layer.
type Client struct {
	ID       string
	Identity Participant
	Token    string
	Commands chan *Command
	Events   chan *Event

	state     atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	reason *CoreError
}

// NewClient constructs a client in the Connecting state with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 32),
		closed:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Transition moves the client to next if the transition is legal.
func (c *Client) Transition(next ConnState) bool {
	for {
		cur := c.State()
		ok := false
		for _, to := range allowed[cur] {
			if to == next {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		if c.state.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

// Authenticated attaches the identity snapshot and token for the connection lifetime.
func (c *Client) Authenticated(identity Participant, token string) {
	c.Identity = identity
	c.Token = token
}

// Done is closed once the client has left the Active state for good.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// CloseReason is the error that forced the connection closed, or nil for a
// regular disconnect. Valid after Done is closed.
func (c *Client) CloseReason() *CoreError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Client) setReason(err *CoreError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason == nil {
		c.reason = err
	}
}

// close transitions to Closed and releases Done exactly once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Transition(StateClosed)
		close(c.closed)
	})
}

// deliver queues an event without blocking. Slow consumers lose events.
func (c *Client) deliver(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
