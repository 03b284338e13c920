package app

import (
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
)

// fakeConn records every frame queued for one endpoint.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	dead   bool
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead && !c.closed
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) kill() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
}

type wireMsg struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"sessionId"`
	Reason      string          `json:"reason"`
	IsInitiator bool            `json:"isInitiator"`
	Message     string          `json:"message"`
	SDP         json.RawMessage `json:"sdp"`
	Candidate   json.RawMessage `json:"candidate"`
	Peer        struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"peer"`
}

func (c *fakeConn) messages(t *testing.T) []wireMsg {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wireMsg, 0, len(c.frames))
	for _, f := range c.frames {
		var m wireMsg
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(t *testing.T, typ string) []wireMsg {
	t.Helper()
	var out []wireMsg
	for _, m := range c.messages(t) {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	o := NewOrchestrator(Options{
		Policy:        SimplePolicy{Action: KickEndpoint},
		SessionMaxAge: time.Hour,
		Now:           clock.Now,
	})
	return o, clock
}

func connect(t *testing.T, o *Orchestrator, id domain.EndpointID) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	if _, err := o.Connect(id, "", c); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	return c
}

func join(t *testing.T, o *Orchestrator, id domain.EndpointID, name string) {
	t.Helper()
	if err := o.Join(id, name); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
}

// checkInvariants asserts the state machine and the lockstep of pool,
// session table and index.
func checkInvariants(t *testing.T, o *Orchestrator) {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[domain.EndpointID]bool)
	for _, id := range o.pool.ids {
		if seen[id] {
			t.Fatalf("%s appears twice in pool", id)
		}
		seen[id] = true
		if st, ok := o.reg.stateOf(id); !ok || st != domain.StateWaiting {
			t.Fatalf("pool member %s has state %v (registered=%v)", id, st, ok)
		}
	}
	for id, e := range o.reg.endpoints {
		_, indexed := o.sessions.index[id]
		switch e.Endpoint.State {
		case domain.StateIdle:
			if seen[id] || indexed {
				t.Fatalf("idle %s in pool=%v indexed=%v", id, seen[id], indexed)
			}
		case domain.StateWaiting:
			if !seen[id] || indexed {
				t.Fatalf("waiting %s in pool=%v indexed=%v", id, seen[id], indexed)
			}
		case domain.StatePaired:
			if seen[id] || !indexed {
				t.Fatalf("paired %s in pool=%v indexed=%v", id, seen[id], indexed)
			}
		}
	}
	for sid, s := range o.sessions.sessions {
		if s.Members[0] == s.Members[1] {
			t.Fatalf("session %s pairs %s with itself", sid, s.Members[0])
		}
		for _, m := range s.Members {
			if st, ok := o.reg.stateOf(m); !ok || st != domain.StatePaired {
				t.Fatalf("session %s member %s state %v registered=%v", sid, m, st, ok)
			}
			if o.sessions.index[m] != sid {
				t.Fatalf("session %s member %s indexed to %q", sid, m, o.sessions.index[m])
			}
		}
	}
	for id, sid := range o.sessions.index {
		s, ok := o.sessions.sessions[sid]
		if !ok || !s.Has(id) {
			t.Fatalf("index %s -> %s dangles", id, sid)
		}
	}
}
