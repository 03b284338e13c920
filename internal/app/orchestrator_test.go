package app

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/protocol"
)

func TestFIFOPairing(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ids := []domain.EndpointID{"e1", "e2", "e3", "e4"}
	for _, id := range ids {
		connect(t, o, id)
	}
	for _, id := range ids {
		join(t, o, id, "")
		checkInvariants(t, o)
	}

	s1, ok := o.SessionFor("e1")
	if !ok || s1.Members != [2]domain.EndpointID{"e1", "e2"} || s1.ID != "room-1" {
		t.Fatalf("first session = %+v, %v", s1, ok)
	}
	s2, ok := o.SessionFor("e3")
	if !ok || s2.Members != [2]domain.EndpointID{"e3", "e4"} || s2.ID != "room-2" {
		t.Fatalf("second session = %+v, %v", s2, ok)
	}
	if w := o.Waiting(); len(w) != 0 {
		t.Errorf("pool not drained: %v", w)
	}
}

func TestScenarioAliceAndBob(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	alice := connect(t, o, "alice-id")
	bob := connect(t, o, "bob-id")

	join(t, o, "alice-id", "Alice")
	if got := alice.ofType(t, "waiting"); len(got) != 1 || got[0].Message != protocol.WaitingMessage {
		t.Fatalf("alice waiting = %+v", got)
	}
	join(t, o, "bob-id", "Bob")

	am := alice.ofType(t, "matched")
	bm := bob.ofType(t, "matched")
	if len(am) != 1 || len(bm) != 1 {
		t.Fatalf("matched alice=%d bob=%d", len(am), len(bm))
	}
	if am[0].SessionID != "room-1" || bm[0].SessionID != "room-1" {
		t.Fatalf("session ids %q %q", am[0].SessionID, bm[0].SessionID)
	}
	if !am[0].IsInitiator || bm[0].IsInitiator {
		t.Fatalf("initiator alice=%v bob=%v", am[0].IsInitiator, bm[0].IsInitiator)
	}
	if am[0].Peer.DisplayName != "Bob" || am[0].Peer.ID != "bob-id" || bm[0].Peer.DisplayName != "Alice" {
		t.Fatalf("peer info alice=%+v bob=%+v", am[0].Peer, bm[0].Peer)
	}
	if len(bob.ofType(t, "waiting")) != 0 {
		t.Error("bob should be matched without a waiting ack")
	}

	offer := &protocol.Offer{SessionID: "room-1", SDP: json.RawMessage(`"sdpA"`)}
	if err := o.Relay("alice-id", offer); err != nil {
		t.Fatalf("relay offer: %v", err)
	}
	bo := bob.ofType(t, "offer")
	if len(bo) != 1 || bo[0].SessionID != "room-1" || string(bo[0].SDP) != `"sdpA"` {
		t.Fatalf("bob offer = %+v", bo)
	}

	answer := &protocol.Answer{SessionID: "room-1", SDP: json.RawMessage(`"sdpB"`)}
	if err := o.Relay("bob-id", answer); err != nil {
		t.Fatalf("relay answer: %v", err)
	}
	aa := alice.ofType(t, "answer")
	if len(aa) != 1 || string(aa[0].SDP) != `"sdpB"` {
		t.Fatalf("alice answer = %+v", aa)
	}

	if !o.Disconnect("alice-id") {
		t.Fatal("disconnect alice")
	}
	closed := bob.ofType(t, "session-closed")
	if len(closed) != 1 || closed[0].SessionID != "room-1" || closed[0].Reason != string(domain.ReasonPeerDisconnected) {
		t.Fatalf("bob session-closed = %+v", closed)
	}
	if _, ok := o.SessionFor("bob-id"); ok {
		t.Error("bob still indexed")
	}
	o.mu.Lock()
	_, exists := o.sessions.sessions["room-1"]
	o.mu.Unlock()
	if exists {
		t.Error("room-1 still in the table")
	}
	if e, _ := o.Endpoint("bob-id"); e.State != domain.StateIdle {
		t.Errorf("bob state = %v", e.State)
	}
	checkInvariants(t, o)
}

func TestAtomicTeardownOnLeave(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	a := connect(t, o, "a")
	b := connect(t, o, "b")
	join(t, o, "a", "")
	join(t, o, "b", "")

	if err := o.Leave("a", "room-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	checkInvariants(t, o)

	for _, id := range []domain.EndpointID{"a", "b"} {
		if _, ok := o.SessionFor(id); ok {
			t.Errorf("%s still in a session", id)
		}
	}
	ac := a.ofType(t, "session-closed")
	bc := b.ofType(t, "session-closed")
	if len(ac) != 1 || ac[0].Reason != string(domain.ReasonExplicitClose) {
		t.Errorf("a session-closed = %+v", ac)
	}
	if len(bc) != 1 || bc[0].Reason != string(domain.ReasonPeerLeft) {
		t.Errorf("b session-closed = %+v", bc)
	}

	err := o.Leave("a", "room-1")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second leave err = %v", err)
	}
	o.mu.Lock()
	again := o.sessions.teardown("room-1", domain.ReasonStale, "")
	o.mu.Unlock()
	if again {
		t.Error("teardown of a removed session must be a no-op")
	}
	if len(b.ofType(t, "session-closed")) != 1 {
		t.Error("duplicate session-closed")
	}
}

func TestLeaveWithoutSessionIDLeavesPool(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "a")
	join(t, o, "a", "")
	if err := o.Leave("a", ""); err != nil {
		t.Fatal(err)
	}
	if e, _ := o.Endpoint("a"); e.State != domain.StateIdle {
		t.Errorf("state = %v", e.State)
	}
	if len(o.Waiting()) != 0 {
		t.Error("pool not empty")
	}
	checkInvariants(t, o)
}

func TestLeaveByOutsiderRejected(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "a")
	connect(t, o, "b")
	connect(t, o, "c")
	join(t, o, "a", "")
	join(t, o, "b", "")

	if err := o.Leave("c", "room-1"); !errors.Is(err, domain.ErrUnauthorizedRelay) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := o.SessionFor("a"); !ok {
		t.Error("outsider tore down the session")
	}
}

func TestRelayIsolation(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	conns := map[domain.EndpointID]*fakeConn{}
	for _, id := range []domain.EndpointID{"a", "b", "c", "d"} {
		conns[id] = connect(t, o, id)
		join(t, o, id, "")
	}

	err := o.Relay("a", &protocol.ICECandidate{SessionID: "room-2", Candidate: json.RawMessage(`{"candidate":"x"}`)})
	if !errors.Is(err, domain.ErrUnauthorizedRelay) {
		t.Fatalf("cross-session relay err = %v", err)
	}
	for _, id := range []domain.EndpointID{"b", "c", "d"} {
		if got := conns[id].ofType(t, "ice-candidate"); len(got) != 0 {
			t.Errorf("%s received %d candidates", id, len(got))
		}
	}
	if got := conns["a"].ofType(t, "session-closed"); len(got) != 0 {
		t.Errorf("unauthorized sender was answered: %+v", got)
	}

	err = o.Relay("a", &protocol.Offer{SessionID: "room-99", SDP: json.RawMessage(`"x"`)})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("unknown session err = %v", err)
	}
	sc := conns["a"].ofType(t, "session-closed")
	if len(sc) != 1 || sc[0].SessionID != "room-99" || sc[0].Reason != string(domain.ReasonStale) {
		t.Errorf("sender notice = %+v", sc)
	}

	if err := o.Relay("c", &protocol.ICECandidate{SessionID: "room-2", Candidate: json.RawMessage(`{"candidate":"y"}`)}); err != nil {
		t.Fatal(err)
	}
	if got := conns["d"].ofType(t, "ice-candidate"); len(got) != 1 || string(got[0].Candidate) != `{"candidate":"y"}` {
		t.Errorf("d candidates = %+v", got)
	}
	if got := conns["b"].ofType(t, "ice-candidate"); len(got) != 0 {
		t.Errorf("b leaked %d candidates", len(got))
	}
}

func TestRaceSurvivalDeadJoiner(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "e1")
	e2 := connect(t, o, "e2")
	connect(t, o, "e3")

	join(t, o, "e1", "")
	e2.kill()
	join(t, o, "e2", "")
	checkInvariants(t, o)

	if w := o.Waiting(); len(w) != 1 || w[0] != "e1" {
		t.Fatalf("pool = %v, want [e1]", w)
	}
	if e, _ := o.Endpoint("e2"); e.State != domain.StateIdle {
		t.Errorf("e2 state = %v", e.State)
	}

	join(t, o, "e3", "")
	s, ok := o.SessionFor("e1")
	if !ok || s.Members != [2]domain.EndpointID{"e1", "e3"} {
		t.Fatalf("session = %+v, %v", s, ok)
	}
	checkInvariants(t, o)
}

func TestRaceSurvivalKeepsSeniority(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "e1")
	connect(t, o, "e2")

	// A disconnect notification that never reached the pool leaves a ghost
	// at the head of the queue.
	o.mu.Lock()
	o.pool.ids = append(o.pool.ids, "ghost")
	o.mu.Unlock()

	join(t, o, "e1", "")
	if w := o.Waiting(); len(w) != 1 || w[0] != "e1" {
		t.Fatalf("pool = %v, want [e1]", w)
	}
	join(t, o, "e2", "")
	s, ok := o.SessionFor("e1")
	if !ok || s.Members[0] != "e1" || s.Members[1] != "e2" {
		t.Fatalf("session = %+v, %v", s, ok)
	}
	checkInvariants(t, o)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "a")
	b := connect(t, o, "b")
	join(t, o, "a", "")
	join(t, o, "b", "")

	if !o.Disconnect("a") {
		t.Fatal("first disconnect")
	}
	before := o.Stats()
	if o.Disconnect("a") {
		t.Error("second disconnect reported a removal")
	}
	if after := o.Stats(); after != before {
		t.Errorf("stats changed: %+v -> %+v", before, after)
	}
	if got := b.ofType(t, "session-closed"); len(got) != 1 {
		t.Errorf("b got %d session-closed", len(got))
	}
	checkInvariants(t, o)
}

func TestDisconnectWhileWaiting(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "a")
	join(t, o, "a", "")
	o.Disconnect("a")
	if len(o.Waiting()) != 0 {
		t.Error("pool still holds a")
	}
	if _, ok := o.Endpoint("a"); ok {
		t.Error("a still registered")
	}
	checkInvariants(t, o)
}

func TestDuplicateConnectKeepsExisting(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.Connect("a", "First", &fakeConn{}); err != nil {
		t.Fatal(err)
	}
	_, err := o.Connect("a", "Second", &fakeConn{})
	if !errors.Is(err, domain.ErrDuplicateEndpoint) {
		t.Fatalf("err = %v", err)
	}
	if e, _ := o.Endpoint("a"); e.DisplayName != "First" {
		t.Errorf("name = %q", e.DisplayName)
	}
}

func TestJoinWhileWaitingOrPaired(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	a := connect(t, o, "a")
	b := connect(t, o, "b")

	join(t, o, "a", "")
	join(t, o, "a", "")
	if got := a.ofType(t, "waiting"); len(got) != 2 {
		t.Errorf("waiting acks = %d", len(got))
	}
	if w := o.Waiting(); len(w) != 1 {
		t.Errorf("pool = %v", w)
	}

	join(t, o, "b", "")
	join(t, o, "b", "Renamed")
	if got := b.ofType(t, "matched"); len(got) != 1 {
		t.Errorf("b matched = %d", len(got))
	}
	if e, _ := o.Endpoint("b"); e.DisplayName == "Renamed" {
		t.Error("paired endpoint renamed by join")
	}
	checkInvariants(t, o)
}

func TestJoinUnknownEndpoint(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if err := o.Join("nobody", ""); !errors.Is(err, domain.ErrEndpointNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRejoinAfterTeardown(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "a")
	connect(t, o, "b")
	join(t, o, "a", "")
	join(t, o, "b", "")
	if err := o.Leave("b", ""); err != nil {
		t.Fatal(err)
	}
	join(t, o, "b", "")
	join(t, o, "a", "")
	s, ok := o.SessionFor("a")
	if !ok || s.ID != "room-2" || s.Members != [2]domain.EndpointID{"b", "a"} {
		t.Fatalf("session = %+v, %v", s, ok)
	}
}

func TestCreateSessionAssertsPreconditions(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	connect(t, o, "a")
	connect(t, o, "b")

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.sessions.create("a", "b", o.now()); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Errorf("idle members err = %v", err)
	}
	o.pool.enqueue("a")
	if _, err := o.sessions.create("a", "a", o.now()); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Errorf("same member err = %v", err)
	}
	if o.sessions.len() != 0 {
		t.Error("session created despite failed assertion")
	}
}

func TestRandomEventsKeepInvariants(t *testing.T) {
	o, clock := newTestOrchestrator(t)
	rng := rand.New(rand.NewSource(42))
	conns := map[domain.EndpointID]*fakeConn{}
	next := 0

	pick := func() domain.EndpointID {
		if len(conns) == 0 {
			return "missing"
		}
		n := rng.Intn(len(conns))
		for id := range conns {
			if n == 0 {
				return id
			}
			n--
		}
		return "missing"
	}

	for step := 0; step < 2000; step++ {
		switch rng.Intn(8) {
		case 0:
			id := domain.EndpointID(fmt.Sprintf("e%d", next))
			next++
			conns[id] = connect(t, o, id)
		case 1, 2:
			_ = o.Join(pick(), "")
		case 3:
			id := pick()
			if s, ok := o.SessionFor(id); ok && rng.Intn(2) == 0 {
				_ = o.Leave(id, s.ID)
			} else {
				_ = o.Leave(id, "")
			}
		case 4:
			id := pick()
			o.Disconnect(id)
			delete(conns, id)
		case 5:
			id := pick()
			sid := domain.SessionID(fmt.Sprintf("room-%d", rng.Intn(next+1)))
			_ = o.Relay(id, &protocol.Offer{SessionID: sid, SDP: json.RawMessage(`"x"`)})
		case 6:
			if c, ok := conns[pick()]; ok {
				c.kill()
			}
		case 7:
			clock.Advance(10 * time.Minute)
			o.Sweep()
		}
		checkInvariants(t, o)
	}
}
