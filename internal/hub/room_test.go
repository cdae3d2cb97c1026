package hub

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTestClient builds a client that never runs its pumps; delivered frames
// accumulate in its send queue.
func newTestClient(t *testing.T, room *Room, username string) *Client {
	t.Helper()
	return NewClient(nil, username, room, zerolog.Nop())
}

func recvEvent(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case b := <-c.send:
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("unmarshal delivered frame: %v", err)
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("unexpected event delivered: %s", b)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func usersOf(t *testing.T, ev map[string]any) []string {
	t.Helper()
	raw, ok := ev["users"].([]any)
	if !ok {
		t.Fatalf("event has no users field: %v", ev)
	}
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		out = append(out, u.(string))
	}
	return out
}

func TestJoinBroadcastsNoticeThenRoster(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	rm.Join(alice)

	ev := recvEvent(t, alice)
	if ev["type"] != KindSystem || ev["text"] != "alice joined" {
		t.Fatalf("expected system join notice, got %v", ev)
	}
	if got := usersOf(t, ev); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected roster [alice], got %v", got)
	}

	ev = recvEvent(t, alice)
	if ev["type"] != KindUsers {
		t.Fatalf("expected users event, got %v", ev)
	}
	if got := usersOf(t, ev); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected roster [alice], got %v", got)
	}
}

func TestSecondJoinNotifiesEveryone(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	bob := newTestClient(t, rm, "bob")
	rm.Join(alice)
	drain(alice)
	rm.Join(bob)

	for _, c := range []*Client{alice, bob} {
		ev := recvEvent(t, c)
		if ev["type"] != KindSystem || ev["text"] != "bob joined" {
			t.Fatalf("%s: expected bob's join notice, got %v", c.Username, ev)
		}
		if got := usersOf(t, ev); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
			t.Fatalf("%s: expected roster [alice bob], got %v", c.Username, got)
		}
		if ev = recvEvent(t, c); ev["type"] != KindUsers {
			t.Fatalf("%s: expected users event, got %v", c.Username, ev)
		}
	}
}

func TestLeaveNotifiesRemainingMembers(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	bob := newTestClient(t, rm, "bob")
	rm.Join(alice)
	rm.Join(bob)
	drain(alice)
	drain(bob)

	rm.Leave(alice)

	ev := recvEvent(t, bob)
	if ev["type"] != KindSystem || ev["text"] != "alice left" {
		t.Fatalf("expected leave notice, got %v", ev)
	}
	if got := usersOf(t, ev); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("expected roster [bob], got %v", got)
	}
	if ev = recvEvent(t, bob); ev["type"] != KindUsers {
		t.Fatalf("expected users event, got %v", ev)
	}

	// The departed member receives nothing.
	assertNoEvent(t, alice)

	// A second Leave for the same client is a no-op.
	rm.Leave(alice)
	assertNoEvent(t, bob)

	if rm.Len() != 1 {
		t.Fatalf("expected 1 member, got %d", rm.Len())
	}
}

func TestDispatchMessageReachesSenderToo(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	bob := newTestClient(t, rm, "bob")
	rm.Join(alice)
	rm.Join(bob)
	drain(alice)
	drain(bob)

	before := time.Now().UnixMilli()
	rm.Dispatch(alice, []byte(`{"type":"message","text":"hi"}`))

	for _, c := range []*Client{alice, bob} {
		ev := recvEvent(t, c)
		if ev["type"] != KindMessage || ev["text"] != "hi" || ev["username"] != "alice" {
			t.Fatalf("%s: unexpected message event %v", c.Username, ev)
		}
		if at := int64(ev["at"].(float64)); at < before {
			t.Fatalf("%s: timestamp %d predates dispatch", c.Username, at)
		}
	}
}

func TestDispatchTruncatesLongMessages(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	rm.Join(alice)
	drain(alice)

	long := strings.Repeat("x", MaxMessageBytes+500)
	frame, _ := json.Marshal(map[string]string{"type": "message", "text": long})
	rm.Dispatch(alice, frame)

	ev := recvEvent(t, alice)
	if got := len(ev["text"].(string)); got != MaxMessageBytes {
		t.Fatalf("expected text truncated to %d bytes, got %d", MaxMessageBytes, got)
	}
}

func TestDispatchTypingBothStates(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	bob := newTestClient(t, rm, "bob")
	rm.Join(alice)
	rm.Join(bob)
	drain(alice)
	drain(bob)

	for _, state := range []bool{true, false} {
		frame, _ := json.Marshal(map[string]any{"type": "typing", "isTyping": state})
		rm.Dispatch(alice, frame)

		for _, c := range []*Client{alice, bob} {
			ev := recvEvent(t, c)
			if ev["type"] != KindTyping || ev["username"] != "alice" || ev["isTyping"] != state {
				t.Fatalf("%s: unexpected typing event %v (want isTyping=%v)", c.Username, ev, state)
			}
		}
	}
}

func TestDispatchSignalSkipsSender(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	bob := newTestClient(t, rm, "bob")
	carol := newTestClient(t, rm, "carol")
	for _, c := range []*Client{alice, bob, carol} {
		rm.Join(c)
	}
	for _, c := range []*Client{alice, bob, carol} {
		drain(c)
	}

	rm.Dispatch(bob, []byte(`{"type":"signal","signal":{"sdp":"offer","nested":[1,2,3]}}`))

	for _, c := range []*Client{alice, carol} {
		ev := recvEvent(t, c)
		if ev["type"] != KindSignal || ev["from"] != "bob" {
			t.Fatalf("%s: unexpected signal event %v", c.Username, ev)
		}
		sig, ok := ev["signal"].(map[string]any)
		if !ok || sig["sdp"] != "offer" {
			t.Fatalf("%s: signal payload not relayed verbatim: %v", c.Username, ev["signal"])
		}
	}

	assertNoEvent(t, bob)
}

func TestDispatchDropsGarbage(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	rm.Join(alice)
	drain(alice)

	tests := []struct {
		name  string
		frame string
	}{
		{"not json", "this is not json"},
		{"unknown kind", `{"type":"dance","text":"hi"}`},
		{"empty object", `{}`},
		{"wrong shape", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm.Dispatch(alice, []byte(tt.frame))
			assertNoEvent(t, alice)
		})
	}
}

func TestDispatchTouchesActivity(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	rm.Join(alice)
	drain(alice)

	stale := time.Now().Add(-time.Hour)
	rm.mu.Lock()
	rm.lastActivity = stale
	rm.mu.Unlock()

	// Even an unparseable frame counts as activity.
	rm.Dispatch(alice, []byte("garbage"))

	if !rm.LastActivity().After(stale) {
		t.Fatal("dispatch did not touch lastActivity")
	}
}

func TestLeaveOfLastMemberRestartsIdleClock(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	rm.Join(alice)
	drain(alice)

	before := time.Now()
	rm.Leave(alice)

	if !rm.Empty() {
		t.Fatal("room should be empty")
	}
	if rm.LastActivity().Before(before) {
		t.Fatal("idle clock should restart when the room empties")
	}
}

func TestConcurrentJoinsKeepRosterMonotonic(t *testing.T) {
	const n = 8

	for iter := 0; iter < 50; iter++ {
		rm := NewRoom("r1")
		observer := newTestClient(t, rm, "observer")
		rm.Join(observer)
		drain(observer)

		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				rm.Join(newTestClient(t, rm, fmt.Sprintf("user-%d", i)))
			}(i)
		}
		wg.Wait()

		// With joins only, each frame the observer sees must carry a
		// roster at least as large as the previous one.
		last := 1
		for done := false; !done; {
			select {
			case b := <-observer.send:
				var ev struct {
					Users []string `json:"users"`
				}
				if err := json.Unmarshal(b, &ev); err != nil {
					t.Fatalf("unmarshal delivered frame: %v", err)
				}
				if len(ev.Users) < last {
					t.Fatalf("iter %d: roster shrank from %d to %d with no leaves", iter, last, len(ev.Users))
				}
				last = len(ev.Users)
			default:
				done = true
			}
		}
		if last != n+1 {
			t.Fatalf("iter %d: final roster has %d members, want %d", iter, last, n+1)
		}
	}
}

func TestBroadcastNeverBlocksOnFullQueue(t *testing.T) {
	rm := NewRoom("r1")
	alice := newTestClient(t, rm, "alice")
	stuck := newTestClient(t, rm, "stuck")
	rm.Join(alice)
	rm.Join(stuck)
	drain(alice)

	// Fill the stuck peer's queue to the brim.
	for i := 0; i < sendBuffer*2; i++ {
		stuck.enqueue([]byte(`{"type":"users","users":[]}`))
	}

	done := make(chan struct{})
	go func() {
		rm.Dispatch(alice, []byte(`{"type":"message","text":"still here"}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full peer queue")
	}

	ev := recvEvent(t, alice)
	if ev["type"] != KindMessage || ev["text"] != "still here" {
		t.Fatalf("healthy peer missed the message: %v", ev)
	}
}
