package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"

	"ddt.game/internal/protocol"
	"ddt.game/internal/stream"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return New(NewQueue(), Options{Logger: log.New(io.Discard, "", 0)})
}

func frame(cmd, reqID string, code int, msg, data string) []byte {
	b, _ := json.Marshal(protocol.Reply{Cmd: cmd, ReqID: reqID, Code: code, Msg: msg, Data: data})
	return b
}

func TestDrainPreservesArrivalOrder(t *testing.T) {
	d := newTestDispatcher(t)
	var got []string
	d.Register("a", NewHandler(func(reqID string, _ int, _, _ string) { got = append(got, "a:"+reqID) }))
	d.Register("b", NewHandler(func(reqID string, _ int, _, _ string) { got = append(got, "b:"+reqID) }))

	want := []string{}
	for i := 0; i < 50; i++ {
		cmd := "a"
		if i%3 == 0 {
			cmd = "b"
		}
		id := fmt.Sprintf("%d", i)
		d.Queue().PushFrame(frame(cmd, id, 0, "", ""))
		want = append(want, cmd+":"+id)
	}

	if n := d.Drain(); n != 50 {
		t.Fatalf("drained %d items, want 50", n)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d deliveries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery %d = %s, want %s", i, got[i], want[i])
		}
	}
	if d.Drain() != 0 {
		t.Fatalf("second drain should find an empty queue")
	}
}

func TestMalformedFrameDoesNotBlockBatch(t *testing.T) {
	d := newTestDispatcher(t)
	var got []string
	d.Register(protocol.CmdPlayerGet, NewHandler(func(reqID string, _ int, _, _ string) { got = append(got, reqID) }))

	q := d.Queue()
	q.PushFrame(frame(protocol.CmdPlayerGet, "first", 0, "", ""))
	q.PushFrame([]byte(`{"cmd":"player.get",`))
	q.PushFrame([]byte(`{"cmd":"","reqId":"nocmd"}`))
	q.PushFrame(frame(protocol.CmdPlayerGet, "second", 0, "", ""))

	if n := d.Drain(); n != 4 {
		t.Fatalf("drained %d, want 4", n)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	d := newTestDispatcher(t)
	calls := 0
	d.Register("x", NewHandler(func(string, int, string, string) { panic("boom") }))
	d.Register("x", NewHandler(func(string, int, string, string) { calls++ }))

	d.Queue().PushFrame(frame("x", "1", 0, "", ""))
	d.Queue().PushFrame(frame("x", "2", 0, "", ""))
	d.Drain()
	if calls != 2 {
		t.Fatalf("calls=%d, want 2", calls)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	d := newTestDispatcher(t)
	calls := 0
	h := NewHandler(func(string, int, string, string) { calls++ })
	if !d.Register("x", h) {
		t.Fatalf("first Register should add")
	}
	if d.Register("x", h) {
		t.Fatalf("second Register should be a no-op")
	}
	if d.Handlers("x") != 1 {
		t.Fatalf("handlers=%d, want 1", d.Handlers("x"))
	}

	d.Queue().PushFrame(frame("x", "1", 0, "", ""))
	d.Drain()
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestRegisterRejectsEmpty(t *testing.T) {
	d := newTestDispatcher(t)
	if d.Register("", NewHandler(func(string, int, string, string) {})) {
		t.Fatalf("empty command accepted")
	}
	if d.Register("x", nil) || d.Register("x", NewHandler(nil)) {
		t.Fatalf("nil handler accepted")
	}
}

func TestCallbackArguments(t *testing.T) {
	d := newTestDispatcher(t)
	var gotReq, gotMsg, gotData string
	gotCode := -1
	d.Register(protocol.CmdDailySignSign, NewHandler(func(reqID string, code int, msg, data string) {
		gotReq, gotCode, gotMsg, gotData = reqID, code, msg, data
	}))
	d.Queue().PushFrame(frame(protocol.CmdDailySignSign, "r1", 1, "not signed", `{"signInDays":2}`))
	d.Drain()
	if gotReq != "r1" || gotCode != 1 || gotMsg != "not signed" || gotData != `{"signInDays":2}` {
		t.Fatalf("unexpected args %q %d %q %q", gotReq, gotCode, gotMsg, gotData)
	}
}

func TestUnregisterFreesCommand(t *testing.T) {
	d := newTestDispatcher(t)
	h1 := NewHandler(func(string, int, string, string) {})
	h2 := NewHandler(func(string, int, string, string) {})
	d.Register("x", h1)
	d.Register("x", h2)

	if !d.Unregister("x", h1) {
		t.Fatalf("expected h1 removed")
	}
	if d.Unregister("x", h1) {
		t.Fatalf("h1 removed twice")
	}
	if d.Handlers("x") != 1 {
		t.Fatalf("handlers=%d, want 1", d.Handlers("x"))
	}
	d.Unregister("x", h2)
	if _, ok := d.handlers["x"]; ok {
		t.Fatalf("empty handler list should be dropped")
	}
	if d.Unregister("missing", h2) {
		t.Fatalf("unregister on unknown command should report false")
	}
}

func TestReentrantRegistrationDuringDrain(t *testing.T) {
	d := newTestDispatcher(t)
	var order []string
	var second, late *Handler
	second = NewHandler(func(string, int, string, string) { order = append(order, "second") })
	late = NewHandler(func(string, int, string, string) { order = append(order, "late") })
	first := NewHandler(func(string, int, string, string) {
		order = append(order, "first")
		d.Unregister("x", second)
		d.Register("x", late)
	})
	d.Register("x", first)
	d.Register("x", second)

	d.Queue().PushFrame(frame("x", "1", 0, "", ""))
	d.Drain()
	// The snapshot for frame 1 was taken before first ran.
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("frame 1 order %v", order)
	}

	order = nil
	d.Queue().PushFrame(frame("x", "2", 0, "", ""))
	d.Drain()
	if len(order) != 2 || order[0] != "first" || order[1] != "late" {
		t.Fatalf("frame 2 order %v", order)
	}
}

func TestStateChangesDeliveredOnDrain(t *testing.T) {
	d := newTestDispatcher(t)
	var got []stream.State
	d.OnState(func(c stream.StateChange) { got = append(got, c.State) })

	d.Queue().PushState(stream.StateChange{State: stream.Open})
	d.Queue().PushFrame(frame("x", "1", 0, "", ""))
	d.Queue().PushState(stream.StateChange{State: stream.Disconnected, Err: errors.New("eof")})
	if len(got) != 0 {
		t.Fatalf("state delivered before Drain")
	}
	d.Drain()
	if len(got) != 2 || got[0] != stream.Open || got[1] != stream.Disconnected {
		t.Fatalf("unexpected states %v", got)
	}
}

func TestStateListenerPanicIsIsolated(t *testing.T) {
	d := newTestDispatcher(t)
	calls := 0
	d.OnState(func(stream.StateChange) { panic("boom") })
	sub := d.OnState(func(stream.StateChange) { calls++ })
	d.Queue().PushState(stream.StateChange{State: stream.Open})
	d.Drain()
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	if !d.OffState(sub) {
		t.Fatalf("OffState should find the subscription")
	}
}

func TestProducerGoroutineNeverRunsCallbacks(t *testing.T) {
	d := newTestDispatcher(t)

	var draining atomic.Bool
	var outside atomic.Int32
	delivered := 0
	d.Register("tick", NewHandler(func(string, int, string, string) {
		if !draining.Load() {
			outside.Add(1)
		}
		delivered++
	}))
	d.OnState(func(stream.StateChange) {
		if !draining.Load() {
			outside.Add(1)
		}
	})

	const producers, perProducer = 4, 250
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d.Queue().PushFrame(frame("tick", fmt.Sprintf("%d-%d", p, i), 0, "", ""))
			}
			d.Queue().PushState(stream.StateChange{State: stream.Open})
		}(p)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	for {
		draining.Store(true)
		d.Drain()
		draining.Store(false)
		select {
		case <-done:
			draining.Store(true)
			d.Drain()
			draining.Store(false)
			if outside.Load() != 0 {
				t.Fatalf("%d callbacks ran outside Drain", outside.Load())
			}
			if delivered != producers*perProducer {
				t.Fatalf("delivered=%d, want %d", delivered, producers*perProducer)
			}
			return
		default:
		}
	}
}

func TestPerProducerOrderUnderConcurrency(t *testing.T) {
	d := newTestDispatcher(t)
	last := map[string]int{}
	bad := 0
	d.Register("seq", NewHandler(func(reqID string, code int, msg, _ string) {
		if prev, ok := last[msg]; ok && code != prev+1 {
			bad++
		}
		last[msg] = code
	}))

	var wg sync.WaitGroup
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.Queue().PushFrame(frame("seq", "", i, name, ""))
			}
		}(fmt.Sprintf("p%d", p))
	}
	wg.Wait()
	d.Drain()
	if bad != 0 {
		t.Fatalf("%d out-of-order deliveries", bad)
	}
	if len(last) != 3 {
		t.Fatalf("expected 3 producers, saw %d", len(last))
	}
}

func TestStrictModeDropsSchemaViolations(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	d := New(NewQueue(), Options{Logger: log.New(io.Discard, "", 0), Validator: v})
	var got []string
	d.Register("x", NewHandler(func(reqID string, _ int, _, _ string) { got = append(got, reqID) }))

	d.Queue().PushFrame([]byte(`{"cmd":"x","reqId":"ok","code":0}`))
	d.Queue().PushFrame([]byte(`{"cmd":"x","reqId":"bad","code":0,"data":5}`))
	d.Drain()
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestTapSeesEveryFrame(t *testing.T) {
	d := newTestDispatcher(t)
	var tapped []string
	d.SetTap(func(b []byte) { tapped = append(tapped, string(b)) })
	d.Queue().PushFrame([]byte(`garbage`))
	d.Queue().PushFrame(frame("x", "1", 0, "", ""))
	d.Queue().PushState(stream.StateChange{State: stream.Open})
	d.Drain()
	if len(tapped) != 2 || tapped[0] != "garbage" {
		t.Fatalf("unexpected tap %v", tapped)
	}
}
