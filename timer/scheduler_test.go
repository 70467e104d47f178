package timer

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/errs"
)

type call struct {
	name string
	args args.Arguments
	now  int64
}

// fakeHost 记录所有调用, 未注册的回调返回NotFound
type fakeHost struct {
	clock    *int64
	calls    []call
	handlers map[string]func(args.Arguments)
}

func (h *fakeHost) Call(name string, a args.Arguments) Outcome {
	fn, ok := h.handlers[name]
	if !ok {
		return OutcomeNotFound
	}
	h.calls = append(h.calls, call{name: name, args: a, now: *h.clock})
	fn(a)
	return OutcomeInvoked
}

func (h *fakeHost) on(name string, fn func(args.Arguments)) {
	h.handlers[name] = fn
}

func (h *fakeHost) names() []string {
	out := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		out = append(out, c.name)
	}
	return out
}

type harness struct {
	now   int64
	host  *fakeHost
	sched *Scheduler
}

func newHarness(t *testing.T, opts ...Option) *harness {
	h := &harness{}
	h.host = &fakeHost{clock: &h.now, handlers: map[string]func(args.Arguments){}}
	opts = append([]Option{WithNowFunc(func() int64 { return h.now })}, opts...)
	h.sched = NewScheduler(h.host, opts...)
	t.Cleanup(func() {
		if err := h.sched.Store().Validate(); err != nil {
			t.Errorf("store invariant broken: %v", err)
		}
	})
	return h
}

func (h *harness) tick(now int64) int {
	h.now = now
	return h.sched.Tick(now)
}

func (h *harness) mustSchedule(t *testing.T, name string, delay int64, repeat bool, descriptor string, values ...any) TimerId {
	t.Helper()
	id, err := h.sched.Schedule(name, delay, repeat, descriptor, values...)
	if err != nil {
		t.Fatalf("schedule %s: %v", name, err)
	}
	return id
}

func TestScenarioOneShot(t *testing.T) {
	h := newHarness(t)
	h.host.on("A", func(args.Arguments) {})
	h.mustSchedule(t, "A", 1000, false, "d", 42)

	if n := h.tick(500); n != 0 {
		t.Fatalf("tick(500) fired %d", n)
	}
	if n := h.tick(1000); n != 1 {
		t.Fatalf("tick(1000) fired %d", n)
	}
	got := h.host.calls[0].args
	if len(got) != 1 || got[0].Kind() != args.KindInteger || got[0].Int() != 42 {
		t.Fatalf("callback args = %v", got)
	}
	if n := h.tick(2000); n != 0 {
		t.Fatalf("tick(2000) fired %d", n)
	}
	if h.sched.Len() != 0 {
		t.Fatalf("one-shot timer still stored")
	}
}

func TestScenarioSameDueOrder(t *testing.T) {
	h := newHarness(t)
	h.host.on("first", func(args.Arguments) {})
	h.host.on("second", func(args.Arguments) {})
	id1 := h.mustSchedule(t, "first", 1000, false, "")
	id2 := h.mustSchedule(t, "second", 1000, false, "")
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d, %d", id1, id2)
	}
	h.tick(1000)
	if names := h.host.names(); len(names) != 2 || names[0] != "first" || names[1] != "second" {
		t.Fatalf("firing order = %v", names)
	}
}

func TestDeterministicOrdering(t *testing.T) {
	h := newHarness(t)
	var order []int32
	h.host.on("order", func(a args.Arguments) { order = append(order, a[0].Int()) })
	for i := 0; i < 64; i++ {
		// 不同的创建时间, 相同的到期时间
		h.now = int64(i)
		h.mustSchedule(t, "order", int64(1000-i), false, "d", i)
	}
	h.tick(1000)
	if len(order) != 64 {
		t.Fatalf("fired %d of 64", len(order))
	}
	for i, v := range order {
		if int(v) != i {
			t.Fatalf("position %d fired timer %d", i, v)
		}
	}
}

func TestScenarioArrayTooShort(t *testing.T) {
	h := newHarness(t)
	id, err := h.sched.Schedule("C", 100, false, "aA", []int32{1, 2}, 3)
	if !errors.Is(err, errs.Argument) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
	if id != 0 || h.sched.Len() != 0 || h.sched.Store().LastId() != 0 {
		t.Fatalf("failed schedule left state behind: id=%d len=%d", id, h.sched.Len())
	}
}

func TestScheduleRejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	if _, err := h.sched.Schedule("neg", -1, false, ""); !errors.Is(err, errs.Argument) {
		t.Fatalf("negative delay: %v", err)
	}
	if _, err := h.sched.Schedule("", 10, false, ""); !errors.Is(err, errs.Argument) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := h.sched.Schedule("count", 10, false, "dd", 1); !errors.Is(err, errs.Argument) {
		t.Fatalf("count mismatch: %v", err)
	}
	if h.sched.Len() != 0 {
		t.Fatal("rejected requests created timers")
	}
}

func TestScenarioDoubleCancel(t *testing.T) {
	h := newHarness(t)
	id := h.mustSchedule(t, "x", 1000, true, "")
	if !h.sched.Cancel(id) {
		t.Fatal("first cancel should succeed")
	}
	if h.sched.Cancel(id) {
		t.Fatal("second cancel should report false")
	}
	if h.sched.Cancel(0) || h.sched.Cancel(999) {
		t.Fatal("unknown ids must be inert")
	}
}

func TestDeepCopy(t *testing.T) {
	h := newHarness(t)
	text := []byte("original")
	cells := []int32{1, 2, 3}
	var seen args.Arguments
	h.host.on("copy", func(a args.Arguments) { seen = a })
	h.mustSchedule(t, "copy", 10, false, "saA", text, cells, 3)

	copy(text, "XXXXXXXX")
	cells[0], cells[2] = 100, 300

	h.tick(10)
	if string(seen[0].Text()) != "original" {
		t.Fatalf("text = %q", seen[0].Text())
	}
	if arr := seen[1].Array(); arr[0] != 1 || arr[2] != 3 {
		t.Fatalf("array = %v", arr)
	}
}

func TestCallbackCannotMutateStoredArgs(t *testing.T) {
	h := newHarness(t)
	var seen []int32
	h.host.on("rep", func(a args.Arguments) {
		seen = append(seen, a[0].Int())
		a[0] = args.Int(-1)
	})
	h.mustSchedule(t, "rep", 10, true, "d", 7)
	h.tick(10)
	h.tick(20)
	if len(seen) != 2 || seen[1] != 7 {
		t.Fatalf("seen = %v", seen)
	}
}

func TestSelfCancel(t *testing.T) {
	h := newHarness(t)
	var id TimerId
	var first, second bool
	h.host.on("self", func(args.Arguments) {
		first = h.sched.Cancel(id)
		second = h.sched.Cancel(id)
	})
	id = h.mustSchedule(t, "self", 100, true, "")

	if n := h.tick(100); n != 1 {
		t.Fatalf("fired %d", n)
	}
	if !first || second {
		t.Fatalf("cancel from callback = %v, %v", first, second)
	}
	if _, ok := h.sched.Get(id); ok {
		t.Fatal("self-cancelled timer still stored")
	}
	if n := h.tick(200); n != 0 {
		t.Fatalf("self-cancelled timer fired again")
	}
}

func TestCancelLaterInBatch(t *testing.T) {
	h := newHarness(t)
	var victim TimerId
	h.host.on("killer", func(args.Arguments) { h.sched.Cancel(victim) })
	h.host.on("victim", func(args.Arguments) { t.Fatal("cancelled timer fired") })
	h.mustSchedule(t, "killer", 100, false, "")
	victim = h.mustSchedule(t, "victim", 100, false, "")

	if n := h.tick(100); n != 1 {
		t.Fatalf("fired %d", n)
	}
	if st := h.sched.Stats(); st.Skipped != 1 {
		t.Fatalf("skipped = %d", st.Skipped)
	}
}

func TestBatchIsolation(t *testing.T) {
	h := newHarness(t)
	var child TimerId
	h.host.on("parent", func(args.Arguments) {
		child = h.mustSchedule(t, "child", 0, false, "")
	})
	h.host.on("child", func(args.Arguments) {})
	h.mustSchedule(t, "parent", 1000, false, "")

	if n := h.tick(1000); n != 1 {
		t.Fatalf("first tick fired %d", n)
	}
	info, ok := h.sched.Get(child)
	if !ok || info.DueAt > 1000 || info.Status != StatusScheduled {
		t.Fatalf("child = %+v, %v", info, ok)
	}
	if n := h.tick(1000); n != 1 {
		t.Fatalf("second tick fired %d", n)
	}
	if names := h.host.names(); len(names) != 2 || names[1] != "child" {
		t.Fatalf("calls = %v", names)
	}
}

func TestZeroIntervalDoesNotStarve(t *testing.T) {
	h := newHarness(t)
	count := 0
	h.host.on("spin", func(args.Arguments) { count++ })
	h.mustSchedule(t, "spin", 0, true, "")
	for i := 0; i < 3; i++ {
		if n := h.tick(5); n != 1 {
			t.Fatalf("tick %d fired %d", i, n)
		}
	}
	if count != 3 {
		t.Fatalf("count = %d", count)
	}
}

func TestCatchUpFiresOnce(t *testing.T) {
	h := newHarness(t)
	h.host.on("r", func(args.Arguments) {})
	id := h.mustSchedule(t, "r", 100, true, "")
	due0 := int64(100)

	if n := h.tick(due0 + 10*100); n != 1 {
		t.Fatalf("late tick fired %d times", n)
	}
	info, _ := h.sched.Get(id)
	if want := due0 + 11*100; info.DueAt != want {
		t.Fatalf("next due = %d, want %d", info.DueAt, want)
	}
	if n := h.tick(due0 + 10*100 + 50); n != 0 {
		t.Fatalf("fired again before next due")
	}
}

func TestTickRegression(t *testing.T) {
	h := newHarness(t)
	h.host.on("r", func(args.Arguments) {})
	h.mustSchedule(t, "r", 1000, false, "")
	for _, now := range []int64{900, 500, 0, 999} {
		if n := h.tick(now); n != 0 {
			t.Fatalf("tick(%d) fired early", now)
		}
	}
	if n := h.tick(1000); n != 1 {
		t.Fatalf("tick(1000) fired %d", n)
	}
}

func TestRepeatingKeepsPhase(t *testing.T) {
	h := newHarness(t)
	var at []int64
	h.host.on("p", func(args.Arguments) { at = append(at, h.now) })
	h.mustSchedule(t, "p", 100, true, "")
	for _, now := range []int64{100, 230, 300, 420} {
		h.tick(now)
	}
	want := []int64{100, 230, 300, 420}
	if len(at) != len(want) {
		t.Fatalf("fired at %v", at)
	}
	id := h.sched.Store().LastId()
	if info, _ := h.sched.Get(id); info.DueAt != 500 {
		t.Fatalf("phase drifted, next due %d", info.DueAt)
	}
}

func TestNotFoundStillReschedules(t *testing.T) {
	h := newHarness(t)
	rep := h.mustSchedule(t, "missing", 100, true, "")
	one := h.mustSchedule(t, "missing", 100, false, "")
	if n := h.tick(100); n != 2 {
		t.Fatalf("fired %d", n)
	}
	st := h.sched.Stats()
	if st.NotFound != 2 || st.Fired != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if info, ok := h.sched.Get(rep); !ok || info.DueAt != 200 {
		t.Fatalf("repeating timer = %+v, %v", info, ok)
	}
	if _, ok := h.sched.Get(one); ok {
		t.Fatal("one-shot timer should be removed")
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	var firings []Firing
	h := newHarness(t, WithObserver(func(f Firing) { firings = append(firings, f) }))
	h.host.on("bad", func(args.Arguments) { panic("boom") })
	h.host.on("good", func(args.Arguments) {})
	h.mustSchedule(t, "bad", 10, false, "")
	h.mustSchedule(t, "good", 10, false, "")

	if n := h.tick(10); n != 2 {
		t.Fatalf("fired %d", n)
	}
	if len(firings) != 2 || firings[0].Outcome != OutcomeFailed || firings[1].Outcome != OutcomeInvoked {
		t.Fatalf("firings = %+v", firings)
	}
	if h.sched.Len() != 0 {
		t.Fatal("timers left after panic")
	}
}

func TestProcessNotReentrant(t *testing.T) {
	h := newHarness(t)
	inner := -1
	h.host.on("nested", func(args.Arguments) { inner = h.sched.Tick(h.now) })
	h.host.on("later", func(args.Arguments) {})
	h.mustSchedule(t, "nested", 10, false, "")
	h.mustSchedule(t, "later", 10, false, "")
	if n := h.tick(10); n != 2 {
		t.Fatalf("outer tick fired %d", n)
	}
	if inner != 0 {
		t.Fatalf("nested tick fired %d", inner)
	}
}

func TestResetScheduled(t *testing.T) {
	h := newHarness(t)
	h.host.on("r", func(args.Arguments) {})
	id := h.mustSchedule(t, "r", 1000, false, "")
	if !h.sched.Reset(id, 3000, false) {
		t.Fatal("reset failed")
	}
	if n := h.tick(1000); n != 0 {
		t.Fatal("fired at old due time")
	}
	if n := h.tick(3000); n != 1 {
		t.Fatal("did not fire at new due time")
	}
	if h.sched.Reset(id, 10, false) {
		t.Fatal("reset of removed timer should fail")
	}
}

func TestResetDuringFiring(t *testing.T) {
	h := newHarness(t)
	var id TimerId
	count := 0
	h.host.on("again", func(args.Arguments) {
		count++
		if count == 1 {
			h.sched.Reset(id, 500, false)
		}
	})
	id = h.mustSchedule(t, "again", 1000, false, "")
	h.tick(1000)
	info, ok := h.sched.Get(id)
	if !ok || info.DueAt != 1500 || info.Status != StatusScheduled {
		t.Fatalf("re-armed one-shot = %+v, %v", info, ok)
	}
	h.tick(1500)
	if count != 2 || h.sched.Len() != 0 {
		t.Fatalf("count=%d len=%d", count, h.sched.Len())
	}
}

func TestResetLaterBatchMemberLater(t *testing.T) {
	h := newHarness(t)
	var b TimerId
	h.host.on("A", func(args.Arguments) {
		if !h.sched.Reset(b, 5000, false) {
			t.Error("reset of pending batch member failed")
		}
	})
	h.host.on("B", func(args.Arguments) {})
	h.mustSchedule(t, "A", 1000, false, "")
	b = h.mustSchedule(t, "B", 1000, false, "")

	if n := h.tick(1000); n != 1 {
		t.Fatalf("tick(1000) fired %d: %v", n, h.host.names())
	}
	info, ok := h.sched.Get(b)
	if !ok || info.DueAt != 6000 || info.Status != StatusScheduled {
		t.Fatalf("reset timer = %+v, %v", info, ok)
	}
	if st := h.sched.Stats(); st.Skipped != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if n := h.tick(5999); n != 0 {
		t.Fatal("fired before the reset due time")
	}
	if n := h.tick(6000); n != 1 || h.host.calls[1].name != "B" || h.host.calls[1].now != 6000 {
		t.Fatalf("calls = %v", h.host.names())
	}
	if h.sched.Len() != 0 {
		t.Fatalf("len = %d", h.sched.Len())
	}
}

func TestResetLaterBatchMemberKeepsPeriod(t *testing.T) {
	h := newHarness(t)
	var b TimerId
	h.host.on("A", func(args.Arguments) { h.sched.Reset(b, 5000, true) })
	h.host.on("B", func(args.Arguments) {})
	h.mustSchedule(t, "A", 1000, false, "")
	b = h.mustSchedule(t, "B", 1000, true, "")

	h.tick(1000)
	h.tick(6000)
	info, ok := h.sched.Get(b)
	if !ok || info.DueAt != 11000 || info.Interval != 5000 {
		t.Fatalf("after first reset period = %+v, %v", info, ok)
	}
	if got := h.host.names(); len(got) != 2 || got[1] != "B" {
		t.Fatalf("calls = %v", got)
	}
}

// 在回调里把未进入快照的定时器提前到now, 本次tick不触发, 下个tick触发
func TestResetOutsideBatchEarlier(t *testing.T) {
	h := newHarness(t)
	var b TimerId
	h.host.on("A", func(args.Arguments) { h.sched.Reset(b, 0, false) })
	h.host.on("B", func(args.Arguments) {})
	h.mustSchedule(t, "A", 1000, false, "")
	b = h.mustSchedule(t, "B", 2000, false, "")

	if n := h.tick(1000); n != 1 {
		t.Fatalf("tick(1000) fired %d: %v", n, h.host.names())
	}
	if info, _ := h.sched.Get(b); info.DueAt != 1000 {
		t.Fatalf("due = %d", info.DueAt)
	}
	if n := h.tick(1001); n != 1 || h.host.calls[1].name != "B" {
		t.Fatalf("calls = %v", h.host.names())
	}
}

func TestCancelOwner(t *testing.T) {
	h := newHarness(t)
	h.host.on("unload", func(args.Arguments) { h.sched.CancelOwner("gamemode") })
	h.host.on("tick", func(args.Arguments) { t.Fatal("unloaded owner's timer fired") })
	if _, err := h.sched.ScheduleOwned("gamemode", "unload", 10, true, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.sched.ScheduleOwned("gamemode", "tick", 20, true, ""); err != nil {
		t.Fatal(err)
	}
	keep, err := h.sched.ScheduleOwned("filterscript", "tick2", 20, true, "")
	if err != nil {
		t.Fatal(err)
	}

	h.tick(10)
	if h.sched.Len() != 1 {
		t.Fatalf("len = %d", h.sched.Len())
	}
	if _, ok := h.sched.Get(keep); !ok {
		t.Fatal("other owner's timer removed")
	}
	h.tick(20)
	if n := h.sched.CancelOwner("nobody"); n != 0 {
		t.Fatalf("cancelled %d for unknown owner", n)
	}
}

func TestIdsNeverReused(t *testing.T) {
	h := newHarness(t)
	seen := map[TimerId]bool{}
	for i := 0; i < 100; i++ {
		id := h.mustSchedule(t, "x", 10, false, "")
		if seen[id] || id <= 0 {
			t.Fatalf("id %d reused", id)
		}
		seen[id] = true
		if i%2 == 0 {
			h.sched.Cancel(id)
		}
	}
	h.tick(10)
	if id := h.mustSchedule(t, "x", 10, false, ""); seen[id] {
		t.Fatalf("id %d reused after drain", id)
	}
}

// 回调中随机创建和取消定时器, 每个tick后检查不变量
func TestRandomMutationDuringDispatch(t *testing.T) {
	h := newHarness(t, WithCapacity(4))
	r := rand.New(rand.NewSource(7))
	var live []TimerId
	lastFired := map[int64]TimerId{}
	h.host.on("chaos", func(a args.Arguments) {
		switch r.Intn(4) {
		case 0:
			id, err := h.sched.Schedule("chaos", int64(r.Intn(50)), r.Intn(2) == 0, "d", r.Intn(1000))
			if err != nil {
				t.Fatal(err)
			}
			live = append(live, id)
		case 1:
			if len(live) > 0 {
				h.sched.Cancel(live[r.Intn(len(live))])
			}
		case 2:
			if len(live) > 0 {
				h.sched.Reset(live[r.Intn(len(live))], int64(r.Intn(50)), r.Intn(2) == 0)
			}
		}
	})
	for i := 0; i < 32; i++ {
		id := h.mustSchedule(t, "chaos", int64(r.Intn(50)), r.Intn(2) == 0, "d", i)
		live = append(live, id)
	}

	h.sched.disp.SetObserver(func(f Firing) {
		// 同一个定时器不会在一个tick内连续触发
		if prev, ok := lastFired[f.Now]; ok && prev == f.Id {
			t.Fatalf("timer %d fired twice at %d", f.Id, f.Now)
		}
		lastFired[f.Now] = f.Id
	})
	for now := int64(0); now < 500; now += int64(1 + r.Intn(20)) {
		h.tick(now)
		if err := h.sched.Store().Validate(); err != nil {
			t.Fatalf("after tick(%d): %v", now, err)
		}
	}
}
