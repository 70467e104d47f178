package timer

import (
	"runtime/debug"

	"github.com/eapache/queue"
	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/errs"
	"github.com/fixkme/ptimer/mlog"
	"golang.org/x/time/rate"
)

// Firing 一次触发的记录
type Firing struct {
	Id          TimerId
	Name        string
	Now         int64
	Outcome     Outcome
	Rescheduled bool
}

type Stats struct {
	Ticks    uint64 // Process调用次数
	Fired    uint64 // 回调调用次数
	NotFound uint64
	Failed   uint64
	Skipped  uint64 // 进入批次后在触发前被取消或被Reset到以后
}

// Dispatcher 每个tick取出到期定时器, 逐个同步调用回调
type Dispatcher struct {
	store      *Store
	host       HostBridge
	batch      *queue.Queue // 本次tick的id快照, 跨tick复用
	processing bool
	limiter    *rate.Limiter // 限制找不到回调的日志
	observer   func(Firing)
	stats      Stats
}

func NewDispatcher(store *Store, host HostBridge) *Dispatcher {
	if host == nil {
		host = noHost
	}
	return &Dispatcher{
		store:   store,
		host:    host,
		batch:   queue.New(),
		limiter: rate.NewLimiter(rate.Limit(1), 10),
	}
}

// SetNotFoundLogLimit 每秒最多记录多少条找不到回调的日志, perSec<=0 不限制
func (d *Dispatcher) SetNotFoundLogLimit(perSec float64, burst int) {
	if perSec <= 0 {
		d.limiter = nil
		return
	}
	d.limiter = rate.NewLimiter(rate.Limit(perSec), max(burst, 1))
}

// SetObserver 每次触发后调用, 在Process所在协程执行
func (d *Dispatcher) SetObserver(f func(Firing)) {
	d.observer = f
}

func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// Process 触发所有 due <= now 的定时器, 返回调用回调的次数。
// 不可重入: 回调里再次调用Process会被拒绝
func (d *Dispatcher) Process(now int64) int {
	if d.processing {
		mlog.Errorf("%v", errs.Busy.Printf("process(%d) called from inside a timer callback, ignored", now))
		return 0
	}
	d.processing = true
	defer d.reset()

	d.stats.Ticks++
	d.store.drainInto(now, d.batch)

	fired := 0
	for d.batch.Length() > 0 {
		id := d.batch.Remove().(TimerId)
		name, arguments, ok := d.store.begin(id, now)
		if !ok {
			d.stats.Skipped++
			continue
		}
		outcome := d.call(id, name, arguments)
		rescheduled := d.store.finish(id, now)
		fired++
		d.record(Firing{Id: id, Name: name, Now: now, Outcome: outcome, Rescheduled: rescheduled})
	}
	return fired
}

func (d *Dispatcher) reset() {
	// 只有finish的内部错误会让批次残留
	for d.batch.Length() > 0 {
		d.batch.Remove()
	}
	d.processing = false
}

func (d *Dispatcher) call(id TimerId, name string, arguments args.Arguments) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("timer %d callback %s panic: %v\n%s", id, name, r, debug.Stack())
			outcome = OutcomeFailed
		}
	}()
	return d.host.Call(name, arguments.Clone())
}

func (d *Dispatcher) record(f Firing) {
	d.stats.Fired++
	switch f.Outcome {
	case OutcomeNotFound:
		d.stats.NotFound++
		if d.limiter == nil || d.limiter.Allow() {
			mlog.Warnf("timer %d: %v", f.Id, errs.CallbackNotFound.Printf("%s", f.Name))
		}
	case OutcomeFailed:
		d.stats.Failed++
	default:
		mlog.Tracef("timer %d fired %s at %d", f.Id, f.Name, f.Now)
	}
	if d.observer != nil {
		d.observer(f)
	}
}
