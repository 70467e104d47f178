// Package clock 在独立协程上驱动 timer.Scheduler。
// 其他协程的创建/取消请求作为任务投递到驱动协程执行, 回调内的调用直接执行。
package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fixkme/ptimer/errs"
	"github.com/fixkme/ptimer/mlog"
	ptime "github.com/fixkme/ptimer/time"
	"github.com/fixkme/ptimer/timer"
	"github.com/fixkme/ptimer/util"
)

const (
	DefaultTickSpan = 10 * time.Millisecond
	minTaskChSize   = 1024
)

type Driver struct {
	sched   *timer.Scheduler
	span    time.Duration
	taskch  chan func()
	closed  atomic.Bool
	started atomic.Bool
	loopGid atomic.Int64
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewDriver span是最长的tick间隔, 下一个定时器更早到期时会提前醒来
func NewDriver(sched *timer.Scheduler, span time.Duration, taskChSize int) *Driver {
	if span <= 0 {
		span = DefaultTickSpan
	}
	return &Driver{
		sched:   sched,
		span:    span,
		taskch:  make(chan func(), max(taskChSize, minTaskChSize)),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start 启动驱动协程, quit关闭或调用Stop后退出
func (d *Driver) Start(quit <-chan struct{}) {
	d.started.Store(true)
	go d.run(quit)
}

// Stop 停止驱动协程并等待退出; 从未启动时只把Driver标记为关闭
func (d *Driver) Stop() {
	d.once.Do(func() { close(d.quit) })
	if !d.started.Load() {
		d.closed.Store(true)
		return
	}
	<-d.stopped
}

func (d *Driver) run(quit <-chan struct{}) {
	d.loopGid.Store(util.GoroutineID())
	defer close(d.stopped)

	tickTimer := time.NewTimer(d.nextWait())
	defer tickTimer.Stop()
	for {
		select {
		case <-quit:
			d.shutdown()
			return
		case <-d.quit:
			d.shutdown()
			return
		case <-tickTimer.C:
			d.sched.Tick(d.sched.Now())
			tickTimer.Reset(d.nextWait())
		case fn := <-d.taskch:
			fn()
			// 新的定时器可能比当前等待的时间更早到期
			if !tickTimer.Stop() {
				select {
				case <-tickTimer.C:
				default:
				}
			}
			tickTimer.Reset(d.nextWait())
		}
	}
}

func (d *Driver) nextWait() time.Duration {
	due, ok := d.sched.NextDue()
	if !ok {
		return d.span
	}
	// 至少等待1ms, 零间隔的重复定时器每个tick只触发一次, 不能空转
	wait := ptime.Ms2Duration(due - d.sched.Now())
	return min(max(wait, time.Millisecond), d.span)
}

// shutdown 执行已投递的任务后退出
func (d *Driver) shutdown() {
	d.closed.Store(true)
	for {
		select {
		case fn := <-d.taskch:
			fn()
		default:
			mlog.Infof("clock driver stopped, %d timers dropped", d.sched.Len())
			return
		}
	}
}

func (d *Driver) inLoop() bool {
	return d.loopGid.Load() == util.GoroutineID()
}

// pushTask 在驱动协程上同步执行f
func (d *Driver) pushTask(f func()) error {
	if d.closed.Load() {
		return errs.Closed.Print("clock driver")
	}
	if d.inLoop() {
		f()
		return nil
	}
	done := make(chan struct{})
	ff := func() {
		defer close(done)
		f()
	}
	select {
	case d.taskch <- ff:
	default:
		return errs.Busy.Print("timer task channel full")
	}
	select {
	case <-done:
		return nil
	case <-d.stopped:
		return errs.Closed.Print("clock driver")
	}
}

func (d *Driver) Schedule(name string, delayMs int64, repeat bool, descriptor string, values ...any) (id timer.TimerId, err error) {
	return d.ScheduleOwned("", name, delayMs, repeat, descriptor, values...)
}

func (d *Driver) ScheduleOwned(owner, name string, delayMs int64, repeat bool, descriptor string, values ...any) (id timer.TimerId, err error) {
	if perr := d.pushTask(func() {
		id, err = d.sched.ScheduleOwned(owner, name, delayMs, repeat, descriptor, values...)
	}); perr != nil {
		return 0, perr
	}
	return
}

func (d *Driver) Cancel(id timer.TimerId) (ok bool, err error) {
	err = d.pushTask(func() {
		ok = d.sched.Cancel(id)
	})
	return
}

func (d *Driver) Reset(id timer.TimerId, delayMs int64, repeat bool) (ok bool, err error) {
	err = d.pushTask(func() {
		ok = d.sched.Reset(id, delayMs, repeat)
	})
	return
}

func (d *Driver) CancelOwner(owner string) (n int, err error) {
	err = d.pushTask(func() {
		n = d.sched.CancelOwner(owner)
	})
	return
}

// Do 在驱动协程上执行f, 可以直接操作调度器
func (d *Driver) Do(f func(s *timer.Scheduler)) error {
	return d.pushTask(func() { f(d.sched) })
}

func (d *Driver) Stats() (st timer.Stats, err error) {
	err = d.pushTask(func() {
		st = d.sched.Stats()
	})
	return
}
