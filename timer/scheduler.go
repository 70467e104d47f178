package timer

import (
	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/errs"
	"github.com/fixkme/ptimer/mlog"
	ptime "github.com/fixkme/ptimer/time"
	"github.com/fixkme/ptimer/util"
)

type options struct {
	capacity       int
	now            func() int64
	notFoundPerSec float64
	notFoundBurst  int
	observer       func(Firing)
}

type Option func(*options)

// WithCapacity 预分配的定时器数量
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithNowFunc 创建定时器时使用的当前时间(毫秒), 默认进程单调时钟
func WithNowFunc(now func() int64) Option {
	return func(o *options) { o.now = now }
}

// WithNotFoundLogLimit 找不到回调的日志限速
func WithNotFoundLogLimit(perSec float64, burst int) Option {
	return func(o *options) {
		o.notFoundPerSec = perSec
		o.notFoundBurst = burst
	}
}

func WithObserver(f func(Firing)) Option {
	return func(o *options) { o.observer = f }
}

// Scheduler 宿主使用的入口: 创建, 取消, 重置定时器以及推进时间。
// 由宿主集成层持有并传给每个入口, 没有全局实例
type Scheduler struct {
	store *Store
	disp  *Dispatcher
	now   func() int64
}

func NewScheduler(host HostBridge, opts ...Option) *Scheduler {
	o := options{
		capacity:       1000,
		now:            ptime.NowMs,
		notFoundPerSec: 1,
		notFoundBurst:  10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	store := NewStore(o.capacity)
	disp := NewDispatcher(store, host)
	disp.SetNotFoundLogLimit(o.notFoundPerSec, o.notFoundBurst)
	disp.SetObserver(o.observer)
	return &Scheduler{store: store, disp: disp, now: o.now}
}

// Schedule 创建定时器, delayMs毫秒后调用name; repeat为true时每delayMs重复。
// descriptor描述values的类型, 见args.Decode。参数错误时不创建定时器
func (s *Scheduler) Schedule(name string, delayMs int64, repeat bool, descriptor string, values ...any) (TimerId, error) {
	return s.ScheduleOwned("", name, delayMs, repeat, descriptor, values...)
}

// ScheduleOwned 同Schedule, 记录创建者, 可用CancelOwner批量取消
func (s *Scheduler) ScheduleOwned(owner, name string, delayMs int64, repeat bool, descriptor string, values ...any) (TimerId, error) {
	if len(name) == 0 {
		return 0, errs.Argument.Print("empty callback name")
	}
	if delayMs < 0 {
		mlog.Errorf("timer %s: invalid interval %d", name, delayMs)
		return 0, errs.Argument.Printf("negative delay %d", delayMs)
	}
	arguments, err := args.Decode(descriptor, values...)
	if err != nil {
		mlog.Errorf("timer %s: %v", name, err)
		return 0, err
	}
	due, _ := util.AddInt64(s.now(), delayMs)
	id := s.store.Insert(Params{
		DueAt:    due,
		Interval: delayMs,
		Repeat:   repeat,
		Name:     name,
		Owner:    owner,
		Args:     arguments,
	})
	mlog.Debugf("timer %d scheduled %s%v due=%d repeat=%v", id, name, arguments, due, repeat)
	return id, nil
}

// Cancel 取消定时器; 不存在或已删除时返回false。
// 可以在回调中取消自己, 本次调用照常结束, 之后不再重复
func (s *Scheduler) Cancel(id TimerId) bool {
	ok := s.store.Cancel(id)
	if ok {
		mlog.Debugf("timer %d cancelled", id)
	}
	return ok
}

// Reset 以当前时间为起点重新设置延迟和重复
func (s *Scheduler) Reset(id TimerId, delayMs int64, repeat bool) bool {
	if delayMs < 0 {
		return false
	}
	due, _ := util.AddInt64(s.now(), delayMs)
	return s.store.Reset(id, due, delayMs, repeat)
}

// CancelOwner 取消某个创建者的全部定时器, 用于脚本卸载
func (s *Scheduler) CancelOwner(owner string) int {
	n := s.store.CancelWhere(func(info Info) bool { return info.Owner == owner })
	if n > 0 {
		mlog.Infof("cancelled %d timers owned by %s", n, owner)
	}
	return n
}

// Tick 宿主每帧调用一次。now允许回退, 回退只会推迟触发
func (s *Scheduler) Tick(now int64) int {
	return s.disp.Process(now)
}

func (s *Scheduler) Get(id TimerId) (Info, bool) {
	return s.store.Get(id)
}

func (s *Scheduler) Len() int {
	return s.store.Len()
}

func (s *Scheduler) NextDue() (int64, bool) {
	return s.store.NextDue()
}

func (s *Scheduler) Stats() Stats {
	return s.disp.Stats()
}

// Now 创建定时器使用的时间源
func (s *Scheduler) Now() int64 {
	return s.now()
}

// Store 底层存储, 供诊断使用
func (s *Scheduler) Store() *Store {
	return s.store
}
