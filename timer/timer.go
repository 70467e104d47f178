// Package timer 由宿主时钟驱动的定时器调度核心。
//
// 所有操作(创建, 取消, 重置, 推进时间)都必须在驱动 Tick 的同一个协程上调用,
// 核心内部没有锁。多协程宿主请通过 clock.Driver 串行化调用。
package timer

import (
	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/util"
)

// TimerId 单调递增, 进程生命周期内不复用; 0表示无效定时器
type TimerId int64

type Status uint8

const (
	StatusScheduled Status = iota // 等待触发
	StatusFiring                  // 回调执行中
	StatusCancelled               // 已取消, 等待释放
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusFiring:
		return "firing"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Params 创建定时器所需的数据, 时间单位毫秒
type Params struct {
	DueAt    int64
	Interval int64
	Repeat   bool
	Name     string // 回调名
	Owner    string // 创建者标识, 用于按创建者批量取消
	Args     args.Arguments
}

// Info 定时器快照
type Info struct {
	Params
	Id     TimerId
	Status Status
}

type _Timer struct {
	id      TimerId
	params  Params
	status  Status
	rearmed bool // 回调执行期间被Reset, 结束后按新的到期时间入队
}

func (t *_Timer) info() Info {
	info := Info{Params: t.params, Id: t.id, Status: t.status}
	info.Args = t.params.Args.Clone()
	return info
}

// NextDue 重复定时器的下一次到期时间: 满足 due + k*interval > now 的最小值(k>=1)。
// 宿主卡顿后只补触发一次并保持相位。interval为0时对齐到now, 每个tick触发一次。
func NextDue(due, interval, now int64) int64 {
	if interval <= 0 {
		return max(due, now)
	}
	if now < due {
		next, _ := util.AddInt64(due, interval)
		return next
	}
	k := (now-due)/interval + 1
	step, _ := util.MulInt64(k, interval)
	next, _ := util.AddInt64(due, step)
	return next
}

// dueKey 跳表中的排序键, 到期时间相同按id(创建顺序)排序
type dueKey struct {
	due int64
	id  TimerId
}

func (k dueKey) Compare(o dueKey) int {
	switch {
	case k.due < o.due:
		return -1
	case k.due > o.due:
		return 1
	case k.id < o.id:
		return -1
	case k.id > o.id:
		return 1
	}
	return 0
}
