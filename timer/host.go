package timer

import "github.com/fixkme/ptimer/args"

// Outcome 一次回调调用的结果
type Outcome uint8

const (
	OutcomeInvoked  Outcome = iota // 回调已执行
	OutcomeNotFound                // 宿主中不存在该回调
	OutcomeFailed                  // 宿主执行失败或回调panic
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvoked:
		return "invoked"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// HostBridge 宿主回调入口。Call同步执行, 可以在回调里创建或取消定时器,
// 但不能再次驱动 Dispatcher.Process
type HostBridge interface {
	Call(name string, arguments args.Arguments) Outcome
}

// HostFunc 函数适配为HostBridge
type HostFunc func(name string, arguments args.Arguments) Outcome

func (f HostFunc) Call(name string, arguments args.Arguments) Outcome {
	return f(name, arguments)
}

var noHost = HostFunc(func(string, args.Arguments) Outcome { return OutcomeNotFound })
