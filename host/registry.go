// Package host 定时器回调的宿主实现: 进程内按名字注册的回调表, 以及把回调转发到redis频道的中继。
package host

import (
	"runtime/debug"
	"sync"

	"github.com/armon/go-radix"
	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/mlog"
	"github.com/fixkme/ptimer/timer"
)

// Callback 定时器回调, 返回error视为执行失败
type Callback func(arguments args.Arguments) error

// Registry 按名字索引的回调表, 名字一般带模块前缀, 如 "quest:OnExpire",
// 模块卸载时可按前缀整体注销
type Registry struct {
	mtx  sync.RWMutex
	tree *radix.Tree
}

var _ timer.HostBridge = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{tree: radix.New()}
}

// Register 注册回调, 同名覆盖, 返回是否覆盖了旧回调
func (r *Registry) Register(name string, cb Callback) bool {
	if name == "" || cb == nil {
		return false
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	_, updated := r.tree.Insert(name, cb)
	return updated
}

func (r *Registry) Unregister(name string) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	_, ok := r.tree.Delete(name)
	return ok
}

// UnregisterPrefix 注销所有以prefix开头的回调, 返回注销数量
func (r *Registry) UnregisterPrefix(prefix string) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var names []string
	r.tree.WalkPrefix(prefix, func(s string, _ any) bool {
		names = append(names, s)
		return false
	})
	for _, name := range names {
		r.tree.Delete(name)
	}
	return len(names)
}

func (r *Registry) Lookup(name string) (Callback, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	v, ok := r.tree.Get(name)
	if !ok {
		return nil, false
	}
	return v.(Callback), true
}

// Names 按字典序返回prefix下的回调名
func (r *Registry) Names(prefix string) []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	var names []string
	r.tree.WalkPrefix(prefix, func(s string, _ any) bool {
		names = append(names, s)
		return false
	})
	return names
}

func (r *Registry) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.tree.Len()
}

// Call 实现 timer.HostBridge; 回调执行期间不持有锁, 回调里可以注册或注销
func (r *Registry) Call(name string, arguments args.Arguments) (outcome timer.Outcome) {
	cb, ok := r.Lookup(name)
	if !ok {
		return timer.OutcomeNotFound
	}
	defer func() {
		if e := recover(); e != nil {
			mlog.Errorf("callback %s panic: %v\n%s", name, e, debug.Stack())
			outcome = timer.OutcomeFailed
		}
	}()
	if err := cb(arguments); err != nil {
		mlog.Warnf("callback %s%s error: %v", name, arguments, err)
		return timer.OutcomeFailed
	}
	return timer.OutcomeInvoked
}
