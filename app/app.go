// Package app 按顺序初始化并运行模块, 收到退出信号后逆序销毁
package app

import (
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fixkme/ptimer/errs"
	"github.com/fixkme/ptimer/mlog"
)

// 全局状态
const (
	StateNone = iota // 未开始或已停止
	StateInit        // 正在初始化中
	StateRun         // 正在运行中
	StateStop        // 正在停止中
)

type Module interface {
	OnInit() error // 初始化
	Destroy()      // 销毁
	Run()          // 启动, 阻塞直到Destroy
	Name() string  // 名字
}

// App 中的 modules 在启动之后不能变更
type App struct {
	mods  []Module
	state atomic.Int32
	sig   chan os.Signal
	wg    sync.WaitGroup
}

func New() *App {
	return &App{sig: make(chan os.Signal, 1)}
}

func (app *App) GetState() int32 {
	return app.state.Load()
}

// start 初始化所有模块后逐个启动; 任一模块初始化失败时销毁已初始化的模块
func (app *App) start(mods ...Module) error {
	if !app.state.CompareAndSwap(StateNone, StateInit) {
		return errs.Internal.Print("app cannot start twice")
	}
	mlog.Info("app starting up")
	for i, m := range mods {
		if err := m.OnInit(); err != nil {
			for j := i - 1; j >= 0; j-- {
				destroy(mods[j])
			}
			app.state.Store(StateNone)
			return errs.WrapError(err).Printf("module %s init", m.Name())
		}
	}
	app.mods = mods
	for _, m := range app.mods {
		app.wg.Add(1)
		go run(m, &app.wg)
	}
	app.state.Store(StateRun)
	mlog.Info("app started")
	return nil
}

func (app *App) stop() {
	if !app.state.CompareAndSwap(StateRun, StateStop) {
		return
	}
	mlog.Info("app stop begin")
	// 先进后出
	for i := len(app.mods) - 1; i >= 0; i-- {
		m := app.mods[i]
		mlog.Infof("app stop module %s", m.Name())
		destroy(m)
	}
	app.wg.Wait()
	app.state.Store(StateNone)
	mlog.Info("app stopped")
}

func run(m Module, wg *sync.WaitGroup) {
	defer wg.Done()
	m.Run()
}

func destroy(m Module) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module destroy panic: %v\n%s", m.Name(), r, debug.Stack())
		}
	}()
	m.Destroy()
}

// Run 启动模块并阻塞, 收到SIGINT/SIGTERM或Stop后销毁模块返回, SIGHUP忽略
func (app *App) Run(mods ...Module) error {
	if err := app.start(mods...); err != nil {
		return err
	}
	signal.Notify(app.sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(app.sig)
	for {
		sig := <-app.sig
		mlog.Infof("server closing down (signal: %v)", sig)
		if sig != syscall.SIGHUP {
			break
		}
	}
	app.stop()
	return nil
}

func (app *App) Stop() {
	select {
	case app.sig <- syscall.SIGTERM:
	default:
	}
}
