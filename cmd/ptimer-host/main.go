package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fixkme/ptimer/app"
	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/clock"
	"github.com/fixkme/ptimer/config"
	"github.com/fixkme/ptimer/host"
	"github.com/fixkme/ptimer/mlog"
	"github.com/fixkme/ptimer/timer"
)

const heartbeatCallback = "ptimer:heartbeat"

func main() {
	var cfgPath string
	var heartbeatMs int64
	flag.StringVar(&cfgPath, "config", "", "path to config file (.json/.yaml)")
	flag.Int64Var(&heartbeatMs, "heartbeat", 10000, "heartbeat timer interval in ms, 0 disables it")
	flag.Parse()

	if err := run(cfgPath, heartbeatMs); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath string, heartbeatMs int64) error {
	conf, err := config.LoadConfig(cfgPath, loadEnv)
	if err != nil {
		return err
	}
	closer, err := setupLog(&conf.LogConfig)
	if err != nil {
		return err
	}
	defer closer.Close()
	mlog.Infof("config: %s", conf.JsonFormat())

	var bridge timer.HostBridge
	registry := host.NewRegistry()
	if conf.Relay.Enabled {
		client, err := host.DialRedis(context.Background(), &conf.Relay)
		if err != nil {
			return err
		}
		defer client.Close()
		relay := host.NewRelay(client, conf.Relay.Channel, time.Duration(conf.Relay.PublishTimeoutMs)*time.Millisecond)
		mlog.Infof("relay timers to redis channel %s, node %s", relay.Channel(), relay.Node())
		bridge = relay
	} else {
		bridge = registry
	}

	sc := conf.Scheduler
	sched := timer.NewScheduler(bridge,
		timer.WithCapacity(sc.Capacity),
		timer.WithNotFoundLogLimit(sc.NotFoundLogPerSec, sc.NotFoundLogBurst),
	)
	driver := clock.NewDriver(sched, time.Duration(sc.TickIntervalMs)*time.Millisecond, sc.TaskQueueSize)

	if _, err = installHeartbeat(sched, bridge, registry, heartbeatMs, driver.Stats); err != nil {
		return err
	}

	return app.New().Run(driver)
}

// installHeartbeat 本地回调表作为宿主时注册心跳定时器; 中继模式下回调不在本进程执行, 不安装。
// 驱动协程启动前调用, 直接操作scheduler
func installHeartbeat(sched *timer.Scheduler, bridge timer.HostBridge, registry *host.Registry,
	intervalMs int64, stats func() (timer.Stats, error)) (timer.TimerId, error) {
	if intervalMs <= 0 {
		return 0, nil
	}
	if r, ok := bridge.(*host.Registry); !ok || r != registry {
		mlog.Info("heartbeat disabled, callbacks are relayed")
		return 0, nil
	}
	started := time.Now()
	registry.Register(heartbeatCallback, func(a args.Arguments) error {
		st, _ := stats()
		mlog.Infof("heartbeat %s uptime=%s fired=%d not_found=%d failed=%d",
			a, time.Since(started).Truncate(time.Second), st.Fired, st.NotFound, st.Failed)
		return nil
	})
	return sched.ScheduleOwned("ptimer", heartbeatCallback, intervalMs, true, "sd", strconv.Itoa(os.Getpid()), intervalMs)
}

// loadEnv 环境变量覆盖配置文件
func loadEnv(conf *config.Config) error {
	if v, ok := os.LookupEnv("PTIMER_LOG_LEVEL"); ok {
		conf.LogLevel = v
	}
	if v, ok := os.LookupEnv("PTIMER_LOG_PATH"); ok {
		conf.LogPath = v
	}
	if v, ok := os.LookupEnv("PTIMER_REDIS_ADDR"); ok {
		conf.Relay.Enabled = true
		conf.Relay.RedisAddr = v
	}
	if v, ok := os.LookupEnv("PTIMER_REDIS_PASSWORD"); ok {
		conf.Relay.RedisPassword = v
	}
	if v, ok := os.LookupEnv("PTIMER_TICK_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PTIMER_TICK_MS: %w", err)
		}
		conf.Scheduler.TickIntervalMs = ms
	}
	return nil
}

func setupLog(conf *config.LogConfig) (io.Closer, error) {
	level, ok := mlog.ParseLevel(conf.LogLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", conf.LogLevel)
	}
	if conf.LogFormat == "json" {
		path := conf.LogPath
		if conf.LogStdOut {
			path = ""
		}
		return mlog.UseZerolog(path, conf.LogName, level)
	}
	if err := mlog.UseStdLogger(level); err != nil {
		return nil, err
	}
	return io.NopCloser(nil), nil
}
