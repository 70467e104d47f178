package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/fixkme/ptimer/errs"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogConfig `json:",inline" yaml:",inline"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Relay     RelayConfig     `json:"relay" yaml:"relay"`
}

type LogConfig struct {
	LogPath   string `json:"log_path" yaml:"log_path"`
	LogName   string `json:"log_name" yaml:"log_name"`
	LogLevel  string `json:"log_level" yaml:"log_level"`   // trace/debug/info/notice/warn/error/fatal
	LogFormat string `json:"log_format" yaml:"log_format"` // text 或 json
	LogStdOut bool   `json:"log_std_out" yaml:"log_std_out"`
}

type SchedulerConfig struct {
	TickIntervalMs    int     `json:"tick_interval_ms" yaml:"tick_interval_ms"`         //驱动协程最长tick间隔
	TaskQueueSize     int     `json:"task_queue_size" yaml:"task_queue_size"`           //跨协程请求队列长度
	Capacity          int     `json:"capacity" yaml:"capacity"`                         //预分配定时器数量
	NotFoundLogPerSec float64 `json:"not_found_log_per_sec" yaml:"not_found_log_per_sec"` //找不到回调的日志限速, 0不限制
	NotFoundLogBurst  int     `json:"not_found_log_burst" yaml:"not_found_log_burst"`
}

// RelayConfig 把回调转发到redis频道, 由其他进程执行
type RelayConfig struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	RedisMode        string `json:"redis_mode" yaml:"redis_mode"` // single/sentinel/cluster
	RedisAddr        string `json:"redis_addr" yaml:"redis_addr"` // 多个地址用,隔开
	RedisMasterName  string `json:"redis_master_name" yaml:"redis_master_name"`
	RedisPassword    string `json:"redis_password" yaml:"redis_password"`
	RedisDB          int    `json:"redis_db" yaml:"redis_db"`
	Channel          string `json:"channel" yaml:"channel"`
	PublishTimeoutMs int    `json:"publish_timeout_ms" yaml:"publish_timeout_ms"`
}

func Default() *Config {
	return &Config{
		LogConfig: LogConfig{
			LogName:   "ptimer",
			LogLevel:  "info",
			LogFormat: "text",
			LogStdOut: true,
		},
		Scheduler: SchedulerConfig{
			TickIntervalMs:    10,
			TaskQueueSize:     10240,
			Capacity:          1000,
			NotFoundLogPerSec: 1,
			NotFoundLogBurst:  10,
		},
		Relay: RelayConfig{
			RedisMode:        "single",
			RedisAddr:        "127.0.0.1:6379",
			Channel:          "ptimer:calls",
			PublishTimeoutMs: 100,
		},
	}
}

// LoadConfig 读取配置文件(.json/.yaml/.yml)覆盖默认值, 再用环境变量覆盖
func LoadConfig(configFile string, loadConfigFromEnv func(*Config) error) (*Config, error) {
	conf := Default()
	if len(configFile) > 0 {
		if err := loadConfigFromFile(configFile, conf); err != nil {
			return nil, err
		}
	}
	if loadConfigFromEnv != nil {
		if err := loadConfigFromEnv(conf); err != nil {
			return nil, err
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func loadConfigFromFile(configFile string, conf *Config) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, conf)
	default:
		return json.Unmarshal(data, conf)
	}
}

func (conf *Config) Validate() error {
	s := conf.Scheduler
	if s.TickIntervalMs <= 0 {
		return errs.Argument.Printf("tick_interval_ms must be positive, got %d", s.TickIntervalMs)
	}
	if s.Capacity < 0 || s.TaskQueueSize < 0 {
		return errs.Argument.Print("capacity and task_queue_size must not be negative")
	}
	if s.NotFoundLogPerSec < 0 {
		return errs.Argument.Printf("not_found_log_per_sec must not be negative, got %v", s.NotFoundLogPerSec)
	}
	switch conf.LogFormat {
	case "", "text", "json":
	default:
		return errs.Argument.Printf("unknown log_format %q", conf.LogFormat)
	}
	if r := conf.Relay; r.Enabled {
		if r.RedisAddr == "" || r.Channel == "" {
			return errs.Argument.Print("relay needs redis_addr and channel")
		}
		switch r.RedisMode {
		case "", "single", "sentinel", "cluster":
		default:
			return errs.Argument.Printf("unknown redis_mode %q", r.RedisMode)
		}
	}
	return nil
}

func (conf *Config) JsonFormat() string {
	if conf == nil {
		return "{}"
	}
	c := *conf
	if c.Relay.RedisPassword != "" {
		c.Relay.RedisPassword = "******"
	}
	data, err := json.MarshalIndent(&c, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
