package time

import (
	"time"
)

const (
	SecMs  = 1000
	MinMs  = 60 * SecMs
	HourMs = 60 * MinMs
)

var (
	origin     = time.Now()       // 单调时钟起点
	timeOffset = time.Duration(0) // 时间偏移, 调试用
)

// SetTimeOffset 设置时间偏移量, 只能向前拨动; 负值会被忽略
func SetTimeOffset(newOffset time.Duration) {
	if newOffset < 0 {
		return
	}
	timeOffset = newOffset
}

// GetTimeOffset 获取时间偏移量
func GetTimeOffset() time.Duration {
	return timeOffset
}

// NowMs 进程启动以来的单调毫秒数, 不受系统时间调整影响
func NowMs() int64 {
	return (time.Since(origin) + timeOffset).Milliseconds()
}

// Ms2Duration 毫秒转Duration
func Ms2Duration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
