package util

import "math"

// AddInt64 饱和加法, 溢出时返回边界值和false
func AddInt64(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		// 溢出
		return math.MaxInt64, false
	} else if b < 0 && a < math.MinInt64-b {
		// 溢出
		return math.MinInt64, false
	}
	// 未发生溢出
	return a + b, true
}

// MulInt64 饱和乘法, 仅处理非负数
func MulInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt64/a {
		return math.MaxInt64, false
	}
	return a * b, true
}
