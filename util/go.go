package util

import (
	"runtime"
	"strconv"
	"strings"
)

// GoroutineID 当前协程id, 解析调用栈获得, 只用于判断调用方是否处于同一协程
func GoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(field, 10, 64)
	return id
}
