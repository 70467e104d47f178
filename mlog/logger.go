package mlog

import (
	"strings"
)

type Logger interface {
	Trace(v ...any)
	Debug(v ...any)
	Info(v ...any)
	Notice(v ...any)
	Warn(v ...any)
	Error(v ...any)
	Fatal(v ...any)

	Tracef(format string, v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Noticef(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	Fatalf(format string, v ...any)

	IsLevelEnabled(level Level) bool
}

var logger Logger

func SetLogger(l Logger) {
	logger = l
}

func GetLogger() Logger {
	return logger
}

func UseStdLogger(level Level) error {
	SetLogger(newStdoutLogger(level))
	return nil
}

type Level uint32

const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	NoticeLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

func (l Level) String() string {
	switch l {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case NoticeLevel:
		return "notice"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case TraceLevel:
		return "trace"
	}
	return "unknown"
}

// ParseLevel 配置中的日志等级, 无法识别时返回InfoLevel
func ParseLevel(level string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return TraceLevel, true
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "notice":
		return NoticeLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	}
	return InfoLevel, false
}

func IsLevelEnabled(level Level) bool {
	return logger != nil && logger.IsLevelEnabled(level)
}

func Trace(a ...any) {
	if logger == nil {
		return
	}
	logger.Trace(a...)
}

func Tracef(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Tracef(format, a...)
}

func Debug(a ...any) {
	if logger == nil {
		return
	}
	logger.Debug(a...)
}

func Debugf(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Debugf(format, a...)
}

func Info(a ...any) {
	if logger == nil {
		return
	}
	logger.Info(a...)
}

func Infof(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Infof(format, a...)
}

func Notice(a ...any) {
	if logger == nil {
		return
	}
	logger.Notice(a...)
}

func Noticef(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Noticef(format, a...)
}

func Warn(a ...any) {
	if logger == nil {
		return
	}
	logger.Warn(a...)
}

func Warnf(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Warnf(format, a...)
}

func Error(a ...any) {
	if logger == nil {
		return
	}
	logger.Error(a...)
}

func Errorf(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Errorf(format, a...)
}

func Fatal(a ...any) {
	if logger == nil {
		return
	}
	logger.Fatal(a...)
}

func Fatalf(format string, a ...any) {
	if logger == nil {
		return
	}
	logger.Fatalf(format, a...)
}
