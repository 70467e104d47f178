package mlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fixkme/ptimer/util"
	"github.com/rs/zerolog"
)

// zeroLogger 结构化日志后端, 每行一个json对象
type zeroLogger struct {
	zl    zerolog.Logger
	level Level
}

func NewZerolog(w io.Writer, level Level) Logger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().
		Timestamp().
		Str("component", "ptimer").
		Logger()
	return &zeroLogger{zl: zl, level: level}
}

// UseZerolog 日志写入path/logName.log, path为空时写标准输出
func UseZerolog(path, logName string, level Level) (io.Closer, error) {
	if len(path) == 0 {
		SetLogger(NewZerolog(os.Stdout, level))
		return io.NopCloser(nil), nil
	}
	if logName == "" {
		logName = "ptimer"
	}
	file, err := util.OpenFile(filepath.Join(path, logName+".log"))
	if err != nil {
		return nil, err
	}
	SetLogger(NewZerolog(file, level))
	return file, nil
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case FatalLevel:
		return zerolog.FatalLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case NoticeLevel, InfoLevel:
		return zerolog.InfoLevel
	case DebugLevel:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}

func (l *zeroLogger) IsLevelEnabled(level Level) bool {
	return l.level >= level
}

func (l *zeroLogger) event(level Level) *zerolog.Event {
	if !l.IsLevelEnabled(level) {
		return nil
	}
	switch level {
	case FatalLevel:
		return l.zl.WithLevel(zerolog.FatalLevel)
	case ErrorLevel:
		return l.zl.Error()
	case WarnLevel:
		return l.zl.Warn()
	case NoticeLevel:
		return l.zl.Info().Bool("notice", true)
	case InfoLevel:
		return l.zl.Info()
	case DebugLevel:
		return l.zl.Debug()
	}
	return l.zl.Trace()
}

func (l *zeroLogger) log(level Level, v ...any) {
	if e := l.event(level); e != nil {
		e.Msg(fmt.Sprint(v...))
	}
}

func (l *zeroLogger) logf(level Level, format string, v ...any) {
	if e := l.event(level); e != nil {
		e.Msgf(format, v...)
	}
}

func (l *zeroLogger) Trace(v ...any) { l.log(TraceLevel, v...) }
func (l *zeroLogger) Tracef(format string, v ...any) { l.logf(TraceLevel, format, v...) }
func (l *zeroLogger) Debug(v ...any) { l.log(DebugLevel, v...) }
func (l *zeroLogger) Debugf(format string, v ...any) { l.logf(DebugLevel, format, v...) }
func (l *zeroLogger) Info(v ...any) { l.log(InfoLevel, v...) }
func (l *zeroLogger) Infof(format string, v ...any) { l.logf(InfoLevel, format, v...) }
func (l *zeroLogger) Notice(v ...any) { l.log(NoticeLevel, v...) }
func (l *zeroLogger) Noticef(format string, v ...any) { l.logf(NoticeLevel, format, v...) }
func (l *zeroLogger) Warn(v ...any) { l.log(WarnLevel, v...) }
func (l *zeroLogger) Warnf(format string, v ...any) { l.logf(WarnLevel, format, v...) }
func (l *zeroLogger) Error(v ...any) { l.log(ErrorLevel, v...) }
func (l *zeroLogger) Errorf(format string, v ...any) { l.logf(ErrorLevel, format, v...) }

func (l *zeroLogger) Fatal(v ...any) {
	l.log(FatalLevel, v...)
	os.Exit(1)
}

func (l *zeroLogger) Fatalf(format string, v ...any) {
	l.logf(FatalLevel, format, v...)
	os.Exit(1)
}
