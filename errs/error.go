package errs

import (
	"errors"
	"fmt"
	"strings"
)

type CodeError interface {
	error
	Code() int32
	Print(extras ...string) CodeError
	Printf(format string, args ...any) CodeError
	Is(error) bool
}

func CreateCodeError(code int32, desc string) CodeError {
	return &codeError{
		Errno: code, // 错误码数字
		Desc:  desc, // 错误描述字符串, 如：ARGUMENT、CALLBACK_NOT_FOUND
	}
}

// WrapError 非CodeError包装为Unknown, 保留原始描述
func WrapError(err error) CodeError {
	if err == nil {
		return nil
	}
	var x *codeError
	if errors.As(err, &x) {
		return x
	}
	return CreateCodeError(ErrCode_Unknown, err.Error())
}

// CodeOf 获取错误码, nil为OK
func CodeOf(err error) int32 {
	if err == nil {
		return ErrCode_OK
	}
	var x *codeError
	if errors.As(err, &x) {
		return x.Errno
	}
	return ErrCode_Unknown
}

type codeError struct {
	Errno int32
	Desc  string
}

func (e *codeError) Code() int32 {
	return e.Errno
}

func (e *codeError) Error() string {
	return e.Desc
}

func (e *codeError) String() string {
	return fmt.Sprintf("errno: %d, desc: %s", e.Errno, e.Desc)
}

func (e *codeError) Print(extras ...string) CodeError {
	if len(extras) == 0 {
		return e
	}
	ns := len(e.Desc) + len(extras)
	for _, extra := range extras {
		ns += len(extra)
	}
	builder := strings.Builder{}
	builder.Grow(ns)
	builder.WriteString(e.Desc)
	for _, extra := range extras {
		builder.WriteByte(',')
		builder.WriteString(extra)
	}
	return &codeError{
		Errno: e.Errno,
		Desc:  builder.String(),
	}
}

func (e *codeError) Printf(format string, args ...any) CodeError {
	if len(format) == 0 {
		return e
	}
	return &codeError{
		Errno: e.Errno,
		Desc:  e.Desc + "," + fmt.Sprintf(format, args...),
	}
}

// Is 错误码相同即视为同一错误, 供errors.Is使用
func (e *codeError) Is(target error) bool {
	if x, ok := target.(*codeError); ok {
		return x.Errno == e.Errno
	}
	return false
}
