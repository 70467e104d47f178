// Package args 定时器回调参数: 按类型描述符把宿主传入的原始值解码成带标签的参数序列。
// 解码时深拷贝文本和数组, 解码结果不引用调用方的任何内存。
package args

import (
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindInteger Kind = iota
	KindFloat
	KindText
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Argument 单个回调参数, 创建后不可变
type Argument struct {
	kind  Kind
	cell  int32
	float float32
	text  []byte
	array []int32
}

func Int(v int32) Argument {
	return Argument{kind: KindInteger, cell: v}
}

func Float(v float32) Argument {
	return Argument{kind: KindFloat, float: v}
}

// Text 拷贝b
func Text(b []byte) Argument {
	return Argument{kind: KindText, text: append([]byte{}, b...)}
}

func String(s string) Argument {
	return Argument{kind: KindText, text: []byte(s)}
}

// Array 拷贝cells
func Array(cells []int32) Argument {
	return Argument{kind: KindArray, array: append([]int32{}, cells...)}
}

func (a Argument) Kind() Kind {
	return a.kind
}

func (a Argument) Int() int32 {
	return a.cell
}

func (a Argument) Float() float32 {
	return a.float
}

// Text 返回文本的副本
func (a Argument) Text() []byte {
	return append([]byte{}, a.text...)
}

func (a Argument) String() string {
	switch a.kind {
	case KindInteger:
		return strconv.FormatInt(int64(a.cell), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(a.float), 'g', -1, 32)
	case KindText:
		return strconv.Quote(string(a.text))
	case KindArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, c := range a.array {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatInt(int64(c), 10))
		}
		sb.WriteByte(']')
		return sb.String()
	}
	return "?"
}

// Array 返回数组的副本
func (a Argument) Array() []int32 {
	return append([]int32{}, a.array...)
}

// Len 文本字节数或数组元素个数, 标量为0
func (a Argument) Len() int {
	switch a.kind {
	case KindText:
		return len(a.text)
	case KindArray:
		return len(a.array)
	}
	return 0
}

// Arguments 回调参数序列, 按描述符顺序
type Arguments []Argument

func (as Arguments) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, a := range as {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Descriptor 与序列对应的规范描述符, 数组写作"aA"
func (as Arguments) Descriptor() string {
	var sb strings.Builder
	for _, a := range as {
		switch a.kind {
		case KindInteger:
			sb.WriteByte(LetterInteger)
		case KindFloat:
			sb.WriteByte(LetterFloat)
		case KindText:
			sb.WriteByte(LetterText)
		case KindArray:
			sb.WriteByte(LetterArray)
			sb.WriteByte(LetterArrayLength)
		}
	}
	return sb.String()
}

// Clone 浅拷贝序列; Argument内部数据不可变, 共享是安全的
func (as Arguments) Clone() Arguments {
	if as == nil {
		return nil
	}
	return append(make(Arguments, 0, len(as)), as...)
}
