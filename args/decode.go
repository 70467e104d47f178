package args

import (
	"math"

	"github.com/fixkme/ptimer/errs"
)

// 类型描述符字母, 每个字母对应一个原始值。
// 数组参数占两个字母: 先是数据 'a', 紧接着是长度 'A'(或 'i'),
// 长度值决定拷贝多少个元素。无法识别的字母一律按整数处理。
const (
	LetterInteger     = 'd'
	LetterCell        = 'i'
	LetterFloat       = 'f'
	LetterText        = 's'
	LetterArray       = 'a'
	LetterArrayLength = 'A'
)

// Decode 按descriptor把values解码成参数序列, 失败时不返回任何参数。
//
// 支持的原始值:
//   - 整数: 各种整数类型(需在int32范围内)和bool
//   - 浮点: float32, float64, 整数类型按数值转换
//   - 文本: string, []byte, 或每个元素一个字符的[]int32; 在第一个0处截断
//   - 数组: []int32 或 []int, 后跟一个整数长度
func Decode(descriptor string, values ...any) (Arguments, error) {
	if len(descriptor) != len(values) {
		return nil, errs.Argument.Printf("descriptor %q expects %d values, got %d", descriptor, len(descriptor), len(values))
	}
	out := make(Arguments, 0, len(descriptor))
	for i := 0; i < len(descriptor); i++ {
		letter := descriptor[i]
		switch letter {
		case LetterText:
			text, err := decodeText(values[i])
			if err != nil {
				return nil, errs.Argument.Printf("value %d: %v", i, err)
			}
			out = append(out, Argument{kind: KindText, text: text})
		case LetterFloat:
			f, err := decodeFloat(values[i])
			if err != nil {
				return nil, errs.Argument.Printf("value %d: %v", i, err)
			}
			out = append(out, Float(f))
		case LetterArray:
			if i+1 >= len(descriptor) || (descriptor[i+1] != LetterArrayLength && descriptor[i+1] != LetterCell) {
				return nil, errs.Argument.Printf("array at %d must be followed by a length letter (%c or %c)", i, LetterArrayLength, LetterCell)
			}
			cells, err := decodeArray(values[i], values[i+1])
			if err != nil {
				return nil, errs.Argument.Printf("value %d: %v", i, err)
			}
			out = append(out, Argument{kind: KindArray, array: cells})
			i++
		case LetterArrayLength:
			return nil, errs.Argument.Printf("array length at %d has no preceding array (%c)", i, LetterArray)
		default:
			// d, i 以及任何未知字母都按整数处理
			cell, err := decodeCell(values[i])
			if err != nil {
				return nil, errs.Argument.Printf("value %d (%c): %v", i, letter, err)
			}
			out = append(out, Int(cell))
		}
	}
	return out, nil
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

const (
	errNotInteger  = decodeError("expected an integer cell")
	errOutOfRange  = decodeError("integer out of 32-bit cell range")
	errNotFloat    = decodeError("expected a float")
	errNotText     = decodeError("expected text")
	errNotArray    = decodeError("expected an array")
	errBadLength   = decodeError("array length must be a non-negative integer")
	errShortArray  = decodeError("array length exceeds supplied elements")
	errCellNotByte = decodeError("text cell is not a byte")
)

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func decodeCell(v any) (int32, error) {
	n, ok := toInt64(v)
	if !ok {
		return 0, errNotInteger
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, errOutOfRange
	}
	return int32(n), nil
}

func decodeFloat(v any) (float32, error) {
	switch x := v.(type) {
	case float32:
		return x, nil
	case float64:
		return float32(x), nil
	}
	if n, ok := toInt64(v); ok {
		return float32(n), nil
	}
	return 0, errNotFloat
}

func decodeText(v any) ([]byte, error) {
	var src []byte
	switch x := v.(type) {
	case string:
		src = []byte(x)
	case []byte:
		src = x
	case []int32:
		src = make([]byte, 0, len(x))
		for _, c := range x {
			if c == 0 {
				break
			}
			if c < 0 || c > math.MaxUint8 {
				return nil, errCellNotByte
			}
			src = append(src, byte(c))
		}
	default:
		return nil, errNotText
	}
	for i, b := range src {
		if b == 0 {
			src = src[:i]
			break
		}
	}
	// []byte(x)和转换后的cells已是新内存, 这里统一拷贝一次
	return append(make([]byte, 0, len(src)), src...), nil
}

func decodeArray(data, length any) ([]int32, error) {
	n, ok := toInt64(length)
	if !ok || n < 0 {
		return nil, errBadLength
	}
	switch x := data.(type) {
	case []int32:
		if n > int64(len(x)) {
			return nil, errShortArray
		}
		return append(make([]int32, 0, n), x[:n]...), nil
	case []int:
		if n > int64(len(x)) {
			return nil, errShortArray
		}
		cells := make([]int32, n)
		for i := range cells {
			if x[i] < math.MinInt32 || x[i] > math.MaxInt32 {
				return nil, errOutOfRange
			}
			cells[i] = int32(x[i])
		}
		return cells, nil
	}
	return nil, errNotArray
}
