package host

import (
	"encoding/base64"
	"fmt"

	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/errs"
	"github.com/rs/xid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Call 中继消息解码后的内容
type Call struct {
	Id   string // 投递id, 每次触发唯一
	Node string // 发送方节点id
	Name string
	Args args.Arguments
}

// 消息格式(protobuf Struct):
//
//	{"id": xid, "node": uuid, "name": 回调名, "args": [{"t": 类型字母, "v": 值}, ...]}
//
// 文本以base64字符串传输, 数组为数字列表
const (
	fieldId   = "id"
	fieldNode = "node"
	fieldName = "name"
	fieldArgs = "args"
	fieldType = "t"
	fieldVal  = "v"
)

// EncodeCall 编码一次回调触发, 返回消息和投递id
func EncodeCall(node, name string, arguments args.Arguments) ([]byte, string, error) {
	id := xid.New().String()
	list := make([]any, 0, len(arguments))
	for _, a := range arguments {
		var letter string
		var v any
		switch a.Kind() {
		case args.KindInteger:
			letter, v = string(rune(args.LetterInteger)), a.Int()
		case args.KindFloat:
			letter, v = string(rune(args.LetterFloat)), a.Float()
		case args.KindText:
			letter, v = string(rune(args.LetterText)), a.Text()
		case args.KindArray:
			cells := a.Array()
			vs := make([]any, len(cells))
			for i, c := range cells {
				vs[i] = c
			}
			letter, v = string(rune(args.LetterArray)), vs
		default:
			return nil, "", errs.Internal.Printf("unknown argument kind %v", a.Kind())
		}
		list = append(list, map[string]any{fieldType: letter, fieldVal: v})
	}
	st, err := structpb.NewStruct(map[string]any{
		fieldId:   id,
		fieldNode: node,
		fieldName: name,
		fieldArgs: list,
	})
	if err != nil {
		return nil, "", err
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, "", err
	}
	return data, id, nil
}

func DecodeCall(data []byte) (*Call, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, errs.Argument.Printf("relay payload: %v", err)
	}
	fields := st.GetFields()
	c := &Call{
		Id:   fields[fieldId].GetStringValue(),
		Node: fields[fieldNode].GetStringValue(),
		Name: fields[fieldName].GetStringValue(),
	}
	if c.Name == "" {
		return nil, errs.Argument.Print("relay payload without callback name")
	}
	for i, item := range fields[fieldArgs].GetListValue().GetValues() {
		a, err := decodeArg(item.GetStructValue())
		if err != nil {
			return nil, errs.Argument.Printf("relay argument %d: %v", i, err)
		}
		c.Args = append(c.Args, a)
	}
	return c, nil
}

func decodeArg(st *structpb.Struct) (args.Argument, error) {
	fields := st.GetFields()
	t := fields[fieldType].GetStringValue()
	v := fields[fieldVal]
	if len(t) != 1 || v == nil {
		return args.Argument{}, fmt.Errorf("malformed argument")
	}
	switch t[0] {
	case args.LetterFloat:
		return args.Float(float32(v.GetNumberValue())), nil
	case args.LetterText:
		b, err := base64.StdEncoding.DecodeString(v.GetStringValue())
		if err != nil {
			return args.Argument{}, err
		}
		return args.Text(b), nil
	case args.LetterArray:
		vs := v.GetListValue().GetValues()
		cells := make([]int32, len(vs))
		for i, c := range vs {
			cells[i] = int32(c.GetNumberValue())
		}
		return args.Array(cells), nil
	case args.LetterInteger:
		return args.Int(int32(v.GetNumberValue())), nil
	}
	return args.Argument{}, fmt.Errorf("unknown argument type %q", t)
}
