package staticlist

// Node 槽位, Next在空闲时指向下一个空闲槽位
type Node[T any] struct {
	Data T
	Next int
	used bool
}

// StaticList 静态链表实现的对象池, 槽位下标在Free之前保持稳定;
// 空闲槽位用完后按倍数扩容
type StaticList[T any] struct {
	datas []Node[T]
	free  int
	used  int
	zero  T // 零值
}

const Null = -1

func NewStaticList[T any](size int) *StaticList[T] {
	if size < 1 {
		size = 1
	}
	list := &StaticList[T]{
		datas: make([]Node[T], size),
	}
	list.Reset()
	return list
}

// Malloc 分配一个槽位, 返回下标
func (list *StaticList[T]) Malloc() int {
	if list.free == Null {
		list.grow()
	}
	p := list.free
	slot := &list.datas[p]
	list.free = slot.Next
	slot.Next = Null
	slot.used = true
	list.used++
	return p
}

// Free 释放槽位并清除数据, 重复释放无效
func (list *StaticList[T]) Free(p int) bool {
	if !list.InUse(p) {
		return false
	}
	node := &list.datas[p]
	node.Data = list.zero
	node.used = false
	node.Next = list.free
	list.free = p
	list.used--
	return true
}

func (list *StaticList[T]) InUse(p int) bool {
	return p >= 0 && p < len(list.datas) && list.datas[p].used
}

// GetDataPointer 返回的指针在下一次Malloc扩容前有效, 不可跨越可能分配槽位的调用持有
func (list *StaticList[T]) GetDataPointer(p int) *T {
	return &list.datas[p].Data
}

func (list *StaticList[T]) GetDataValue(p int) T {
	return list.datas[p].Data
}

func (list *StaticList[T]) SetDataValue(p int, val T) {
	list.datas[p].Data = val
}

func (list *StaticList[T]) Len() int {
	return list.used
}

func (list *StaticList[T]) Cap() int {
	return len(list.datas)
}

func (list *StaticList[T]) Reset() {
	list.link(0)
	list.free = 0
	list.used = 0
}

// link 把[from, len)的槽位串成空闲链表
func (list *StaticList[T]) link(from int) {
	size := len(list.datas)
	for i := from; i < size; i++ {
		list.datas[i].Data = list.zero
		list.datas[i].used = false
		list.datas[i].Next = i + 1
	}
	list.datas[size-1].Next = Null
}

func (list *StaticList[T]) grow() {
	old := len(list.datas)
	datas := make([]Node[T], old*2)
	copy(datas, list.datas)
	list.datas = datas
	list.link(old)
	list.free = old
}
