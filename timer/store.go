package timer

import (
	"github.com/eapache/queue"
	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/ds/skiplist"
	"github.com/fixkme/ptimer/ds/staticlist"
	"github.com/fixkme/ptimer/errs"
)

// Store 持有所有存活的定时器。
// 定时器放在槽位表里, 通过id查找; 跳表只保存(到期时间, id)排序键。
// 触发期间不持有定时器指针, 每一步都按id重新查找, 回调里任意增删都是安全的。
type Store struct {
	genId TimerId
	slots *staticlist.StaticList[_Timer]
	locs  map[TimerId]int // id -> 槽位
	queue *skiplist.SkipList[dueKey]
}

func NewStore(capacity int) *Store {
	if capacity < 16 {
		capacity = 16
	}
	return &Store{
		slots: staticlist.NewStaticList[_Timer](capacity),
		locs:  make(map[TimerId]int, capacity),
		queue: skiplist.NewSkipList[dueKey](),
	}
}

// Insert 加入定时器, 总是成功
func (s *Store) Insert(p Params) TimerId {
	s.genId++
	id := s.genId
	slot := s.slots.Malloc()
	t := s.slots.GetDataPointer(slot)
	t.id = id
	t.params = p
	t.params.Args = p.Args.Clone()
	t.status = StatusScheduled
	t.rearmed = false
	s.locs[id] = slot
	s.queue.Insert(dueKey{due: p.DueAt, id: id})
	return id
}

// Cancel 取消存活的定时器, 返回之前是否存活。
// 正在触发的定时器只标记为取消, 由Finish释放。
func (s *Store) Cancel(id TimerId) bool {
	slot, ok := s.locs[id]
	if !ok {
		return false
	}
	t := s.slots.GetDataPointer(slot)
	switch t.status {
	case StatusScheduled:
		s.queue.Remove(dueKey{due: t.params.DueAt, id: id})
		s.release(id, slot)
		return true
	case StatusFiring:
		t.status = StatusCancelled
		return true
	}
	return false
}

// Reset 重新设置到期时间和重复间隔。对正在触发的定时器, 新的设置在回调返回后生效,
// 并且不论原来是否重复都会再次入队。
func (s *Store) Reset(id TimerId, due, interval int64, repeat bool) bool {
	slot, ok := s.locs[id]
	if !ok {
		return false
	}
	t := s.slots.GetDataPointer(slot)
	switch t.status {
	case StatusScheduled:
		s.queue.Remove(dueKey{due: t.params.DueAt, id: id})
		t.params.DueAt, t.params.Interval, t.params.Repeat = due, interval, repeat
		s.queue.Insert(dueKey{due: due, id: id})
		return true
	case StatusFiring:
		t.params.DueAt, t.params.Interval, t.params.Repeat = due, interval, repeat
		t.rearmed = true
		return true
	}
	return false
}

// CancelWhere 取消所有满足条件的存活定时器, 返回数量
func (s *Store) CancelWhere(pred func(Info) bool) int {
	var ids []TimerId
	for id, slot := range s.locs {
		t := s.slots.GetDataPointer(slot)
		if t.status != StatusCancelled && pred(t.info()) {
			ids = append(ids, id)
		}
	}
	n := 0
	for _, id := range ids {
		if s.Cancel(id) {
			n++
		}
	}
	return n
}

// DrainDue 返回所有 due <= now 的定时器id, 按(到期时间, id)排序。
// 结果是调用时刻的快照: 之后新加入的定时器不在其中, 取消和重置需要在触发前重新检查。
func (s *Store) DrainDue(now int64) []TimerId {
	batch := queue.New()
	ids := make([]TimerId, 0, s.drainInto(now, batch))
	for batch.Length() > 0 {
		ids = append(ids, batch.Remove().(TimerId))
	}
	return ids
}

// drainInto DrainDue的实现, 写入复用的队列, 返回写入数量
func (s *Store) drainInto(now int64, batch *queue.Queue) int {
	n := 0
	s.queue.Foreach(func(k dueKey) bool {
		if k.due > now {
			return false
		}
		batch.Add(k.id)
		n++
		return true
	})
	return n
}

// begin 定时器进入触发状态并离开排序队列, 返回回调名和参数;
// 已取消, 已删除, 或在快照之后被Reset到now之后的定时器返回false
func (s *Store) begin(id TimerId, now int64) (string, args.Arguments, bool) {
	slot, ok := s.locs[id]
	if !ok {
		return "", nil, false
	}
	t := s.slots.GetDataPointer(slot)
	if t.status != StatusScheduled || t.params.DueAt > now {
		return "", nil, false
	}
	s.queue.Remove(dueKey{due: t.params.DueAt, id: id})
	t.status = StatusFiring
	return t.params.Name, t.params.Args, true
}

// finish 回调返回后: 已取消的释放, 重复或被Reset的重新入队, 一次性的释放。
// 返回是否重新入队
func (s *Store) finish(id TimerId, now int64) bool {
	slot, ok := s.locs[id]
	if !ok {
		panic(errs.Internal.Printf("firing timer %d vanished from store", id))
	}
	t := s.slots.GetDataPointer(slot)
	switch t.status {
	case StatusCancelled:
		s.release(id, slot)
		return false
	case StatusFiring:
	default:
		panic(errs.Internal.Printf("timer %d finished in status %s", id, t.status))
	}

	switch {
	case t.rearmed:
		t.rearmed = false
	case t.params.Repeat:
		t.params.DueAt = NextDue(t.params.DueAt, t.params.Interval, now)
	default:
		s.release(id, slot)
		return false
	}
	t.status = StatusScheduled
	s.queue.Insert(dueKey{due: t.params.DueAt, id: id})
	return true
}

func (s *Store) release(id TimerId, slot int) {
	delete(s.locs, id)
	s.slots.Free(slot)
}

// Get 查询定时器快照
func (s *Store) Get(id TimerId) (Info, bool) {
	slot, ok := s.locs[id]
	if !ok {
		return Info{}, false
	}
	return s.slots.GetDataPointer(slot).info(), true
}

// Len 存活定时器数量, 包括正在触发的
func (s *Store) Len() int {
	return len(s.locs)
}

// NextDue 最早的到期时间
func (s *Store) NextDue() (int64, bool) {
	k, ok := s.queue.First()
	return k.due, ok
}

// LastId 最近分配的id
func (s *Store) LastId() TimerId {
	return s.genId
}

// Clear 删除所有定时器; 正在触发的定时器标记为取消, 由Finish释放。id计数不重置
func (s *Store) Clear() {
	for id, slot := range s.locs {
		t := s.slots.GetDataPointer(slot)
		if t.status == StatusScheduled {
			s.release(id, slot)
		} else {
			t.status = StatusCancelled
		}
	}
	s.queue.Clear()
}

// Validate 检查内部不变量, 正常运行时不会失败
func (s *Store) Validate() error {
	if len(s.locs) != s.slots.Len() {
		return errs.Internal.Printf("index holds %d timers, slot table %d", len(s.locs), s.slots.Len())
	}
	scheduled := 0
	for id, slot := range s.locs {
		if !s.slots.InUse(slot) {
			return errs.Internal.Printf("timer %d points at free slot %d", id, slot)
		}
		t := s.slots.GetDataPointer(slot)
		if t.id != id {
			return errs.Internal.Printf("slot %d holds timer %d, indexed as %d", slot, t.id, id)
		}
		if id <= 0 || id > s.genId {
			return errs.Internal.Printf("timer id %d outside issued range", id)
		}
		if t.status == StatusScheduled {
			scheduled++
			if !s.queue.Contains(dueKey{due: t.params.DueAt, id: id}) {
				return errs.Internal.Printf("scheduled timer %d missing from queue", id)
			}
		}
	}
	if scheduled != s.queue.Len() {
		return errs.Internal.Printf("queue holds %d keys, %d timers scheduled", s.queue.Len(), scheduled)
	}
	var prev *dueKey
	var err error
	s.queue.Foreach(func(k dueKey) bool {
		if prev != nil && prev.Compare(k) >= 0 {
			err = errs.Internal.Printf("queue out of order at timer %d", k.id)
			return false
		}
		prev = &k
		return true
	})
	return err
}
