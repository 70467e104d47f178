package host

import (
	"context"
	"time"

	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/mlog"
	"github.com/fixkme/ptimer/timer"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher redis.UniversalClient 中 Relay 用到的部分
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Relay 把定时器触发转发到redis频道, 由订阅的进程执行回调。
// 没有订阅者时视为回调不存在
type Relay struct {
	pub     Publisher
	channel string
	node    string
	timeout time.Duration
}

var _ timer.HostBridge = (*Relay)(nil)

func NewRelay(pub Publisher, channel string, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &Relay{
		pub:     pub,
		channel: channel,
		node:    uuid.NewString(),
		timeout: timeout,
	}
}

// Node 本进程的节点id, 写在每条消息里
func (r *Relay) Node() string {
	return r.node
}

func (r *Relay) Channel() string {
	return r.channel
}

func (r *Relay) Call(name string, arguments args.Arguments) timer.Outcome {
	data, id, err := EncodeCall(r.node, name, arguments)
	if err != nil {
		mlog.Errorf("relay encode %s%s error: %v", name, arguments, err)
		return timer.OutcomeFailed
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	receivers, err := r.pub.Publish(ctx, r.channel, data).Result()
	if err != nil {
		mlog.Errorf("relay publish %s to %s error: %v", name, r.channel, err)
		return timer.OutcomeFailed
	}
	if receivers == 0 {
		return timer.OutcomeNotFound
	}
	mlog.Tracef("relay %s delivered id=%s receivers=%d", name, id, receivers)
	return timer.OutcomeInvoked
}
