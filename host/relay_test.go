package host

import (
	"context"
	"errors"
	"testing"

	"github.com/fixkme/ptimer/args"
	"github.com/fixkme/ptimer/config"
	"github.com/fixkme/ptimer/errs"
	"github.com/fixkme/ptimer/timer"
	"github.com/redis/go-redis/v9"
)

type fakePublisher struct {
	receivers int64
	err       error
	channel   string
	messages  [][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	p.channel = channel
	p.messages = append(p.messages, message.([]byte))
	return redis.NewIntResult(p.receivers, p.err)
}

func TestRelayOutcomes(t *testing.T) {
	pub := &fakePublisher{receivers: 2}
	r := NewRelay(pub, "ptimer:calls", 0)
	in := args.Arguments{args.Int(-3), args.Float(1.5), args.String("héllo"), args.Array([]int32{4, 5, 6})}
	if o := r.Call("quest:OnExpire", in); o != timer.OutcomeInvoked {
		t.Fatalf("outcome = %v", o)
	}
	if pub.channel != "ptimer:calls" || len(pub.messages) != 1 {
		t.Fatalf("published %d to %q", len(pub.messages), pub.channel)
	}
	c, err := DecodeCall(pub.messages[0])
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "quest:OnExpire" || c.Node != r.Node() || c.Id == "" {
		t.Fatalf("call = %+v", c)
	}
	if c.Args.String() != in.String() || c.Args.Descriptor() != in.Descriptor() {
		t.Fatalf("args = %v, want %v", c.Args, in)
	}

	pub.receivers = 0
	if o := r.Call("quest:OnExpire", nil); o != timer.OutcomeNotFound {
		t.Fatalf("no subscriber outcome = %v", o)
	}
	pub.err = errors.New("connection refused")
	if o := r.Call("quest:OnExpire", nil); o != timer.OutcomeFailed {
		t.Fatalf("error outcome = %v", o)
	}
}

func TestEncodeCallUniqueIds(t *testing.T) {
	_, id1, err := EncodeCall("n", "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, id2, _ := EncodeCall("n", "a", nil)
	if id1 == id2 {
		t.Fatalf("duplicate delivery id %s", id1)
	}
}

func TestDecodeCallErrors(t *testing.T) {
	if _, err := DecodeCall([]byte{0xff, 0x01}); !errors.Is(err, errs.Argument) {
		t.Fatalf("garbage: %v", err)
	}
	data, _, _ := EncodeCall("n", "", nil)
	if _, err := DecodeCall(data); !errors.Is(err, errs.Argument) {
		t.Fatalf("empty name: %v", err)
	}
}

func TestNewRedisClient(t *testing.T) {
	cases := []struct {
		conf config.RelayConfig
		ok   bool
	}{
		{config.RelayConfig{RedisAddr: "127.0.0.1:6379"}, true},
		{config.RelayConfig{RedisMode: RedisModeCluster, RedisAddr: "a:1, b:2"}, true},
		{config.RelayConfig{RedisMode: RedisModeSentinel, RedisAddr: "a:1", RedisMasterName: "m"}, true},
		{config.RelayConfig{RedisMode: RedisModeSentinel, RedisAddr: "a:1"}, false},
		{config.RelayConfig{RedisAddr: " , "}, false},
	}
	for i, c := range cases {
		client, err := NewRedisClient(&c.conf)
		if (err == nil) != c.ok {
			t.Errorf("case %d: err = %v", i, err)
		}
		if client != nil {
			client.Close()
		}
	}
	if _, err := NewRedisClient(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}
