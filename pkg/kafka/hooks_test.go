package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicHook struct{ NoopHook }

func (panicHook) BeforeHandle(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
	panic("boom")
}

type recordingHook struct {
	NoopHook
	name   string
	events *[]string
}

func (h recordingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	*h.events = append(*h.events, h.name)
}

func (h recordingHook) OnError(context.Context, string, kafka.Message, []byte, error) {
	*h.events = append(*h.events, "err:"+h.name)
}

func TestTraceHookPropagatesHeader(t *testing.T) {
	chain := NewHookChain(TraceHook{}, NewLoggingHook(nil))
	km := kafka.Message{Headers: []kafka.Header{{Key: TraceIDHeader, Value: []byte("abc")}}}

	ctx, _, data, err := chain.BeforeHandle(context.Background(), "t", km, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFrom(ctx))
	assert.Equal(t, []byte("x"), data)

	chain.AfterHandle(ctx, "t", km, data, errors.New("failed"))
}

func TestHookChainOrderAndPanics(t *testing.T) {
	var events []string
	chain := NewHookChain(
		recordingHook{name: "a", events: &events},
		nil,
		recordingHook{name: "b", events: &events},
	)
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	assert.Equal(t, []string{"b", "a"}, events)

	events = nil
	chain = NewHookChain(recordingHook{name: "a", events: &events}, panicHook{})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, []string{"err:a"}, events)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10, 100, attempt)
		assert.Greater(t, int64(d), int64(0))
		assert.LessOrEqual(t, int64(d), int64(100))
	}
}
