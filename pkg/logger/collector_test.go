package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *recordingPublisher) snapshot() ([]string, [][]AggregatedLogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([][]AggregatedLogEntry(nil), p.batches...)
}

func TestCollectorFoldsDuplicates(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "source unavailable", map[string]interface{}{"source": "owid"}, "repo.go:10")
	}
	c.AddLog("error", "source unavailable", map[string]interface{}{"source": "csv"}, "repo.go:10")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	topics, batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"logs"}, topics)
	require.Len(t, batches[0], 2)

	counts := map[interface{}]int{}
	for _, e := range batches[0] {
		counts[e.Fields["source"]] = e.Count
	}
	assert.Equal(t, 3, counts["owid"])
	assert.Equal(t, 1, counts["csv"])
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	require.Eventually(t, func() bool {
		_, batches := pub.snapshot()
		return len(batches) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.Pending())
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &recordingPublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	l.Error("fetch failed", String("source", "owid"), Error(errors.New("boom")))
	l.Warn("ignored by collector")
	assert.Equal(t, 1, l.collector.Pending())

	l.RemoveCollector()
	_, batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "fetch failed", batches[0][0].Message)
	assert.Equal(t, "boom", batches[0][0].Fields["error"])
}
