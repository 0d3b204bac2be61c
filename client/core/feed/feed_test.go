package feed

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/transport/transporttest"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

var (
	contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	ownerA   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	ownerB   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

type collector struct {
	mu   sync.Mutex
	evs  []*registry.ReportSubmitted
	kind map[event.EventType]int
}

func newCollector() *collector {
	return &collector{kind: make(map[event.EventType]int)}
}

func (c *collector) handle(ev *registry.ReportSubmitted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *collector) ObserveEvent(kind event.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind[kind]++
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.evs)
}

func encode(t *testing.T, codec *registry.Codec, owner common.Address, year uint16, value int64, tx string) types.Log {
	t.Helper()
	lg, err := codec.EncodeReportSubmitted(contract, &registry.ReportSubmitted{
		Owner:         owner,
		KPITypeID:     big.NewInt(1),
		ReportingYear: year,
		Value:         big.NewInt(value),
		MetadataCID:   common.HexToHash("0xabc"),
		Version:       1,
		Timestamp:     1700000000,
	})
	require.NoError(t, err)
	lg.TxHash = common.HexToHash(tx)
	return lg
}

func startFeed(t *testing.T, f *Feed, filter Filter, c *collector) (cancel func(), done chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- f.Run(ctx, filter, c.handle) }()
	return cancelFn, done
}

// TestFeedDedupAndRemoved 测试去重与重组撤销
func TestFeedDedupAndRemoved(t *testing.T) {
	backend := transporttest.New()
	codec := registry.MustNewCodec()
	bus := event.New()
	c := newCollector()

	var removed []*registry.ReportSubmitted
	var mu sync.Mutex
	_, err := bus.Subscribe(event.EventTypeReportRemoved, func(ev *registry.ReportSubmitted) {
		mu.Lock()
		removed = append(removed, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	f := New(backend, codec, contract, WithPublisher(bus), WithObserver(c))
	cancel, done := startFeed(t, f, Filter{}, c)

	require.Eventually(t, func() bool { return backend.Subscriptions.Load() == 1 }, time.Second, 5*time.Millisecond)

	lg := encode(t, codec, ownerA, 2023, 100, "0x01")
	backend.Emit(lg)
	backend.Emit(lg) // 重复推送
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	lg.Removed = true
	backend.Emit(lg)
	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), backend.Unsubscribed.Load())

	assert.Equal(t, 1, c.kind[event.EventTypeReportObserved])
	assert.Equal(t, 1, c.kind[event.EventTypeReportRemoved])
	mu.Lock()
	require.Len(t, removed, 1)
	assert.Equal(t, ownerA, removed[0].Owner)
	mu.Unlock()
}

// TestFeedFilterAndBackfill 测试按公司过滤与历史回填
func TestFeedFilterAndBackfill(t *testing.T) {
	backend := transporttest.New()
	codec := registry.MustNewCodec()
	c := newCollector()

	old := encode(t, codec, ownerA, 2021, 10, "0x10")
	backend.Emit(old)
	backend.Emit(encode(t, codec, ownerB, 2021, 20, "0x11"))

	f := New(backend, codec, contract)
	cancel, done := startFeed(t, f, Filter{Owner: ownerA, FromBlock: 1}, c)

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	backend.Emit(encode(t, codec, ownerB, 2022, 30, "0x12"))
	backend.Emit(encode(t, codec, ownerA, 2022, 40, "0x13"))
	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.evs {
		assert.Equal(t, ownerA, ev.Owner)
	}
	assert.Equal(t, uint16(2021), c.evs[0].ReportingYear)
	assert.Equal(t, int64(40), c.evs[1].Value.Int64())
}
