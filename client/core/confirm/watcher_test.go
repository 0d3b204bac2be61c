package confirm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/esg-registry/client/core/registry"
)

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	ownerAddr    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	metadataCID  = crypto.Keccak256Hash([]byte("scope1-2024.json"))
)

// countingSub 统计注销次数的订阅
type countingSub struct {
	ethereum.Subscription
	unsubscribed *atomic.Int32
}

func (s countingSub) Unsubscribe() {
	s.unsubscribed.Add(1)
	s.Subscription.Unsubscribe()
}

// memBackend 内存日志后端
type memBackend struct {
	feed         event.Feed
	history      []types.Log
	subErr       error // 订阅建立后通过 Err() 返回
	dialErr      error // 订阅建立失败
	unsubscribed atomic.Int32
	lastQuery    ethereum.FilterQuery
	hangFilter   bool // FilterLogs 阻塞到 ctx 结束
}

func (b *memBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	b.lastQuery = q
	if b.subErr != nil {
		err := b.subErr
		return countingSub{
			Subscription: event.NewSubscription(func(quit <-chan struct{}) error { return err }),
			unsubscribed: &b.unsubscribed,
		}, nil
	}
	return countingSub{Subscription: b.feed.Subscribe(ch), unsubscribed: &b.unsubscribed}, nil
}

func (b *memBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if b.hangFilter {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return b.history, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	states []State
}

func (o *recordingObserver) ObserveConfirmation(state State, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func expectation() Expectation {
	return Expectation{
		Owner:         ownerAddr,
		KPITypeID:     big.NewInt(1),
		ReportingYear: 2024,
		Value:         big.NewInt(1250),
		MetadataCID:   metadataCID,
	}
}

func reportLog(t *testing.T, codec *registry.Codec, mutate func(ev *registry.ReportSubmitted)) types.Log {
	t.Helper()
	ev := &registry.ReportSubmitted{
		Owner:         ownerAddr,
		KPITypeID:     big.NewInt(1),
		ReportingYear: 2024,
		Value:         big.NewInt(1250),
		MetadataCID:   metadataCID,
		Version:       1,
		Timestamp:     1718000000,
		Raw:           types.Log{TxHash: common.HexToHash("0x01"), BlockNumber: 12},
	}
	if mutate != nil {
		mutate(ev)
	}
	lg, err := codec.EncodeReportSubmitted(contractAddr, ev)
	require.NoError(t, err)
	return lg
}

// TestWaitResolvesOnFirstMatch 测试只在完全匹配时确认
func TestWaitResolvesOnFirstMatch(t *testing.T) {
	codec := registry.MustNewCodec()
	backend := &memBackend{}
	observer := &recordingObserver{}
	w := NewWatcher(backend, codec, contractAddr, WithTimeout(5*time.Second), WithObserver(observer))

	p, err := w.Watch(context.Background(), expectation())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{contractAddr}, backend.lastQuery.Addresses)

	otherEvent := reportLog(t, codec, nil)
	otherEvent.Topics[0] = crypto.Keccak256Hash([]byte("Other()"))

	removed := reportLog(t, codec, nil)
	removed.Removed = true

	backend.feed.Send(reportLog(t, codec, func(ev *registry.ReportSubmitted) { ev.Value = big.NewInt(1251) }))
	backend.feed.Send(reportLog(t, codec, func(ev *registry.ReportSubmitted) { ev.KPITypeID = big.NewInt(2) }))
	backend.feed.Send(otherEvent)
	backend.feed.Send(removed)
	backend.feed.Send(reportLog(t, codec, func(ev *registry.ReportSubmitted) {
		ev.Version = 7
		ev.Raw.TxHash = common.HexToHash("0x02")
	}))
	backend.feed.Send(reportLog(t, codec, func(ev *registry.ReportSubmitted) { ev.Version = 8 }))

	ev, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ev.Version)
	assert.Equal(t, common.HexToHash("0x02"), ev.Raw.TxHash)
	assert.Equal(t, StateResolved, p.State())
	assert.Equal(t, int32(1), backend.unsubscribed.Load())
	assert.Equal(t, []State{StateResolved}, observer.states)
}

// TestWaitTimeout 测试超时
func TestWaitTimeout(t *testing.T) {
	backend := &memBackend{}
	w := NewWatcher(backend, registry.MustNewCodec(), contractAddr, WithTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := w.Wait(context.Background(), expectation())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, int32(1), backend.unsubscribed.Load())
}

// TestWaitSubscriptionError 测试订阅中途失败
func TestWaitSubscriptionError(t *testing.T) {
	backend := &memBackend{subErr: errors.New("ws closed")}
	w := NewWatcher(backend, registry.MustNewCodec(), contractAddr)

	p, err := w.Watch(context.Background(), expectation())
	require.NoError(t, err)

	_, err = p.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubscription)
	assert.Contains(t, err.Error(), "ws closed")
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, int32(1), backend.unsubscribed.Load())
}

// TestWatchDialError 测试订阅建立失败
func TestWatchDialError(t *testing.T) {
	backend := &memBackend{dialErr: errors.New("notifications not supported")}
	w := NewWatcher(backend, registry.MustNewCodec(), contractAddr)

	_, err := w.Watch(context.Background(), expectation())
	assert.ErrorIs(t, err, ErrSubscription)

	_, err = w.Watch(context.Background(), Expectation{})
	assert.Error(t, err)
}

// TestCancel 测试取消
func TestCancel(t *testing.T) {
	t.Run("等待前取消", func(t *testing.T) {
		backend := &memBackend{}
		w := NewWatcher(backend, registry.MustNewCodec(), contractAddr)

		p, err := w.Watch(context.Background(), expectation())
		require.NoError(t, err)
		p.Cancel()
		p.Cancel()

		_, err = p.Wait(context.Background())
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, StateCancelled, p.State())
		assert.Equal(t, int32(1), backend.unsubscribed.Load())
	})

	t.Run("等待中取消", func(t *testing.T) {
		backend := &memBackend{}
		w := NewWatcher(backend, registry.MustNewCodec(), contractAddr)

		p, err := w.Watch(context.Background(), expectation())
		require.NoError(t, err)
		go func() {
			time.Sleep(20 * time.Millisecond)
			p.Cancel()
		}()

		_, err = p.Wait(context.Background())
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, int32(1), backend.unsubscribed.Load())
	})

	t.Run("上下文取消", func(t *testing.T) {
		backend := &memBackend{}
		w := NewWatcher(backend, registry.MustNewCodec(), contractAddr)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := w.Wait(ctx, expectation())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), backend.unsubscribed.Load())
	})
}

// TestBackfill 测试回填已出块日志
func TestBackfill(t *testing.T) {
	codec := registry.MustNewCodec()
	backend := &memBackend{history: []types.Log{
		reportLog(t, codec, func(ev *registry.ReportSubmitted) { ev.Value = big.NewInt(1) }),
		reportLog(t, codec, func(ev *registry.ReportSubmitted) { ev.Version = 3 }),
	}}
	w := NewWatcher(backend, codec, contractAddr, WithBackfill(true), WithTimeout(time.Second))

	exp := expectation()
	exp.FromBlock = 10
	ev, err := w.Wait(context.Background(), exp)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ev.Version)
	assert.Equal(t, int32(1), backend.unsubscribed.Load())
}

// TestBackfillBoundedByTimeout 测试回填阻塞时仍按窗口超时
func TestBackfillBoundedByTimeout(t *testing.T) {
	backend := &memBackend{hangFilter: true}
	w := NewWatcher(backend, registry.MustNewCodec(), contractAddr, WithBackfill(true), WithTimeout(100*time.Millisecond))

	exp := expectation()
	exp.FromBlock = 5
	p, err := w.Watch(context.Background(), exp)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateTimedOut, p.State())
	assert.Equal(t, int32(1), backend.unsubscribed.Load())
}

// TestLiveLogWhileBackfillHangs 测试回填未返回时实时日志照常确认
func TestLiveLogWhileBackfillHangs(t *testing.T) {
	codec := registry.MustNewCodec()
	backend := &memBackend{hangFilter: true}
	w := NewWatcher(backend, codec, contractAddr, WithBackfill(true), WithTimeout(5*time.Second))

	exp := expectation()
	exp.FromBlock = 5
	p, err := w.Watch(context.Background(), exp)
	require.NoError(t, err)

	live := reportLog(t, codec, func(ev *registry.ReportSubmitted) { ev.Version = 4 })
	go func() {
		time.Sleep(20 * time.Millisecond)
		backend.feed.Send(live)
	}()

	ev, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), ev.Version)
	assert.Equal(t, StateResolved, p.State())
}

// TestTimeoutCountsFromWatch 测试超时窗口从订阅时开始
func TestTimeoutCountsFromWatch(t *testing.T) {
	backend := &memBackend{}
	w := NewWatcher(backend, registry.MustNewCodec(), contractAddr, WithTimeout(100*time.Millisecond))

	p, err := w.Watch(context.Background(), expectation())
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)

	start := time.Now()
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	assert.Less(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, StateTimedOut, p.State())
}

// TestMatch 测试字段比对
func TestMatch(t *testing.T) {
	base := &registry.ReportSubmitted{
		Owner:         ownerAddr,
		KPITypeID:     big.NewInt(1),
		ReportingYear: 2024,
		Value:         big.NewInt(1250),
		MetadataCID:   metadataCID,
	}
	exp := expectation()

	tests := []struct {
		name   string
		mutate func(ev *registry.ReportSubmitted)
		want   bool
	}{
		{"完全一致", func(ev *registry.ReportSubmitted) {}, true},
		{"owner不同", func(ev *registry.ReportSubmitted) { ev.Owner = common.HexToAddress("0x01") }, false},
		{"kpi不同", func(ev *registry.ReportSubmitted) { ev.KPITypeID = big.NewInt(9) }, false},
		{"年份不同", func(ev *registry.ReportSubmitted) { ev.ReportingYear = 2023 }, false},
		{"数值不同", func(ev *registry.ReportSubmitted) { ev.Value = big.NewInt(-1250) }, false},
		{"cid不同", func(ev *registry.ReportSubmitted) { ev.MetadataCID = common.Hash{} }, false},
		{"value为空", func(ev *registry.ReportSubmitted) { ev.Value = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := *base
			tt.mutate(&ev)
			assert.Equal(t, tt.want, Match(exp, &ev))
		})
	}
	assert.False(t, Match(exp, nil))
}

// TestParseExpectationCaseInsensitive 测试十六进制大小写不敏感
func TestParseExpectationCaseInsensitive(t *testing.T) {
	lower, err := ParseExpectation(strings.ToLower(ownerAddr.Hex()), "1", "2024", "1250", strings.ToLower(metadataCID.Hex()))
	require.NoError(t, err)
	upper, err := ParseExpectation("0x"+strings.ToUpper(ownerAddr.Hex()[2:]), "1", "2024", "1250", "0x"+strings.ToUpper(metadataCID.Hex()[2:]))
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
	assert.Equal(t, expectation(), lower)

	_, err = ParseExpectation("0x1234", "1", "2024", "1", metadataCID.Hex())
	assert.Error(t, err)
	_, err = ParseExpectation(ownerAddr.Hex(), "1", "70000", "1", metadataCID.Hex())
	assert.Error(t, err)
	_, err = ParseExpectation(ownerAddr.Hex(), "-1", "2024", "1", metadataCID.Hex())
	assert.Error(t, err)
}
