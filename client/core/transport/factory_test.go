package transport

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend 可注入错误的端点
type stubBackend struct {
	name    string
	err     error
	calls   atomic.Int32
	sendErr error

	mu   sync.Mutex
	head uint64
	logs []types.Log

	blockErrs int // 前 n 次 BlockNumber 返回错误

	subErr     error // SubscribeFilterLogs 返回的错误
	subscribes atomic.Int32
	dials      atomic.Int32
}

type rpcError struct{ code int }

func (e rpcError) Error() string  { return "execution reverted" }
func (e rpcError) ErrorCode() int { return e.code }

func (s *stubBackend) ChainID(ctx context.Context) (*big.Int, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return big.NewInt(11155111), nil
}

func (s *stubBackend) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockErrs > 0 {
		s.blockErrs--
		return 0, errors.New("timeout")
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.head, nil
}

func (s *stubBackend) CodeAt(ctx context.Context, a common.Address, n *big.Int) ([]byte, error) {
	return nil, s.err
}

func (s *stubBackend) CallContract(ctx context.Context, call ethereum.CallMsg, n *big.Int) ([]byte, error) {
	s.calls.Add(1)
	return []byte(s.name), s.err
}

func (s *stubBackend) HeaderByNumber(ctx context.Context, n *big.Int) (*types.Header, error) {
	return &types.Header{}, s.err
}

func (s *stubBackend) PendingCodeAt(ctx context.Context, a common.Address) ([]byte, error) {
	return nil, s.err
}

func (s *stubBackend) PendingNonceAt(ctx context.Context, a common.Address) (uint64, error) {
	return 0, s.err
}

func (s *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), s.err
}

func (s *stubBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), s.err
}

func (s *stubBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 21000, s.err
}

func (s *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	s.calls.Add(1)
	return s.sendErr
}

func (s *stubBackend) TransactionReceipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	s.calls.Add(1)
	return nil, ethereum.NotFound
}

func (s *stubBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Log
	for _, lg := range s.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (s *stubBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	s.subscribes.Add(1)
	if s.subErr != nil {
		return nil, s.subErr
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

func (s *stubBackend) Close() {}

func newTestClient(t *testing.T, backends map[string]*stubBackend, endpoints ...EndpointConfig) *FallbackClient {
	t.Helper()
	fc, err := NewFallbackClient(context.Background(), ClientConfig{
		Endpoints:     endpoints,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
		PollInterval:  5 * time.Millisecond,
	}, WithDialer(func(ctx context.Context, rawurl string) (Backend, error) {
		b, ok := backends[rawurl]
		if !ok {
			return nil, errors.New("unknown endpoint")
		}
		b.dials.Add(1)
		return b, nil
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fc.Close() })
	return fc
}

// TestNewFallbackClient 测试端点配置校验
func TestNewFallbackClient(t *testing.T) {
	_, err := NewFallbackClient(context.Background(), ClientConfig{})
	assert.Error(t, err)

	_, err = NewFallbackClient(context.Background(), ClientConfig{
		Endpoints: []EndpointConfig{{Name: "empty"}},
	})
	assert.Error(t, err)
}

// TestFallbackOnTransportError 测试传输错误时切换端点
func TestFallbackOnTransportError(t *testing.T) {
	primary := &stubBackend{name: "primary", err: errors.New("connection refused")}
	backup := &stubBackend{name: "backup"}
	fc := newTestClient(t,
		map[string]*stubBackend{"http://a": primary, "http://b": backup},
		EndpointConfig{Name: "backup", Priority: 2, JSONRPC: "http://b"},
		EndpointConfig{Name: "primary", Priority: 1, JSONRPC: "http://a"},
	)

	out, err := fc.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "backup", string(out))
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, map[string]bool{"primary": false, "backup": true}, fc.Endpoints())
}

// TestNoFallbackOnRPCError 测试节点业务错误不切换端点
func TestNoFallbackOnRPCError(t *testing.T) {
	primary := &stubBackend{name: "primary", err: rpcError{code: 3}}
	backup := &stubBackend{name: "backup"}
	fc := newTestClient(t,
		map[string]*stubBackend{"http://a": primary, "http://b": backup},
		EndpointConfig{Name: "primary", Priority: 1, JSONRPC: "http://a"},
		EndpointConfig{Name: "backup", Priority: 2, JSONRPC: "http://b"},
	)

	_, err := fc.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(0), backup.calls.Load())

	_, err = fc.TransactionReceipt(context.Background(), common.Hash{})
	assert.ErrorIs(t, err, ethereum.NotFound)
}

// TestSendTransactionAlreadyKnown 测试重复广播视为成功
func TestSendTransactionAlreadyKnown(t *testing.T) {
	b := &stubBackend{name: "a", sendErr: errors.New("already known")}
	fc := newTestClient(t, map[string]*stubBackend{"http://a": b}, EndpointConfig{Name: "a", JSONRPC: "http://a"})

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1)})
	assert.NoError(t, fc.SendTransaction(context.Background(), tx))
}

// TestAllEndpointsFail 测试全部失败
func TestAllEndpointsFail(t *testing.T) {
	b := &stubBackend{name: "a", err: errors.New("dial tcp: i/o timeout")}
	fc := newTestClient(t, map[string]*stubBackend{"http://a": b}, EndpointConfig{Name: "a", JSONRPC: "http://a"})

	_, err := fc.ChainID(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all endpoints failed")
	assert.Equal(t, int32(3), b.calls.Load())
}

// TestSubscribeFallsBackToPolling 测试无 WebSocket 时轮询订阅
func TestSubscribeFallsBackToPolling(t *testing.T) {
	b := &stubBackend{name: "a", head: 10}
	fc := newTestClient(t, map[string]*stubBackend{"http://a": b}, EndpointConfig{Name: "a", JSONRPC: "http://a"})

	ch := make(chan types.Log, 8)
	sub, err := fc.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{}, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// 订阅从当前高度开始
	time.Sleep(20 * time.Millisecond)
	b.mu.Lock()
	b.logs = append(b.logs,
		types.Log{BlockNumber: 11, TxHash: common.HexToHash("0x1")},
		types.Log{BlockNumber: 12, TxHash: common.HexToHash("0x2")},
	)
	b.head = 12
	b.mu.Unlock()

	var got []common.Hash
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case lg := <-ch:
			got = append(got, lg.TxHash)
		case <-timeout:
			t.Fatalf("expected 2 logs, got %d", len(got))
		}
	}
	assert.Equal(t, []common.Hash{common.HexToHash("0x1"), common.HexToHash("0x2")}, got)

	// 重扫窗口不会重复推送
	select {
	case lg := <-ch:
		t.Fatalf("unexpected duplicate log %s", lg.TxHash.Hex())
	case <-time.After(30 * time.Millisecond):
	}
}

// TestSubscribePrefersWebSocket 测试优先使用 WebSocket 端点
func TestSubscribePrefersWebSocket(t *testing.T) {
	primary := &stubBackend{name: "primary", head: 10}
	backupRPC := &stubBackend{name: "backup"}
	backupWS := &stubBackend{name: "backup-ws"}
	fc := newTestClient(t,
		map[string]*stubBackend{"http://a": primary, "http://b": backupRPC, "ws://b": backupWS},
		EndpointConfig{Name: "primary", Priority: 1, JSONRPC: "http://a"},
		EndpointConfig{Name: "backup", Priority: 2, JSONRPC: "http://b", WS: "ws://b"},
	)

	for i := 0; i < 2; i++ {
		sub, err := fc.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{}, make(chan types.Log))
		require.NoError(t, err)
		sub.Unsubscribe()
	}
	assert.Equal(t, int32(2), backupWS.subscribes.Load())
	assert.Equal(t, int32(1), backupWS.dials.Load())
	assert.Equal(t, int32(0), primary.subscribes.Load())
	assert.Equal(t, int32(0), backupRPC.subscribes.Load())
}

// TestSubscribeUnsupportedFallsBackToPolling 测试节点不支持订阅时改为轮询
func TestSubscribeUnsupportedFallsBackToPolling(t *testing.T) {
	rpcBackend := &stubBackend{name: "a", head: 10}
	wsBackend := &stubBackend{name: "a-ws", subErr: rpc.ErrNotificationsUnsupported}
	fc := newTestClient(t,
		map[string]*stubBackend{"http://a": rpcBackend, "ws://a": wsBackend},
		EndpointConfig{Name: "a", JSONRPC: "http://a", WS: "ws://a"},
	)

	ch := make(chan types.Log, 8)
	sub, err := fc.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{}, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Equal(t, int32(1), wsBackend.subscribes.Load())

	time.Sleep(20 * time.Millisecond)
	rpcBackend.mu.Lock()
	rpcBackend.logs = append(rpcBackend.logs, types.Log{BlockNumber: 11, TxHash: common.HexToHash("0xa1")})
	rpcBackend.head = 11
	rpcBackend.mu.Unlock()

	select {
	case lg := <-ch:
		assert.Equal(t, common.HexToHash("0xa1"), lg.TxHash)
	case <-time.After(time.Second):
		t.Fatal("expected polled log")
	}
}

// TestPollingSubscriptionError 测试连续失败后返回错误
func TestPollingSubscriptionError(t *testing.T) {
	b := &stubBackend{name: "a", blockErrs: maxPollFailures}
	sub := NewPollingSubscription(b, ethereum.FilterQuery{}, make(chan types.Log), time.Millisecond, nil)
	defer sub.Unsubscribe()

	select {
	case err := <-sub.Err():
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected subscription error")
	}
}
