// Package transporttest 提供内存版链后端，供各模块测试使用
package transporttest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/weisyn/esg-registry/client/core/transport"
)

var _ transport.Client = (*Backend)(nil)

// Backend 内存链后端，实现 transport.Client
type Backend struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Head         uint64
	GasPrice     *big.Int
	Gas          uint64

	// CallFn 处理 eth_call，为空时返回错误
	CallFn func(call ethereum.CallMsg) ([]byte, error)
	// OnSend 交易被接受后回调，可在其中 Emit 事件日志
	OnSend  func(tx *types.Transaction)
	SendErr error

	Sent  []*types.Transaction
	Logs  []types.Log
	Calls atomic.Int32

	Subscriptions atomic.Int32
	Unsubscribed  atomic.Int32
	Closed        atomic.Bool

	feed     event.Feed
	receipts map[common.Hash]*types.Receipt
}

// New 创建后端
func New() *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(1337),
		Head:         100,
		GasPrice:     big.NewInt(1_000_000_000),
		Gas:          120_000,
		receipts:     make(map[common.Hash]*types.Receipt),
	}
}

// Emit 记录日志并推送给订阅者
func (b *Backend) Emit(lg types.Log) {
	b.mu.Lock()
	if lg.BlockNumber == 0 {
		b.Head++
		lg.BlockNumber = b.Head
	}
	b.Logs = append(b.Logs, lg)
	b.mu.Unlock()

	b.feed.Send(lg)
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.ChainIDValue), nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Head, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return nil
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.Calls.Add(1)
	if b.CallFn == nil {
		return nil, errors.New("no call handler")
	}
	return b.CallFn(call)
}

// HeaderByNumber 返回无 BaseFee 的区块头，交易走 legacy gas price
func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(b.Head)}, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.Sent)), nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return b.Gas, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if b.SendErr != nil {
		return b.SendErr
	}
	b.mu.Lock()
	b.Sent = append(b.Sent, tx)
	b.Head++
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.Head),
	}
	onSend := b.OnSend
	b.mu.Unlock()

	if onSend != nil {
		onSend(tx)
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Log
	for _, lg := range b.Logs {
		if MatchQuery(q, lg) {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	inner := make(chan types.Log, 64)
	fsub := b.feed.Subscribe(inner)
	b.Subscriptions.Add(1)

	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		defer fsub.Unsubscribe()
		for {
			select {
			case lg := <-inner:
				if !MatchQuery(q, lg) {
					continue
				}
				select {
				case ch <- lg:
				case <-quit:
					return nil
				}
			case err := <-fsub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
	return &countingSub{Subscription: sub, n: &b.Unsubscribed}, nil
}

func (b *Backend) Close() error {
	b.Closed.Store(true)
	return nil
}

type countingSub struct {
	ethereum.Subscription
	n    *atomic.Int32
	once sync.Once
}

func (s *countingSub) Unsubscribe() {
	s.once.Do(func() { s.n.Add(1) })
	s.Subscription.Unsubscribe()
}

// MatchQuery 按地址、区块范围和 topics 过滤日志
func MatchQuery(q ethereum.FilterQuery, lg types.Log) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == lg.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.FromBlock != nil && lg.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && lg.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Topics) > len(lg.Topics) {
		return false
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		ok := false
		for _, t := range alternatives {
			if t == lg.Topics[i] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
