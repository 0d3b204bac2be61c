// Package feed 持续订阅 ReportSubmitted 事件
//
// Feed 用于 `esg events watch` 与服务端推送：解码合约日志、按日志位置去重，
// 并把新报告和被重组撤销的报告发布到事件总线。
package feed

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

// dedupSize 去重窗口大小
const dedupSize = 8192

// ErrClosed 订阅被节点关闭
var ErrClosed = errors.New("event subscription closed")

// Filter 订阅过滤条件，零值字段为通配
type Filter struct {
	Owner     common.Address
	Year      uint16
	FromBlock uint64 // >0 时先回填历史日志
}

// Handler 事件回调
type Handler func(ev *registry.ReportSubmitted)

// Observer 事件计数观察者(用于指标)
type Observer interface {
	ObserveEvent(kind event.EventType)
}

// Option 选项
type Option func(*Feed)

// WithPublisher 发布到事件总线
func WithPublisher(p event.Publisher) Option {
	return func(f *Feed) { f.publisher = p }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver 设置计数观察者
func WithObserver(o Observer) Option {
	return func(f *Feed) { f.observer = o }
}

type logKey struct {
	tx      common.Hash
	index   uint
	removed bool
}

// Feed 合约事件流
type Feed struct {
	backend   confirm.LogBackend
	codec     *registry.Codec
	contract  common.Address
	publisher event.Publisher
	observer  Observer
	logger    *zap.Logger
}

// New 创建事件流
func New(backend confirm.LogBackend, codec *registry.Codec, contract common.Address, opts ...Option) *Feed {
	f := &Feed{
		backend:  backend,
		codec:    codec,
		contract: contract,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run 订阅直到 ctx 结束
//
// 订阅先于回填建立，两者重叠的日志只处理一次。ctx 结束时返回 nil，
// 订阅出错时返回错误。
func (f *Feed) Run(ctx context.Context, filter Filter, handler Handler) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{f.contract},
		Topics:    f.codec.ReportSubmittedTopics(filter.Owner, filter.Year, common.Hash{}),
	}

	logs := make(chan types.Log, 64)
	sub, err := f.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("%w: %v", confirm.ErrSubscription, err)
	}
	defer sub.Unsubscribe()

	seen, _ := lru.New[logKey, struct{}](dedupSize)

	if filter.FromBlock > 0 {
		past := query
		past.FromBlock = new(big.Int).SetUint64(filter.FromBlock)
		history, err := f.backend.FilterLogs(ctx, past)
		if err != nil {
			return fmt.Errorf("backfill from block %d: %w", filter.FromBlock, err)
		}
		for _, lg := range history {
			f.handle(lg, seen, handler)
		}
	}

	f.logger.Info("事件订阅已建立",
		zap.String("contract", f.contract.Hex()),
		zap.Uint64("from_block", filter.FromBlock))

	for {
		select {
		case lg := <-logs:
			f.handle(lg, seen, handler)
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				if ctx.Err() != nil {
					return nil
				}
				return ErrClosed
			}
			return fmt.Errorf("%w: %v", confirm.ErrSubscription, err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *Feed) handle(lg types.Log, seen *lru.Cache[logKey, struct{}], handler Handler) {
	key := logKey{tx: lg.TxHash, index: lg.Index, removed: lg.Removed}
	if seen.Contains(key) {
		return
	}
	seen.Add(key, struct{}{})

	ev, err := f.codec.DecodeReportSubmitted(lg)
	if err != nil {
		f.logger.Debug("跳过无法解码的日志",
			zap.String("tx_hash", lg.TxHash.Hex()),
			zap.Error(err))
		return
	}

	kind := event.EventTypeReportObserved
	if lg.Removed {
		kind = event.EventTypeReportRemoved
	}
	if f.observer != nil {
		f.observer.ObserveEvent(kind)
	}
	if f.publisher != nil {
		f.publisher.Publish(kind, ev)
	}
	if handler != nil {
		handler(ev)
	}
}
