package transport

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// reorgOverlap 每轮重扫的区块数，配合去重覆盖浅层重组
	reorgOverlap = 2
	// dedupSize 去重窗口
	dedupSize = 4096
	// maxPollFailures 连续失败达到该次数后订阅以错误结束
	maxPollFailures = 5
)

// LogFilterer 轮询订阅所需的能力
type LogFilterer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type logKey struct {
	tx    common.Hash
	index uint
	block common.Hash
}

// NewPollingSubscription 用 eth_getLogs 轮询模拟日志订阅
//
// q.FromBlock 为空时从当前最新区块开始。返回的订阅与 WebSocket 订阅行为一致:
// Unsubscribe 后停止推送，连续失败时通过 Err() 返回最后一次错误。
func NewPollingSubscription(filterer LogFilterer, q ethereum.FilterQuery, ch chan<- types.Log, interval time.Duration, logger *zap.Logger) ethereum.Subscription {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen, _ := lru.New[logKey, struct{}](dedupSize)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-quit:
				cancel()
			case <-ctx.Done():
			}
		}()

		var next uint64
		started := false
		if q.FromBlock != nil {
			next = q.FromBlock.Uint64()
			started = true
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		failures := 0
		for {
			head, err := filterer.BlockNumber(ctx)
			if err == nil && !started {
				next = head
				started = true
			}
			if err == nil && started && head >= next {
				from := next
				if from >= reorgOverlap && (q.FromBlock == nil || from-reorgOverlap >= q.FromBlock.Uint64()) {
					from -= reorgOverlap
				}
				window := q
				window.FromBlock = new(big.Int).SetUint64(from)
				window.ToBlock = new(big.Int).SetUint64(head)

				var logs []types.Log
				logs, err = filterer.FilterLogs(ctx, window)
				if err == nil {
					for _, lg := range logs {
						key := logKey{tx: lg.TxHash, index: lg.Index, block: lg.BlockHash}
						if seen.Contains(key) {
							continue
						}
						seen.Add(key, struct{}{})
						select {
						case ch <- lg:
						case <-quit:
							return nil
						}
					}
					next = head + 1
				}
			}

			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failures++
				logger.Warn("日志轮询失败", zap.Int("failures", failures), zap.Error(err))
				if failures >= maxPollFailures {
					return err
				}
			} else {
				failures = 0
			}

			select {
			case <-ticker.C:
			case <-quit:
				return nil
			}
		}
	})
}
