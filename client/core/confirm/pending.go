package confirm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/registry"
)

// State 确认状态
type State string

const (
	StatePending   State = "pending"
	StateResolved  State = "resolved"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Pending 一次已订阅、尚未结束的确认
type Pending struct {
	watcher *Watcher
	exp     Expectation
	query   ethereum.FilterQuery
	logs    chan types.Log
	sub     ethereum.Subscription
	started time.Time

	cancel     chan struct{}
	cancelOnce sync.Once
	unsubOnce  sync.Once

	mu    sync.Mutex
	state State
}

// Expectation 期望值
func (p *Pending) Expectation() Expectation {
	return p.exp
}

// State 当前状态
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cancel 放弃等待并注销订阅，可重复调用
func (p *Pending) Cancel() {
	p.cancelOnce.Do(func() {
		close(p.cancel)
	})
	p.finish(StateCancelled)
}

// Wait 等待第一条匹配事件
//
// 返回时订阅一定已注销。
func (p *Pending) Wait(ctx context.Context) (*registry.ReportSubmitted, error) {
	defer p.unsubscribe()

	select {
	case <-p.cancel:
		return nil, ErrCancelled
	default:
	}

	// 超时窗口从 Watch 开始计算，签名与广播的耗时也算在内
	deadline := p.started.Add(p.watcher.timeout)
	timer := time.NewTimer(max(time.Until(deadline), 0))
	defer timer.Stop()

	var backfilled chan backfillResult
	if p.watcher.backfill && p.exp.FromBlock > 0 {
		bctx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()
		backfilled = make(chan backfillResult, 1)
		go func() {
			ev, err := p.backfill(bctx)
			backfilled <- backfillResult{ev: ev, err: err}
		}()
	}

	for {
		select {
		case lg := <-p.logs:
			if ev := p.check(lg); ev != nil {
				p.finish(StateResolved)
				p.watcher.logger.Info("报告已上链确认",
					zap.String("tx_hash", lg.TxHash.Hex()),
					zap.Uint64("block", lg.BlockNumber),
					zap.Uint64("version", ev.Version),
					zap.Duration("elapsed", time.Since(p.started)))
				return ev, nil
			}

		case r := <-backfilled:
			backfilled = nil
			if r.err != nil {
				p.watcher.logger.Warn("确认回填失败", zap.Error(r.err))
			} else if r.ev != nil {
				p.finish(StateResolved)
				return r.ev, nil
			}

		case err := <-p.sub.Err():
			select {
			case <-p.cancel:
				return nil, ErrCancelled
			default:
			}
			p.finish(StateFailed)
			if err == nil {
				return nil, fmt.Errorf("%w: subscription closed", ErrSubscription)
			}
			return nil, fmt.Errorf("%w: %v", ErrSubscription, err)

		case <-timer.C:
			p.finish(StateTimedOut)
			p.watcher.logger.Warn("等待确认超时", zap.Duration("timeout", p.watcher.timeout))
			return nil, fmt.Errorf("%w after %s", ErrConfirmTimeout, p.watcher.timeout)

		case <-p.cancel:
			p.finish(StateCancelled)
			return nil, ErrCancelled

		case <-ctx.Done():
			p.finish(StateCancelled)
			return nil, ctx.Err()
		}
	}
}

// check 解码并比对单条日志，不匹配返回 nil
func (p *Pending) check(lg types.Log) *registry.ReportSubmitted {
	if lg.Removed {
		return nil
	}
	ev, err := p.watcher.codec.DecodeReportSubmitted(lg)
	if err != nil {
		p.watcher.logger.Warn("跳过无法解码的日志",
			zap.String("tx_hash", lg.TxHash.Hex()),
			zap.Uint("index", lg.Index),
			zap.Error(err))
		return nil
	}
	if !Match(p.exp, ev) {
		p.watcher.logger.Debug("日志与提交内容不一致",
			zap.String("tx_hash", lg.TxHash.Hex()),
			zap.String("owner", ev.Owner.Hex()),
			zap.Uint16("reporting_year", ev.ReportingYear))
		return nil
	}
	return ev
}

type backfillResult struct {
	ev  *registry.ReportSubmitted
	err error
}

// backfill 查询订阅建立前可能已经出块的日志
func (p *Pending) backfill(ctx context.Context) (*registry.ReportSubmitted, error) {
	q := p.query
	q.FromBlock = new(big.Int).SetUint64(p.exp.FromBlock)
	logs, err := p.watcher.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, lg := range logs {
		if ev := p.check(lg); ev != nil {
			return ev, nil
		}
	}
	return nil, nil
}

// finish 只记录第一次终态
func (p *Pending) finish(s State) {
	p.mu.Lock()
	if p.state != StatePending {
		p.mu.Unlock()
		return
	}
	p.state = s
	p.mu.Unlock()

	if p.watcher.observer != nil {
		p.watcher.observer.ObserveConfirmation(s, time.Since(p.started))
	}
	if s == StateCancelled {
		p.unsubscribe()
	}
}

func (p *Pending) unsubscribe() {
	p.unsubOnce.Do(func() {
		p.sub.Unsubscribe()
	})
}
