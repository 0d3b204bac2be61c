// Package confirm 提交交易后的事件确认
//
// 交易发送前先订阅合约日志，发送后等待第一条与提交内容完全一致的
// ReportSubmitted 事件。超时、出错或取消时返回错误，订阅在任何出口都会被注销。
package confirm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/registry"
)

// DefaultTimeout 默认确认窗口
const DefaultTimeout = 90 * time.Second

var (
	// ErrConfirmTimeout 在确认窗口内没有收到匹配事件
	ErrConfirmTimeout = errors.New("confirmation timed out")
	// ErrCancelled 等待被调用方主动取消
	ErrCancelled = errors.New("confirmation cancelled")
	// ErrSubscription 日志订阅失败
	ErrSubscription = errors.New("log subscription failed")
)

// LogBackend 确认所需的日志后端
//
// transport.Client 实现了该接口；测试中使用内存实现。
type LogBackend interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Expectation 期望匹配的提交内容
type Expectation struct {
	Owner         common.Address
	KPITypeID     *big.Int
	ReportingYear uint16
	Value         *big.Int
	MetadataCID   common.Hash

	// FromBlock 回填起点，0 表示不回填
	FromBlock uint64
}

// ParseExpectation 从字符串构造期望值
//
// owner 和 metadataCid 为十六进制，大小写不敏感；kpiTypeId/value 为十进制整数。
func ParseExpectation(owner, kpiTypeID, year, value, metadataCID string) (Expectation, error) {
	var exp Expectation

	if !common.IsHexAddress(owner) {
		return exp, fmt.Errorf("invalid owner address %q", owner)
	}
	exp.Owner = common.HexToAddress(owner)

	kpi, ok := new(big.Int).SetString(strings.TrimSpace(kpiTypeID), 10)
	if !ok || kpi.Sign() < 0 {
		return exp, fmt.Errorf("invalid kpiTypeId %q", kpiTypeID)
	}
	exp.KPITypeID = kpi

	y, err := strconv.ParseUint(strings.TrimSpace(year), 10, 16)
	if err != nil {
		return exp, fmt.Errorf("invalid reportingYear %q: %w", year, err)
	}
	exp.ReportingYear = uint16(y)

	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return exp, fmt.Errorf("invalid value %q", value)
	}
	exp.Value = v

	cid, err := registry.ParseMetadataCID(metadataCID)
	if err != nil {
		return exp, err
	}
	exp.MetadataCID = cid

	return exp, nil
}

// Match 判断事件是否与期望完全一致
//
// owner/reportingYear/metadataCid 来自 indexed topics，kpiTypeId/value 来自解码后的 data。
// 地址和哈希按字节比较，输入的十六进制大小写不影响结果。
func Match(exp Expectation, ev *registry.ReportSubmitted) bool {
	if ev == nil {
		return false
	}
	if ev.Owner != exp.Owner || ev.ReportingYear != exp.ReportingYear || ev.MetadataCID != exp.MetadataCID {
		return false
	}
	if exp.KPITypeID == nil || ev.KPITypeID == nil || exp.KPITypeID.Cmp(ev.KPITypeID) != 0 {
		return false
	}
	if exp.Value == nil || ev.Value == nil || exp.Value.Cmp(ev.Value) != 0 {
		return false
	}
	return true
}

// Option 确认器选项
type Option func(*Watcher)

// WithTimeout 设置确认窗口
func WithTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithBackfill 订阅建立后按 Expectation.FromBlock 回填一次历史日志
func WithBackfill(enabled bool) Option {
	return func(w *Watcher) {
		w.backfill = enabled
	}
}

// WithObserver 设置结果观察者(用于指标)
func WithObserver(o Observer) Option {
	return func(w *Watcher) {
		w.observer = o
	}
}

// Observer 确认结果观察者
type Observer interface {
	ObserveConfirmation(state State, elapsed time.Duration)
}

// Watcher ReportSubmitted 事件确认器
type Watcher struct {
	backend  LogBackend
	codec    *registry.Codec
	contract common.Address
	timeout  time.Duration
	backfill bool
	logger   *zap.Logger
	observer Observer
}

// NewWatcher 创建确认器
func NewWatcher(backend LogBackend, codec *registry.Codec, contract common.Address, opts ...Option) *Watcher {
	w := &Watcher{
		backend:  backend,
		codec:    codec,
		contract: contract,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeout 当前确认窗口
func (w *Watcher) Timeout() time.Duration {
	return w.timeout
}

// Watch 在发送交易之前建立订阅
//
// 返回的 Pending 必须以 Wait 或 Cancel 结束。
func (w *Watcher) Watch(ctx context.Context, exp Expectation) (*Pending, error) {
	if exp.KPITypeID == nil || exp.Value == nil {
		return nil, fmt.Errorf("expectation requires kpiTypeId and value")
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.contract},
		Topics:    w.codec.ReportSubmittedTopics(exp.Owner, exp.ReportingYear, exp.MetadataCID),
	}

	logs := make(chan types.Log, 16)
	sub, err := w.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubscription, err)
	}

	p := &Pending{
		watcher: w,
		exp:     exp,
		query:   query,
		logs:    logs,
		sub:     sub,
		cancel:  make(chan struct{}),
		started: time.Now(),
		state:   StatePending,
	}

	w.logger.Debug("确认订阅已建立",
		zap.String("owner", exp.Owner.Hex()),
		zap.String("kpi_type_id", exp.KPITypeID.String()),
		zap.Uint16("reporting_year", exp.ReportingYear),
		zap.String("metadata_cid", exp.MetadataCID.Hex()))

	return p, nil
}

// Wait 订阅并等待确认
func (w *Watcher) Wait(ctx context.Context, exp Expectation) (*registry.ReportSubmitted, error) {
	p, err := w.Watch(ctx, exp)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}
