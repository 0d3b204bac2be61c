// Package submission 公司端报告提交：校验表单、发送交易并等待链上确认
package submission

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/transport"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

// ErrInvalidRequest 表单校验失败
var ErrInvalidRequest = errors.New("invalid report request")

// Signer 提交所需的签名能力，wallet.Signer 满足该接口
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// Request 提交表单，字段均为用户输入的原始字符串
type Request struct {
	KPITypeID     string `json:"kpi_type_id"` // KPI id 或 code
	ReportingYear string `json:"reporting_year"`
	Value         string `json:"value"` // 十进制，小数位不超过 KPI 的 decimals
	MetadataCID   string `json:"metadata_cid"`
}

// Validated 校验后的提交参数
type Validated struct {
	KPI           config.KPI
	KPITypeID     *big.Int
	ReportingYear uint16
	Value         *big.Int
	MetadataCID   common.Hash
}

// Result 提交结果
type Result struct {
	TxHash  common.Hash               `json:"tx_hash"`
	Event   *registry.ReportSubmitted `json:"-"`
	State   confirm.State             `json:"state"`
	Elapsed time.Duration             `json:"elapsed"`
}

// Config 提交服务配置
type Config struct {
	Contract       common.Address
	ChainID        *big.Int
	KPIs           []config.KPI
	YearFrom       uint16
	YearTo         uint16
	GasLimit       uint64 // 0 表示估算
	ConfirmTimeout time.Duration
}

// ConfigFromProfile 从 profile 生成配置
func ConfigFromProfile(p *config.Profile) (Config, error) {
	contract, err := p.Contract()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Contract:       contract,
		ChainID:        new(big.Int).SetUint64(p.ChainID),
		KPIs:           p.KPIs,
		YearFrom:       p.YearFrom,
		YearTo:         p.YearTo,
		GasLimit:       p.GasLimit,
		ConfirmTimeout: p.ConfirmTimeout.Std(),
	}, nil
}

// Option 服务选项
type Option func(*Service)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher 确认后发布 report.confirmed
func WithPublisher(p event.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithObserver 确认结果观察者
func WithObserver(o confirm.Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// Service 报告提交服务
type Service struct {
	cfg        Config
	backend    transport.Client
	signer     Signer
	transactor *registry.Transactor
	watcher    *confirm.Watcher
	publisher  event.Publisher
	observer   confirm.Observer
	logger     *zap.Logger
}

// NewService 创建提交服务
func NewService(backend transport.Client, signer Signer, cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		backend: backend,
		signer:  signer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	codec := registry.MustNewCodec()
	s.transactor = registry.NewTransactor(cfg.Contract, backend, codec)

	watchOpts := []confirm.Option{
		confirm.WithTimeout(cfg.ConfirmTimeout),
		confirm.WithLogger(s.logger),
		confirm.WithBackfill(true),
	}
	if s.observer != nil {
		watchOpts = append(watchOpts, confirm.WithObserver(s.observer))
	}
	s.watcher = confirm.NewWatcher(backend, codec, cfg.Contract, watchOpts...)
	return s
}

// Sender 提交地址
func (s *Service) Sender() common.Address {
	return s.signer.Address()
}

// Validate 校验表单
func (s *Service) Validate(req Request) (*Validated, error) {
	kpi, ok := config.FindKPI(s.cfg.KPIs, req.KPITypeID)
	if !ok {
		return nil, fmt.Errorf("%w: 未知的 KPI %q", ErrInvalidRequest, req.KPITypeID)
	}

	year, err := strconv.ParseUint(strings.TrimSpace(req.ReportingYear), 10, 16)
	if err != nil || year == 0 {
		return nil, fmt.Errorf("%w: 报告年份 %q 无效", ErrInvalidRequest, req.ReportingYear)
	}
	if s.cfg.YearFrom != 0 || s.cfg.YearTo != 0 {
		if uint16(year) < s.cfg.YearFrom || uint16(year) > s.cfg.YearTo {
			return nil, fmt.Errorf("%w: 报告年份 %d 不在 %d-%d 范围内", ErrInvalidRequest, year, s.cfg.YearFrom, s.cfg.YearTo)
		}
	}

	value, err := registry.ParseScaledValue(req.Value, kpi.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	cid, err := registry.ParseMetadataCID(req.MetadataCID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return &Validated{
		KPI:           kpi,
		KPITypeID:     kpi.TypeID(),
		ReportingYear: uint16(year),
		Value:         value,
		MetadataCID:   cid,
	}, nil
}

// SubmitOption 单次提交选项
type SubmitOption func(*submitParams)

type submitParams struct {
	noWait bool
}

// NoWait 只发送交易，不等待确认
func NoWait() SubmitOption {
	return func(p *submitParams) { p.noWait = true }
}

// Submit 校验、发送并等待确认
//
// 订阅先于交易建立；发送失败时订阅立即注销。确认失败时仍返回带 TxHash 的 Result。
func (s *Service) Submit(ctx context.Context, req Request, opts ...SubmitOption) (*Result, error) {
	var params submitParams
	for _, opt := range opts {
		opt(&params)
	}

	v, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	exp := confirm.Expectation{
		Owner:         s.signer.Address(),
		KPITypeID:     v.KPITypeID,
		ReportingYear: v.ReportingYear,
		Value:         v.Value,
		MetadataCID:   v.MetadataCID,
	}
	if head, err := s.backend.BlockNumber(ctx); err == nil {
		exp.FromBlock = head + 1
	} else {
		s.logger.Warn("获取区块高度失败，跳过确认回填", zap.Error(err))
	}

	pending, err := s.watcher.Watch(ctx, exp)
	if err != nil {
		return nil, fmt.Errorf("订阅确认事件失败: %w", err)
	}

	txOpts, err := s.signer.TransactOpts(ctx, s.cfg.ChainID)
	if err != nil {
		pending.Cancel()
		return nil, fmt.Errorf("准备签名失败: %w", err)
	}
	if s.cfg.GasLimit > 0 {
		txOpts.GasLimit = s.cfg.GasLimit
	}

	tx, err := s.transactor.SubmitReport(txOpts, v.KPITypeID, v.ReportingYear, v.Value, v.MetadataCID)
	if err != nil {
		pending.Cancel()
		return nil, fmt.Errorf("发送交易失败: %w", err)
	}

	result := &Result{TxHash: tx.Hash(), State: confirm.StatePending}
	s.logger.Info("报告交易已发送",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("kpi", v.KPI.Code),
		zap.Uint16("reporting_year", v.ReportingYear))

	if params.noWait {
		pending.Cancel()
		result.Elapsed = time.Since(started)
		return result, nil
	}

	ev, err := pending.Wait(ctx)
	result.State = pending.State()
	result.Elapsed = time.Since(started)
	if err != nil {
		return result, fmt.Errorf("交易 %s 未确认: %w", tx.Hash().Hex(), err)
	}
	result.Event = ev

	if s.publisher != nil {
		s.publisher.Publish(event.EventTypeReportConfirmed, ev)
	}
	return result, nil
}

// Estimate 估算提交所需 gas
func (s *Service) Estimate(ctx context.Context, req Request) (uint64, error) {
	v, err := s.Validate(req)
	if err != nil {
		return 0, err
	}
	return s.transactor.EstimateSubmitReport(ctx, s.signer.Address(), v.KPITypeID, v.ReportingYear, v.Value, v.MetadataCID)
}
