// Package dashboard 投资人看板：按年份区间读取某公司某项 KPI 的最新报告
package dashboard

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

// defaultConcurrency 并发读取的年份数
const defaultConcurrency = 4

// Query 看板查询
type Query struct {
	Owner     common.Address
	KPITypeID *big.Int
	FromYear  uint16
	ToYear    uint16
}

// Validate 检查查询参数
func (q Query) Validate() error {
	if q.KPITypeID == nil || q.KPITypeID.Sign() < 0 {
		return fmt.Errorf("kpiTypeId is required")
	}
	if q.FromYear == 0 || q.FromYear > q.ToYear {
		return fmt.Errorf("invalid year range %d-%d", q.FromYear, q.ToYear)
	}
	return nil
}

// Point 某一年的数据点
type Point struct {
	Year   uint16           `json:"year"`
	Found  bool             `json:"found"`
	Report *registry.Report `json:"report,omitempty"`
}

// Series 按年份升序排列的数据序列
type Series struct {
	Owner     common.Address `json:"owner"`
	KPITypeID *big.Int       `json:"kpi_type_id"`
	Points    []Point        `json:"points"`
}

// Summary 序列统计
type Summary struct {
	Reported   int      `json:"reported"`
	Min        *big.Int `json:"min,omitempty"`
	Max        *big.Int `json:"max,omitempty"`
	Latest     *big.Int `json:"latest,omitempty"`
	LatestYear uint16   `json:"latest_year,omitempty"`
	FirstYear  uint16   `json:"first_year,omitempty"`
	// Change 最新值相对首个报告年份的变化
	Change *big.Int `json:"change,omitempty"`
}

// Summary 计算最小、最大、最新值及相对首年的变化
func (s *Series) Summary() Summary {
	var sum Summary
	var first *big.Int
	for _, p := range s.Points {
		if !p.Found || p.Report == nil || p.Report.Value == nil {
			continue
		}
		v := p.Report.Value
		sum.Reported++
		if first == nil {
			first = v
			sum.FirstYear = p.Year
		}
		if sum.Min == nil || v.Cmp(sum.Min) < 0 {
			sum.Min = v
		}
		if sum.Max == nil || v.Cmp(sum.Max) > 0 {
			sum.Max = v
		}
		sum.Latest = v
		sum.LatestYear = p.Year
	}
	if first != nil {
		sum.Change = new(big.Int).Sub(sum.Latest, first)
	}
	return sum
}

// Option 服务选项
type Option func(*Service)

// WithCache 设置读缓存
func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithConcurrency 设置并发读取数
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// CacheObserver 缓存命中观察者(用于指标)
type CacheObserver interface {
	ObserveCacheLookup(hit bool)
}

// WithCacheObserver 设置缓存命中观察者
func WithCacheObserver(o CacheObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// Service 看板读服务
type Service struct {
	chainID     uint64
	contract    common.Address
	caller      *registry.Caller
	cache       Cache
	concurrency int
	logger      *zap.Logger
	observer    CacheObserver

	subsMu sync.Mutex
	subs   []*event.Subscription
}

// NewService 创建看板服务
func NewService(backend bind.ContractCaller, chainID uint64, contract common.Address, opts ...Option) *Service {
	s := &Service{
		chainID:     chainID,
		contract:    contract,
		caller:      registry.NewCaller(contract, backend, registry.MustNewCodec()),
		cache:       NoopCache{},
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latest 读取单个年份的最新报告，优先使用缓存
func (s *Service) Latest(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) (*registry.Report, error) {
	key := CacheKey(s.chainID, s.contract, owner, kpiTypeID, year)
	r, ok := s.cache.Get(ctx, key)
	if s.observer != nil {
		s.observer.ObserveCacheLookup(ok)
	}
	if ok {
		return r, nil
	}

	r, err := s.caller.LatestReport(ctx, owner, kpiTypeID, year)
	if err != nil {
		return nil, err
	}
	if err = s.cache.Set(ctx, key, r); err != nil {
		s.logger.Debug("写入看板缓存失败", zap.String("key", key), zap.Error(err))
	}
	return r, nil
}

// Series 并发读取年份区间内每一年的最新报告
//
// 任一年份读取失败时整体失败；未报告的年份 Found=false。
func (s *Service) Series(ctx context.Context, q Query) (*Series, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	n := int(q.ToYear-q.FromYear) + 1
	points := make([]Point, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := 0; i < n; i++ {
		i := i
		year := q.FromYear + uint16(i)
		g.Go(func() error {
			r, err := s.Latest(gctx, q.Owner, q.KPITypeID, year)
			if err != nil {
				return fmt.Errorf("读取 %d 年报告失败: %w", year, err)
			}
			points[i] = Point{Year: year, Found: r.Exists}
			if r.Exists {
				points[i].Report = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("看板序列读取完成",
		zap.String("owner", q.Owner.Hex()),
		zap.String("kpi_type_id", q.KPITypeID.String()),
		zap.Int("years", n),
		zap.Duration("elapsed", time.Since(started)))

	return &Series{Owner: q.Owner, KPITypeID: q.KPITypeID, Points: points}, nil
}

// History 读取某个年份的全部版本，按版本号升序
func (s *Service) History(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) ([]*registry.Report, error) {
	return s.caller.History(ctx, owner, kpiTypeID, year)
}

// Invalidate 新报告上链后清除对应缓存
func (s *Service) Invalidate(ev *registry.ReportSubmitted) {
	if ev == nil || ev.KPITypeID == nil {
		return
	}
	key := CacheKey(s.chainID, s.contract, ev.Owner, ev.KPITypeID, ev.ReportingYear)
	if err := s.cache.Delete(context.Background(), key); err != nil {
		s.logger.Warn("清除看板缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// Attach 订阅报告事件以失效缓存
func (s *Service) Attach(bus event.Subscriber) error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, t := range []event.EventType{event.EventTypeReportConfirmed, event.EventTypeReportObserved, event.EventTypeReportRemoved} {
		sub, err := bus.Subscribe(t, s.Invalidate)
		if err != nil {
			return fmt.Errorf("订阅 %s 失败: %w", t, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Detach 取消本实例的订阅
func (s *Service) Detach() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// Close 释放缓存
func (s *Service) Close() error {
	return s.cache.Close()
}
