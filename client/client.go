// Package client ESG 注册表客户端 - 统一的客户端入口
//
// Client 按 profile 连接节点，组装提交、看板和事件流服务，CLI 与 HTTP 服务共用。
package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/dashboard"
	"github.com/weisyn/esg-registry/client/core/feed"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/submission"
	"github.com/weisyn/esg-registry/client/core/transport"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/metrics"
)

// Option 客户端选项
type Option func(*Client)

// WithTransport 使用已建立的链访问客户端，不再按 profile 拨号
func WithTransport(t transport.Client) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventBus 使用外部事件总线
func WithEventBus(bus *event.EventBus) Option {
	return func(c *Client) { c.bus = bus }
}

// WithMetrics 记录确认、事件与缓存指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client ESG 注册表客户端
type Client struct {
	profile   *config.Profile
	contract  common.Address
	transport transport.Client
	codec     *registry.Codec
	bus       *event.EventBus
	metrics   *metrics.Metrics
	logger    *zap.Logger

	dashboard *dashboard.Service
	feed      *feed.Feed
}

// New 按 profile 创建客户端
func New(ctx context.Context, profile *config.Profile, opts ...Option) (*Client, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	contract, err := profile.Contract()
	if err != nil {
		return nil, err
	}

	c := &Client{
		profile:  profile,
		contract: contract,
		codec:    registry.MustNewCodec(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = event.New()
	}

	if c.transport == nil {
		fc, err := transport.NewFallbackClient(ctx, profile.TransportConfig(),
			transport.WithLogger(c.logger.Named("transport")))
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", profile.Name, err)
		}
		c.transport = fc
	}

	cache, err := dashboard.NewCache(ctx, profile.Cache)
	if err != nil {
		c.logger.Warn("看板缓存不可用，直接读取链上数据", zap.Error(err))
		cache = dashboard.NoopCache{}
	}

	dashOpts := []dashboard.Option{
		dashboard.WithCache(cache),
		dashboard.WithLogger(c.logger.Named("dashboard")),
	}
	feedOpts := []feed.Option{
		feed.WithPublisher(c.bus),
		feed.WithLogger(c.logger.Named("feed")),
	}
	if c.metrics != nil {
		dashOpts = append(dashOpts, dashboard.WithCacheObserver(c.metrics))
		feedOpts = append(feedOpts, feed.WithObserver(c.metrics))
	}

	c.dashboard = dashboard.NewService(c.transport, profile.ChainID, contract, dashOpts...)
	if err := c.dashboard.Attach(c.bus); err != nil {
		return nil, fmt.Errorf("attach dashboard cache: %w", err)
	}
	c.feed = feed.New(c.transport, c.codec, contract, feedOpts...)

	return c, nil
}

// Profile 当前 profile
func (c *Client) Profile() *config.Profile {
	return c.profile
}

// Contract 注册表合约地址
func (c *Client) Contract() common.Address {
	return c.contract
}

// Transport 底层链访问客户端
func (c *Client) Transport() transport.Client {
	return c.transport
}

// Bus 事件总线
func (c *Client) Bus() *event.EventBus {
	return c.bus
}

// Dashboard 看板服务
func (c *Client) Dashboard() *dashboard.Service {
	return c.dashboard
}

// Feed 事件流
func (c *Client) Feed() *feed.Feed {
	return c.feed
}

// Submission 用给定签名者创建提交服务
func (c *Client) Submission(signer submission.Signer) (*submission.Service, error) {
	cfg, err := submission.ConfigFromProfile(c.profile)
	if err != nil {
		return nil, err
	}
	opts := []submission.Option{
		submission.WithLogger(c.logger.Named("submission")),
		submission.WithPublisher(c.bus),
	}
	if c.metrics != nil {
		opts = append(opts, submission.WithObserver(c.metrics))
	}
	return submission.NewService(c.transport, signer, cfg, opts...), nil
}

// CheckChain 核对节点链 ID 与 profile 一致
func (c *Client) CheckChain(ctx context.Context) error {
	id, err := c.transport.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if want := new(big.Int).SetUint64(c.profile.ChainID); id.Cmp(want) != 0 {
		return fmt.Errorf("chain id mismatch: node %s, profile %s expects %s", id, c.profile.Name, want)
	}
	return nil
}

// BlockNumber 最新区块高度
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.transport.BlockNumber(ctx)
}

// Close 释放缓存、事件总线和节点连接
func (c *Client) Close() error {
	c.dashboard.Detach()
	if err := c.dashboard.Close(); err != nil {
		c.logger.Debug("关闭看板缓存失败", zap.Error(err))
	}
	return c.transport.Close()
}
