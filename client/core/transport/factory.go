package transport

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientConfig 客户端配置
type ClientConfig struct {
	// 节点端点(按优先级排序)
	Endpoints []EndpointConfig `json:"endpoints"`

	// 超时配置
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryBackoff  time.Duration `json:"retry_backoff"`

	// 健康检查
	HealthCheckInterval time.Duration `json:"health_check_interval"`

	// RateLimit 每秒请求数，0 表示不限速
	RateLimit float64 `json:"rate_limit"`

	// PollInterval 无 WebSocket 时日志轮询间隔
	PollInterval time.Duration `json:"poll_interval"`
}

// EndpointConfig 端点配置
type EndpointConfig struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"` // 优先级,数字越小越优先

	// 协议端点
	JSONRPC string `json:"jsonrpc,omitempty"`
	WS      string `json:"ws,omitempty"`
}

// Option 客户端选项
type Option func(*FallbackClient)

// WithDialer 替换端点拨号函数
func WithDialer(d Dialer) Option {
	return func(fc *FallbackClient) {
		fc.dial = d
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(fc *FallbackClient) {
		if logger != nil {
			fc.logger = logger
		}
	}
}

// FallbackClient 支持故障转移的客户端
type FallbackClient struct {
	config  ClientConfig
	clients []*endpoint
	current int
	mu      sync.RWMutex

	dial    Dialer
	limiter *rate.Limiter
	logger  *zap.Logger

	closeCh   chan struct{}
	closeOnce sync.Once
}

type endpoint struct {
	name     string
	priority int
	rpcURL   string
	wsURL    string

	client    Backend // HTTP 或 WS，用于普通请求
	ws        Backend // 订阅专用，按需拨号
	healthy   bool
	lastCheck time.Time
}

func dialEthclient(ctx context.Context, rawurl string) (Backend, error) {
	return ethclient.DialContext(ctx, rawurl)
}

// NewFallbackClient 创建支持故障转移的客户端
func NewFallbackClient(ctx context.Context, config ClientConfig, opts ...Option) (*FallbackClient, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	// 设置默认值
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = time.Second
	}
	if config.HealthCheckInterval == 0 {
		config.HealthCheckInterval = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 4 * time.Second
	}

	fc := &FallbackClient{
		config:  config,
		clients: make([]*endpoint, 0, len(config.Endpoints)),
		dial:    dialEthclient,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  zap.NewNop(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fc)
	}
	if config.RateLimit > 0 {
		fc.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), int(config.RateLimit)+1)
	}

	for _, ep := range config.Endpoints {
		primary := ep.JSONRPC
		if primary == "" {
			primary = ep.WS
		}
		if primary == "" {
			continue // 跳过无效端点
		}

		client, err := fc.dial(ctx, primary)
		if err != nil {
			// 记录但不失败
			fc.logger.Warn("端点连接失败", zap.String("endpoint", ep.Name), zap.Error(err))
			continue
		}

		e := &endpoint{
			name:     ep.Name,
			priority: ep.Priority,
			rpcURL:   ep.JSONRPC,
			wsURL:    ep.WS,
			client:   client,
			healthy:  true, // 初始假设健康
		}
		if ep.JSONRPC == "" {
			e.ws = client
		}
		fc.clients = append(fc.clients, e)
	}

	if len(fc.clients) == 0 {
		return nil, fmt.Errorf("no valid clients created")
	}

	sort.SliceStable(fc.clients, func(i, j int) bool {
		return fc.clients[i].priority < fc.clients[j].priority
	})

	go fc.healthCheckLoop()

	return fc, nil
}

// healthCheckLoop 健康检查循环
func (fc *FallbackClient) healthCheckLoop() {
	ticker := time.NewTicker(fc.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fc.checkAllClients()
		case <-fc.closeCh:
			return
		}
	}
}

// checkAllClients 检查所有端点健康状态
func (fc *FallbackClient) checkAllClients() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fc.mu.RLock()
	eps := append([]*endpoint(nil), fc.clients...)
	fc.mu.RUnlock()

	for _, ep := range eps {
		_, err := ep.client.BlockNumber(ctx)
		fc.mu.Lock()
		ep.healthy = err == nil
		ep.lastCheck = time.Now()
		fc.mu.Unlock()
	}
}

// getClient 获取当前可用端点
func (fc *FallbackClient) getClient() *endpoint {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	// 优先使用当前端点
	if fc.current < len(fc.clients) && fc.clients[fc.current].healthy {
		return fc.clients[fc.current]
	}

	// 查找下一个健康的端点
	for i, c := range fc.clients {
		if c.healthy {
			fc.current = i
			return c
		}
	}

	// 所有端点都不健康，按顺序轮换
	if len(fc.clients) > 0 {
		fc.current = (fc.current + 1) % len(fc.clients)
		return fc.clients[fc.current]
	}
	return nil
}

func (fc *FallbackClient) markUnhealthy(ep *endpoint) {
	fc.mu.Lock()
	ep.healthy = false
	fc.mu.Unlock()
}

// retryable 只有传输层错误才切换端点
//
// 节点返回的 JSON-RPC 错误(回滚、nonce 过低等)和 NotFound 属于业务结果，原样返回。
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	var rpcErr rpc.Error
	return !errors.As(err, &rpcErr)
}

// tryWithFallback 尝试执行操作,失败时降级
func (fc *FallbackClient) tryWithFallback(ctx context.Context, op func(context.Context, Backend) error) error {
	var lastErr error

	for attempt := 0; attempt < fc.config.RetryAttempts; attempt++ {
		ep := fc.getClient()
		if ep == nil {
			return fmt.Errorf("no available client")
		}
		if err := fc.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, fc.config.Timeout)
		err := op(callCtx, ep.client)
		cancel()
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return err
		}

		lastErr = err
		fc.markUnhealthy(ep)
		fc.logger.Warn("端点请求失败，切换端点",
			zap.String("endpoint", ep.name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		// 退避重试
		if attempt < fc.config.RetryAttempts-1 {
			select {
			case <-time.After(fc.config.RetryBackoff * time.Duration(attempt+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("all endpoints failed: %w", lastErr)
}

// ===== Client接口实现(通过tryWithFallback降级) =====

func (fc *FallbackClient) ChainID(ctx context.Context) (*big.Int, error) {
	var result *big.Int
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.ChainID(ctx)
		return e
	})
	return result, err
}

func (fc *FallbackClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result uint64
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.BlockNumber(ctx)
		return e
	})
	return result, err
}

func (fc *FallbackClient) Ping(ctx context.Context) error {
	_, err := fc.BlockNumber(ctx)
	return err
}

func (fc *FallbackClient) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.CodeAt(ctx, contract, blockNumber)
		return e
	})
	return result, err
}

func (fc *FallbackClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.CallContract(ctx, call, blockNumber)
		return e
	})
	return result, err
}

func (fc *FallbackClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var result *types.Header
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.HeaderByNumber(ctx, number)
		return e
	})
	return result, err
}

func (fc *FallbackClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	var result []byte
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.PendingCodeAt(ctx, account)
		return e
	})
	return result, err
}

func (fc *FallbackClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var result uint64
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.PendingNonceAt(ctx, account)
		return e
	})
	return result, err
}

func (fc *FallbackClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var result *big.Int
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.SuggestGasPrice(ctx)
		return e
	})
	return result, err
}

func (fc *FallbackClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var result *big.Int
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.SuggestGasTipCap(ctx)
		return e
	})
	return result, err
}

func (fc *FallbackClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	var result uint64
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.EstimateGas(ctx, call)
		return e
	})
	return result, err
}

// SendTransaction 广播已签名交易
//
// 同一笔交易在换端点重发时可能返回 "already known"，视为成功。
func (fc *FallbackClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		err := c.SendTransaction(ctx, tx)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "already known") {
			return nil
		}
		return err
	})
}

func (fc *FallbackClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var result *types.Receipt
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.TransactionReceipt(ctx, txHash)
		return e
	})
	return result, err
}

func (fc *FallbackClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var result []types.Log
	err := fc.tryWithFallback(ctx, func(ctx context.Context, c Backend) error {
		var e error
		result, e = c.FilterLogs(ctx, q)
		return e
	})
	return result, err
}

// SubscribeFilterLogs 订阅日志
//
// 按优先级尝试有 WebSocket 的端点；都不可用时降级为 FilterLogs 轮询。
func (fc *FallbackClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	fc.mu.RLock()
	eps := append([]*endpoint(nil), fc.clients...)
	fc.mu.RUnlock()

	for _, ep := range eps {
		if ep.wsURL == "" {
			continue
		}
		ws, err := fc.wsBackend(ctx, ep)
		if err != nil {
			fc.logger.Warn("WebSocket连接失败", zap.String("endpoint", ep.name), zap.Error(err))
			continue
		}
		sub, err := ws.SubscribeFilterLogs(ctx, q, ch)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
			fc.logger.Warn("日志订阅失败", zap.String("endpoint", ep.name), zap.Error(err))
		}
	}

	fc.logger.Debug("无可用WebSocket端点，使用轮询订阅", zap.Duration("interval", fc.config.PollInterval))
	return NewPollingSubscription(fc, q, ch, fc.config.PollInterval, fc.logger), nil
}

func (fc *FallbackClient) wsBackend(ctx context.Context, ep *endpoint) (Backend, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if ep.ws != nil {
		return ep.ws, nil
	}
	ws, err := fc.dial(ctx, ep.wsURL)
	if err != nil {
		return nil, err
	}
	ep.ws = ws
	return ws, nil
}

// Endpoints 端点状态(名称 -> 是否健康)
func (fc *FallbackClient) Endpoints() map[string]bool {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	out := make(map[string]bool, len(fc.clients))
	for _, c := range fc.clients {
		out[c.name] = c.healthy
	}
	return out
}

func (fc *FallbackClient) Close() error {
	fc.closeOnce.Do(func() {
		close(fc.closeCh)

		fc.mu.Lock()
		defer fc.mu.Unlock()

		for _, c := range fc.clients {
			c.client.Close()
			if c.ws != nil && c.ws != c.client {
				c.ws.Close()
			}
		}
	})
	return nil
}

// 确保实现了Client接口
var _ Client = (*FallbackClient)(nil)
