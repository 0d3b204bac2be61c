package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apitypes "github.com/weisyn/esg-registry/internal/api/types"
)

// maxTrackedClients 同时跟踪的客户端数量，超出后淘汰最久未访问的
const maxTrackedClients = 10000

// RateLimit 按客户端 IP 的令牌桶限流
type RateLimit struct {
	logger   *zap.Logger
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewRateLimit 创建限流中间件，rps<=0 时不限流
func NewRateLimit(logger *zap.Logger, rps float64, burst int) *RateLimit {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimit{
		logger:   logger,
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: limiters,
	}
}

// Middleware 返回Gin中间件
func (m *RateLimit) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limit <= 0 {
			c.Next()
			return
		}
		clientID := c.ClientIP()
		if !m.limiter(clientID).Allow() {
			m.logger.Debug("请求被限流", zap.String("client_ip", clientID), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "1")
			WriteError(c, apitypes.CodeRateLimitExceeded, "请求过于频繁，请稍后再试",
				"rate limit of "+strconv.FormatFloat(float64(m.limit), 'f', -1, 64)+" req/s exceeded",
				http.StatusTooManyRequests, map[string]interface{}{"burst": m.burst})
			return
		}
		c.Next()
	}
}

func (m *RateLimit) limiter(clientID string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters.Get(clientID)
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters.Add(clientID, l)
	}
	return l
}
