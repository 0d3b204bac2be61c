package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ChainStatus 健康检查所需的链访问能力
type ChainStatus interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HealthHandler 健康检查
type HealthHandler struct {
	chain   ChainStatus
	chainID uint64
	started time.Time
	timeout time.Duration
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(chain ChainStatus, chainID uint64) *HealthHandler {
	return &HealthHandler{
		chain:   chain,
		chainID: chainID,
		started: time.Now(),
		timeout: 3 * time.Second,
	}
}

// Health GET /health
//
// 节点不可达时返回 503，供负载均衡摘除实例。
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := gin.H{
		"chain_id": h.chainID,
		"uptime":   time.Since(h.started).Truncate(time.Second).String(),
	}
	block, err := h.chain.BlockNumber(ctx)
	if err != nil {
		resp["status"] = "degraded"
		resp["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["status"] = "ok"
	resp["block_number"] = block
	c.JSON(http.StatusOK, resp)
}
