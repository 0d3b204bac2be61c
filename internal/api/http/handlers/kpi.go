package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/esg-registry/client/core/config"
)

// KPIHandlers KPI 目录接口
type KPIHandlers struct {
	catalog []config.KPI
}

// NewKPIHandlers 创建 KPI 目录处理器
func NewKPIHandlers(catalog []config.KPI) *KPIHandlers {
	return &KPIHandlers{catalog: catalog}
}

// RegisterRoutes 注册路由
func (h *KPIHandlers) RegisterRoutes(r gin.IRoutes) {
	r.GET("/kpis", h.List)
	r.GET("/kpis/:kpi", h.Get)
}

// List GET /api/v1/kpis
func (h *KPIHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kpis": h.catalog})
}

// Get GET /api/v1/kpis/:kpi
func (h *KPIHandlers) Get(c *gin.Context) {
	kpi, ok := parseKPI(c, h.catalog)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, kpi)
}
