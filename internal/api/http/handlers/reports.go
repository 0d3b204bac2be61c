package handlers

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/dashboard"
	"github.com/weisyn/esg-registry/client/core/registry"
)

// maxYearSpan 单次查询的最大年份数
const maxYearSpan = 50

// DashboardReader 看板读取能力，*dashboard.Service 满足该接口
type DashboardReader interface {
	Series(ctx context.Context, q dashboard.Query) (*dashboard.Series, error)
	History(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) ([]*registry.Report, error)
}

// ReportHandlers 报告查询接口
type ReportHandlers struct {
	reader   DashboardReader
	catalog  []config.KPI
	yearFrom uint16
	yearTo   uint16
	logger   *zap.Logger
}

// NewReportHandlers 创建报告处理器
func NewReportHandlers(reader DashboardReader, catalog []config.KPI, yearFrom, yearTo uint16, logger *zap.Logger) *ReportHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandlers{
		reader:   reader,
		catalog:  catalog,
		yearFrom: yearFrom,
		yearTo:   yearTo,
		logger:   logger,
	}
}

// RegisterRoutes 注册路由
func (h *ReportHandlers) RegisterRoutes(r gin.IRoutes) {
	r.GET("/reports/:owner/:kpi", h.GetSeries)
	r.GET("/reports/:owner/:kpi/:year/history", h.GetHistory)
}

// SummaryView 序列统计视图
type SummaryView struct {
	Reported   int    `json:"reported"`
	Min        string `json:"min,omitempty"`
	Max        string `json:"max,omitempty"`
	Latest     string `json:"latest,omitempty"`
	LatestYear uint16 `json:"latest_year,omitempty"`
	FirstYear  uint16 `json:"first_year,omitempty"`
	Change     string `json:"change,omitempty"`
}

// SeriesResponse GetSeries 响应
type SeriesResponse struct {
	Owner   string       `json:"owner"`
	KPI     config.KPI   `json:"kpi"`
	From    uint16       `json:"from"`
	To      uint16       `json:"to"`
	Points  []ReportView `json:"points"`
	Summary SummaryView  `json:"summary"`
}

// GetSeries GET /api/v1/reports/:owner/:kpi?from=&to=
func (h *ReportHandlers) GetSeries(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}
	kpi, ok := parseKPI(c, h.catalog)
	if !ok {
		return
	}
	from, err := parseYear(c.Query("from"), h.yearFrom)
	if err != nil {
		badRequest(c, "无效的起始年份", err.Error())
		return
	}
	to, err := parseYear(c.Query("to"), h.yearTo)
	if err != nil {
		badRequest(c, "无效的结束年份", err.Error())
		return
	}
	if from > to || int(to-from) >= maxYearSpan {
		badRequest(c, "无效的年份区间", fmt.Sprintf("year range %d-%d must be ascending and span at most %d years", from, to, maxYearSpan))
		return
	}

	series, err := h.reader.Series(c.Request.Context(), dashboard.Query{
		Owner:     owner,
		KPITypeID: kpi.TypeID(),
		FromYear:  from,
		ToYear:    to,
	})
	if err != nil {
		h.logger.Warn("读取看板序列失败",
			zap.String("owner", owner.Hex()),
			zap.Uint64("kpi", kpi.ID),
			zap.Error(err))
		chainError(c, err)
		return
	}

	resp := SeriesResponse{
		Owner:  owner.Hex(),
		KPI:    kpi,
		From:   from,
		To:     to,
		Points: make([]ReportView, 0, len(series.Points)),
	}
	for _, p := range series.Points {
		resp.Points = append(resp.Points, NewReportView(p.Year, p.Report, kpi))
	}
	sum := series.Summary()
	resp.Summary = SummaryView{
		Reported:   sum.Reported,
		Min:        formatValue(sum.Min, kpi),
		Max:        formatValue(sum.Max, kpi),
		Latest:     formatValue(sum.Latest, kpi),
		LatestYear: sum.LatestYear,
		FirstYear:  sum.FirstYear,
		Change:     formatValue(sum.Change, kpi),
	}
	c.JSON(http.StatusOK, resp)
}

// GetHistory GET /api/v1/reports/:owner/:kpi/:year/history
func (h *ReportHandlers) GetHistory(c *gin.Context) {
	owner, ok := parseOwner(c)
	if !ok {
		return
	}
	kpi, ok := parseKPI(c, h.catalog)
	if !ok {
		return
	}
	year, err := parseYear(c.Param("year"), 0)
	if err != nil || year == 0 {
		badRequest(c, "无效的报告年份", fmt.Sprintf("invalid year %q", c.Param("year")))
		return
	}

	reports, err := h.reader.History(c.Request.Context(), owner, kpi.TypeID(), year)
	if err != nil {
		chainError(c, err)
		return
	}
	versions := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		versions = append(versions, NewReportView(year, r, kpi))
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":    owner.Hex(),
		"kpi":      kpi,
		"year":     year,
		"versions": versions,
	})
}
