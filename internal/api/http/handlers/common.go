// Package handlers HTTP 接口处理器
package handlers

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/internal/api/http/middleware"
	apitypes "github.com/weisyn/esg-registry/internal/api/types"
)

// ReportView 报告的接口视图
type ReportView struct {
	Year         uint16 `json:"year"`
	Found        bool   `json:"found"`
	Value        string `json:"value,omitempty"`     // 按 KPI 小数位格式化
	RawValue     string `json:"raw_value,omitempty"` // 链上整数
	MetadataCID  string `json:"metadata_cid,omitempty"`
	MetadataHash string `json:"metadata_hash,omitempty"`
	Version      uint64 `json:"version,omitempty"`
	SubmittedAt  string `json:"submitted_at,omitempty"`
}

// NewReportView 转换报告，r 为空或不存在时只返回年份
func NewReportView(year uint16, r *registry.Report, kpi config.KPI) ReportView {
	v := ReportView{Year: year}
	if r == nil || !r.Exists {
		return v
	}
	v.Found = true
	v.Value = registry.FormatScaledValue(r.Value, kpi.Decimals)
	v.RawValue = r.Value.String()
	v.MetadataCID = registry.FormatMetadataCID(r.MetadataCID)
	v.MetadataHash = r.MetadataCID.Hex()
	v.Version = r.Version
	if r.Timestamp > 0 {
		v.SubmittedAt = time.Unix(int64(r.Timestamp), 0).UTC().Format(time.RFC3339)
	}
	return v
}

func formatValue(v *big.Int, kpi config.KPI) string {
	if v == nil {
		return ""
	}
	return registry.FormatScaledValue(v, kpi.Decimals)
}

// parseOwner 解析路径中的公司地址
func parseOwner(c *gin.Context) (common.Address, bool) {
	owner := c.Param("owner")
	if !common.IsHexAddress(owner) {
		badRequest(c, "无效的公司地址", fmt.Sprintf("invalid owner address %q", owner))
		return common.Address{}, false
	}
	return common.HexToAddress(owner), true
}

// parseKPI 解析路径中的 KPI id 或 code
func parseKPI(c *gin.Context, catalog []config.KPI) (config.KPI, bool) {
	ref := c.Param("kpi")
	kpi, ok := config.FindKPI(catalog, ref)
	if !ok {
		middleware.WriteError(c, apitypes.CodeUnknownKPI, "未知的 KPI",
			fmt.Sprintf("kpi %q is not in the catalog", ref), http.StatusNotFound, nil)
		return config.KPI{}, false
	}
	return kpi, true
}

// parseYear 解析年份，s 为空时返回 def
func parseYear(s string, def uint16) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	y, err := strconv.ParseUint(s, 10, 16)
	if err != nil || y == 0 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return uint16(y), nil
}

func badRequest(c *gin.Context, userMessage, detail string) {
	middleware.WriteError(c, apitypes.CodeValidationError, userMessage, detail, http.StatusBadRequest, nil)
}

func chainError(c *gin.Context, err error) {
	middleware.WriteError(c, apitypes.CodeChainUnavailable, "读取链上数据失败，请稍后重试",
		err.Error(), http.StatusBadGateway, nil)
}
