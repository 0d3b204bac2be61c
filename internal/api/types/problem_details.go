// Package types API 层共享的错误结构
package types

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ProblemDetails 错误响应（RFC7807 + 扩展字段）
type ProblemDetails struct {
	// RFC7807 标准字段
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// 扩展字段
	Code        string                 `json:"code"`
	Layer       string                 `json:"layer"`
	UserMessage string                 `json:"userMessage"`
	Details     map[string]interface{} `json:"details,omitempty"`
	TraceID     string                 `json:"traceId"`
	Timestamp   string                 `json:"timestamp"`
}

// Error 实现 error 接口
func (p *ProblemDetails) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.UserMessage
}

// WriteJSON 将 Problem Details 写入 HTTP 响应
func (p *ProblemDetails) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewProblemDetails 创建新的 Problem Details，TraceID 为新的 UUID
func NewProblemDetails(code, layer, userMessage, detail string, status int, details map[string]interface{}) *ProblemDetails {
	return &ProblemDetails{
		Title:       http.StatusText(status),
		Code:        code,
		Layer:       layer,
		UserMessage: userMessage,
		Detail:      detail,
		Status:      status,
		Details:     details,
		TraceID:     uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// IsProblemDetails 检查错误是否为 Problem Details
func IsProblemDetails(err error) (*ProblemDetails, bool) {
	if pd, ok := err.(*ProblemDetails); ok {
		return pd, true
	}
	return nil, false
}

// 错误码
const (
	CodeReportNotFound     = "ESG_REPORT_NOT_FOUND"
	CodeUnknownKPI         = "ESG_UNKNOWN_KPI"
	CodeChainUnavailable   = "ESG_CHAIN_UNAVAILABLE"
	CodeValidationError    = "COMMON_VALIDATION_ERROR"
	CodeInternalError      = "COMMON_INTERNAL_ERROR"
	CodeRateLimitExceeded  = "COMMON_RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable = "COMMON_SERVICE_UNAVAILABLE"
)

// Layer 常量
const (
	LayerRegistryAPI = "registry-api"
)
