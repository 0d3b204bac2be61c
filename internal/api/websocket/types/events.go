// Package types provides WebSocket event type definitions.
package types

import (
	"github.com/weisyn/esg-registry/client/core/registry"
)

// 推送消息类型
const (
	TypeReportConfirmed = "reportConfirmed"
	TypeReportObserved  = "reportObserved"
	TypeReportRemoved   = "reportRemoved"
	TypeWelcome         = "welcome"
)

// ReportEvent 报告事件推送
type ReportEvent struct {
	Type          string `json:"type"`          // reportObserved / reportConfirmed / reportRemoved
	Owner         string `json:"owner"`         // 公司地址
	KPITypeID     string `json:"kpiTypeId"`     // KPI 类型
	ReportingYear uint16 `json:"reportingYear"` // 报告年份
	Value         string `json:"value"`         // 链上整数
	MetadataCID   string `json:"metadataCid"`   // CIDv0
	Version       uint64 `json:"version"`
	Timestamp     uint64 `json:"timestamp"`

	BlockNumber     uint64 `json:"blockNumber"`
	BlockHash       string `json:"blockHash"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint   `json:"logIndex"`
	Removed         bool   `json:"removed"` // 是否被重组移除
}

// NewReportEvent 由解码后的日志构造推送消息
func NewReportEvent(typ string, ev *registry.ReportSubmitted) ReportEvent {
	out := ReportEvent{
		Type:          typ,
		Owner:         ev.Owner.Hex(),
		ReportingYear: ev.ReportingYear,
		MetadataCID:   registry.FormatMetadataCID(ev.MetadataCID),
		Version:       ev.Version,
		Timestamp:     ev.Timestamp,

		BlockNumber:     ev.Raw.BlockNumber,
		BlockHash:       ev.Raw.BlockHash.Hex(),
		TransactionHash: ev.Raw.TxHash.Hex(),
		LogIndex:        ev.Raw.Index,
		Removed:         ev.Raw.Removed,
	}
	if ev.KPITypeID != nil {
		out.KPITypeID = ev.KPITypeID.String()
	}
	if ev.Value != nil {
		out.Value = ev.Value.String()
	}
	return out
}

// WelcomeEvent 连接建立后的首条消息，回显生效的过滤条件
type WelcomeEvent struct {
	Type  string `json:"type"` // "welcome"
	Owner string `json:"owner,omitempty"`
	KPI   string `json:"kpi,omitempty"`
}
