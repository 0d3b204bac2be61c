package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Report 合约中某个 (owner, kpiTypeId, reportingYear) 的一条报告版本
type Report struct {
	Owner         common.Address `json:"owner"`
	KPITypeID     *big.Int       `json:"kpi_type_id"`
	ReportingYear uint16         `json:"reporting_year"`
	Value         *big.Int       `json:"value"`
	MetadataCID   common.Hash    `json:"metadata_cid"`
	Version       uint64         `json:"version"`
	Timestamp     uint64         `json:"timestamp"`
	Exists        bool           `json:"exists"`
}

// ReportSubmitted 解码后的 ReportSubmitted 事件
type ReportSubmitted struct {
	Owner         common.Address
	KPITypeID     *big.Int
	ReportingYear uint16
	Value         *big.Int
	MetadataCID   common.Hash
	Version       uint64
	Timestamp     uint64

	Raw types.Log // 原始日志
}

// Report 转换为报告视图
func (e *ReportSubmitted) Report() *Report {
	return &Report{
		Owner:         e.Owner,
		KPITypeID:     e.KPITypeID,
		ReportingYear: e.ReportingYear,
		Value:         e.Value,
		MetadataCID:   e.MetadataCID,
		Version:       e.Version,
		Timestamp:     e.Timestamp,
		Exists:        true,
	}
}
