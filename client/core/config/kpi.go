package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// 看板默认年份范围
const (
	DefaultYearFrom uint16 = 2019
	DefaultYearTo   uint16 = 2025
)

// KPI 目录中的一项指标
type KPI struct {
	ID       uint64 `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Decimals uint8  `json:"decimals"` // 链上整数的小数位
}

// TypeID 合约中的 kpiTypeId
func (k KPI) TypeID() *big.Int {
	return new(big.Int).SetUint64(k.ID)
}

// Label 展示名
func (k KPI) Label() string {
	if k.Unit == "" {
		return k.Name
	}
	return fmt.Sprintf("%s (%s)", k.Name, k.Unit)
}

// DefaultKPIs 内置 KPI 目录
func DefaultKPIs() []KPI {
	return []KPI{
		{ID: 1, Code: "ghg_scope1", Name: "范围一温室气体排放", Unit: "tCO2e", Decimals: 2},
		{ID: 2, Code: "ghg_scope2", Name: "范围二温室气体排放", Unit: "tCO2e", Decimals: 2},
		{ID: 3, Code: "energy", Name: "能源消耗总量", Unit: "MWh", Decimals: 2},
		{ID: 4, Code: "water", Name: "用水量", Unit: "m3", Decimals: 0},
		{ID: 5, Code: "renewable_share", Name: "可再生能源占比", Unit: "%", Decimals: 2},
		{ID: 6, Code: "women_in_mgmt", Name: "女性管理层占比", Unit: "%", Decimals: 2},
		{ID: 7, Code: "injury_rate", Name: "工伤事故率", Unit: "per 200k h", Decimals: 3},
	}
}

// FindKPI 按 id 或 code 查找指标
func (p *Profile) FindKPI(ref string) (KPI, bool) {
	return FindKPI(p.KPIs, ref)
}

// FindKPI 在目录中按 id 或 code(大小写不敏感)查找指标
func FindKPI(catalog []KPI, ref string) (KPI, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		for _, k := range catalog {
			if k.ID == id {
				return k, true
			}
		}
		return KPI{}, false
	}
	for _, k := range catalog {
		if strings.EqualFold(k.Code, ref) {
			return k, true
		}
	}
	return KPI{}, false
}
