package wallet

import (
	"fmt"
	"strconv"
	"strings"
)

// BIP44 相关常量
const (
	// EthereumCoinType 以太坊 SLIP-0044 Coin Type
	EthereumCoinType uint32 = 60

	// BIP44Purpose BIP44 标准的 purpose 值
	BIP44Purpose uint32 = 44

	// HardenedOffset 硬化派生偏移量
	HardenedOffset uint32 = 0x80000000
)

// DerivationPath BIP44 派生路径 m/purpose'/coin'/account'/change/index
type DerivationPath struct {
	Purpose      uint32 `json:"purpose"`
	CoinType     uint32 `json:"coin_type"`
	Account      uint32 `json:"account"`
	Change       uint32 `json:"change"`
	AddressIndex uint32 `json:"address_index"`
}

// DefaultDerivationPath m/44'/60'/0'/0/0
func DefaultDerivationPath() *DerivationPath {
	return &DerivationPath{Purpose: BIP44Purpose, CoinType: EthereumCoinType}
}

// ParseDerivationPath 解析派生路径字符串
// 支持格式: m/44'/60'/0'/0/0 或 44'/60'/0'/0/0，硬化标记可写作 ' h H
func ParseDerivationPath(path string) (*DerivationPath, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "m/")
	path = strings.TrimPrefix(path, "M/")

	parts := strings.Split(path, "/")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid derivation path: expected 5 components, got %d", len(parts))
	}

	hardened := []bool{true, true, true, false, false}
	values := make([]uint32, 5)
	for i, part := range parts {
		v, err := parsePathComponent(part, hardened[i])
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path component %d: %w", i, err)
		}
		values[i] = v
	}

	dp := &DerivationPath{
		Purpose:      values[0],
		CoinType:     values[1],
		Account:      values[2],
		Change:       values[3],
		AddressIndex: values[4],
	}
	if dp.Purpose != BIP44Purpose {
		return nil, fmt.Errorf("invalid purpose: expected %d (BIP44), got %d", BIP44Purpose, dp.Purpose)
	}
	if dp.Change > 1 {
		return nil, fmt.Errorf("invalid change: expected 0 or 1, got %d", dp.Change)
	}
	return dp, nil
}

// parsePathComponent 解析路径组件，hardened 表示该层必须硬化
func parsePathComponent(component string, hardened bool) (uint32, error) {
	trimmed := strings.TrimRight(component, "'hH")
	isHardened := trimmed != component

	if hardened != isHardened {
		if hardened {
			return 0, fmt.Errorf("hardened derivation required for %s", component)
		}
		return 0, fmt.Errorf("hardened derivation not allowed for %s", component)
	}

	value, err := strconv.ParseUint(trimmed, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", trimmed)
	}
	return uint32(value), nil
}

// String 返回路径字符串表示
func (dp *DerivationPath) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", dp.Purpose, dp.CoinType, dp.Account, dp.Change, dp.AddressIndex)
}

// ToUint32Array 转换为 hdkeychain 使用的索引序列(含硬化偏移)
func (dp *DerivationPath) ToUint32Array() []uint32 {
	return []uint32{
		dp.Purpose + HardenedOffset,
		dp.CoinType + HardenedOffset,
		dp.Account + HardenedOffset,
		dp.Change,
		dp.AddressIndex,
	}
}

// WithAddressIndex 返回使用指定地址索引的新路径
func (dp *DerivationPath) WithAddressIndex(index uint32) *DerivationPath {
	next := *dp
	next.AddressIndex = index
	return &next
}
