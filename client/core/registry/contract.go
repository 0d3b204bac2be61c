package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Caller 登记合约的只读调用绑定
type Caller struct {
	address  common.Address
	codec    *Codec
	contract *bind.BoundContract
}

// NewCaller 创建只读绑定
func NewCaller(address common.Address, caller bind.ContractCaller, codec *Codec) *Caller {
	return &Caller{
		address:  address,
		codec:    codec,
		contract: bind.NewBoundContract(address, codec.ABI(), caller, nil, nil),
	}
}

// Address 合约地址
func (c *Caller) Address() common.Address {
	return c.address
}

// LatestReport 读取某年最新版本；Exists=false 表示该年未提交
func (c *Caller) LatestReport(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) (*Report, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetLatestReport, owner, kpiTypeID, year); err != nil {
		return nil, fmt.Errorf("call %s(%s, %s, %d): %w", MethodGetLatestReport, owner.Hex(), kpiTypeID, year, err)
	}
	report, err := latestReportFromValues(out)
	if err != nil {
		return nil, err
	}
	report.Owner = owner
	report.KPITypeID = kpiTypeID
	report.ReportingYear = year
	return report, nil
}

// VersionCount 读取版本数量
func (c *Caller) VersionCount(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) (uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetVersionCount, owner, kpiTypeID, year); err != nil {
		return 0, fmt.Errorf("call %s: %w", MethodGetVersionCount, err)
	}
	return versionCountFromValues(out)
}

// ReportVersion 读取指定版本(从 1 开始)
func (c *Caller) ReportVersion(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16, version uint64) (*Report, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetReportVersion, owner, kpiTypeID, year, version); err != nil {
		return nil, fmt.Errorf("call %s(version=%d): %w", MethodGetReportVersion, version, err)
	}
	report, err := reportVersionFromValues(out)
	if err != nil {
		return nil, err
	}
	report.Owner = owner
	report.KPITypeID = kpiTypeID
	report.ReportingYear = year
	report.Version = version
	return report, nil
}

// History 读取全部版本，按版本号升序
func (c *Caller) History(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) ([]*Report, error) {
	count, err := c.VersionCount(ctx, owner, kpiTypeID, year)
	if err != nil {
		return nil, err
	}
	if count > MaxHistoryVersions {
		return nil, fmt.Errorf("%w: %d versions for year %d", ErrTooManyVersions, count, year)
	}
	reports := make([]*Report, 0, count)
	for v := uint64(1); v <= count; v++ {
		r, err := c.ReportVersion(ctx, owner, kpiTypeID, year, v)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// MaxHistoryVersions History 单次读取的版本数上限
const MaxHistoryVersions = 1024

// Transactor 登记合约的写入绑定
type Transactor struct {
	address  common.Address
	codec    *Codec
	backend  bind.ContractTransactor
	contract *bind.BoundContract
}

// NewTransactor 创建写入绑定
func NewTransactor(address common.Address, backend bind.ContractTransactor, codec *Codec) *Transactor {
	return &Transactor{
		address:  address,
		codec:    codec,
		backend:  backend,
		contract: bind.NewBoundContract(address, codec.ABI(), nil, backend, nil),
	}
}

// SubmitReport 签名并发送 submitReport 交易
func (t *Transactor) SubmitReport(opts *bind.TransactOpts, kpiTypeID *big.Int, year uint16, value *big.Int, cid common.Hash) (*types.Transaction, error) {
	tx, err := t.contract.Transact(opts, MethodSubmitReport, kpiTypeID, year, value, [32]byte(cid))
	if err != nil {
		return nil, fmt.Errorf("transact %s: %w", MethodSubmitReport, err)
	}
	return tx, nil
}

// EstimateSubmitReport 估算 submitReport 的 gas
func (t *Transactor) EstimateSubmitReport(ctx context.Context, from common.Address, kpiTypeID *big.Int, year uint16, value *big.Int, cid common.Hash) (uint64, error) {
	data, err := t.codec.PackSubmitReport(kpiTypeID, year, value, cid)
	if err != nil {
		return 0, fmt.Errorf("pack %s: %w", MethodSubmitReport, err)
	}
	to := t.address
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return gas, nil
}
