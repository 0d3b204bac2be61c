package registry

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNotReportEvent 日志不是 ReportSubmitted 事件
	ErrNotReportEvent = errors.New("log is not a ReportSubmitted event")
	// ErrMalformedLog 日志结构或数据无法解码
	ErrMalformedLog = errors.New("malformed ReportSubmitted log")
	// ErrTooManyVersions 合约返回的版本数超出读取上限
	ErrTooManyVersions = errors.New("version count exceeds history limit")
)

// reportSubmittedTopics 事件签名 + 三个 indexed 参数
const reportSubmittedTopics = 4

// Codec 登记合约的 ABI 编解码器
type Codec struct {
	abi   abi.ABI
	event abi.Event
}

// NewCodec 解析内嵌 ABI 创建编解码器
func NewCodec() (*Codec, error) {
	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	ev, ok := parsed.Events[EventReportSubmitted]
	if !ok {
		return nil, fmt.Errorf("event %s not found in abi", EventReportSubmitted)
	}
	return &Codec{abi: parsed, event: ev}, nil
}

// MustNewCodec 同 NewCodec，失败时 panic
func MustNewCodec() *Codec {
	c, err := NewCodec()
	if err != nil {
		panic(err)
	}
	return c
}

// ABI 返回解析后的 ABI
func (c *Codec) ABI() abi.ABI {
	return c.abi
}

// EventID ReportSubmitted 的事件签名哈希(topics[0])
func (c *Codec) EventID() common.Hash {
	return c.event.ID
}

// ========== 方法编解码 ==========

// PackSubmitReport 编码 submitReport 调用数据
func (c *Codec) PackSubmitReport(kpiTypeID *big.Int, year uint16, value *big.Int, cid common.Hash) ([]byte, error) {
	if kpiTypeID == nil || value == nil {
		return nil, fmt.Errorf("kpiTypeId and value are required")
	}
	return c.abi.Pack(MethodSubmitReport, kpiTypeID, year, value, [32]byte(cid))
}

// PackGetLatestReport 编码 getLatestReport 调用数据
func (c *Codec) PackGetLatestReport(owner common.Address, kpiTypeID *big.Int, year uint16) ([]byte, error) {
	return c.abi.Pack(MethodGetLatestReport, owner, kpiTypeID, year)
}

// UnpackLatestReport 解码 getLatestReport 返回值
func (c *Codec) UnpackLatestReport(data []byte) (*Report, error) {
	out, err := c.abi.Unpack(MethodGetLatestReport, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", MethodGetLatestReport, err)
	}
	return latestReportFromValues(out)
}

// PackGetVersionCount 编码 getVersionCount 调用数据
func (c *Codec) PackGetVersionCount(owner common.Address, kpiTypeID *big.Int, year uint16) ([]byte, error) {
	return c.abi.Pack(MethodGetVersionCount, owner, kpiTypeID, year)
}

// UnpackVersionCount 解码 getVersionCount 返回值
func (c *Codec) UnpackVersionCount(data []byte) (uint64, error) {
	out, err := c.abi.Unpack(MethodGetVersionCount, data)
	if err != nil {
		return 0, fmt.Errorf("unpack %s: %w", MethodGetVersionCount, err)
	}
	return versionCountFromValues(out)
}

// PackGetReportVersion 编码 getReportVersion 调用数据
func (c *Codec) PackGetReportVersion(owner common.Address, kpiTypeID *big.Int, year uint16, version uint64) ([]byte, error) {
	return c.abi.Pack(MethodGetReportVersion, owner, kpiTypeID, year, version)
}

// UnpackReportVersion 解码 getReportVersion 返回值
func (c *Codec) UnpackReportVersion(data []byte) (*Report, error) {
	out, err := c.abi.Unpack(MethodGetReportVersion, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", MethodGetReportVersion, err)
	}
	return reportVersionFromValues(out)
}

func latestReportFromValues(out []interface{}) (*Report, error) {
	if len(out) != 5 {
		return nil, fmt.Errorf("unexpected %s output count %d", MethodGetLatestReport, len(out))
	}
	return &Report{
		Value:       *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		MetadataCID: common.Hash(*abi.ConvertType(out[1], new([32]byte)).(*[32]byte)),
		Version:     *abi.ConvertType(out[2], new(uint64)).(*uint64),
		Timestamp:   *abi.ConvertType(out[3], new(uint64)).(*uint64),
		Exists:      *abi.ConvertType(out[4], new(bool)).(*bool),
	}, nil
}

func versionCountFromValues(out []interface{}) (uint64, error) {
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected %s output count %d", MethodGetVersionCount, len(out))
	}
	return *abi.ConvertType(out[0], new(uint64)).(*uint64), nil
}

func reportVersionFromValues(out []interface{}) (*Report, error) {
	if len(out) != 3 {
		return nil, fmt.Errorf("unexpected %s output count %d", MethodGetReportVersion, len(out))
	}
	return &Report{
		Value:       *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		MetadataCID: common.Hash(*abi.ConvertType(out[1], new([32]byte)).(*[32]byte)),
		Timestamp:   *abi.ConvertType(out[2], new(uint64)).(*uint64),
		Exists:      true,
	}, nil
}

// ========== 事件编解码 ==========

// DecodeReportSubmitted 按事件 ABI 解码日志
//
// indexed 参数(owner/reportingYear/metadataCid)从 topics 读取，
// 其余参数从 data 按 ABI 解码。
func (c *Codec) DecodeReportSubmitted(lg types.Log) (*ReportSubmitted, error) {
	if len(lg.Topics) == 0 || lg.Topics[0] != c.event.ID {
		return nil, ErrNotReportEvent
	}
	if len(lg.Topics) != reportSubmittedTopics {
		return nil, fmt.Errorf("%w: expected %d topics, got %d", ErrMalformedLog, reportSubmittedTopics, len(lg.Topics))
	}

	ownerWord := lg.Topics[1]
	for _, b := range ownerWord[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return nil, fmt.Errorf("%w: owner topic is not an address", ErrMalformedLog)
		}
	}

	year := new(big.Int).SetBytes(lg.Topics[2].Bytes())
	if year.BitLen() > 16 {
		return nil, fmt.Errorf("%w: reportingYear topic overflows uint16", ErrMalformedLog)
	}

	values, err := c.event.Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("%w: expected 4 data fields, got %d", ErrMalformedLog, len(values))
	}

	return &ReportSubmitted{
		Owner:         common.BytesToAddress(ownerWord.Bytes()),
		KPITypeID:     *abi.ConvertType(values[0], new(*big.Int)).(**big.Int),
		ReportingYear: uint16(year.Uint64()),
		Value:         *abi.ConvertType(values[1], new(*big.Int)).(**big.Int),
		MetadataCID:   lg.Topics[3],
		Version:       *abi.ConvertType(values[2], new(uint64)).(*uint64),
		Timestamp:     *abi.ConvertType(values[3], new(uint64)).(*uint64),
		Raw:           lg,
	}, nil
}

// EncodeReportSubmitted 把事件编码为日志，供模拟后端和回放使用
func (c *Codec) EncodeReportSubmitted(contract common.Address, ev *ReportSubmitted) (types.Log, error) {
	data, err := c.event.Inputs.NonIndexed().Pack(ev.KPITypeID, ev.Value, ev.Version, ev.Timestamp)
	if err != nil {
		return types.Log{}, fmt.Errorf("pack %s data: %w", EventReportSubmitted, err)
	}
	lg := ev.Raw
	lg.Address = contract
	lg.Topics = []common.Hash{
		c.event.ID,
		OwnerTopic(ev.Owner),
		YearTopic(ev.ReportingYear),
		ev.MetadataCID,
	}
	lg.Data = data
	return lg, nil
}

// ReportSubmittedTopics 构造日志过滤 topics，零值位置为通配
func (c *Codec) ReportSubmittedTopics(owner common.Address, year uint16, cid common.Hash) [][]common.Hash {
	topics := [][]common.Hash{{c.event.ID}, nil, nil, nil}
	if owner != (common.Address{}) {
		topics[1] = []common.Hash{OwnerTopic(owner)}
	}
	if year != 0 {
		topics[2] = []common.Hash{YearTopic(year)}
	}
	if cid != (common.Hash{}) {
		topics[3] = []common.Hash{cid}
	}
	// 去掉尾部通配
	for len(topics) > 1 && topics[len(topics)-1] == nil {
		topics = topics[:len(topics)-1]
	}
	return topics
}

// OwnerTopic address 参数的 topic 编码(左补零)
func OwnerTopic(owner common.Address) common.Hash {
	return common.BytesToHash(owner.Bytes())
}

// YearTopic uint16 参数的 topic 编码
func YearTopic(year uint16) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(uint64(year)))
}
