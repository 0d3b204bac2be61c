package registry

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller 按方法返回预置结果的合约调用后端
type fakeCaller struct {
	codec   *Codec
	reports []*Report // 版本 1..n
	calls   int
	err     error
	count   *uint64 // 覆盖 getVersionCount 返回值
}

func (f *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	methods := f.codec.ABI().Methods
	switch {
	case bytes.Equal(call.Data[:4], methods[MethodGetVersionCount].ID):
		if f.count != nil {
			return methods[MethodGetVersionCount].Outputs.Pack(*f.count)
		}
		return methods[MethodGetVersionCount].Outputs.Pack(uint64(len(f.reports)))
	case bytes.Equal(call.Data[:4], methods[MethodGetReportVersion].ID):
		args, err := methods[MethodGetReportVersion].Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		r := f.reports[args[3].(uint64)-1]
		return methods[MethodGetReportVersion].Outputs.Pack(r.Value, [32]byte(r.MetadataCID), r.Timestamp)
	case bytes.Equal(call.Data[:4], methods[MethodGetLatestReport].ID):
		if len(f.reports) == 0 {
			return methods[MethodGetLatestReport].Outputs.Pack(big.NewInt(0), [32]byte{}, uint64(0), uint64(0), false)
		}
		r := f.reports[len(f.reports)-1]
		return methods[MethodGetLatestReport].Outputs.Pack(r.Value, [32]byte(r.MetadataCID), uint64(len(f.reports)), r.Timestamp, true)
	}
	return nil, errors.New("unknown method")
}

// TestCallerHistory 测试版本历史读取
func TestCallerHistory(t *testing.T) {
	codec := MustNewCodec()
	backend := &fakeCaller{
		codec: codec,
		reports: []*Report{
			{Value: big.NewInt(100), MetadataCID: testCID, Timestamp: 1},
			{Value: big.NewInt(90), MetadataCID: testCID, Timestamp: 2},
		},
	}
	caller := NewCaller(testContract, backend, codec)
	ctx := context.Background()

	latest, err := caller.LatestReport(ctx, testOwner, big.NewInt(1), 2022)
	require.NoError(t, err)
	assert.True(t, latest.Exists)
	assert.Equal(t, uint64(2), latest.Version)
	assert.Equal(t, int64(90), latest.Value.Int64())
	assert.Equal(t, uint16(2022), latest.ReportingYear)
	assert.Equal(t, testOwner, latest.Owner)

	history, err := caller.History(ctx, testOwner, big.NewInt(1), 2022)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(1), history[0].Version)
	assert.Equal(t, int64(100), history[0].Value.Int64())
	assert.Equal(t, uint64(2), history[1].Version)
}

// TestCallerMissingYear 测试未提交年份
func TestCallerMissingYear(t *testing.T) {
	codec := MustNewCodec()
	caller := NewCaller(testContract, &fakeCaller{codec: codec}, codec)

	latest, err := caller.LatestReport(context.Background(), testOwner, big.NewInt(1), 2019)
	require.NoError(t, err)
	assert.False(t, latest.Exists)

	history, err := caller.History(context.Background(), testOwner, big.NewInt(1), 2019)
	require.NoError(t, err)
	assert.Empty(t, history)
}

// TestCallerHistoryVersionLimit 测试合约返回异常版本数
func TestCallerHistoryVersionLimit(t *testing.T) {
	codec := MustNewCodec()
	for _, n := range []uint64{MaxHistoryVersions + 1, 1 << 62, math.MaxUint64} {
		count := n
		backend := &fakeCaller{codec: codec, count: &count}
		caller := NewCaller(testContract, backend, codec)

		history, err := caller.History(context.Background(), testOwner, big.NewInt(1), 2022)
		assert.ErrorIs(t, err, ErrTooManyVersions)
		assert.Nil(t, history)
		assert.Equal(t, 1, backend.calls)
	}
}

// TestCallerError 测试调用失败包装
func TestCallerError(t *testing.T) {
	codec := MustNewCodec()
	rpcErr := errors.New("connection refused")
	caller := NewCaller(testContract, &fakeCaller{codec: codec, err: rpcErr}, codec)

	_, err := caller.LatestReport(context.Background(), testOwner, big.NewInt(1), 2020)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcErr)
	assert.Contains(t, err.Error(), MethodGetLatestReport)
}
