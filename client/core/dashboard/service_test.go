package dashboard

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/transport/transporttest"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testOwner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testCID      = common.HexToHash("0x6a2c5b0dbe0fe8b2e5ab4e05d4a21a43c3c4e7f0b0a4f8b1b1d8e6f1f0c3a9b2")
)

// yearValues 模拟合约：按年份返回最新值，不在表中的年份未报告
func yearValues(t *testing.T, values map[uint16]int64) func(call ethereum.CallMsg) ([]byte, error) {
	codec := registry.MustNewCodec()
	method := codec.ABI().Methods[registry.MethodGetLatestReport]
	return func(call ethereum.CallMsg) ([]byte, error) {
		if !bytes.Equal(call.Data[:4], method.ID) {
			return nil, errors.New("unexpected method")
		}
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		year := args[2].(uint16)
		v, ok := values[year]
		if !ok {
			return method.Outputs.Pack(big.NewInt(0), [32]byte{}, uint64(0), uint64(0), false)
		}
		return method.Outputs.Pack(big.NewInt(v), [32]byte(testCID), uint64(1), uint64(1700000000), true)
	}
}

func testQuery() Query {
	return Query{Owner: testOwner, KPITypeID: big.NewInt(1), FromYear: 2019, ToYear: 2025}
}

// TestSeries 测试年份序列与缺失年份
func TestSeries(t *testing.T) {
	backend := transporttest.New()
	backend.CallFn = yearValues(t, map[uint16]int64{2020: 500, 2022: 420, 2024: 380})
	svc := NewService(backend, 1337, testContract, WithConcurrency(3))

	series, err := svc.Series(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, series.Points, 7)

	for i, p := range series.Points {
		assert.Equal(t, uint16(2019+i), p.Year)
	}
	assert.False(t, series.Points[0].Found)
	assert.Nil(t, series.Points[0].Report)
	assert.True(t, series.Points[1].Found)
	assert.Equal(t, int64(500), series.Points[1].Report.Value.Int64())

	sum := series.Summary()
	assert.Equal(t, 3, sum.Reported)
	assert.Equal(t, int64(380), sum.Min.Int64())
	assert.Equal(t, int64(500), sum.Max.Int64())
	assert.Equal(t, int64(380), sum.Latest.Int64())
	assert.Equal(t, uint16(2024), sum.LatestYear)
	assert.Equal(t, uint16(2020), sum.FirstYear)
	assert.Equal(t, int64(-120), sum.Change.Int64())
}

// TestSeriesEmpty 测试没有任何报告
func TestSeriesEmpty(t *testing.T) {
	backend := transporttest.New()
	backend.CallFn = yearValues(t, nil)
	svc := NewService(backend, 1337, testContract)

	series, err := svc.Series(context.Background(), testQuery())
	require.NoError(t, err)
	sum := series.Summary()
	assert.Equal(t, 0, sum.Reported)
	assert.Nil(t, sum.Change)
}

// TestSeriesError 测试任一年份失败时整体失败
func TestSeriesError(t *testing.T) {
	backend := transporttest.New()
	backend.CallFn = func(call ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("execution reverted")
	}
	svc := NewService(backend, 1337, testContract)

	_, err := svc.Series(context.Background(), testQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")

	_, err = svc.Series(context.Background(), Query{Owner: testOwner, KPITypeID: big.NewInt(1), FromYear: 2025, ToYear: 2019})
	assert.Error(t, err)
}

// TestSeriesCache 测试缓存命中与事件失效
func TestSeriesCache(t *testing.T) {
	backend := transporttest.New()
	values := map[uint16]int64{2023: 10}
	backend.CallFn = yearValues(t, values)

	cache, err := NewBigCache(context.Background(), time.Minute)
	require.NoError(t, err)
	svc := NewService(backend, 1337, testContract, WithCache(cache))
	defer svc.Close()

	bus := event.New()
	require.NoError(t, svc.Attach(bus))
	defer svc.Detach()

	ctx := context.Background()
	_, err = svc.Series(ctx, testQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(7), backend.Calls.Load())

	series, err := svc.Series(ctx, testQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(7), backend.Calls.Load())
	assert.Equal(t, int64(10), series.Points[4].Report.Value.Int64())

	bus.Publish(event.EventTypeReportConfirmed, &registry.ReportSubmitted{
		Owner:         testOwner,
		KPITypeID:     big.NewInt(1),
		ReportingYear: 2023,
	})

	_, err = svc.Series(ctx, testQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(8), backend.Calls.Load())
}

// TestDetachKeepsOtherServices 测试同一总线上的服务各自注销
func TestDetachKeepsOtherServices(t *testing.T) {
	bus := event.New()
	newCached := func() (*Service, *transporttest.Backend) {
		backend := transporttest.New()
		backend.CallFn = yearValues(t, map[uint16]int64{2023: 10})
		cache, err := NewBigCache(context.Background(), time.Minute)
		require.NoError(t, err)
		svc := NewService(backend, 1337, testContract, WithCache(cache))
		t.Cleanup(func() { _ = svc.Close() })
		require.NoError(t, svc.Attach(bus))
		return svc, backend
	}
	first, firstBackend := newCached()
	second, secondBackend := newCached()
	defer second.Detach()

	ctx := context.Background()
	for _, svc := range []*Service{first, second} {
		_, err := svc.Series(ctx, testQuery())
		require.NoError(t, err)
	}

	first.Detach()
	first.Detach()
	bus.Publish(event.EventTypeReportConfirmed, &registry.ReportSubmitted{
		Owner:         testOwner,
		KPITypeID:     big.NewInt(1),
		ReportingYear: 2023,
	})

	for _, svc := range []*Service{first, second} {
		_, err := svc.Series(ctx, testQuery())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(7), firstBackend.Calls.Load())
	assert.Equal(t, int32(8), secondBackend.Calls.Load())
}

// TestHistory 测试版本历史透传
func TestHistory(t *testing.T) {
	codec := registry.MustNewCodec()
	methods := codec.ABI().Methods
	backend := transporttest.New()
	backend.CallFn = func(call ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.Equal(call.Data[:4], methods[registry.MethodGetVersionCount].ID):
			return methods[registry.MethodGetVersionCount].Outputs.Pack(uint64(2))
		case bytes.Equal(call.Data[:4], methods[registry.MethodGetReportVersion].ID):
			args, err := methods[registry.MethodGetReportVersion].Inputs.Unpack(call.Data[4:])
			if err != nil {
				return nil, err
			}
			v := args[3].(uint64)
			return methods[registry.MethodGetReportVersion].Outputs.Pack(big.NewInt(int64(v*100)), [32]byte(testCID), 1700000000+v)
		}
		return nil, errors.New("unexpected method")
	}
	svc := NewService(backend, 1337, testContract)

	history, err := svc.History(context.Background(), testOwner, big.NewInt(1), 2023)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(200), history[1].Value.Int64())
	assert.Equal(t, uint64(2), history[1].Version)
}
