package registry

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testOwner    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testCID      = crypto.Keccak256Hash([]byte("esg-report-2024.pdf"))
)

func testEvent() *ReportSubmitted {
	return &ReportSubmitted{
		Owner:         testOwner,
		KPITypeID:     big.NewInt(3),
		ReportingYear: 2024,
		Value:         big.NewInt(-1250),
		MetadataCID:   testCID,
		Version:       2,
		Timestamp:     1718000000,
		Raw: types.Log{
			BlockNumber: 42,
			TxHash:      common.HexToHash("0xabc"),
			Index:       1,
		},
	}
}

// TestCodecEventID 测试事件签名
func TestCodecEventID(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	expected := crypto.Keccak256Hash([]byte("ReportSubmitted(address,uint256,uint16,int256,bytes32,uint64,uint64)"))
	assert.Equal(t, expected, codec.EventID())
}

// TestDecodeReportSubmitted 测试事件解码
func TestDecodeReportSubmitted(t *testing.T) {
	codec := MustNewCodec()

	lg, err := codec.EncodeReportSubmitted(testContract, testEvent())
	require.NoError(t, err)

	t.Run("正常解码", func(t *testing.T) {
		ev, err := codec.DecodeReportSubmitted(lg)
		require.NoError(t, err)
		assert.Equal(t, testOwner, ev.Owner)
		assert.Equal(t, int64(3), ev.KPITypeID.Int64())
		assert.Equal(t, uint16(2024), ev.ReportingYear)
		assert.Equal(t, int64(-1250), ev.Value.Int64())
		assert.Equal(t, testCID, ev.MetadataCID)
		assert.Equal(t, uint64(2), ev.Version)
		assert.Equal(t, uint64(1718000000), ev.Timestamp)
		assert.Equal(t, uint64(42), ev.Raw.BlockNumber)
		assert.Equal(t, testContract, ev.Raw.Address)
	})

	t.Run("其他事件", func(t *testing.T) {
		other := lg
		other.Topics = append([]common.Hash{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))}, lg.Topics[1:]...)
		_, err := codec.DecodeReportSubmitted(other)
		assert.ErrorIs(t, err, ErrNotReportEvent)
	})

	t.Run("无topics", func(t *testing.T) {
		_, err := codec.DecodeReportSubmitted(types.Log{})
		assert.ErrorIs(t, err, ErrNotReportEvent)
	})

	t.Run("topics数量错误", func(t *testing.T) {
		bad := lg
		bad.Topics = lg.Topics[:3]
		_, err := codec.DecodeReportSubmitted(bad)
		assert.ErrorIs(t, err, ErrMalformedLog)
	})

	t.Run("年份溢出", func(t *testing.T) {
		bad := lg
		bad.Topics = append([]common.Hash{}, lg.Topics...)
		bad.Topics[2] = common.BigToHash(big.NewInt(70000))
		_, err := codec.DecodeReportSubmitted(bad)
		assert.ErrorIs(t, err, ErrMalformedLog)
	})

	t.Run("data截断", func(t *testing.T) {
		bad := lg
		bad.Data = lg.Data[:40]
		_, err := codec.DecodeReportSubmitted(bad)
		assert.ErrorIs(t, err, ErrMalformedLog)
	})
}

// TestReportSubmittedTopics 测试过滤 topics 构造
func TestReportSubmittedTopics(t *testing.T) {
	codec := MustNewCodec()

	all := codec.ReportSubmittedTopics(common.Address{}, 0, common.Hash{})
	require.Len(t, all, 1)
	assert.Equal(t, []common.Hash{codec.EventID()}, all[0])

	byOwner := codec.ReportSubmittedTopics(testOwner, 0, common.Hash{})
	require.Len(t, byOwner, 2)
	assert.Equal(t, OwnerTopic(testOwner), byOwner[1][0])

	full := codec.ReportSubmittedTopics(testOwner, 2024, testCID)
	require.Len(t, full, 4)
	assert.Nil(t, codec.ReportSubmittedTopics(common.Address{}, 2024, common.Hash{})[1])
	assert.Equal(t, YearTopic(2024), full[2][0])
	assert.Equal(t, testCID, full[3][0])
}

// TestPackUnpackLatestReport 测试读方法编解码
func TestPackUnpackLatestReport(t *testing.T) {
	codec := MustNewCodec()

	data, err := codec.PackGetLatestReport(testOwner, big.NewInt(1), 2023)
	require.NoError(t, err)
	assert.Equal(t, codec.ABI().Methods[MethodGetLatestReport].ID, data[:4])

	ret, err := codec.ABI().Methods[MethodGetLatestReport].Outputs.Pack(big.NewInt(880), [32]byte(testCID), uint64(3), uint64(1700000000), true)
	require.NoError(t, err)

	report, err := codec.UnpackLatestReport(ret)
	require.NoError(t, err)
	assert.Equal(t, int64(880), report.Value.Int64())
	assert.Equal(t, testCID, report.MetadataCID)
	assert.Equal(t, uint64(3), report.Version)
	assert.True(t, report.Exists)

	_, err = codec.PackSubmitReport(nil, 2023, big.NewInt(1), testCID)
	assert.Error(t, err)
}
