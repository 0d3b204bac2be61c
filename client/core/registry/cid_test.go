package registry

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetadataCIDRoundTrip 测试 CIDv0 渲染与解析
func TestMetadataCIDRoundTrip(t *testing.T) {
	s := FormatMetadataCID(testCID)
	assert.True(t, strings.HasPrefix(s, "Qm"))
	assert.Len(t, s, 46)

	parsed, err := ParseMetadataCID(s)
	require.NoError(t, err)
	assert.Equal(t, testCID, parsed)
}

// TestParseMetadataCID 测试各种输入格式
func TestParseMetadataCID(t *testing.T) {
	encoded, err := mh.Encode(testCID.Bytes(), mh.SHA2_256)
	require.NoError(t, err)
	v1 := cid.NewCidV1(cid.Raw, encoded).String()

	sha1, err := mh.Encode(make([]byte, 20), mh.SHA1)
	require.NoError(t, err)
	unsupported := cid.NewCidV1(cid.Raw, sha1).String()

	tests := []struct {
		name    string
		input   string
		want    common.Hash
		wantErr bool
	}{
		{"CIDv1", v1, testCID, false},
		{"小写十六进制", testCID.Hex(), testCID, false},
		{"大写十六进制", "0X" + strings.ToUpper(testCID.Hex()[2:]), testCID, false},
		{"带空白", "  " + testCID.Hex() + " ", testCID, false},
		{"空字符串", "", common.Hash{}, true},
		{"十六进制长度错误", "0x1234", common.Hash{}, true},
		{"非法十六进制", "0xzz" + strings.Repeat("0", 62), common.Hash{}, true},
		{"非sha256", unsupported, common.Hash{}, true},
		{"非CID", "not-a-cid", common.Hash{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetadataCID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestEqualHex 测试十六进制比较
func TestEqualHex(t *testing.T) {
	assert.True(t, EqualHex("0xAbCdEf", "abcdef"))
	assert.True(t, EqualHex("0XABCDEF", "0xabcdef"))
	assert.False(t, EqualHex("0xabcdef", "0xabcdee"))
}

// TestScaledValue 测试定点数值转换
func TestScaledValue(t *testing.T) {
	tests := []struct {
		input    string
		decimals uint8
		want     int64
		wantErr  bool
	}{
		{"12.5", 2, 1250, false},
		{"-3", 2, -300, false},
		{"+7", 0, 7, false},
		{".5", 1, 5, false},
		{"5.", 1, 50, false},
		{"1.234", 2, 0, true},
		{"", 2, 0, true},
		{"-", 2, 0, true},
		{"abc", 2, 0, true},
		{"1.2.3", 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScaledValue(tt.input, tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}

	assert.Equal(t, "12.50", FormatScaledValue(big.NewInt(1250), 2))
	assert.Equal(t, "-0.05", FormatScaledValue(big.NewInt(-5), 2))
	assert.Equal(t, "42", FormatScaledValue(big.NewInt(42), 0))
	assert.Equal(t, "-", FormatScaledValue(nil, 2))
	assert.InDelta(t, 12.5, ScaledFloat(big.NewInt(1250), 2), 1e-9)
}
