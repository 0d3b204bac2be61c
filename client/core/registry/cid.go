package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"
)

// ParseMetadataCID 把元数据 CID 解析为合约使用的 bytes32
//
// 支持三种输入:
//   - 0x 开头的 32 字节十六进制(大小写不敏感)
//   - CIDv0 (Qm...)
//   - CIDv1 (任意 multibase)
//
// CID 的 multihash 必须是 sha2-256 且摘要为 32 字节。
func ParseMetadataCID(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Hash{}, fmt.Errorf("metadata cid is empty")
	}

	if has0xPrefix(s) {
		raw, err := hexutil.Decode(strings.ToLower(s[:2]) + s[2:])
		if err != nil {
			return common.Hash{}, fmt.Errorf("invalid metadata cid hex: %w", err)
		}
		if len(raw) != common.HashLength {
			return common.Hash{}, fmt.Errorf("metadata cid hex must be %d bytes, got %d", common.HashLength, len(raw))
		}
		return common.BytesToHash(raw), nil
	}

	c, err := cid.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid metadata cid: %w", err)
	}
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid metadata cid multihash: %w", err)
	}
	if decoded.Code != mh.SHA2_256 || len(decoded.Digest) != common.HashLength {
		return common.Hash{}, fmt.Errorf("unsupported metadata cid hash %s (need sha2-256)", mh.Codes[decoded.Code])
	}
	return common.BytesToHash(decoded.Digest), nil
}

// FormatMetadataCID 把 bytes32 渲染为 CIDv0 字符串
func FormatMetadataCID(h common.Hash) string {
	encoded, err := mh.Encode(h.Bytes(), mh.SHA2_256)
	if err != nil {
		return h.Hex()
	}
	return base58.Encode(encoded)
}

// EqualHex 比较两个十六进制字符串，忽略大小写和 0x 前缀
func EqualHex(a, b string) bool {
	return strings.EqualFold(trim0x(a), trim0x(b))
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func trim0x(s string) string {
	s = strings.TrimSpace(s)
	if has0xPrefix(s) {
		return s[2:]
	}
	return s
}
