// Package wallet provides local key custody and transaction signing for the registry client.
package wallet

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Signer 签名器接口 - 统一的签名抽象
// 支持 Keystore 文件和助记词两种来源
type Signer interface {
	// Address 签名地址
	Address() common.Address

	// TransactOpts 生成合约交易选项
	// chainID: EIP-155 链ID
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

	// SignHash 签名 32 字节哈希，返回 [R || S || V] 格式签名
	SignHash(hash []byte) ([]byte, error)

	// Unlock 解锁签名器
	// duration: 解锁时长,0表示永久解锁(直到调用Lock)
	Unlock(password string, duration time.Duration) error

	// Lock 锁定签名器
	Lock()

	// IsLocked 检查是否已锁定
	IsLocked() bool

	// Type 返回签名器类型(keystore/mnemonic)
	Type() SignerType
}

// SignerType 签名器类型
type SignerType string

const (
	SignerTypeKeystore SignerType = "keystore" // 加密Keystore文件
	SignerTypeMnemonic SignerType = "mnemonic" // BIP39助记词
)

// Account 账户信息
type Account struct {
	Address common.Address `json:"address"`
	URL     string         `json:"url,omitempty"` // keystore 文件位置
}
