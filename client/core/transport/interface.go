// Package transport provides chain access for the registry client.
package transport

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// Client 统一链访问接口 - CLI、看板和服务端访问节点的唯一通道
//
// 实现 bind.ContractBackend 与 bind.DeployBackend，可直接交给合约绑定使用。
type Client interface {
	bind.ContractBackend
	bind.DeployBackend

	// ChainID 获取链ID
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber 获取最新区块高度
	BlockNumber(ctx context.Context) (uint64, error)

	// Ping 检查连接
	Ping(ctx context.Context) error

	// Close 关闭连接
	Close() error
}

// Backend 单个节点端点的访问能力
//
// *ethclient.Client 满足该接口。
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Dialer 按 URL 建立端点连接
type Dialer func(ctx context.Context, rawurl string) (Backend, error)
