// Package flows 提供可复用的交互流程
package flows

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/esg-registry/client/core/dashboard"
	"github.com/weisyn/esg-registry/client/core/feed"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/submission"
)

// ============================================================================
// Flow Ports（端口接口）
//
// 这些接口定义了交互流程需要的后端能力，解耦UI交互与具体实现。
// submission.Service 与 dashboard.Service 满足这些接口；测试中使用 mock。
// ============================================================================

// SubmissionService 报告提交端口
type SubmissionService interface {
	// Sender 提交地址
	Sender() common.Address

	// Validate 校验表单
	Validate(req submission.Request) (*submission.Validated, error)

	// Estimate 估算 gas
	Estimate(ctx context.Context, req submission.Request) (uint64, error)

	// Submit 发送交易并等待确认
	Submit(ctx context.Context, req submission.Request, opts ...submission.SubmitOption) (*submission.Result, error)
}

// DashboardService 看板读取端口
type DashboardService interface {
	// Series 读取年份区间序列
	Series(ctx context.Context, q dashboard.Query) (*dashboard.Series, error)

	// History 读取某年的全部版本
	History(ctx context.Context, owner common.Address, kpiTypeID *big.Int, year uint16) ([]*registry.Report, error)
}

// EventSource 合约事件流端口，*feed.Feed 满足该接口
type EventSource interface {
	Run(ctx context.Context, filter feed.Filter, handler feed.Handler) error
}
