// Package guides 首次使用引导
package guides

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/wallet"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

// ChainProbe 引导检查节点所需的能力，transport.Client 满足该接口
type ChainProbe interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

// WalletStore 钱包目录，*wallet.Store 满足该接口
type WalletStore interface {
	Accounts() []*wallet.Account
	NewAccount(password string) (*wallet.Account, error)
}

// FirstTimeGuide 首次使用引导
type FirstTimeGuide struct {
	ui      ui.Components
	chain   ChainProbe
	wallets WalletStore
	profile *config.Profile
}

// NewFirstTimeGuide 创建首次引导
func NewFirstTimeGuide(uiComponents ui.Components, chain ChainProbe, wallets WalletStore, profile *config.Profile) *FirstTimeGuide {
	return &FirstTimeGuide{
		ui:      uiComponents,
		chain:   chain,
		wallets: wallets,
		profile: profile,
	}
}

// GuideStep 引导步骤
type GuideStep struct {
	Title       string                      // 步骤标题
	Description string                      // 步骤描述
	Action      func(context.Context) error // 步骤操作
}

// RunGuide 运行首次引导流程
//
// 引导步骤：
//  1. 检查节点连接与链 ID
//  2. 检查注册表合约是否已部署
//  3. 准备提交钱包
//  4. 展示 KPI 目录
func (fg *FirstTimeGuide) RunGuide(ctx context.Context) error {
	steps := fg.getGuideSteps()

	_ = fg.ui.ShowHeader("ESG 注册表首次使用引导")
	_ = fg.ui.ShowInfo(fmt.Sprintf("共%d个步骤，当前网络: %s", len(steps), fg.profile.Name))

	for i, step := range steps {
		_ = fg.ui.ShowSection(fmt.Sprintf("[%d/%d] %s", i+1, len(steps), step.Title))
		_ = fg.ui.ShowInfo(step.Description)

		if step.Action != nil {
			if err := step.Action(ctx); err != nil {
				_ = fg.ui.ShowError(err.Error())
				return fmt.Errorf("步骤失败: %w", err)
			}
		}
	}

	_ = fg.ui.ShowSuccess("引导完成！")
	return nil
}

// getGuideSteps 获取引导步骤列表
func (fg *FirstTimeGuide) getGuideSteps() []GuideStep {
	return []GuideStep{
		{
			Title:       "检查节点",
			Description: "连接节点并核对链 ID",
			Action:      fg.guideChainCheck,
		},
		{
			Title:       "检查合约",
			Description: "确认注册表合约已部署到配置的地址",
			Action:      fg.guideContractCheck,
		},
		{
			Title:       "准备钱包",
			Description: "提交报告需要一个本地 keystore 账户",
			Action:      fg.guideWallet,
		},
		{
			Title:       "KPI 目录",
			Description: "可提交的指标及其单位",
			Action:      fg.guideKPIs,
		},
	}
}

// guideChainCheck 引导：检查节点
func (fg *FirstTimeGuide) guideChainCheck(ctx context.Context) error {
	id, err := fg.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("连接节点失败: %w", err)
	}
	if fg.profile.ChainID != 0 && id.Uint64() != fg.profile.ChainID {
		return fmt.Errorf("链 ID 不匹配: 节点 %s，配置 %d", id, fg.profile.ChainID)
	}
	_ = fg.ui.ShowSuccess(fmt.Sprintf("节点已连接，链 ID %s", id))
	return nil
}

// guideContractCheck 引导：检查合约
func (fg *FirstTimeGuide) guideContractCheck(ctx context.Context) error {
	contract, err := fg.profile.Contract()
	if err != nil {
		return err
	}
	code, err := fg.chain.CodeAt(ctx, contract, nil)
	if err != nil {
		return fmt.Errorf("读取合约代码失败: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("地址 %s 上没有合约代码", contract.Hex())
	}
	_ = fg.ui.ShowSuccess(fmt.Sprintf("合约 %s 已部署", contract.Hex()))
	return nil
}

// guideWallet 引导：准备钱包
func (fg *FirstTimeGuide) guideWallet(ctx context.Context) error {
	if accounts := fg.wallets.Accounts(); len(accounts) > 0 {
		_ = fg.ui.ShowSuccess(fmt.Sprintf("已有账户 %s", accounts[0].Address.Hex()))
		return nil
	}

	ok, err := fg.ui.ShowConfirmDialog("创建钱包", "keystore 中没有账户，是否创建新账户？")
	if err != nil || !ok {
		_ = fg.ui.ShowWarning("跳过钱包创建，提交报告前请运行 esg wallet new")
		return nil
	}
	password, err := fg.ui.ShowInputDialog("设置密码", "请输入 keystore 密码", true)
	if err != nil {
		return fmt.Errorf("读取密码失败: %w", err)
	}
	if password == "" {
		return fmt.Errorf("密码不能为空")
	}
	account, err := fg.wallets.NewAccount(password)
	if err != nil {
		return fmt.Errorf("创建账户失败: %w", err)
	}
	_ = fg.ui.ShowSuccess(fmt.Sprintf("钱包创建成功！地址: %s", account.Address.Hex()))
	return nil
}

// guideKPIs 引导：KPI 目录
func (fg *FirstTimeGuide) guideKPIs(ctx context.Context) error {
	rows := [][]string{{"ID", "代码", "名称", "单位", "小数位"}}
	for _, k := range fg.profile.KPIs {
		rows = append(rows, []string{
			fmt.Sprint(k.ID), k.Code, k.Name, k.Unit, fmt.Sprint(k.Decimals),
		})
	}
	return fg.ui.ShowTable("", rows)
}
