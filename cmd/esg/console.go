package main

import (
	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/submission"
	"github.com/weisyn/esg-registry/client/pkg/ux/flows"
	"github.com/weisyn/esg-registry/client/pkg/ux/guides"
	"github.com/weisyn/esg-registry/client/pkg/ux/screens"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

var consoleFrom string

// consoleCmd 交互式控制台
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "交互式控制台",
	Long: `菜单式控制台：提交报告、查看看板与版本历史、跟踪实时事件。

没有可用账户时只提供只读功能。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		profile := c.Profile()
		components := ui.NewComponents(ui.NewZapLogger(newLogger(profile)))
		from, to := profile.Years()

		deps := screens.MenuDeps{
			Title:     "ESG 注册表控制台 · " + profile.Name,
			Dashboard: flows.NewDashboardFlow(components, c.Dashboard(), profile.KPIs, from, to),
			Events:    flows.NewEventsFlow(components, c.Feed(), profile.KPIs),
			Guide:     guides.NewFirstTimeGuide(components, c.Transport(), storeFor(profile), profile),
		}

		if len(storeFor(profile).Accounts()) > 0 || hasMnemonicEnv() {
			signer, err := loadSigner(profile, consoleFrom)
			if err != nil {
				_ = components.ShowWarning("账户未解锁，提交功能不可用: " + err.Error())
			} else {
				var svc *submission.Service
				if svc, err = c.Submission(signer); err != nil {
					return err
				}
				deps.Submission = flows.NewSubmissionFlow(components, svc, profile.KPIs, profile.ConfirmTimeout.Std())
			}
		}

		return screens.NewMainMenuScreen(components, deps).Render(ctx)
	},
}

// setupCmd 首次使用引导
var setupCmd = &cobra.Command{
	Use:     "setup",
	Aliases: []string{"guide"},
	Short:   "首次使用引导：检查节点与合约，创建账户",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		profile := c.Profile()
		guide := guides.NewFirstTimeGuide(ui.NewComponents(nil), c.Transport(), storeFor(profile), profile)
		return guide.RunGuide(ctx)
	},
}

func init() {
	consoleCmd.Flags().StringVar(&consoleFrom, "from", "", "提交使用的账户地址")
}
