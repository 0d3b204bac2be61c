package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/feed"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/pkg/ux/flows"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
	wstypes "github.com/weisyn/esg-registry/internal/api/websocket/types"
)

var (
	eventsOwner     string
	eventsYear      uint16
	eventsFromBlock uint64
)

// eventsCmd 事件相关命令
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "链上报告事件",
}

// eventsWatchCmd 跟踪事件
var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "实时跟踪 ReportSubmitted 事件",
	Long: `订阅注册表合约的 ReportSubmitted 事件并逐条输出，按 Ctrl+C 退出。

节点没有 WebSocket 端点时自动改为轮询。重组撤销的日志会单独标出。
-o json 时每行输出一个事件对象，便于管道处理。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := feed.Filter{Year: eventsYear, FromBlock: eventsFromBlock}
		if eventsOwner != "" {
			owner, err := parseOwner(eventsOwner)
			if err != nil {
				return err
			}
			filter.Owner = owner
		}

		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if formatter.IsJSON() {
			return c.Feed().Run(ctx, filter, func(ev *registry.ReportSubmitted) {
				typ := wstypes.TypeReportObserved
				if ev.Raw.Removed {
					typ = wstypes.TypeReportRemoved
				}
				_ = formatter.Print(wstypes.NewReportEvent(typ, ev))
			})
		}
		return flows.NewEventsFlow(ui.NewComponents(nil), c.Feed(), c.Profile().KPIs).Execute(ctx, filter)
	},
}

func init() {
	eventsWatchCmd.Flags().StringVar(&eventsOwner, "owner", "", "只跟踪该公司地址")
	eventsWatchCmd.Flags().Uint16Var(&eventsYear, "year", 0, "只跟踪该报告年份")
	eventsWatchCmd.Flags().Uint64Var(&eventsFromBlock, "from-block", 0, "先回补该区块之后的历史事件")
	eventsCmd.AddCommand(eventsWatchCmd)
}

