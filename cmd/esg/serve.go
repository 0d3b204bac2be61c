package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/internal/app"
	logconfig "github.com/weisyn/esg-registry/internal/config/log"
)

var (
	serveListen    string
	serveOwner     string
	serveFromBlock uint64
	serveNoAPI     bool
)

// serveCmd 看板服务
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "运行看板 HTTP/WebSocket 服务",
	Long: `启动后台服务：
  - 跟踪链上 ReportSubmitted 事件，失效看板缓存并推送到 /ws
  - /api/v1 提供 KPI 目录、年度序列与版本历史
  - /metrics 暴露 Prometheus 指标，/health 检查节点连通性

日志按 profile 的 log 配置输出，默认 info 级别写到 stderr。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := currentProfile()
		if err != nil {
			return err
		}
		if globalFlags.Verbose {
			if profile.Log == nil {
				profile.Log = new(logconfig.LogOptions)
			}
			profile.Log.Level = "debug"
		}

		opts := []app.Option{
			app.WithProfile(profile),
			app.WithListen(serveListen),
			app.WithOwner(serveOwner),
			app.WithFromBlock(serveFromBlock),
		}
		if serveNoAPI {
			opts = append(opts, app.WithoutAPI())
		}

		a, err := app.Start(cmd.Context(), opts...)
		if err != nil {
			return err
		}
		if addr := a.Addr(); addr != "" {
			formatter.PrintSuccess(fmt.Sprintf("看板服务已启动: http://%s/api/v1/", addr))
		}
		formatter.PrintInfo("按 Ctrl+C 停止")
		return a.Wait(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "监听地址 (默认取 profile server.listen)")
	serveCmd.Flags().StringVar(&serveOwner, "owner", "", "只跟踪该公司地址")
	serveCmd.Flags().Uint64Var(&serveFromBlock, "from-block", 0, "启动时回补该区块之后的事件")
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-api", false, "只运行事件跟踪，不启动 HTTP 服务")
}
