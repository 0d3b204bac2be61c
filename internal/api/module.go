// Package api 对外提供看板 HTTP 与 WebSocket 接口
package api

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/internal/api/http"
	"github.com/weisyn/esg-registry/internal/api/websocket"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/log"
)

// Module 返回API模块选项
//
// 依赖 log、event、metrics 模块以及 handlers.DashboardReader / handlers.ChainStatus。
func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(func(logger *zap.Logger, bus event.Subscriber) *websocket.Server {
			return websocket.NewServer(log.NewModuleZapLogger(logger, "api.websocket"), bus)
		}),
		http.Module(),

		// 确保服务器被构造，生命周期钩子才会注册
		fx.Invoke(func(*http.Server) {}),
	)
}
