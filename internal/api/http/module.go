package http

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// initializeGinMode 服务模式下关闭 gin 自带的调试输出，请求日志统一走 zap
func initializeGinMode() {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
}

// Module 返回HTTP服务模块
func Module() fx.Option {
	return fx.Options(
		fx.Invoke(initializeGinMode),
		fx.Provide(NewServer),
	)
}
