// Package app 组装 esg serve 的后台服务：事件流、看板 API 与指标
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weisyn/esg-registry/client"
)

// App 应用接口
type App interface {
	// Stop 停止应用
	Stop() error

	// Wait 阻塞到 ctx 取消或收到退出信号，然后停止应用
	Wait(ctx context.Context) error

	// Addr HTTP 实际监听地址，未启用 API 时为空
	Addr() string

	// Client 底层客户端
	Client() *client.Client
}

// internalApp 应用的内部实现
type internalApp struct {
	bootstrap *Bootstrap
}

// Start 构建并启动应用
func Start(ctx context.Context, appOptions ...Option) (App, error) {
	bootstrap := NewBootstrap(newOptions(appOptions...))
	if err := bootstrap.CreateFxApp(); err != nil {
		return nil, fmt.Errorf("创建应用失败: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bootstrap.StartApp(startCtx); err != nil {
		return nil, err
	}
	return &internalApp{bootstrap: bootstrap}, nil
}

// Stop 停止应用
func (a *internalApp) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return a.bootstrap.StopApp(ctx)
}

// Wait 等待退出
func (a *internalApp) Wait(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case <-signals:
	case <-ctx.Done():
	}
	return a.Stop()
}

func (a *internalApp) Addr() string {
	if a.bootstrap.server == nil {
		return ""
	}
	return a.bootstrap.server.Addr()
}

func (a *internalApp) Client() *client.Client {
	return a.bootstrap.client
}
