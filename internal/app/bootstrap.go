package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client"
	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/feed"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/internal/api"
	apihttp "github.com/weisyn/esg-registry/internal/api/http"
	"github.com/weisyn/esg-registry/internal/api/http/handlers"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/event"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/log"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/metrics"
	logconfig "github.com/weisyn/esg-registry/internal/config/log"
)

// Bootstrap 应用引导程序
type Bootstrap struct {
	opts  *options
	fxApp *fx.App

	// 由 fx 填充
	client *client.Client
	server *apihttp.Server
}

// NewBootstrap 创建引导程序
func NewBootstrap(opts *options) *Bootstrap {
	return &Bootstrap{opts: opts}
}

// SetupInfrastructureLayer 设置基础设施层模块
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	p := b.opts.profile
	return []fx.Option{
		fx.Supply(p),
		fx.Provide(func() *logconfig.LogOptions { return p.Log }),
		log.Module(),
		metrics.Module(),
	}
}

// SetupCommunicationLayer 设置通信与数据层模块
func (b *Bootstrap) SetupCommunicationLayer() []fx.Option {
	return []fx.Option{
		event.Module(),
		fx.Provide(b.provideClient),
		fx.Provide(
			func(c *client.Client) handlers.DashboardReader { return c.Dashboard() },
			func(c *client.Client) handlers.ChainStatus { return c },
		),
	}
}

// SetupBusinessLayer 设置业务逻辑层模块
//
// 事件流在后台运行，把链上 ReportSubmitted 事件发布到总线。
func (b *Bootstrap) SetupBusinessLayer() []fx.Option {
	return []fx.Option{
		fx.Invoke(b.runFeed),
	}
}

// SetupApplicationLayer 设置应用层模块
func (b *Bootstrap) SetupApplicationLayer() []fx.Option {
	if !b.opts.enableAPI {
		return nil
	}
	return []fx.Option{
		api.Module(),
		fx.Populate(&b.server),
	}
}

// SetupModules 设置所有应用模块
func (b *Bootstrap) SetupModules() []fx.Option {
	var all []fx.Option
	all = append(all, b.SetupInfrastructureLayer()...)
	all = append(all, b.SetupCommunicationLayer()...)
	all = append(all, b.SetupBusinessLayer()...)
	all = append(all, b.SetupApplicationLayer()...)
	return all
}

// CreateFxApp 创建并配置fx应用
func (b *Bootstrap) CreateFxApp() error {
	if b.opts.profile == nil {
		return errors.New("profile is required")
	}
	if err := b.opts.profile.Validate(); err != nil {
		return err
	}
	if b.opts.listen != "" {
		b.opts.profile.Server.Listen = b.opts.listen
	}
	if b.opts.owner != "" && !common.IsHexAddress(b.opts.owner) {
		return fmt.Errorf("invalid owner address %q", b.opts.owner)
	}

	b.fxApp = fx.New(
		fx.Options(b.SetupModules()...),
		fx.NopLogger,
	)
	return b.fxApp.Err()
}

func (b *Bootstrap) provideClient(lc fx.Lifecycle, logger *zap.Logger, bus *event.EventBus, m *metrics.Metrics) (*client.Client, error) {
	opts := []client.Option{
		client.WithLogger(log.NewModuleZapLogger(logger, "client")),
		client.WithEventBus(bus),
		client.WithMetrics(m),
	}
	if b.opts.transport != nil {
		opts = append(opts, client.WithTransport(b.opts.transport))
	}

	c, err := client.New(context.Background(), b.opts.profile, opts...)
	if err != nil {
		return nil, err
	}
	b.client = c
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := c.CheckChain(ctx); err != nil {
				logger.Warn("链 ID 校验失败", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c, nil
}

func (b *Bootstrap) runFeed(lc fx.Lifecycle, c *client.Client, logger *zap.Logger, cfg *config.Profile) {
	logger = log.NewModuleZapLogger(logger, "feed")

	filter := feed.Filter{FromBlock: b.opts.fromBlock}
	if b.opts.owner != "" {
		filter.Owner = common.HexToAddress(b.opts.owner)
	}

	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := c.Feed().Run(ctx, filter, func(ev *registry.ReportSubmitted) {
					kpi, _ := config.FindKPI(cfg.KPIs, ev.KPITypeID.String())
					logger.Info("观察到报告",
						zap.String("owner", ev.Owner.Hex()),
						zap.String("kpi", kpi.Code),
						zap.Uint16("year", ev.ReportingYear),
						zap.Uint64("version", ev.Version),
						zap.Uint64("block", ev.Raw.BlockNumber),
						zap.Bool("removed", ev.Raw.Removed))
				})
				if err != nil {
					logger.Error("事件流停止", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// StartApp 启动应用程序
func (b *Bootstrap) StartApp(ctx context.Context) error {
	if err := b.fxApp.Start(ctx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}
	return nil
}

// StopApp 停止应用程序
func (b *Bootstrap) StopApp(ctx context.Context) error {
	if err := b.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}
