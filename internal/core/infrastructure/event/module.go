// Package event 提供进程内事件总线
package event

import (
	"context"

	"go.uber.org/fx"
)

// ModuleOutput 事件模块输出服务
type ModuleOutput struct {
	fx.Out

	EventBus   *EventBus
	Publisher  Publisher
	Subscriber Subscriber
}

// Module 返回事件模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(func(lc fx.Lifecycle) ModuleOutput {
			bus := New()
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return bus.Stop(ctx)
				},
			})
			return ModuleOutput{EventBus: bus, Publisher: bus, Subscriber: bus}
		}),
	)
}
