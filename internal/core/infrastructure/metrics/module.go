package metrics

import (
	"go.uber.org/fx"

	"github.com/weisyn/esg-registry/client/core/confirm"
)

// Module 返回 metrics 模块的 fx.Option
//
// 提供：
// - *Metrics: 指标集合
// - confirm.Observer: 确认结果观察者
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			New,
			func(m *Metrics) confirm.Observer { return m },
		),
	)
}
