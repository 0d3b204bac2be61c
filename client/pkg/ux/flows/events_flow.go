package flows

import (
	"context"
	"fmt"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/feed"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

// EventsFlow 实时事件流程
type EventsFlow struct {
	ui     ui.Components
	source EventSource
	kpis   []config.KPI
}

// NewEventsFlow 创建事件流程实例
func NewEventsFlow(uiComponents ui.Components, source EventSource, kpis []config.KPI) *EventsFlow {
	return &EventsFlow{
		ui:     uiComponents,
		source: source,
		kpis:   kpis,
	}
}

// Execute 打印新提交的报告直到 ctx 结束
func (f *EventsFlow) Execute(ctx context.Context, filter feed.Filter) error {
	_ = f.ui.ShowHeader("实时报告事件")
	_ = f.ui.ShowInfo("等待新的 ReportSubmitted 事件，按 Ctrl+C 退出")

	err := f.source.Run(ctx, filter, func(ev *registry.ReportSubmitted) {
		line := FormatEvent(ev, f.kpis)
		if ev.Raw.Removed {
			_ = f.ui.ShowWarning("已撤销 " + line)
			return
		}
		_ = f.ui.ShowSuccess(line)
	})
	if err != nil {
		_ = f.ui.ShowError(err.Error())
		return err
	}
	return nil
}

// FormatEvent 单行事件描述
func FormatEvent(ev *registry.ReportSubmitted, kpis []config.KPI) string {
	label := "KPI " + ev.KPITypeID.String()
	var decimals uint8
	unit := ""
	if kpi, ok := config.FindKPI(kpis, ev.KPITypeID.String()); ok {
		label = kpi.Code
		decimals = kpi.Decimals
		unit = " " + kpi.Unit
	}
	return fmt.Sprintf("#%d %s %s %d = %s%s (v%d, %s)",
		ev.Raw.BlockNumber,
		ui.TruncateString(ev.Owner.Hex(), 12),
		label,
		ev.ReportingYear,
		registry.FormatScaledValue(ev.Value, decimals),
		unit,
		ev.Version,
		registry.FormatMetadataCID(ev.MetadataCID),
	)
}
