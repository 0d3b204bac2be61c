package flows

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/dashboard"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

// DashboardFlow 投资人看板流程
type DashboardFlow struct {
	ui       ui.Components
	service  DashboardService
	kpis     []config.KPI
	fromYear uint16
	toYear   uint16
}

// NewDashboardFlow 创建看板流程实例
func NewDashboardFlow(uiComponents ui.Components, service DashboardService, kpis []config.KPI, fromYear, toYear uint16) *DashboardFlow {
	return &DashboardFlow{
		ui:       uiComponents,
		service:  service,
		kpis:     kpis,
		fromYear: fromYear,
		toYear:   toYear,
	}
}

// Execute 交互式选择公司与 KPI 并展示年度序列
func (f *DashboardFlow) Execute(ctx context.Context) (*dashboard.Series, error) {
	_ = f.ui.ShowHeader("投资人看板")

	owner, err := f.inputOwner()
	if err != nil {
		return nil, err
	}
	kpi, err := SelectKPI(f.ui, f.kpis)
	if err != nil {
		return nil, err
	}

	spinner := f.ui.ShowSpinner(fmt.Sprintf("正在读取 %d-%d 年数据...", f.fromYear, f.toYear))
	_ = spinner.Start()
	series, err := f.service.Series(ctx, dashboard.Query{
		Owner:     owner,
		KPITypeID: kpi.TypeID(),
		FromYear:  f.fromYear,
		ToYear:    f.toYear,
	})
	if err != nil {
		_ = spinner.Fail("读取失败")
		_ = f.ui.ShowError(err.Error())
		return nil, err
	}
	_ = spinner.Stop()

	RenderSeries(f.ui, series, kpi)
	return series, nil
}

// ExecuteHistory 交互式查看某一年的全部版本
func (f *DashboardFlow) ExecuteHistory(ctx context.Context) ([]*registry.Report, error) {
	_ = f.ui.ShowHeader("报告历史")

	owner, err := f.inputOwner()
	if err != nil {
		return nil, err
	}
	kpi, err := SelectKPI(f.ui, f.kpis)
	if err != nil {
		return nil, err
	}
	yearText, err := f.ui.ShowInputDialog("报告年份", "请输入报告年份", false)
	if err != nil {
		return nil, fmt.Errorf("输入报告年份失败: %w", err)
	}
	year, err := strconv.ParseUint(strings.TrimSpace(yearText), 10, 16)
	if err != nil {
		_ = f.ui.ShowError(fmt.Sprintf("无效年份: %s", yearText))
		return nil, fmt.Errorf("invalid year %q: %w", yearText, err)
	}

	reports, err := f.service.History(ctx, owner, kpi.TypeID(), uint16(year))
	if err != nil {
		_ = f.ui.ShowError(err.Error())
		return nil, err
	}
	RenderHistory(f.ui, reports, kpi)
	return reports, nil
}

func (f *DashboardFlow) inputOwner() (common.Address, error) {
	text, err := f.ui.ShowInputDialog("公司地址", "请输入公司钱包地址 (0x...)", false)
	if err != nil {
		return common.Address{}, fmt.Errorf("输入公司地址失败: %w", err)
	}
	text = strings.TrimSpace(text)
	if !common.IsHexAddress(text) {
		_ = f.ui.ShowError(fmt.Sprintf("无效地址: %s", text))
		return common.Address{}, fmt.Errorf("invalid owner address %q", text)
	}
	return common.HexToAddress(text), nil
}

// RenderSeries 以表格、条形图和统计展示序列
func RenderSeries(c ui.Components, series *dashboard.Series, kpi config.KPI) {
	_ = c.ShowSection(fmt.Sprintf("%s · %s", kpi.Label(), series.Owner.Hex()))

	rows := [][]string{{"年份", "数值", "版本", "CID", "提交时间"}}
	var bars []ui.Bar
	for _, p := range series.Points {
		year := strconv.Itoa(int(p.Year))
		if !p.Found || p.Report == nil {
			rows = append(rows, []string{year, "-", "-", "-", "-"})
			bars = append(bars, ui.Bar{Label: year, Text: "无报告"})
			continue
		}
		r := p.Report
		text := registry.FormatScaledValue(r.Value, kpi.Decimals)
		rows = append(rows, []string{
			year,
			text,
			strconv.FormatUint(r.Version, 10),
			ui.TruncateString(registry.FormatMetadataCID(r.MetadataCID), 20),
			formatTimestamp(r.Timestamp),
		})
		bars = append(bars, ui.Bar{Label: year, Value: registry.ScaledFloat(r.Value, kpi.Decimals), Text: text})
	}
	_ = c.ShowTable("", rows)
	_ = c.ShowBarChart(kpi.Unit, bars)

	sum := series.Summary()
	if sum.Reported == 0 {
		_ = c.ShowInfo("该区间内没有报告")
		return
	}
	_ = c.ShowKeyValuePairs("统计", SummaryPairs(sum, kpi))
}

// SummaryPairs 统计的展示字段
func SummaryPairs(sum dashboard.Summary, kpi config.KPI) []ui.KeyValue {
	format := func(v *big.Int) string {
		return registry.FormatScaledValue(v, kpi.Decimals) + " " + kpi.Unit
	}
	pairs := []ui.KeyValue{
		{Key: "已报告年份", Value: strconv.Itoa(sum.Reported)},
		{Key: "最小值", Value: format(sum.Min)},
		{Key: "最大值", Value: format(sum.Max)},
		{Key: "最新值", Value: fmt.Sprintf("%s (%d)", format(sum.Latest), sum.LatestYear)},
	}
	if sum.Reported > 1 {
		change := format(sum.Change)
		if sum.Change.Sign() > 0 {
			change = "+" + change
		}
		pairs = append(pairs, ui.KeyValue{Key: fmt.Sprintf("较 %d 变化", sum.FirstYear), Value: change})
	}
	return pairs
}

// RenderHistory 展示某一年的版本列表
func RenderHistory(c ui.Components, reports []*registry.Report, kpi config.KPI) {
	if len(reports) == 0 {
		_ = c.ShowInfo("没有报告版本")
		return
	}
	rows := [][]string{{"版本", "数值", "CID", "提交时间"}}
	for _, r := range reports {
		rows = append(rows, []string{
			strconv.FormatUint(r.Version, 10),
			registry.FormatScaledValue(r.Value, kpi.Decimals),
			registry.FormatMetadataCID(r.MetadataCID),
			formatTimestamp(r.Timestamp),
		})
	}
	_ = c.ShowTable(fmt.Sprintf("%s · %d 年", kpi.Label(), reports[0].ReportingYear), rows)
}

func formatTimestamp(ts uint64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02 15:04")
}
