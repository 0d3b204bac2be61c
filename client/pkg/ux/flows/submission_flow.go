package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/submission"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

// ErrCancelled 用户取消
var ErrCancelled = errors.New("用户取消操作")

// SubmissionFlow 公司报告提交流程
//
// 依赖：
//   - ui.Components: UI组件接口
//   - SubmissionService: 提交服务端口
//   - KPI 目录
type SubmissionFlow struct {
	ui      ui.Components
	service SubmissionService
	kpis    []config.KPI
	timeout time.Duration
}

// NewSubmissionFlow 创建提交流程实例
func NewSubmissionFlow(uiComponents ui.Components, service SubmissionService, kpis []config.KPI, confirmTimeout time.Duration) *SubmissionFlow {
	return &SubmissionFlow{
		ui:      uiComponents,
		service: service,
		kpis:    kpis,
		timeout: confirmTimeout,
	}
}

// Execute 交互式填写并提交报告
//
// 流程：选择 KPI，输入年份、数值和 CID，校验并估算 gas，确认后发送并等待链上事件。
func (f *SubmissionFlow) Execute(ctx context.Context) (*submission.Result, error) {
	_ = f.ui.ShowHeader("提交 ESG 报告")
	_ = f.ui.ShowInfo(fmt.Sprintf("提交地址: %s", f.service.Sender().Hex()))

	kpi, err := SelectKPI(f.ui, f.kpis)
	if err != nil {
		return nil, err
	}

	year, err := f.ui.ShowInputDialog("报告年份", "请输入报告年份", false)
	if err != nil {
		return nil, fmt.Errorf("输入报告年份失败: %w", err)
	}
	value, err := f.ui.ShowInputDialog("指标数值", fmt.Sprintf("请输入数值（%s，最多 %d 位小数）", kpi.Unit, kpi.Decimals), false)
	if err != nil {
		return nil, fmt.Errorf("输入指标数值失败: %w", err)
	}
	cid, err := f.ui.ShowInputDialog("证明文件 CID", "请输入 IPFS CID 或 0x 开头的 32 字节哈希", false)
	if err != nil {
		return nil, fmt.Errorf("输入 CID 失败: %w", err)
	}

	req := submission.Request{
		KPITypeID:     strconv.FormatUint(kpi.ID, 10),
		ReportingYear: year,
		Value:         value,
		MetadataCID:   cid,
	}
	v, err := f.service.Validate(req)
	if err != nil {
		_ = f.ui.ShowError(err.Error())
		return nil, err
	}

	gasText := "-"
	spinner := f.ui.ShowSpinner("正在估算 gas...")
	_ = spinner.Start()
	if gas, err := f.service.Estimate(ctx, req); err != nil {
		_ = spinner.Fail(fmt.Sprintf("无法估算 gas: %v", err))
	} else {
		gasText = strconv.FormatUint(gas, 10)
		_ = spinner.Stop()
	}

	confirmMsg := fmt.Sprintf(
		"指标: %s\n年份: %d\n数值: %s %s\nCID: %s\n估算 gas: %s\n\n确认提交？",
		kpi.Label(),
		v.ReportingYear,
		registry.FormatScaledValue(v.Value, kpi.Decimals), kpi.Unit,
		registry.FormatMetadataCID(v.MetadataCID),
		gasText,
	)
	ok, err := f.ui.ShowConfirmDialog("确认提交", confirmMsg)
	if err != nil || !ok {
		_ = f.ui.ShowInfo("已取消提交")
		return nil, ErrCancelled
	}

	spinner = f.ui.ShowSpinner(fmt.Sprintf("等待链上确认（最长 %s）...", ui.FormatDuration(f.timeout)))
	_ = spinner.Start()
	result, err := f.service.Submit(ctx, req)
	if err != nil {
		_ = spinner.Fail("提交未确认")
		if result != nil {
			_ = f.ui.ShowWarning(fmt.Sprintf("交易 %s 已发送，但 %s 内未观察到匹配事件，可稍后在看板中查看", result.TxHash.Hex(), ui.FormatDuration(f.timeout)))
		}
		if errors.Is(err, confirm.ErrConfirmTimeout) {
			return result, err
		}
		_ = f.ui.ShowError(err.Error())
		return result, err
	}
	_ = spinner.Success("报告已上链确认")

	_ = f.ui.ShowKeyValuePairs("提交结果", ResultPairs(result, kpi))
	return result, nil
}

// ResultPairs 提交结果的展示字段
func ResultPairs(result *submission.Result, kpi config.KPI) []ui.KeyValue {
	pairs := []ui.KeyValue{
		{Key: "交易哈希", Value: result.TxHash.Hex()},
		{Key: "状态", Value: string(result.State)},
		{Key: "耗时", Value: ui.FormatDuration(result.Elapsed)},
	}
	if ev := result.Event; ev != nil {
		pairs = append(pairs,
			ui.KeyValue{Key: "区块", Value: strconv.FormatUint(ev.Raw.BlockNumber, 10)},
			ui.KeyValue{Key: "版本", Value: strconv.FormatUint(ev.Version, 10)},
			ui.KeyValue{Key: "数值", Value: registry.FormatScaledValue(ev.Value, kpi.Decimals) + " " + kpi.Unit},
			ui.KeyValue{Key: "CID", Value: registry.FormatMetadataCID(ev.MetadataCID)},
		)
	}
	return pairs
}

// SelectKPI 从目录中选择 KPI
func SelectKPI(c ui.Components, kpis []config.KPI) (config.KPI, error) {
	if len(kpis) == 0 {
		return config.KPI{}, fmt.Errorf("KPI 目录为空")
	}
	options := make([]string, len(kpis))
	for i, k := range kpis {
		options[i] = fmt.Sprintf("%d. %s", k.ID, k.Label())
	}
	idx, err := c.ShowMenu("选择 KPI", options)
	if err != nil {
		return config.KPI{}, err
	}
	if idx < 0 || idx >= len(kpis) {
		return config.KPI{}, ErrCancelled
	}
	return kpis[idx], nil
}
