package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/confirm"
	"github.com/weisyn/esg-registry/client/core/output"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/core/submission"
	"github.com/weisyn/esg-registry/client/pkg/ux/flows"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

var (
	reportKPI         string
	reportYear        string
	reportValue       string
	reportCID         string
	reportFrom        string
	reportNoWait      bool
	reportInteractive bool
)

// reportCmd 报告相关命令
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "报告提交与查询",
	Long:  "提交年度 KPI 报告，查询最新报告与修订历史",
}

// reportSubmitCmd 提交报告
var reportSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "提交年度 KPI 报告",
	Long: `以当前钱包地址提交一份年度 KPI 报告，并等待链上 ReportSubmitted 事件确认。

数值按 KPI 的小数位换算为链上整数；CID 支持 CIDv0 (Qm...) 或 0x 开头的 32 字节摘要。
同一公司、KPI、年份重复提交会生成新版本，旧版本保留在历史中。

示例：
  esg report submit --kpi ghg_scope1 --year 2024 --value 120.5 --cid QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG
  esg report submit -i                 # 交互式表单`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		profile := c.Profile()
		signer, err := loadSigner(profile, reportFrom)
		if err != nil {
			return err
		}
		svc, err := c.Submission(signer)
		if err != nil {
			return err
		}

		if reportInteractive {
			flow := flows.NewSubmissionFlow(ui.NewComponents(nil), svc, profile.KPIs, profile.ConfirmTimeout.Std())
			_, err := flow.Execute(ctx)
			if errors.Is(err, flows.ErrCancelled) {
				return nil
			}
			return err
		}

		req := submission.Request{
			KPITypeID:     reportKPI,
			ReportingYear: reportYear,
			Value:         reportValue,
			MetadataCID:   reportCID,
		}
		v, err := svc.Validate(req)
		if err != nil {
			return err
		}

		var opts []submission.SubmitOption
		if reportNoWait {
			opts = append(opts, submission.NoWait())
		} else {
			formatter.PrintInfo(fmt.Sprintf("等待链上确认（最长 %s）...", profile.ConfirmTimeout.Std()))
		}
		result, err := svc.Submit(ctx, req, opts...)
		if result != nil {
			if perr := formatter.Print(submitOutput(result, v.KPI)); perr != nil {
				return perr
			}
		}
		if errors.Is(err, confirm.ErrConfirmTimeout) {
			formatter.PrintWarning("确认超时：交易可能仍会上链，可稍后用 esg report get 查询")
		}
		if err != nil {
			return err
		}
		if result.State == confirm.StateResolved {
			formatter.PrintSuccess(fmt.Sprintf("报告已确认，版本 v%d", result.Event.Version))
		}
		return nil
	},
}

func submitOutput(result *submission.Result, kpi config.KPI) map[string]interface{} {
	out := map[string]interface{}{
		"tx_hash": result.TxHash.Hex(),
		"state":   string(result.State),
		"elapsed": result.Elapsed.Truncate(time.Millisecond).String(),
	}
	if ev := result.Event; ev != nil {
		out["block"] = ev.Raw.BlockNumber
		out["version"] = ev.Version
		out["value"] = registry.FormatScaledValue(ev.Value, kpi.Decimals) + " " + kpi.Unit
		out["metadata_cid"] = registry.FormatMetadataCID(ev.MetadataCID)
	}
	return out
}

// reportGetCmd 查询最新报告
var reportGetCmd = &cobra.Command{
	Use:   "get <owner>",
	Short: "查询最新报告",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReportArgs(cmd.Context(), args[0], func(ctx context.Context, q reportQuery) error {
			r, err := q.client.Dashboard().Latest(ctx, q.owner, q.kpi.TypeID(), q.year)
			if err != nil {
				return err
			}
			t := reportTable()
			addReportRow(t, q.year, r, q.kpi)
			return formatter.Print(t)
		})
	},
}

// reportHistoryCmd 查询修订历史
var reportHistoryCmd = &cobra.Command{
	Use:   "history <owner>",
	Short: "查询某年份报告的全部版本",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReportArgs(cmd.Context(), args[0], func(ctx context.Context, q reportQuery) error {
			reports, err := q.client.Dashboard().History(ctx, q.owner, q.kpi.TypeID(), q.year)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				formatter.PrintInfo(fmt.Sprintf("%d 年没有 %s 报告", q.year, q.kpi.Label()))
			}
			t := reportTable()
			for _, r := range reports {
				addReportRow(t, q.year, r, q.kpi)
			}
			return formatter.Print(t)
		})
	},
}

func reportTable() *output.Table {
	return &output.Table{Headers: []string{"year", "version", "value", "unit", "metadata_cid", "submitted_at"}}
}

func addReportRow(t *output.Table, year uint16, r *registry.Report, kpi config.KPI) {
	if r == nil || !r.Exists {
		t.AddRow(strconv.Itoa(int(year)), "-", "-", kpi.Unit, "-", "-")
		return
	}
	submitted := "-"
	if r.Timestamp > 0 {
		submitted = time.Unix(int64(r.Timestamp), 0).UTC().Format(time.RFC3339)
	}
	t.AddRow(
		strconv.Itoa(int(year)),
		strconv.FormatUint(r.Version, 10),
		registry.FormatScaledValue(r.Value, kpi.Decimals),
		kpi.Unit,
		registry.FormatMetadataCID(r.MetadataCID),
		submitted,
	)
}

func init() {
	reportSubmitCmd.Flags().StringVar(&reportKPI, "kpi", "", "KPI id 或 code")
	reportSubmitCmd.Flags().StringVar(&reportYear, "year", "", "报告年份")
	reportSubmitCmd.Flags().StringVar(&reportValue, "value", "", "KPI 数值（十进制）")
	reportSubmitCmd.Flags().StringVar(&reportCID, "cid", "", "元数据 CID")
	reportSubmitCmd.Flags().StringVar(&reportFrom, "from", "", "签名账户地址 (默认 keystore 第一个账户)")
	reportSubmitCmd.Flags().BoolVar(&reportNoWait, "no-wait", false, "只发送交易，不等待确认")
	reportSubmitCmd.Flags().BoolVarP(&reportInteractive, "interactive", "i", false, "交互式填写")

	for _, c := range []*cobra.Command{reportGetCmd, reportHistoryCmd} {
		c.Flags().StringVar(&reportKPI, "kpi", "", "KPI id 或 code")
		c.Flags().StringVar(&reportYear, "year", "", "报告年份")
		_ = c.MarkFlagRequired("kpi")
		_ = c.MarkFlagRequired("year")
	}

	reportCmd.AddCommand(reportSubmitCmd)
	reportCmd.AddCommand(reportGetCmd)
	reportCmd.AddCommand(reportHistoryCmd)
}
