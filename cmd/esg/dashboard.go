package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/dashboard"
	"github.com/weisyn/esg-registry/client/core/output"
	"github.com/weisyn/esg-registry/client/core/registry"
	"github.com/weisyn/esg-registry/client/pkg/ux/flows"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

var (
	dashboardKPI   string
	dashboardFrom  uint16
	dashboardTo    uint16
	dashboardChart bool
)

// dashboardCmd 投资者看板
var dashboardCmd = &cobra.Command{
	Use:   "dashboard <owner>",
	Short: "查看公司某项 KPI 的年度序列",
	Long: `读取公司在年份区间内每年的最新报告，输出表格与统计。

缺失的年份显示为 "-"；--chart 以条形图展示趋势。

示例：
  esg dashboard 0x7099... --kpi ghg_scope1
  esg dashboard 0x7099... --kpi energy --from 2018 --to 2024 --chart
  esg dashboard 0x7099... --kpi water -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseOwner(args[0])
		if err != nil {
			return err
		}
		c, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		profile := c.Profile()
		kpi, err := lookupKPI(profile, dashboardKPI)
		if err != nil {
			return err
		}
		from, to := profile.Years()
		if dashboardFrom != 0 {
			from = dashboardFrom
		}
		if dashboardTo != 0 {
			to = dashboardTo
		}

		series, err := c.Dashboard().Series(cmd.Context(), dashboard.Query{
			Owner:     owner,
			KPITypeID: kpi.TypeID(),
			FromYear:  from,
			ToYear:    to,
		})
		if err != nil {
			return err
		}

		if dashboardChart && !formatter.IsJSON() {
			flows.RenderSeries(ui.NewComponents(nil), series, kpi)
			return nil
		}

		t := &output.Table{Headers: []string{"year", "value", "unit", "version", "metadata_cid"}}
		for _, p := range series.Points {
			year := strconv.Itoa(int(p.Year))
			if !p.Found || p.Report == nil {
				t.AddRow(year, "-", kpi.Unit, "-", "-")
				continue
			}
			t.AddRow(year,
				registry.FormatScaledValue(p.Report.Value, kpi.Decimals),
				kpi.Unit,
				strconv.FormatUint(p.Report.Version, 10),
				registry.FormatMetadataCID(p.Report.MetadataCID))
		}
		if err := formatter.Print(t); err != nil {
			return err
		}
		if !formatter.IsJSON() {
			if sum := series.Summary(); sum.Reported > 0 {
				for _, kv := range flows.SummaryPairs(sum, kpi) {
					formatter.PrintInfo(fmt.Sprintf("%s: %s", kv.Key, kv.Value))
				}
			}
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardKPI, "kpi", "", "KPI id 或 code")
	dashboardCmd.Flags().Uint16Var(&dashboardFrom, "from", 0, "起始年份 (默认取 profile 配置)")
	dashboardCmd.Flags().Uint16Var(&dashboardTo, "to", 0, "结束年份 (默认取 profile 配置)")
	dashboardCmd.Flags().BoolVar(&dashboardChart, "chart", false, "以图表展示")
	_ = dashboardCmd.MarkFlagRequired("kpi")
}
