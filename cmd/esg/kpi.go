package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/output"
)

// kpiCmd KPI 目录
var kpiCmd = &cobra.Command{
	Use:   "kpi",
	Short: "KPI 目录",
}

var kpiListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出当前 profile 的 KPI 目录",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := currentProfile()
		if err != nil {
			return err
		}
		t := &output.Table{Headers: []string{"id", "code", "name", "unit", "decimals"}}
		for _, k := range profile.KPIs {
			t.AddRow(strconv.FormatUint(k.ID, 10), k.Code, k.Name, k.Unit, strconv.Itoa(int(k.Decimals)))
		}
		return formatter.Print(t)
	},
}

func init() {
	kpiCmd.AddCommand(kpiListCmd)
}
