package main

import (
	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/internal/app/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	RunE: func(cmd *cobra.Command, args []string) error {
		if formatter.IsJSON() {
			return formatter.Print(version.GetBuildInfo())
		}
		cmd.Println(version.GetFullVersion())
		return nil
	},
}
