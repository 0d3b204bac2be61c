package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/output"
)

var (
	profileChainID  uint64
	profileRPC      string
	profileWS       string
	profileContract string
)

// profileCmd Profile管理命令
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile管理",
	Long:  "管理配置Profile,支持多环境切换(local/sepolia/mainnet)",
}

// profileListCmd 列出所有profiles
var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := &output.Table{Headers: []string{"name", "chain_id", "contract", "current"}}
		for _, name := range profileMgr.ListProfiles() {
			p, err := profileMgr.GetProfile(name)
			if err != nil {
				continue
			}
			current := ""
			if name == profileMgr.CurrentName() {
				current = "*"
			}
			t.AddRow(name, strconv.FormatUint(p.ChainID, 10), p.ContractAddress, current)
		}
		return formatter.Print(t)
	},
}

// profileShowCmd 显示profile详情
var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "显示profile详情",
	Long:  "显示指定profile的详细配置(不指定则显示当前profile)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			profile *config.Profile
			err     error
		)
		if len(args) > 0 {
			profile, err = profileMgr.GetProfile(args[0])
		} else {
			profile, err = currentProfile()
		}
		if err != nil {
			return err
		}
		if formatter.IsJSON() {
			return formatter.Print(profile)
		}

		endpoints := ""
		for i, ep := range profile.Endpoints {
			if i > 0 {
				endpoints += ", "
			}
			endpoints += fmt.Sprintf("%s(%s)", ep.Name, ep.JSONRPC)
		}
		return formatter.Print(map[string]string{
			"name":            profile.Name,
			"chain_id":        strconv.FormatUint(profile.ChainID, 10),
			"contract":        profile.ContractAddress,
			"endpoints":       endpoints,
			"keystore":        profile.KeystorePath,
			"confirm_timeout": profile.ConfirmTimeout.Std().String(),
			"years":           fmt.Sprintf("%d-%d", profile.YearFrom, profile.YearTo),
			"kpis":            strconv.Itoa(len(profile.KPIs)),
			"listen":          profile.Server.Listen,
		})
	},
}

// profileUseCmd 切换profile
var profileUseCmd = &cobra.Command{
	Use:     "use <name>",
	Aliases: []string{"switch"},
	Short:   "切换profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profileMgr.SwitchProfile(args[0]); err != nil {
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("已切换到 profile '%s'", args[0]))
		return nil
	},
}

// profileCreateCmd 创建新profile
var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "创建新profile",
	Long: `创建一个新的配置Profile，其余字段使用默认值。

示例：
  esg profile create staging --chain-id 11155111 --rpc https://... --contract 0x...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := profileMgr.GetProfile(name); err == nil {
			return fmt.Errorf("profile '%s' 已存在", name)
		}

		profile := &config.Profile{
			Name:    name,
			ChainID: profileChainID,
			Endpoints: []config.EndpointConfig{{
				Name:     name + "-primary",
				Priority: 1,
				JSONRPC:  profileRPC,
				WS:       profileWS,
			}},
			ContractAddress: profileContract,
		}
		if err := profile.Validate(); err != nil {
			return err
		}
		if err := profileMgr.SaveProfile(profile); err != nil {
			return fmt.Errorf("保存 profile 失败: %w", err)
		}
		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 创建成功", name))
		return nil
	},
}

// profileDeleteCmd 删除profile
var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "删除profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profileMgr.DeleteProfile(args[0]); err != nil {
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 已删除", args[0]))
		return nil
	},
}

func init() {
	profileCreateCmd.Flags().Uint64Var(&profileChainID, "chain-id", 0, "链ID")
	profileCreateCmd.Flags().StringVar(&profileRPC, "rpc", "", "JSON-RPC URL")
	profileCreateCmd.Flags().StringVar(&profileWS, "ws", "", "WebSocket URL (可选，用于事件订阅)")
	profileCreateCmd.Flags().StringVar(&profileContract, "contract", "", "注册表合约地址")
	_ = profileCreateCmd.MarkFlagRequired("chain-id")
	_ = profileCreateCmd.MarkFlagRequired("rpc")
	_ = profileCreateCmd.MarkFlagRequired("contract")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}
