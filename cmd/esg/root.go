package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/weisyn/esg-registry/client"
	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/output"
	"github.com/weisyn/esg-registry/client/core/wallet"
	logconfig "github.com/weisyn/esg-registry/internal/config/log"
	"github.com/weisyn/esg-registry/internal/core/infrastructure/log"
)

// 环境变量
const (
	envMnemonic = "ESG_MNEMONIC" // 设置后用助记词签名，不读取 keystore
	envPassword = "ESG_PASSWORD" // keystore 密码，未设置时交互输入
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	Profile      string // Profile名称
	ConfigDir    string // 配置目录
	OutputFormat string // 输出格式
	Silent       bool   // 静默模式
	Verbose      bool   // 详细模式
}

var (
	globalFlags GlobalFlags
	profileMgr  *config.ProfileManager
	formatter   *output.Formatter
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "esg",
	Short: "ESG 注册表命令行客户端",
	Long: `esg - 链上 ESG 报告注册表客户端

公司以自己的钱包地址提交年度 KPI 报告（数值 + 元数据 CID），
投资者按公司、KPI 和年份区间读取报告，查看趋势与修订历史。

常用命令:
  esg report submit --kpi ghg_scope1 --year 2024 --value 120.5 --cid Qm...
  esg dashboard 0x7099... --kpi ghg_scope1 --chart
  esg events watch --owner 0x7099...
  esg serve                # 启动看板 HTTP/WebSocket 服务
  esg console              # 交互式控制台`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		profileMgr, err = config.NewProfileManager(globalFlags.ConfigDir)
		if err != nil {
			return fmt.Errorf("初始化配置: %w", err)
		}

		format, err := output.ParseFormat(globalFlags.OutputFormat)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, cmd.OutOrStdout())
		formatter.SetSilent(globalFlags.Silent)
		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if formatter != nil {
			formatter.PrintError(err)
		} else {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Profile, "profile", "", "使用指定的Profile (默认使用当前Profile)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigDir, "config-dir", "", "配置目录 (默认: ~/.esg)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "table", "输出格式: json|pretty|table|text")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Silent, "silent", false, "静默模式 (仅输出结果)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "详细输出")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(kpiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	// 不带子命令时进入交互式控制台
	rootCmd.RunE = consoleCmd.RunE
	rootCmd.Flags().StringVar(&consoleFrom, "from", "", "提交使用的账户地址")
}

// currentProfile 返回 --profile 指定或当前的 profile
func currentProfile() (*config.Profile, error) {
	var (
		profile *config.Profile
		err     error
	)
	if globalFlags.Profile != "" {
		profile, err = profileMgr.GetProfile(globalFlags.Profile)
	} else {
		profile, err = profileMgr.GetCurrentProfile()
	}
	if err != nil {
		return nil, fmt.Errorf("获取Profile: %w", err)
	}
	return profile, nil
}

// newLogger CLI 默认只输出警告，--verbose 打开调试日志
func newLogger(profile *config.Profile) *zap.Logger {
	opts := logconfig.LogOptions{Level: "warn"}
	if profile.Log != nil {
		opts = *profile.Log
	}
	if globalFlags.Verbose {
		opts.Level = "debug"
	}
	l, err := log.New(logconfig.New(&opts))
	if err != nil {
		return zap.NewNop()
	}
	return l.GetZapLogger()
}

// newClient 按当前 profile 连接节点
func newClient(ctx context.Context) (*client.Client, error) {
	profile, err := currentProfile()
	if err != nil {
		return nil, err
	}
	return client.New(ctx, profile, client.WithLogger(newLogger(profile)))
}

// loadSigner 加载签名者
//
// ESG_MNEMONIC 优先；否则从 keystore 取 from 对应账户（为空取第一个）并解锁。
func loadSigner(profile *config.Profile, from string) (wallet.Signer, error) {
	if hasMnemonicEnv() {
		return wallet.NewMnemonicSigner(strings.TrimSpace(os.Getenv(envMnemonic)), "", nil)
	}

	store := wallet.OpenStore(profile.KeystorePath)
	var (
		signer *wallet.KeystoreSigner
		err    error
	)
	if from != "" {
		if !common.IsHexAddress(from) {
			return nil, fmt.Errorf("无效的地址: %s", from)
		}
		signer, err = store.Signer(common.HexToAddress(from))
	} else {
		signer, err = store.DefaultSigner()
	}
	if err != nil {
		return nil, fmt.Errorf("%w (可使用 esg wallet new 创建账户，或设置 %s)", err, envMnemonic)
	}

	password := os.Getenv(envPassword)
	if password == "" {
		password, err = wallet.ReadPassword(fmt.Sprintf("请输入 %s 的密码: ", signer.Address().Hex()))
		if err != nil {
			return nil, err
		}
	}
	if err := signer.Unlock(password, 0); err != nil {
		return nil, fmt.Errorf("解锁账户失败: %w", err)
	}
	return signer, nil
}

func hasMnemonicEnv() bool {
	return strings.TrimSpace(os.Getenv(envMnemonic)) != ""
}

// parseOwner 解析公司地址参数
func parseOwner(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("无效的公司地址: %s", s)
	}
	return common.HexToAddress(s), nil
}
