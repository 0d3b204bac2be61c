package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/output"
	"github.com/weisyn/esg-registry/client/core/wallet"
)

var (
	walletMnemonic   bool
	walletWords      int
	walletPassphrase string
	walletPath       string
)

// walletCmd 钱包命令
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "钱包管理",
	Long:  "创建、导入和列出提交报告所用的公司账户 (keystore 加密保存)",
}

// walletNewCmd 创建新账户
var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "创建新账户",
	Long: `创建新的账户并保存到keystore。

示例：
  esg wallet new                        # 随机私钥
  esg wallet new --mnemonic             # 生成 12 词助记词并派生账户
  esg wallet new --mnemonic --words 24`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		if !walletMnemonic {
			acc, err := store.NewAccount(password)
			if err != nil {
				return err
			}
			formatter.PrintSuccess(fmt.Sprintf("账户创建成功: %s", acc.Address.Hex()))
			return formatter.Print(accountTable(acc))
		}

		strength := wallet.Mnemonic12Words
		switch walletWords {
		case 12:
		case 24:
			strength = wallet.Mnemonic24Words
		default:
			return fmt.Errorf("无效的助记词数量: %d，支持 12, 24", walletWords)
		}
		mnemonic, err := wallet.NewMnemonicManager().GenerateMnemonic(strength)
		if err != nil {
			return fmt.Errorf("生成助记词失败: %w", err)
		}
		path, err := derivationPath()
		if err != nil {
			return err
		}
		acc, err := store.ImportMnemonic(mnemonic, walletPassphrase, path, password)
		if err != nil {
			return err
		}

		formatter.PrintSuccess(fmt.Sprintf("助记词账户创建成功: %s", acc.Address.Hex()))
		formatter.PrintWarning("请务必离线备份以下助记词，丢失将无法恢复账户:")
		fmt.Fprintf(os.Stderr, "\n  %s\n\n", mnemonic)
		formatter.PrintInfo(fmt.Sprintf("派生路径: %s", path))
		return formatter.Print(accountTable(acc))
	},
}

// walletImportCmd 导入私钥
var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "导入十六进制私钥",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		key, err := wallet.ReadPassword("请输入私钥 (hex): ")
		if err != nil {
			return err
		}
		password, err := promptNewPassword()
		if err != nil {
			return err
		}
		acc, err := store.ImportHexKey(key, password)
		if err != nil {
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("账户导入成功: %s", acc.Address.Hex()))
		return formatter.Print(accountTable(acc))
	},
}

// walletImportMnemonicCmd 从助记词导入
var walletImportMnemonicCmd = &cobra.Command{
	Use:   "import-mnemonic",
	Short: "从 BIP39 助记词导入账户",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		mnemonic, err := wallet.ReadPassword("请输入助记词: ")
		if err != nil {
			return err
		}
		mnemonic = strings.Join(strings.Fields(mnemonic), " ")
		if ok, reason := wallet.NewMnemonicManager().Validate(mnemonic); !ok {
			return fmt.Errorf("助记词无效: %s", reason)
		}
		path, err := derivationPath()
		if err != nil {
			return err
		}
		password, err := promptNewPassword()
		if err != nil {
			return err
		}
		acc, err := store.ImportMnemonic(mnemonic, walletPassphrase, path, password)
		if err != nil {
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("账户导入成功: %s (%s)", acc.Address.Hex(), path))
		return formatter.Print(accountTable(acc))
	},
}

// walletListCmd 列出所有账户
var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有账户",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		accounts := store.Accounts()
		if len(accounts) == 0 {
			formatter.PrintInfo("keystore 中没有账户，使用 esg wallet new 创建")
		}
		return formatter.Print(accountTable(accounts...))
	},
}

func openStore() (*wallet.Store, error) {
	profile, err := currentProfile()
	if err != nil {
		return nil, err
	}
	return storeFor(profile), nil
}

func storeFor(profile *config.Profile) *wallet.Store {
	return wallet.OpenStore(profile.KeystorePath)
}

func derivationPath() (*wallet.DerivationPath, error) {
	if walletPath == "" {
		return wallet.DefaultDerivationPath(), nil
	}
	return wallet.ParseDerivationPath(walletPath)
}

// promptNewPassword 读取并确认新密码；ESG_PASSWORD 已设置时直接使用
func promptNewPassword() (string, error) {
	if p := os.Getenv(envPassword); p != "" {
		return p, nil
	}
	password, err := wallet.ReadPassword("请输入密码: ")
	if err != nil {
		return "", err
	}
	if len(password) < 8 {
		return "", errors.New("密码至少 8 位")
	}
	again, err := wallet.ReadPassword("请确认密码: ")
	if err != nil {
		return "", err
	}
	if password != again {
		return "", errors.New("密码不匹配")
	}
	return password, nil
}

func accountTable(accounts ...*wallet.Account) *output.Table {
	t := &output.Table{Headers: []string{"address", "keystore"}}
	for _, a := range accounts {
		t.AddRow(a.Address.Hex(), a.URL)
	}
	return t
}

func init() {
	walletNewCmd.Flags().BoolVar(&walletMnemonic, "mnemonic", false, "生成助记词账户")
	walletNewCmd.Flags().IntVar(&walletWords, "words", 12, "助记词数量 (12|24)")
	for _, c := range []*cobra.Command{walletNewCmd, walletImportMnemonicCmd} {
		c.Flags().StringVar(&walletPassphrase, "passphrase", "", "BIP39 附加口令")
		c.Flags().StringVar(&walletPath, "path", "", "派生路径 (默认 m/44'/60'/0'/0/0)")
	}

	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletImportMnemonicCmd)
	walletCmd.AddCommand(walletListCmd)
}
