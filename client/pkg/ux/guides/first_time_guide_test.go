package guides

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/esg-registry/client/core/config"
	"github.com/weisyn/esg-registry/client/core/wallet"
	"github.com/weisyn/esg-registry/client/pkg/ux/ui"
)

type probe struct {
	chainID uint64
	code    []byte
	err     error
}

func (p probe) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(p.chainID), p.err
}

func (p probe) CodeAt(ctx context.Context, contract common.Address, n *big.Int) ([]byte, error) {
	return p.code, p.err
}

type memWallets struct {
	accounts []*wallet.Account
	password string
}

func (m *memWallets) Accounts() []*wallet.Account { return m.accounts }

func (m *memWallets) NewAccount(password string) (*wallet.Account, error) {
	m.password = password
	acc := &wallet.Account{Address: common.HexToAddress("0x1234")}
	m.accounts = append(m.accounts, acc)
	return acc, nil
}

// scriptedUI 只关心确认、输入和消息
type scriptedUI struct {
	ui.Components

	confirm  bool
	password string
	success  []string
	errs     []string
	tables   int
}

func (s *scriptedUI) ShowHeader(string) error  { return nil }
func (s *scriptedUI) ShowSection(string) error { return nil }
func (s *scriptedUI) ShowInfo(string) error    { return nil }
func (s *scriptedUI) ShowWarning(string) error { return nil }

func (s *scriptedUI) ShowSuccess(m string) error {
	s.success = append(s.success, m)
	return nil
}

func (s *scriptedUI) ShowError(m string) error {
	s.errs = append(s.errs, m)
	return nil
}

func (s *scriptedUI) ShowConfirmDialog(title, message string) (bool, error) {
	return s.confirm, nil
}

func (s *scriptedUI) ShowInputDialog(title, prompt string, isPassword bool) (string, error) {
	return s.password, nil
}

func (s *scriptedUI) ShowTable(title string, data [][]string) error {
	s.tables++
	return nil
}

func localProfile(t *testing.T) *config.Profile {
	t.Helper()
	pm, err := config.NewProfileManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewProfileManager: %v", err)
	}
	p, err := pm.GetProfile("local")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	return p
}

func TestRunGuideCreatesWallet(t *testing.T) {
	p := localProfile(t)
	u := &scriptedUI{confirm: true, password: "s3cret"}
	wallets := &memWallets{}

	g := NewFirstTimeGuide(u, probe{chainID: p.ChainID, code: []byte{0x60}}, wallets, p)
	if err := g.RunGuide(context.Background()); err != nil {
		t.Fatalf("RunGuide: %v", err)
	}
	if wallets.password != "s3cret" || len(wallets.accounts) != 1 {
		t.Errorf("wallet not created: %+v", wallets)
	}
	if u.tables != 1 {
		t.Errorf("KPI table not shown")
	}
}

func TestRunGuideChainMismatch(t *testing.T) {
	p := localProfile(t)
	u := &scriptedUI{}
	g := NewFirstTimeGuide(u, probe{chainID: 1}, &memWallets{}, p)

	err := g.RunGuide(context.Background())
	if err == nil || !strings.Contains(err.Error(), "链 ID 不匹配") {
		t.Fatalf("err = %v", err)
	}
	if len(u.errs) != 1 {
		t.Errorf("errors shown = %v", u.errs)
	}
}

func TestRunGuideMissingContract(t *testing.T) {
	p := localProfile(t)
	g := NewFirstTimeGuide(&scriptedUI{}, probe{chainID: p.ChainID}, &memWallets{}, p)
	if err := g.RunGuide(context.Background()); err == nil || !strings.Contains(err.Error(), "没有合约代码") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunGuideNodeDown(t *testing.T) {
	p := localProfile(t)
	g := NewFirstTimeGuide(&scriptedUI{}, probe{err: errors.New("connection refused")}, &memWallets{}, p)
	if err := g.RunGuide(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunGuideSkipsWallet(t *testing.T) {
	p := localProfile(t)
	wallets := &memWallets{}
	g := NewFirstTimeGuide(&scriptedUI{confirm: false}, probe{chainID: p.ChainID, code: []byte{1}}, wallets, p)
	if err := g.RunGuide(context.Background()); err != nil {
		t.Fatalf("RunGuide: %v", err)
	}
	if len(wallets.accounts) != 0 {
		t.Error("declined guide must not create a wallet")
	}
}
