package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrAccountNotFound keystore 中没有该地址
var ErrAccountNotFound = errors.New("account not found in keystore")

// Store 本地 keystore 目录(Web3 Secret Storage 格式)
type Store struct {
	ks *keystore.KeyStore
}

// KeystoreOption keystore 选项
type KeystoreOption func(*keystoreParams)

type keystoreParams struct {
	scryptN, scryptP int
}

// WithLightScrypt 使用轻量 scrypt 参数，仅用于测试和开发网
func WithLightScrypt() KeystoreOption {
	return func(p *keystoreParams) {
		p.scryptN, p.scryptP = keystore.LightScryptN, keystore.LightScryptP
	}
}

// OpenStore 打开(必要时创建) keystore 目录
func OpenStore(dir string, opts ...KeystoreOption) *Store {
	p := keystoreParams{scryptN: keystore.StandardScryptN, scryptP: keystore.StandardScryptP}
	for _, opt := range opts {
		opt(&p)
	}
	return &Store{ks: keystore.NewKeyStore(dir, p.scryptN, p.scryptP)}
}

// NewAccount 生成新账户
func (s *Store) NewAccount(password string) (*Account, error) {
	acc, err := s.ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return toAccount(acc), nil
}

// ImportHexKey 导入十六进制私钥
func (s *Store) ImportHexKey(hexKey, password string) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return s.importKey(key, password)
}

// ImportMnemonic 从助记词派生私钥并导入
func (s *Store) ImportMnemonic(mnemonic, passphrase string, path *DerivationPath, password string) (*Account, error) {
	signer, err := NewMnemonicSigner(mnemonic, passphrase, path)
	if err != nil {
		return nil, err
	}
	key, err := signer.PrivateKey()
	if err != nil {
		return nil, err
	}
	return s.importKey(key, password)
}

func (s *Store) importKey(key *ecdsa.PrivateKey, password string) (*Account, error) {
	acc, err := s.ks.ImportECDSA(key, password)
	if errors.Is(err, keystore.ErrAccountAlreadyExists) {
		return toAccount(acc), nil
	}
	if err != nil {
		return nil, fmt.Errorf("import key: %w", err)
	}
	return toAccount(acc), nil
}

// Accounts 列出所有账户
func (s *Store) Accounts() []*Account {
	list := s.ks.Accounts()
	out := make([]*Account, 0, len(list))
	for _, acc := range list {
		out = append(out, toAccount(acc))
	}
	return out
}

// Signer 返回指定地址的签名器，需 Unlock 后使用
func (s *Store) Signer(address common.Address) (*KeystoreSigner, error) {
	acc := accounts.Account{Address: address}
	if !s.ks.HasAddress(address) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address.Hex())
	}
	found, err := s.ks.Find(acc)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &KeystoreSigner{ks: s.ks, account: found}, nil
}

// DefaultSigner 返回第一个账户的签名器
func (s *Store) DefaultSigner() (*KeystoreSigner, error) {
	list := s.ks.Accounts()
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: keystore is empty", ErrAccountNotFound)
	}
	return &KeystoreSigner{ks: s.ks, account: list[0]}, nil
}

func toAccount(acc accounts.Account) *Account {
	return &Account{Address: acc.Address, URL: acc.URL.Path}
}

// KeystoreSigner keystore 账户签名器
type KeystoreSigner struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

func (s *KeystoreSigner) Address() common.Address {
	return s.account.Address
}

func (s *KeystoreSigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	if s.IsLocked() {
		return nil, ErrSignerLocked
	}
	opts, err := bind.NewKeyStoreTransactorWithChainID(s.ks, s.account, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (s *KeystoreSigner) SignHash(hash []byte) ([]byte, error) {
	sig, err := s.ks.SignHash(s.account, hash)
	if errors.Is(err, keystore.ErrLocked) {
		return nil, ErrSignerLocked
	}
	return sig, err
}

// Unlock 用密码解锁，duration 为 0 时保持解锁直到 Lock
func (s *KeystoreSigner) Unlock(password string, duration time.Duration) error {
	if err := s.ks.TimedUnlock(s.account, password, duration); err != nil {
		return fmt.Errorf("unlock %s: %w", s.account.Address.Hex(), err)
	}
	return nil
}

func (s *KeystoreSigner) Lock() {
	_ = s.ks.Lock(s.account.Address)
}

// IsLocked 通过签名零哈希探测解锁状态
func (s *KeystoreSigner) IsLocked() bool {
	_, err := s.ks.SignHash(s.account, make([]byte, 32))
	return err != nil
}

func (s *KeystoreSigner) Type() SignerType {
	return SignerTypeKeystore
}

var _ Signer = (*KeystoreSigner)(nil)
