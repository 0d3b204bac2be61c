package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignerLocked 签名器已锁定
var ErrSignerLocked = errors.New("signer is locked")

// MnemonicSigner 助记词签名器
type MnemonicSigner struct {
	mnemonic   string
	passphrase string
	path       *DerivationPath
	address    common.Address

	mu          sync.RWMutex
	key         *ecdsa.PrivateKey
	unlockUntil time.Time
}

// NewMnemonicSigner 创建助记词签名器并派生 path 对应的地址
//
// path 为空时使用 m/44'/60'/0'/0/0。创建后处于解锁状态。
func NewMnemonicSigner(mnemonic, passphrase string, path *DerivationPath) (*MnemonicSigner, error) {
	if path == nil {
		path = DefaultDerivationPath()
	}
	s := &MnemonicSigner{mnemonic: mnemonic, passphrase: passphrase, path: path}
	key, err := s.derive()
	if err != nil {
		return nil, err
	}
	s.key = key
	s.address = crypto.PubkeyToAddress(key.PublicKey)
	return s, nil
}

// derive 沿 BIP44 路径派生私钥
func (s *MnemonicSigner) derive() (*ecdsa.PrivateKey, error) {
	seed, err := NewMnemonicManager().MnemonicToSeed(s.mnemonic, s.passphrase)
	if err != nil {
		return nil, err
	}

	// chaincfg 参数只影响扩展密钥序列化前缀，不影响派生结果
	child, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, index := range s.path.ToUint32Array() {
		child, err = child.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", s.path, err)
		}
	}

	var priv *btcec.PrivateKey
	priv, err = child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extract private key: %w", err)
	}
	key, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, fmt.Errorf("convert private key: %w", err)
	}
	return key, nil
}

// Path 派生路径
func (s *MnemonicSigner) Path() *DerivationPath {
	return s.path
}

// PrivateKey 导出私钥，供导入 keystore 使用
func (s *MnemonicSigner) PrivateKey() (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lockedLocked() {
		return nil, ErrSignerLocked
	}
	return s.key, nil
}

func (s *MnemonicSigner) Address() common.Address {
	return s.address
}

func (s *MnemonicSigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := s.PrivateKey()
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (s *MnemonicSigner) SignHash(hash []byte) ([]byte, error) {
	key, err := s.PrivateKey()
	if err != nil {
		return nil, err
	}
	return crypto.Sign(hash, key)
}

// Unlock 重新派生私钥；助记词签名器不校验密码
func (s *MnemonicSigner) Unlock(password string, duration time.Duration) error {
	key, err := s.derive()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.unlockUntil = time.Time{}
	if duration > 0 {
		s.unlockUntil = time.Now().Add(duration)
	}
	return nil
}

// Lock 清除内存中的私钥
func (s *MnemonicSigner) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil && s.key.D != nil {
		s.key.D.SetInt64(0)
	}
	s.key = nil
}

func (s *MnemonicSigner) IsLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockedLocked()
}

func (s *MnemonicSigner) lockedLocked() bool {
	if s.key == nil {
		return true
	}
	return !s.unlockUntil.IsZero() && time.Now().After(s.unlockUntil)
}

func (s *MnemonicSigner) Type() SignerType {
	return SignerTypeMnemonic
}

var _ Signer = (*MnemonicSigner)(nil)
