package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicStrength 助记词强度(熵位数)
type MnemonicStrength int

const (
	Mnemonic12Words MnemonicStrength = 128
	Mnemonic24Words MnemonicStrength = 256
)

// MnemonicManager 助记词管理器
type MnemonicManager struct {
	words map[string]struct{}
}

// NewMnemonicManager 创建新的助记词管理器
func NewMnemonicManager() *MnemonicManager {
	list := bip39.GetWordList()
	words := make(map[string]struct{}, len(list))
	for _, w := range list {
		words[w] = struct{}{}
	}
	return &MnemonicManager{words: words}
}

// GenerateMnemonic 生成助记词
func (m *MnemonicManager) GenerateMnemonic(strength MnemonicStrength) (string, error) {
	if strength != Mnemonic12Words && strength != Mnemonic24Words {
		return "", fmt.Errorf("invalid mnemonic strength: %d, must be 128 or 256", strength)
	}

	entropy := make([]byte, int(strength)/8)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// Validate 校验助记词，返回面向用户的中文说明
func (m *MnemonicManager) Validate(mnemonic string) (bool, string) {
	words := strings.Fields(mnemonic)
	if len(words) == 0 {
		return false, "助记词不能为空"
	}

	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return false, fmt.Sprintf("助记词数量无效: %d，应为 12, 15, 18, 21 或 24", len(words))
	}

	for i, w := range words {
		if _, ok := m.words[w]; !ok {
			return false, fmt.Sprintf("第 %d 个单词 '%s' 不在 BIP39 词表中", i+1, w)
		}
	}

	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return false, "校验和验证失败，请检查助记词是否正确"
	}
	return true, "助记词有效"
}

// MnemonicToSeed 将助记词转换为种子
func (m *MnemonicManager) MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	normalized := strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(normalized) {
		return nil, errors.New("invalid mnemonic")
	}
	return bip39.NewSeed(normalized, passphrase), nil
}
