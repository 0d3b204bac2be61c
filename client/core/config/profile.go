// Package config provides profile management functionality for client configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/esg-registry/client/core/transport"
	logconfig "github.com/weisyn/esg-registry/internal/config/log"
)

// ErrProfileNotFound 指定的 profile 不存在
var ErrProfileNotFound = errors.New("profile not found")

// Profile CLI配置Profile
type Profile struct {
	Name    string `json:"name"`     // Profile名称: local/sepolia/mainnet
	ChainID uint64 `json:"chain_id"` // 链ID

	// 节点端点(按优先级排序)
	Endpoints []EndpointConfig `json:"endpoints"`

	// ContractAddress ESG 登记合约地址
	ContractAddress string `json:"contract_address"`

	// 本地路径
	KeystorePath string `json:"keystore_path"` // Keystore目录

	// 网络配置
	Timeout       Duration `json:"timeout"`        // 请求超时
	RetryAttempts int      `json:"retry_attempts"` // 重试次数
	RetryBackoff  Duration `json:"retry_backoff"`  // 退避时间
	RateLimit     float64  `json:"rate_limit"`     // 每秒请求数，0 不限速

	// 故障转移
	HealthCheckInterval Duration `json:"health_check_interval"` // 健康检查间隔

	// 事件确认
	ConfirmTimeout Duration `json:"confirm_timeout"` // 确认窗口
	PollInterval   Duration `json:"poll_interval"`   // 无 WebSocket 时的轮询间隔

	// 看板年份范围
	YearFrom uint16 `json:"year_from"`
	YearTo   uint16 `json:"year_to"`

	// 交易默认值
	GasLimit uint64 `json:"gas_limit,omitempty"` // 0 表示自动估算

	// KPIs KPI 目录
	KPIs []KPI `json:"kpis"`

	Cache  CacheConfig           `json:"cache"`
	Log    *logconfig.LogOptions `json:"log,omitempty"`
	Server ServerConfig          `json:"server"`
}

// EndpointConfig 端点配置
type EndpointConfig struct {
	Name     string `json:"name"`     // 端点名称
	Priority int    `json:"priority"` // 优先级(数字越小越优先)

	// 协议端点
	JSONRPC string `json:"jsonrpc,omitempty"` // JSON-RPC地址
	WS      string `json:"ws,omitempty"`      // WebSocket地址
}

// CacheConfig 看板读缓存
type CacheConfig struct {
	TTL       Duration `json:"ttl"`
	RedisAddr string   `json:"redis_addr,omitempty"` // 为空时使用进程内缓存
	RedisDB   int      `json:"redis_db,omitempty"`
	Disabled  bool     `json:"disabled,omitempty"`
}

// ServerConfig esg serve 配置
type ServerConfig struct {
	Listen    string  `json:"listen"`
	RateLimit float64 `json:"rate_limit"` // 每个客户端每秒请求数
	Burst     int     `json:"burst"`
}

// Duration 时间duration(支持JSON序列化)
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(dur)
	return nil
}

// Std 转换为 time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Contract 解析合约地址
func (p *Profile) Contract() (common.Address, error) {
	if !common.IsHexAddress(p.ContractAddress) {
		return common.Address{}, fmt.Errorf("profile %s: invalid contract address %q", p.Name, p.ContractAddress)
	}
	return common.HexToAddress(p.ContractAddress), nil
}

// TransportConfig 生成链访问配置
func (p *Profile) TransportConfig() transport.ClientConfig {
	endpoints := make([]transport.EndpointConfig, 0, len(p.Endpoints))
	for _, ep := range p.Endpoints {
		endpoints = append(endpoints, transport.EndpointConfig{
			Name:     ep.Name,
			Priority: ep.Priority,
			JSONRPC:  ep.JSONRPC,
			WS:       ep.WS,
		})
	}
	return transport.ClientConfig{
		Endpoints:           endpoints,
		Timeout:             p.Timeout.Std(),
		RetryAttempts:       p.RetryAttempts,
		RetryBackoff:        p.RetryBackoff.Std(),
		HealthCheckInterval: p.HealthCheckInterval.Std(),
		RateLimit:           p.RateLimit,
		PollInterval:        p.PollInterval.Std(),
	}
}

// Years 返回看板默认年份范围(含两端)
func (p *Profile) Years() (from, to uint16) {
	return p.YearFrom, p.YearTo
}

// applyDefaults 填充缺省字段
func (p *Profile) applyDefaults(configDir string) {
	if p.KeystorePath == "" {
		p.KeystorePath = filepath.Join(configDir, "keystores", p.Name)
	}
	if p.Timeout == 0 {
		p.Timeout = Duration(30 * time.Second)
	}
	if p.RetryAttempts == 0 {
		p.RetryAttempts = 3
	}
	if p.RetryBackoff == 0 {
		p.RetryBackoff = Duration(time.Second)
	}
	if p.HealthCheckInterval == 0 {
		p.HealthCheckInterval = Duration(30 * time.Second)
	}
	if p.ConfirmTimeout == 0 {
		p.ConfirmTimeout = Duration(90 * time.Second)
	}
	if p.PollInterval == 0 {
		p.PollInterval = Duration(2 * time.Second)
	}
	if p.YearFrom == 0 && p.YearTo == 0 {
		p.YearFrom, p.YearTo = DefaultYearFrom, DefaultYearTo
	}
	if len(p.KPIs) == 0 {
		p.KPIs = DefaultKPIs()
	}
	if p.Cache.TTL == 0 {
		p.Cache.TTL = Duration(5 * time.Minute)
	}
	if p.Server.Listen == "" {
		p.Server.Listen = ":8080"
	}
	if p.Server.RateLimit == 0 {
		p.Server.RateLimit = 20
	}
	if p.Server.Burst == 0 {
		p.Server.Burst = 40
	}
}

// Validate 检查 profile 是否可用
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	if len(p.Endpoints) == 0 {
		return fmt.Errorf("profile %s: no endpoints configured", p.Name)
	}
	if _, err := p.Contract(); err != nil {
		return err
	}
	if p.YearFrom > p.YearTo {
		return fmt.Errorf("profile %s: year_from %d > year_to %d", p.Name, p.YearFrom, p.YearTo)
	}
	seen := make(map[uint64]bool, len(p.KPIs))
	for _, k := range p.KPIs {
		if seen[k.ID] {
			return fmt.Errorf("profile %s: duplicate kpi id %d", p.Name, k.ID)
		}
		seen[k.ID] = true
	}
	return nil
}

// ProfileManager Profile管理器
type ProfileManager struct {
	configDir      string
	currentProfile string
	profiles       map[string]*Profile
}

// DefaultConfigDir 默认配置目录 ~/.esg
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".esg"), nil
}

// NewProfileManager 创建Profile管理器
func NewProfileManager(configDir string) (*ProfileManager, error) {
	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	// 确保配置目录存在
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	pm := &ProfileManager{
		configDir: configDir,
		profiles:  make(map[string]*Profile),
	}

	if err := pm.loadProfiles(); err != nil {
		return nil, err
	}

	if err := pm.loadCurrentProfile(); err != nil {
		// 如果没有当前profile,使用默认
		pm.currentProfile = "local"
	}

	return pm, nil
}

// ConfigDir 配置目录
func (pm *ProfileManager) ConfigDir() string {
	return pm.configDir
}

// loadProfiles 加载所有profiles
func (pm *ProfileManager) loadProfiles() error {
	profilesDir := filepath.Join(pm.configDir, "profiles")

	// 如果profiles目录不存在,创建默认profiles
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		if err := os.MkdirAll(profilesDir, 0700); err != nil {
			return fmt.Errorf("create profiles dir: %w", err)
		}
		if err := pm.createDefaultProfiles(); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isJSONFile(entry.Name()) {
			continue
		}

		profilePath := filepath.Join(profilesDir, entry.Name())
		profile, err := pm.loadProfile(profilePath)
		if err != nil {
			// 记录错误但继续
			fmt.Fprintf(os.Stderr, "Warning: failed to load profile %s: %v\n", entry.Name(), err)
			continue
		}

		pm.profiles[profile.Name] = profile
	}

	return nil
}

// loadProfile 加载单个profile
func (pm *ProfileManager) loadProfile(filePath string) (*Profile, error) {
	//nolint:gosec // G304: filePath 来自配置目录，路径安全可控
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(filePath), ".json")
	}

	profile.applyDefaults(pm.configDir)
	return &profile, nil
}

// loadCurrentProfile 加载当前profile
func (pm *ProfileManager) loadCurrentProfile() error {
	currentFile := filepath.Join(pm.configDir, "current")
	//nolint:gosec // G304: currentFile 来自配置目录，路径安全可控
	data, err := os.ReadFile(currentFile)
	if err != nil {
		return err
	}

	pm.currentProfile = strings.TrimSpace(string(data))
	return nil
}

// saveCurrentProfile 保存当前profile
func (pm *ProfileManager) saveCurrentProfile() error {
	currentFile := filepath.Join(pm.configDir, "current")
	return os.WriteFile(currentFile, []byte(pm.currentProfile), 0600)
}

// localContract anvil 首个部署地址
const localContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// DefaultProfiles 内置 profiles
func DefaultProfiles() []*Profile {
	return []*Profile{
		{
			Name:    "local",
			ChainID: 31337,
			Endpoints: []EndpointConfig{
				{
					Name:     "anvil",
					Priority: 1,
					JSONRPC:  "http://127.0.0.1:8545",
					WS:       "ws://127.0.0.1:8545",
				},
			},
			ContractAddress:     localContract,
			Timeout:             Duration(30 * time.Second),
			RetryAttempts:       3,
			RetryBackoff:        Duration(time.Second),
			HealthCheckInterval: Duration(30 * time.Second),
			ConfirmTimeout:      Duration(90 * time.Second),
			PollInterval:        Duration(time.Second),
		},
		{
			Name:    "sepolia",
			ChainID: 11155111,
			Endpoints: []EndpointConfig{
				{
					Name:     "sepolia-primary",
					Priority: 1,
					JSONRPC:  "https://ethereum-sepolia-rpc.publicnode.com",
					WS:       "wss://ethereum-sepolia-rpc.publicnode.com",
				},
				{
					Name:     "sepolia-backup",
					Priority: 2,
					JSONRPC:  "https://rpc.sepolia.org",
				},
			},
			ContractAddress:     common.Address{}.Hex(),
			Timeout:             Duration(60 * time.Second),
			RetryAttempts:       5,
			RetryBackoff:        Duration(2 * time.Second),
			HealthCheckInterval: Duration(60 * time.Second),
			RateLimit:           10,
			ConfirmTimeout:      Duration(90 * time.Second),
			PollInterval:        Duration(4 * time.Second),
		},
		{
			Name:    "mainnet",
			ChainID: 1,
			Endpoints: []EndpointConfig{
				{
					Name:     "mainnet-primary",
					Priority: 1,
					JSONRPC:  "https://ethereum-rpc.publicnode.com",
					WS:       "wss://ethereum-rpc.publicnode.com",
				},
				{
					Name:     "mainnet-backup",
					Priority: 2,
					JSONRPC:  "https://eth.llamarpc.com",
				},
			},
			ContractAddress:     common.Address{}.Hex(),
			Timeout:             Duration(60 * time.Second),
			RetryAttempts:       5,
			RetryBackoff:        Duration(2 * time.Second),
			HealthCheckInterval: Duration(60 * time.Second),
			RateLimit:           10,
			ConfirmTimeout:      Duration(90 * time.Second),
			PollInterval:        Duration(12 * time.Second),
		},
	}
}

// createDefaultProfiles 创建默认profiles
func (pm *ProfileManager) createDefaultProfiles() error {
	for _, profile := range DefaultProfiles() {
		if err := pm.SaveProfile(profile); err != nil {
			return err
		}
	}

	// 设置local为当前profile
	pm.currentProfile = "local"
	return pm.saveCurrentProfile()
}

// GetProfile 获取指定profile
func (pm *ProfileManager) GetProfile(name string) (*Profile, error) {
	profile, exists := pm.profiles[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return profile, nil
}

// GetCurrentProfile 获取当前profile
func (pm *ProfileManager) GetCurrentProfile() (*Profile, error) {
	return pm.GetProfile(pm.currentProfile)
}

// CurrentName 当前 profile 名称
func (pm *ProfileManager) CurrentName() string {
	return pm.currentProfile
}

// ListProfiles 列出所有profiles(按名称排序)
func (pm *ProfileManager) ListProfiles() []string {
	names := make([]string, 0, len(pm.profiles))
	for name := range pm.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveProfile 保存profile
func (pm *ProfileManager) SaveProfile(profile *Profile) error {
	if strings.TrimSpace(profile.Name) == "" || strings.ContainsAny(profile.Name, `/\`) {
		return fmt.Errorf("invalid profile name %q", profile.Name)
	}
	// 在保存前填充默认值，保持与 loadProfile 行为一致
	profile.applyDefaults(pm.configDir)

	profilePath := filepath.Join(pm.configDir, "profiles", profile.Name+".json")

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(profilePath), 0700); err != nil {
		return fmt.Errorf("create profiles dir: %w", err)
	}
	if err := os.WriteFile(profilePath, data, 0600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	pm.profiles[profile.Name] = profile
	return nil
}

// SwitchProfile 切换profile
func (pm *ProfileManager) SwitchProfile(name string) error {
	if _, exists := pm.profiles[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	pm.currentProfile = name
	return pm.saveCurrentProfile()
}

// DeleteProfile 删除profile
func (pm *ProfileManager) DeleteProfile(name string) error {
	// 不能删除当前profile
	if name == pm.currentProfile {
		return fmt.Errorf("cannot delete current profile")
	}
	if _, exists := pm.profiles[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	profilePath := filepath.Join(pm.configDir, "profiles", name+".json")
	if err := os.Remove(profilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete profile file: %w", err)
	}

	delete(pm.profiles, name)
	return nil
}

// isJSONFile 检查是否是JSON文件
func isJSONFile(name string) bool {
	return filepath.Ext(name) == ".json"
}
