package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultProfiles 测试首次启动创建默认 profiles
func TestDefaultProfiles(t *testing.T) {
	dir := t.TempDir()
	pm, err := NewProfileManager(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"local", "mainnet", "sepolia"}, pm.ListProfiles())
	assert.Equal(t, "local", pm.CurrentName())

	p, err := pm.GetCurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), p.ChainID)
	assert.Equal(t, 90*time.Second, p.ConfirmTimeout.Std())
	assert.Equal(t, filepath.Join(dir, "keystores", "local"), p.KeystorePath)
	assert.NoError(t, p.Validate())

	from, to := p.Years()
	assert.Equal(t, DefaultYearFrom, from)
	assert.Equal(t, DefaultYearTo, to)

	_, err = os.Stat(filepath.Join(dir, "profiles", "sepolia.json"))
	assert.NoError(t, err)
}

// TestSwitchAndDelete 测试切换与删除
func TestSwitchAndDelete(t *testing.T) {
	dir := t.TempDir()
	pm, err := NewProfileManager(dir)
	require.NoError(t, err)

	assert.ErrorIs(t, pm.SwitchProfile("nope"), ErrProfileNotFound)
	require.NoError(t, pm.SwitchProfile("sepolia"))
	assert.Error(t, pm.DeleteProfile("sepolia"))

	// 重新加载后保持当前 profile
	pm2, err := NewProfileManager(dir)
	require.NoError(t, err)
	assert.Equal(t, "sepolia", pm2.CurrentName())

	require.NoError(t, pm2.DeleteProfile("local"))
	_, err = pm2.GetProfile("local")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, pm2.DeleteProfile("local"), ErrProfileNotFound)
}

// TestDurationJSON 测试时长以字符串序列化
func TestDurationJSON(t *testing.T) {
	data, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())
	assert.Error(t, json.Unmarshal([]byte(`90`), &d))
}

// TestLoadPartialProfile 测试手写 profile 填充默认值
func TestLoadPartialProfile(t *testing.T) {
	dir := t.TempDir()
	pm, err := NewProfileManager(dir)
	require.NoError(t, err)

	raw := `{"name":"custom","chain_id":5,"endpoints":[{"name":"n","jsonrpc":"http://x"}],"contract_address":"0x00000000000000000000000000000000000000aa","year_from":2020,"year_to":2022}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles", "custom.json"), []byte(raw), 0600))

	pm, err = NewProfileManager(dir)
	require.NoError(t, err)
	p, err := pm.GetProfile("custom")
	require.NoError(t, err)

	assert.Equal(t, 3, p.RetryAttempts)
	assert.Equal(t, 2*time.Second, p.PollInterval.Std())
	assert.Equal(t, ":8080", p.Server.Listen)
	assert.Len(t, p.KPIs, len(DefaultKPIs()))

	cfg := p.TransportConfig()
	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, "http://x", cfg.Endpoints[0].JSONRPC)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

// TestValidate 测试 profile 校验
func TestValidate(t *testing.T) {
	base := func() *Profile {
		p := &Profile{
			Name:            "t",
			Endpoints:       []EndpointConfig{{Name: "a", JSONRPC: "http://a"}},
			ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		}
		p.applyDefaults(t.TempDir())
		return p
	}

	tests := []struct {
		name   string
		mutate func(p *Profile)
		ok     bool
	}{
		{"valid", func(p *Profile) {}, true},
		{"no endpoints", func(p *Profile) { p.Endpoints = nil }, false},
		{"bad contract", func(p *Profile) { p.ContractAddress = "0x12" }, false},
		{"year range", func(p *Profile) { p.YearFrom, p.YearTo = 2025, 2019 }, false},
		{"duplicate kpi", func(p *Profile) { p.KPIs = append(p.KPIs, p.KPIs[0]) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			if tt.ok {
				assert.NoError(t, p.Validate())
			} else {
				assert.Error(t, p.Validate())
			}
		})
	}
}

// TestFindKPI 测试按 id 或 code 查找
func TestFindKPI(t *testing.T) {
	p := &Profile{KPIs: DefaultKPIs()}

	k, ok := p.FindKPI("1")
	require.True(t, ok)
	assert.Equal(t, "ghg_scope1", k.Code)

	k, ok = p.FindKPI("ENERGY")
	require.True(t, ok)
	assert.Equal(t, uint64(3), k.ID)
	assert.Equal(t, "能源消耗总量 (MWh)", k.Label())

	_, ok = p.FindKPI("99")
	assert.False(t, ok)
}
