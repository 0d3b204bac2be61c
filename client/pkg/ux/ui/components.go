package ui

import (
	"time"

	"github.com/pterm/pterm"
)

// Components UI组件接口，定义所有可用的UI组件
type Components interface {
	// === 数据展示组件 ===

	// ShowTable 显示表格数据
	// title: 表格标题
	// data: 表格数据，第一行为表头
	ShowTable(title string, data [][]string) error

	// ShowList 显示列表
	ShowList(title string, items []string) error

	// ShowKeyValuePairs 按给定顺序显示键值对
	ShowKeyValuePairs(title string, pairs []KeyValue) error

	// ShowBarChart 显示横向柱状图
	ShowBarChart(title string, bars []Bar) error

	// === 交互选择组件 ===

	// ShowMenu 显示菜单供用户选择
	// 返回: 选中的索引
	ShowMenu(title string, options []string) (int, error)

	// ShowConfirmDialog 显示确认对话框
	ShowConfirmDialog(title, message string) (bool, error)

	// ShowInputDialog 显示输入对话框
	// isPassword: 是否为密码输入（隐藏显示）
	ShowInputDialog(title, prompt string, isPassword bool) (string, error)

	// ShowContinuePrompt 显示"按 Enter 键继续"的非确认提示
	// 行为: 在 TTY 环境下等待用户按 Enter 后返回；非 TTY 直接返回
	ShowContinuePrompt(title, message string) error

	// === 进度反馈组件 ===

	// ShowSpinner 创建加载动画，调用 Start 后开始
	ShowSpinner(message string) Spinner

	// === 状态显示组件 ===

	ShowSuccess(message string) error
	ShowError(message string) error
	ShowWarning(message string) error
	ShowInfo(message string) error

	// === 面板和布局组件 ===

	// ShowPanel 显示面板
	ShowPanel(title, content string) error

	// ShowHeader 显示标题
	ShowHeader(text string) error

	// ShowSection 显示分区标题
	ShowSection(text string) error

	// Clear 清屏
	Clear() error
}

// Spinner 加载动画接口
type Spinner interface {
	// Start 开始动画
	Start() error

	// UpdateText 更新文本
	UpdateText(text string) error

	// Stop 停止动画
	Stop() error

	// Success 以成功状态停止
	Success(message string) error

	// Fail 以失败状态停止
	Fail(message string) error
}

// KeyValue 有序键值对
type KeyValue struct {
	Key   string
	Value string
}

// Bar 柱状图中的一根柱子
//
// Value 为实际数值，渲染时按最大绝对值缩放到整数刻度。
type Bar struct {
	Label string
	Value float64
	Text  string // 柱子旁显示的文本，为空时显示 Value
}

// ThemeConfig 主题配置
type ThemeConfig struct {
	PrimaryColor   pterm.Color // 主色调
	SecondaryColor pterm.Color // 辅助色
	SuccessColor   pterm.Color // 成功色
	WarningColor   pterm.Color // 警告色
	ErrorColor     pterm.Color // 错误色
	InfoColor      pterm.Color // 信息色
}

// GetDefaultTheme 获取默认主题配置
func GetDefaultTheme() *ThemeConfig {
	return &ThemeConfig{
		PrimaryColor:   pterm.FgLightGreen,
		SecondaryColor: pterm.FgLightCyan,
		SuccessColor:   pterm.FgGreen,
		WarningColor:   pterm.FgYellow,
		ErrorColor:     pterm.FgRed,
		InfoColor:      pterm.FgCyan,
	}
}

// FormatDuration 格式化时间段
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return pterm.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return pterm.Sprintf("%dm %ds", minutes, seconds)
	}
	return pterm.Sprintf("%ds", seconds)
}

// TruncateString 截断字符串
func TruncateString(str string, maxLen int) string {
	if len(str) <= maxLen {
		return str
	}
	return str[:maxLen-3] + "..."
}
